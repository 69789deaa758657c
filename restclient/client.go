package restclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/httpclient"
	"github.com/openedx/edx-rest-api-client/oauth2client"
)

// Doer sends an HTTP request. *http.Client and *httpclient.Session both
// satisfy it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is an edX REST API client. Credentials are chosen once at
// construction by priority: supplied JWT, access token, signing key with
// username, client credentials. With none of them the client sends
// unauthenticated requests.
//
// A Client is safe for concurrent use.
type Client struct {
	baseURL     *url.URL
	doer        Doer
	kind        auth.Kind
	session     *httpclient.Session
	appendSlash bool
	logger      *zap.Logger
	closers     []func() error
}

// New creates a client for the API at rawURL.
//
// Example:
//
//	client, err := restclient.New("https://ecommerce.example.com/api/v2",
//	    restclient.WithAccessToken(token))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	var order map[string]any
//	err = client.Resource("orders", 42).Get(ctx, &order)
func New(rawURL string, opts ...Option) (*Client, error) {
	return newClient(rawURL, newOptions(opts))
}

func newClient(rawURL string, o options) (*Client, error) {
	if strings.TrimSpace(rawURL) == "" {
		return nil, fmt.Errorf("%w: an API url must be supplied", auth.ErrInvalidConfig)
	}
	base, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid API url: %v", auth.ErrInvalidConfig, err)
	}

	c := &Client{
		baseURL:     base,
		kind:        o.creds.Kind(),
		appendSlash: o.appendSlash,
		logger:      o.logger,
		closers:     o.closers,
	}

	attacher, err := o.creds.Attacher()
	switch {
	case errors.Is(err, auth.ErrDynamicCredentials):
		if err := c.startSession(&o); err != nil {
			return nil, err
		}
		return c, nil
	case err != nil:
		return nil, err
	}

	hc, err := o.buildHTTPClient(attacher)
	if err != nil {
		return nil, err
	}
	c.doer = hc

	c.logger.Debug("restclient: client created",
		zap.String("url", base.Redacted()),
		zap.Stringer("credentials", c.kind))
	return c, nil
}

// startSession wires the client credentials grant: token cache, token
// manager and a Session that authenticates every request.
func (c *Client) startSession(o *options) error {
	oauthURL := o.oauthURL
	if oauthURL == "" {
		oauthURL = c.baseURL.String()
	}

	oauthOpts := o.oauthOptions()
	tc := o.tokenCache
	if tc == nil {
		tc = oauth2client.NewTokenCache(o.tokenStore, nil, oauthOpts...)
	}
	tm := oauth2client.NewTokenManager(context.Background(), tc, oauthURL,
		o.creds.ClientID, o.creds.ClientSecret, oauthOpts...)

	hc, err := o.buildHTTPClient(nil)
	if err != nil {
		return err
	}
	session, err := httpclient.NewSession(c.baseURL.String(), tm,
		httpclient.WithClient(hc),
		httpclient.WithLogger(o.logger))
	if err != nil {
		return err
	}

	c.session = session
	c.doer = session

	c.logger.Debug("restclient: client created",
		zap.String("url", c.baseURL.Redacted()),
		zap.String("token_url", tm.Request().URL),
		zap.Stringer("credentials", c.kind))
	return nil
}

// BaseURL returns the API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// Credentials reports which credential variant the client uses.
func (c *Client) Credentials() auth.Kind {
	return c.kind
}

// Session returns the self-refreshing session behind a client-credentials
// client, or nil for every other variant.
func (c *Client) Session() *httpclient.Session {
	return c.session
}

// Do sends req with the client's credentials.
func (c *Client) Do(req *http.Request) (*http.Response, error) {
	resp, err := c.doer.Do(req)
	if err != nil {
		c.logger.Debug("restclient: request failed",
			zap.String("method", req.Method),
			zap.String("url", req.URL.Redacted()),
			zap.Error(err))
		return nil, err
	}
	c.logger.Debug("restclient: request completed",
		zap.String("method", req.Method),
		zap.String("url", req.URL.Redacted()),
		zap.Int("status", resp.StatusCode))
	return resp, nil
}

// Close releases idle connections and any cache the client owns.
func (c *Client) Close() error {
	if c.session != nil {
		c.session.Close()
	} else if hc, ok := c.doer.(*http.Client); ok {
		hc.CloseIdleConnections()
	}

	var errs []error
	for _, fn := range c.closers {
		if err := fn(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
