package restclient

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/cache"
	"github.com/openedx/edx-rest-api-client/httpclient"
	"github.com/openedx/edx-rest-api-client/internal/logging"
	"github.com/openedx/edx-rest-api-client/internal/transport"
	"github.com/openedx/edx-rest-api-client/oauth2client"
)

// DefaultTimeout bounds a whole API request unless WithTimeout overrides it.
const DefaultTimeout = 5 * time.Second

// Option configures a Client.
type Option func(*options)

type options struct {
	creds       auth.Credentials
	timeout     time.Duration
	timeouts    transport.Timeouts
	httpClient  *http.Client
	appendSlash bool
	logger      *zap.Logger

	// Client-credentials session.
	oauthURL   string
	tokenType  string
	tokenCache *oauth2client.TokenCache
	tokenStore cache.Cache
	oauthOpts  []oauth2client.Option

	closers []func() error
}

func newOptions(opts []Option) options {
	o := options{
		creds:       auth.Credentials{ExpiresIn: auth.DefaultJWTExpiresIn},
		timeout:     DefaultTimeout,
		timeouts:    transport.DefaultTimeouts(),
		appendSlash: true,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithJWT sends a pre-issued JWT as "JWT <token>". It takes priority over
// every other credential.
func WithJWT(token string) Option {
	return func(o *options) { o.creds.JWT = token }
}

// WithAccessToken sends an opaque OAuth2 access token as "Bearer <token>".
func WithAccessToken(token string) Option {
	return func(o *options) { o.creds.AccessToken = token }
}

// WithSigningKey sets the HS256 key for signed JWTs. Signing needs a
// username as well.
//
// Deprecated: prefer WithClientCredentials.
func WithSigningKey(key string) Option {
	return func(o *options) { o.creds.SigningKey = key }
}

// WithUsername sets the username claim of signed JWTs.
func WithUsername(username string) Option {
	return func(o *options) { o.creds.Username = username }
}

// WithFullName sets the full_name claim of signed JWTs.
func WithFullName(name string) Option {
	return func(o *options) { o.creds.FullName = name }
}

// WithEmail sets the email claim of signed JWTs.
func WithEmail(email string) Option {
	return func(o *options) { o.creds.Email = email }
}

// WithIssuer sets the iss claim of signed JWTs.
func WithIssuer(issuer string) Option {
	return func(o *options) { o.creds.Issuer = issuer }
}

// WithExpiresIn sets the lifetime of signed JWTs. The default is 30s;
// zero omits the exp claim.
func WithExpiresIn(d time.Duration) Option {
	return func(o *options) { o.creds.ExpiresIn = d }
}

// WithTrackingContext sets the tracking_context claim of signed JWTs.
func WithTrackingContext(tc map[string]any) Option {
	return func(o *options) { o.creds.TrackingContext = tc }
}

// WithClientCredentials authenticates through a self-refreshing OAuth2
// session. It is used only when no JWT, access token or signing key is set.
func WithClientCredentials(clientID, clientSecret string) Option {
	return func(o *options) {
		o.creds.ClientID = clientID
		o.creds.ClientSecret = clientSecret
	}
}

// WithOAuthURL sets the authorization server for client credentials.
// It defaults to the API URL and is normalized to <base>/oauth2/access_token.
func WithOAuthURL(u string) Option {
	return func(o *options) { o.oauthURL = u }
}

// WithTokenType requests "bearer" (default) or "jwt" tokens for client credentials.
func WithTokenType(tokenType string) Option {
	return func(o *options) { o.tokenType = tokenType }
}

// WithTokenCache shares an existing token cache.
func WithTokenCache(tc *oauth2client.TokenCache) Option {
	return func(o *options) { o.tokenCache = tc }
}

// WithTokenStore backs a new token cache with store. Ignored when
// WithTokenCache is also given.
func WithTokenStore(store cache.Cache) Option {
	return func(o *options) { o.tokenStore = store }
}

// WithOAuthOptions passes options to the token fetcher, cache and manager.
func WithOAuthOptions(opts ...oauth2client.Option) Option {
	return func(o *options) { o.oauthOpts = append(o.oauthOpts, opts...) }
}

// WithTimeout bounds every API request. Default is 5s.
func WithTimeout(d time.Duration) Option {
	return func(o *options) { o.timeout = d }
}

// WithTimeouts sets the connect and read timeouts of the transport.
func WithTimeouts(connect, read time.Duration) Option {
	return func(o *options) { o.timeouts = transport.Timeouts{Connect: connect, Read: read} }
}

// WithHTTPClient sends requests through c. Credentials are layered on top
// of its transport; c itself is not modified. With client credentials the
// token requests use c as well, unless WithOAuthOptions sets its own
// oauth2client.WithHTTPClient. A WithTokenCache cache keeps its own client.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.httpClient = c }
}

// WithAppendSlash controls whether resource URLs end with "/". Default true.
func WithAppendSlash(appendSlash bool) Option {
	return func(o *options) { o.appendSlash = appendSlash }
}

// WithLogger sets a zap logger for request and authentication events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logging.OrNop(logger) }
}

// withCloser registers a resource released by Client.Close.
func withCloser(fn func() error) Option {
	return func(o *options) { o.closers = append(o.closers, fn) }
}

// oauthOptions puts the client-level settings first so explicit
// WithOAuthOptions values win.
func (o *options) oauthOptions() []oauth2client.Option {
	opts := []oauth2client.Option{
		oauth2client.WithLogger(o.logger),
		oauth2client.WithTimeouts(o.timeouts.Connect, o.timeouts.Read),
	}
	if o.tokenType != "" {
		opts = append(opts, oauth2client.WithTokenType(o.tokenType))
	}
	if o.httpClient != nil {
		// Caller's oauth2client.WithHTTPClient comes later and wins.
		opts = append(opts, oauth2client.WithHTTPClient(o.httpClient))
	}
	return append(opts, o.oauthOpts...)
}

// buildHTTPClient returns the client API requests go through, with a
// attached when it is not nil.
func (o *options) buildHTTPClient(a auth.Attacher) (*http.Client, error) {
	if o.httpClient != nil {
		hc := *o.httpClient
		if a != nil {
			hc.Transport = httpclient.NewTransport(a, hc.Transport)
		}
		if hc.Timeout == 0 {
			hc.Timeout = o.timeout
		}
		return &hc, nil
	}

	b := httpclient.NewBuilder().
		WithTimeout(o.timeout).
		WithTimeouts(o.timeouts.Connect, o.timeouts.Read)
	if a != nil {
		b = b.WithAttacher(a)
	}
	return b.Build()
}
