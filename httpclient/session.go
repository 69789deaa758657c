package httpclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/internal/logging"
	"github.com/openedx/edx-rest-api-client/internal/transport"
	"github.com/openedx/edx-rest-api-client/oauth2client"
)

const tracerName = "github.com/openedx/edx-rest-api-client/httpclient"

// Session is a long-lived HTTP session that makes sure it holds a valid
// access token before every request and attaches it. Tokens come from a
// TokenManager, so sessions sharing a token cache share tokens.
//
// A Session is safe for concurrent use. Authentication failures are
// returned to the caller unchanged and are never retried.
type Session struct {
	baseURL *url.URL
	tm      *oauth2client.TokenManager
	client  *http.Client
	headers http.Header
	logger  *zap.Logger

	current atomic.Pointer[oauth2client.AccessToken]
}

// SessionOption configures a Session.
type SessionOption func(*Session)

// WithClient sets the underlying HTTP client. It should not inject
// credentials of its own.
func WithClient(c *http.Client) SessionOption {
	return func(s *Session) {
		if c != nil {
			s.client = c
		}
	}
}

// WithLogger sets a zap logger for authentication events.
func WithLogger(logger *zap.Logger) SessionOption {
	return func(s *Session) {
		s.logger = logging.OrNop(logger)
	}
}

// WithDefaultHeader adds a header to every request unless the request
// already sets it.
func WithDefaultHeader(key, value string) SessionOption {
	return func(s *Session) {
		s.headers.Set(key, value)
	}
}

// NewSession creates a session for the API at baseURL. Relative request
// URLs are resolved against it.
func NewSession(baseURL string, tm *oauth2client.TokenManager, opts ...SessionOption) (*Session, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: an API url must be supplied", auth.ErrInvalidConfig)
	}
	if tm == nil {
		return nil, fmt.Errorf("%w: token manager is required", auth.ErrInvalidConfig)
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid API url: %v", auth.ErrInvalidConfig, err)
	}

	s := &Session{
		baseURL: u,
		tm:      tm,
		client:  transport.NewClient(transport.DefaultTimeouts()),
		headers: make(http.Header),
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// BaseURL returns the API base URL.
func (s *Session) BaseURL() string {
	return s.baseURL.String()
}

// TokenManager returns the session's token source.
func (s *Session) TokenManager() *oauth2client.TokenManager {
	return s.tm
}

// EnsureAuthenticated obtains a valid token through the token cache and
// makes it the session's current token. It runs before every request.
func (s *Session) EnsureAuthenticated(ctx context.Context) error {
	token, err := s.tm.Token(ctx)
	if err != nil {
		return err
	}

	if prev := s.current.Swap(&token); prev == nil || prev.Token != token.Token {
		s.logger.Debug("httpclient: session authenticated",
			zap.String("base_url", s.baseURL.Redacted()),
			zap.Time("expires_at", token.ExpiresAt))
	}
	return nil
}

// CurrentToken returns the token attached to the most recent request, or
// "" before the first one.
func (s *Session) CurrentToken() string {
	if t := s.current.Load(); t != nil {
		return t.Token
	}
	return ""
}

// Do authenticates, attaches the current token and the context request id
// to a copy of req, and sends it. Relative request URLs are resolved
// against the base URL.
func (s *Session) Do(req *http.Request) (*http.Response, error) {
	ctx := req.Context()

	ctx, span := otel.Tracer(tracerName).Start(ctx, "httpclient.Session.Do",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", req.Method),
			attribute.String("server.address", s.baseURL.Host),
		),
	)
	defer span.End()

	if err := s.EnsureAuthenticated(ctx); err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, err
	}

	out := req.Clone(ctx)
	if !out.URL.IsAbs() {
		out.URL = s.resolve(out.URL)
		out.Host = ""
	}
	for key, values := range s.headers {
		if out.Header.Get(key) == "" {
			out.Header[key] = append([]string(nil), values...)
		}
	}
	setRequestID(out)
	s.attach(out)

	resp, err := s.client.Do(out)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
	return resp, nil
}

// attach sets the Authorization header from the current token slot.
func (s *Session) attach(req *http.Request) {
	token := s.CurrentToken()
	if s.tm.Scheme() == auth.SchemeJWT {
		req.Header.Set("Authorization", auth.SchemeJWT+" "+token)
		return
	}
	auth.SetBearer(req, token)
}

// resolve joins a relative reference onto the base URL path.
func (s *Session) resolve(ref *url.URL) *url.URL {
	u := s.baseURL.JoinPath(ref.EscapedPath())
	u.RawQuery = ref.RawQuery
	u.Fragment = ref.Fragment
	return u
}

// RequestOption adjusts a request made with Session.Request.
type RequestOption func(*requestConfig)

type requestConfig struct {
	header  http.Header
	query   url.Values
	timeout time.Duration
}

// WithHeader sets a request header.
func WithHeader(key, value string) RequestOption {
	return func(c *requestConfig) {
		c.header.Set(key, value)
	}
}

// WithQuery adds query parameters.
func WithQuery(values url.Values) RequestOption {
	return func(c *requestConfig) {
		for k, vs := range values {
			for _, v := range vs {
				c.query.Add(k, v)
			}
		}
	}
}

// WithRequestTimeout bounds this request, including reading the body.
func WithRequestTimeout(d time.Duration) RequestOption {
	return func(c *requestConfig) {
		c.timeout = d
	}
}

// Request builds and sends a request. rawURL may be absolute or relative to
// the base URL.
func (s *Session) Request(ctx context.Context, method, rawURL string, body io.Reader, opts ...RequestOption) (*http.Response, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := requestConfig{header: make(http.Header), query: make(url.Values)}
	for _, opt := range opts {
		opt(&cfg)
	}

	cancel := context.CancelFunc(func() {})
	if cfg.timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.timeout)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, body)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("httpclient: build request: %w", err)
	}
	for k, vs := range cfg.header {
		req.Header[k] = vs
	}
	if len(cfg.query) > 0 {
		q := req.URL.Query()
		for k, vs := range cfg.query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		req.URL.RawQuery = q.Encode()
	}

	resp, err := s.Do(req)
	if err != nil {
		cancel()
		return nil, err
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// Get is shorthand for Request with GET.
func (s *Session) Get(ctx context.Context, rawURL string, opts ...RequestOption) (*http.Response, error) {
	return s.Request(ctx, http.MethodGet, rawURL, nil, opts...)
}

// Post is shorthand for Request with POST and the given content type.
func (s *Session) Post(ctx context.Context, rawURL, contentType string, body io.Reader, opts ...RequestOption) (*http.Response, error) {
	opts = append([]RequestOption{WithHeader("Content-Type", contentType)}, opts...)
	return s.Request(ctx, http.MethodPost, rawURL, body, opts...)
}

// Close releases idle connections of the underlying client.
func (s *Session) Close() {
	s.client.CloseIdleConnections()
}

// cancelOnClose releases a per-request timeout once the body is closed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (c *cancelOnClose) Close() error {
	err := c.ReadCloser.Close()
	c.cancel()
	return err
}
