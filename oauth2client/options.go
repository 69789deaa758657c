package oauth2client

import (
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/openedx/edx-rest-api-client/internal/logging"
	"github.com/openedx/edx-rest-api-client/internal/transport"
)

// DefaultExpiryMargin is subtracted from a token's expiry before it is
// considered usable, so a token is never sent at the instant it expires.
const DefaultExpiryMargin = 5 * time.Second

// DefaultFetchTimeout bounds a whole token exchange including the body read.
const DefaultFetchTimeout = 10 * time.Second

// Option configures a Fetcher, TokenCache or TokenManager. Options that do
// not apply to the component being built are ignored.
type Option func(*settings)

type settings struct {
	logger       *zap.Logger
	metrics      *Metrics
	now          func() time.Time
	httpClient   *http.Client
	timeouts     transport.Timeouts
	fetchTimeout time.Duration
	userAgent    string
	margin       time.Duration
	singleFlight bool
	tokenType    string
	grantType    string
	refreshToken string
}

func newSettings(opts []Option) settings {
	s := settings{
		logger:       zap.NewNop(),
		now:          time.Now,
		timeouts:     transport.DefaultTimeouts(),
		fetchTimeout: DefaultFetchTimeout,
		margin:       DefaultExpiryMargin,
		singleFlight: true,
		tokenType:    TokenTypeBearer,
		grantType:    GrantTypeClientCredentials,
	}
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithLogger sets a zap logger for fetch and cache events.
// Tokens and secrets are never logged.
func WithLogger(logger *zap.Logger) Option {
	return func(s *settings) {
		s.logger = logging.OrNop(logger)
	}
}

// WithMetrics records cache and fetch metrics.
func WithMetrics(m *Metrics) Option {
	return func(s *settings) {
		s.metrics = m
	}
}

// WithClock overrides the time source used for expiry calculations.
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithHTTPClient sets the client used for token requests. Without it the
// fetcher uses an *http.Client stored in the context under oauth2.HTTPClient,
// and otherwise its own client with the configured timeouts.
func WithHTTPClient(c *http.Client) Option {
	return func(s *settings) {
		s.httpClient = c
	}
}

// WithTimeouts sets the connect and read timeouts of the default client.
func WithTimeouts(connect, read time.Duration) Option {
	return func(s *settings) {
		s.timeouts = transport.Timeouts{Connect: connect, Read: read}
	}
}

// WithFetchTimeout bounds a whole token exchange. Zero disables the bound.
func WithFetchTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.fetchTimeout = d
	}
}

// WithUserAgent replaces the default User-Agent header.
func WithUserAgent(ua string) Option {
	return func(s *settings) {
		s.userAgent = ua
	}
}

// WithExpiryMargin overrides DefaultExpiryMargin.
func WithExpiryMargin(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.margin = d
		}
	}
}

// WithoutSingleFlight lets concurrent cache misses for the same key each
// fetch their own token. The last write wins.
func WithoutSingleFlight() Option {
	return func(s *settings) {
		s.singleFlight = false
	}
}

// WithTokenType selects the token type requested by a TokenManager
// ("bearer" or "jwt").
func WithTokenType(tokenType string) Option {
	return func(s *settings) {
		if tokenType != "" {
			s.tokenType = tokenType
		}
	}
}

// WithRefreshToken makes a TokenManager use the refresh_token grant.
func WithRefreshToken(refreshToken string) Option {
	return func(s *settings) {
		s.grantType = GrantTypeRefreshToken
		s.refreshToken = refreshToken
	}
}
