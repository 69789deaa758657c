package oauth2client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/openedx/edx-rest-api-client/auth"
	"github.com/openedx/edx-rest-api-client/internal/transport"
)

const tracerName = "github.com/openedx/edx-rest-api-client/oauth2client"

// Grant and token types understood by the token endpoint.
const (
	GrantTypeClientCredentials = "client_credentials"
	GrantTypeRefreshToken      = "refresh_token"

	TokenTypeBearer = "bearer"
	TokenTypeJWT    = "jwt"
)

// maxResponseBody caps how much of a token response is read.
const maxResponseBody = 1 << 20

// TokenRequest identifies one token exchange.
type TokenRequest struct {
	// URL is the token endpoint. TokenCache normalizes it with
	// NormalizeTokenURL; Fetcher posts to it as given.
	URL          string
	ClientID     string
	ClientSecret string
	// TokenType defaults to "bearer".
	TokenType string
	// GrantType defaults to "client_credentials".
	GrantType string
	// RefreshToken is required for the refresh_token grant.
	RefreshToken string
}

func (r TokenRequest) withDefaults() TokenRequest {
	if r.TokenType == "" {
		r.TokenType = TokenTypeBearer
	}
	if r.GrantType == "" {
		r.GrantType = GrantTypeClientCredentials
	}
	return r
}

func (r TokenRequest) check() error {
	if r.GrantType == GrantTypeRefreshToken && r.RefreshToken == "" {
		return ErrRefreshTokenRequired
	}
	if r.URL == "" {
		return fmt.Errorf("%w: token endpoint URL is required", auth.ErrInvalidConfig)
	}
	return nil
}

func (r TokenRequest) form() url.Values {
	form := url.Values{
		"grant_type":    {r.GrantType},
		"client_id":     {r.ClientID},
		"client_secret": {r.ClientSecret},
		"token_type":    {r.TokenType},
	}
	if r.GrantType == GrantTypeRefreshToken {
		form.Set("refresh_token", r.RefreshToken)
	}
	return form
}

// AccessToken is an issued token and the instant it expires.
type AccessToken struct {
	Token     string    `json:"access_token"`
	ExpiresAt time.Time `json:"expires_at"`
	// ExpiresIn is the lifetime reported by the server. It is only set on
	// tokens that were just fetched.
	ExpiresIn time.Duration `json:"-"`
}

// ValidAt reports whether the token is still usable at now, treating it as
// expired margin before ExpiresAt.
func (t AccessToken) ValidAt(now time.Time, margin time.Duration) bool {
	return t.Token != "" && now.Before(t.ExpiresAt.Add(-margin))
}

// TokenFetcher performs a token exchange.
type TokenFetcher interface {
	Fetch(ctx context.Context, req TokenRequest) (AccessToken, error)
}

// Fetcher exchanges client credentials or a refresh token for an access
// token with a single POST. It never retries.
//
// Without WithHTTPClient or a context client it sends requests through one
// client built by NewFetcher, so connections are reused across fetches.
type Fetcher struct {
	s        settings
	fallback *http.Client
}

// NewFetcher returns a Fetcher.
func NewFetcher(opts ...Option) *Fetcher {
	s := newSettings(opts)
	if s.userAgent == "" {
		s.userAgent = UserAgent()
	}
	f := &Fetcher{s: s}
	if s.httpClient == nil {
		f.fallback = transport.NewClient(s.timeouts)
	}
	return f
}

// Fetch posts req to req.URL and parses the response. ExpiresAt is computed
// from the clock sampled before the request is sent.
//
// Errors: ErrRefreshTokenRequired (no request made), auth.ErrInvalidConfig,
// a wrapped *url.Error when the endpoint is unreachable, *HTTPError for a
// non-2xx status, *MalformedResponseError for an unusable 2xx body.
func (f *Fetcher) Fetch(ctx context.Context, req TokenRequest) (AccessToken, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req = req.withDefaults()
	if err := req.check(); err != nil {
		f.s.metrics.fetchError(errorKindConfig)
		return AccessToken{}, err
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "oauth2client.Fetch",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("oauth2.grant_type", req.GrantType),
			attribute.String("oauth2.token_type", req.TokenType),
			attribute.String("oauth2.client_id", req.ClientID),
		),
	)
	defer span.End()

	if f.s.fetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.s.fetchTimeout)
		defer cancel()
	}

	token, err := f.fetch(ctx, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return AccessToken{}, err
	}

	f.s.logger.Debug("oauth2: obtained new access token",
		zap.String("endpoint", req.URL),
		zap.String("client_id", req.ClientID),
		zap.String("grant_type", req.GrantType),
		zap.Time("expires_at", token.ExpiresAt))

	return token, nil
}

func (f *Fetcher) fetch(ctx context.Context, req TokenRequest) (AccessToken, error) {
	now := f.s.now()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, req.URL, strings.NewReader(req.form().Encode()))
	if err != nil {
		f.s.metrics.fetchError(errorKindConfig)
		return AccessToken{}, fmt.Errorf("%w: %v", auth.ErrInvalidConfig, err)
	}
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", f.s.userAgent)

	start := time.Now()
	resp, err := f.client(ctx).Do(httpReq)
	f.s.metrics.fetched(time.Since(start))
	if err != nil {
		f.s.metrics.fetchError(errorKindTransport)
		return AccessToken{}, fmt.Errorf("oauth2: failed to fetch token: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		f.s.metrics.fetchError(errorKindTransport)
		return AccessToken{}, fmt.Errorf("oauth2: failed to read token response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		f.s.metrics.fetchError(errorKindHTTP)
		return AccessToken{}, &HTTPError{StatusCode: resp.StatusCode, Status: resp.Status, Body: body}
	}

	token, err := parseTokenResponse(resp.StatusCode, body)
	if err != nil {
		f.s.metrics.fetchError(errorKindMalformed)
		return AccessToken{}, err
	}
	token.ExpiresAt = now.Add(token.ExpiresIn)
	return token, nil
}

func (f *Fetcher) client(ctx context.Context) *http.Client {
	if f.s.httpClient != nil {
		return f.s.httpClient
	}
	if c, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && c != nil {
		return c
	}
	return f.fallback
}

func parseTokenResponse(status int, body []byte) (AccessToken, error) {
	var payload struct {
		AccessToken *string      `json:"access_token"`
		ExpiresIn   *json.RawMessage `json:"expires_in"`
	}
	if err := json.NewDecoder(bytes.NewReader(body)).Decode(&payload); err != nil {
		return AccessToken{}, &MalformedResponseError{StatusCode: status, Body: body, Reason: "invalid JSON", Err: err}
	}

	malformed := func(reason string) error {
		return &MalformedResponseError{StatusCode: status, Body: body, Reason: reason}
	}
	if payload.AccessToken == nil {
		return AccessToken{}, malformed("missing access_token")
	}
	if *payload.AccessToken == "" {
		return AccessToken{}, malformed("empty access_token")
	}
	if payload.ExpiresIn == nil {
		return AccessToken{}, malformed("missing expires_in")
	}
	// Integer seconds only: strings and fractions are rejected.
	var seconds int64
	if err := json.Unmarshal(*payload.ExpiresIn, &seconds); err != nil {
		return AccessToken{}, &MalformedResponseError{StatusCode: status, Body: body, Reason: "invalid expires_in", Err: err}
	}

	return AccessToken{
		Token:     *payload.AccessToken,
		ExpiresIn: time.Duration(seconds) * time.Second,
	}, nil
}
