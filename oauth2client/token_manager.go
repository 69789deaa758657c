package oauth2client

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"

	"github.com/openedx/edx-rest-api-client/auth"
)

// TokenManager binds one grant (endpoint, client credentials, token type)
// to a TokenCache. The cache is the only source of truth for the current
// token. It is safe for concurrent access.
type TokenManager struct {
	cache  *TokenCache
	req    TokenRequest
	last   atomic.Pointer[AccessToken]
	ctx    context.Context // fallback context for GetToken and TokenSource
	margin time.Duration
	logger *zap.Logger
}

// NewTokenManager creates a token manager for the client credentials grant
// (or the refresh_token grant with WithRefreshToken).
//
// Parameters:
//   - ctx: fallback context for GetToken and TokenSource; its cancellation is dropped
//   - tc: shared token cache; nil creates a private one from opts
//   - baseURL: authorization server base URL, normalized with NormalizeTokenURL
//   - clientID, clientSecret: OAuth2 client credentials
//   - opts: WithTokenType, WithRefreshToken, WithLogger, WithClock, WithExpiryMargin, ...
func NewTokenManager(ctx context.Context, tc *TokenCache, baseURL, clientID, clientSecret string, opts ...Option) *TokenManager {
	if ctx == nil {
		ctx = context.Background()
	} else {
		ctx = context.WithoutCancel(ctx)
	}
	if tc == nil {
		tc = NewTokenCache(nil, nil, opts...)
	}

	s := newSettings(opts)

	return &TokenManager{
		cache: tc,
		req: TokenRequest{
			URL:          NormalizeTokenURL(baseURL),
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenType:    s.tokenType,
			GrantType:    s.grantType,
			RefreshToken: s.refreshToken,
		},
		ctx:    ctx,
		margin: s.margin,
		logger: s.logger,
	}
}

// Request returns the token request this manager issues.
func (tm *TokenManager) Request() TokenRequest {
	return tm.req
}

// Scheme returns the Authorization scheme matching the token type:
// "JWT" for jwt tokens, "Bearer" otherwise.
func (tm *TokenManager) Scheme() string {
	if tm.req.TokenType == TokenTypeJWT {
		return auth.SchemeJWT
	}
	return auth.SchemeBearer
}

// Token returns a valid access token from the token cache, fetching one on
// a miss. The cache is consulted on every call, so a token another manager
// invalidated or refreshed on the same cache is never served from here.
func (tm *TokenManager) Token(ctx context.Context) (AccessToken, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	token, err := tm.cache.GetOrFetch(ctx, tm.req)
	if err != nil {
		return AccessToken{}, err
	}

	if prev := tm.last.Swap(&token); prev == nil || prev.Token != token.Token {
		tm.logger.Debug("oauth2: token manager refreshed token",
			zap.String("client_id", tm.req.ClientID),
			zap.Time("expires_at", token.ExpiresAt))
	}
	return token, nil
}

// GetTokenWithContext returns a valid access token string.
func (tm *TokenManager) GetTokenWithContext(ctx context.Context) (string, error) {
	token, err := tm.Token(ctx)
	if err != nil {
		return "", err
	}
	return token.Token, nil
}

// GetToken returns a valid access token using the fallback context.
//
// Deprecated: Use GetTokenWithContext to honor cancellation and deadlines.
func (tm *TokenManager) GetToken() (string, error) {
	return tm.GetTokenWithContext(tm.ctx)
}

// Invalidate forgets the current token here and in the shared cache, so the
// next call fetches a new one. Use it after the API rejects a token.
func (tm *TokenManager) Invalidate(ctx context.Context) error {
	tm.last.Store(nil)
	return tm.cache.Invalidate(ctx, tm.req)
}

// TokenSource adapts the manager to oauth2.TokenSource, for libraries built
// on golang.org/x/oauth2.
func (tm *TokenManager) TokenSource() oauth2.TokenSource {
	return tokenSource{tm: tm}
}

type tokenSource struct {
	tm *TokenManager
}

func (ts tokenSource) Token() (*oauth2.Token, error) {
	token, err := ts.tm.Token(ts.tm.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: token.Token,
		TokenType:   ts.tm.Scheme(),
		Expiry:      token.ExpiresAt.Add(-ts.tm.margin),
	}, nil
}

// UnaryClientInterceptor returns a gRPC unary client interceptor that adds
// "authorization: <scheme> <token>" to the outgoing metadata. If the token
// cannot be obtained the RPC is aborted.
//
// Usage:
//
//	conn, err := grpc.NewClient(
//	    "server:9090",
//	    grpc.WithUnaryInterceptor(tm.UnaryClientInterceptor()),
//	)
func (tm *TokenManager) UnaryClientInterceptor() grpc.UnaryClientInterceptor {
	return func(
		ctx context.Context,
		method string,
		req, reply any,
		cc *grpc.ClientConn,
		invoker grpc.UnaryInvoker,
		opts ...grpc.CallOption,
	) error {
		token, err := tm.GetTokenWithContext(ctx)
		if err != nil {
			return fmt.Errorf("oauth2: failed to get token: %w", err)
		}

		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", tm.Scheme()+" "+token)

		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// StreamClientInterceptor is the streaming counterpart of UnaryClientInterceptor.
func (tm *TokenManager) StreamClientInterceptor() grpc.StreamClientInterceptor {
	return func(
		ctx context.Context,
		desc *grpc.StreamDesc,
		cc *grpc.ClientConn,
		method string,
		streamer grpc.Streamer,
		opts ...grpc.CallOption,
	) (grpc.ClientStream, error) {
		token, err := tm.GetTokenWithContext(ctx)
		if err != nil {
			return nil, fmt.Errorf("oauth2: failed to get token: %w", err)
		}

		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", tm.Scheme()+" "+token)

		return streamer(ctx, desc, cc, method, opts...)
	}
}
