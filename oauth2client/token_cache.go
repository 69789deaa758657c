package oauth2client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/openedx/edx-rest-api-client/cache"
)

// CacheKeyPrefix starts every token cache key.
const CacheKeyPrefix = "edx_rest_api_client.access_token"

// CacheKey returns the cache slot for req:
// "<prefix>.<token_type>.<grant_type>.<client_id>.<normalized endpoint>".
// The client secret is not part of the key, so rotating a secret under the
// same client id keeps serving the cached token until it expires.
func CacheKey(req TokenRequest) string {
	req = req.withDefaults()
	return fmt.Sprintf("%s.%s.%s.%s.%s",
		CacheKeyPrefix, req.TokenType, req.GrantType, req.ClientID, NormalizeTokenURL(req.URL))
}

// TokenCache returns cached access tokens and fetches fresh ones when the
// cached entry is missing or within the expiry margin. Concurrent misses
// for the same key share one fetch unless WithoutSingleFlight is set.
type TokenCache struct {
	store   cache.Cache
	fetcher TokenFetcher
	group   singleflight.Group
	s       settings
}

// NewTokenCache binds a fetcher to a cache store. A nil store gets a private
// in-memory cache and a nil fetcher gets NewFetcher(opts...).
func NewTokenCache(store cache.Cache, fetcher TokenFetcher, opts ...Option) *TokenCache {
	s := newSettings(opts)
	if store == nil {
		store = cache.NewMemory(0, cache.WithLogger(s.logger))
	}
	if fetcher == nil {
		fetcher = NewFetcher(opts...)
	}
	return &TokenCache{store: store, fetcher: fetcher, s: s}
}

// GetOrFetch returns a token for req that is valid for at least the expiry
// margin. req.URL is normalized first, so every spelling of the same server
// shares a cache slot.
//
// Cache backend failures are logged and treated as misses; fetch failures
// are returned unchanged.
func (c *TokenCache) GetOrFetch(ctx context.Context, req TokenRequest) (AccessToken, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	req = req.withDefaults()
	if err := req.check(); err != nil {
		return AccessToken{}, err
	}
	req.URL = NormalizeTokenURL(req.URL)
	key := CacheKey(req)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "oauth2client.GetOrFetch",
		trace.WithAttributes(
			attribute.String("oauth2.client_id", req.ClientID),
			attribute.String("oauth2.grant_type", req.GrantType),
		),
	)
	defer span.End()

	if token, ok := c.lookup(ctx, key); ok {
		c.s.metrics.hit()
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return token, nil
	}
	c.s.metrics.miss()
	span.SetAttributes(attribute.Bool("cache.hit", false))

	token, err := c.fetch(ctx, key, req)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.RecordError(err)
		return AccessToken{}, err
	}
	return token, nil
}

// Invalidate drops the cached token for req.
func (c *TokenCache) Invalidate(ctx context.Context, req TokenRequest) error {
	if err := c.store.Delete(ctx, CacheKey(req)); err != nil {
		return fmt.Errorf("oauth2: invalidate token: %w", err)
	}
	return nil
}

func (c *TokenCache) fetch(ctx context.Context, key string, req TokenRequest) (AccessToken, error) {
	if !c.s.singleFlight {
		return c.fetchAndStore(ctx, key, req)
	}

	// The shared fetch outlives any single caller's cancellation; each
	// caller still stops waiting when its own context is done.
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key, func() (any, error) {
		if token, ok := c.lookup(shared, key); ok {
			return token, nil
		}
		return c.fetchAndStore(shared, key, req)
	})

	select {
	case <-ctx.Done():
		return AccessToken{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return AccessToken{}, res.Err
		}
		return res.Val.(AccessToken), nil
	}
}

func (c *TokenCache) fetchAndStore(ctx context.Context, key string, req TokenRequest) (AccessToken, error) {
	token, err := c.fetcher.Fetch(ctx, req)
	if err != nil {
		return AccessToken{}, err
	}
	c.save(ctx, key, token)
	return token, nil
}

func (c *TokenCache) lookup(ctx context.Context, key string) (AccessToken, bool) {
	data, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.s.metrics.cacheError("get")
			c.s.logger.Warn("oauth2: token cache lookup failed", zap.String("key", key), zap.Error(err))
		}
		return AccessToken{}, false
	}

	var token AccessToken
	if err := json.Unmarshal(data, &token); err != nil {
		c.s.metrics.cacheError("decode")
		c.s.logger.Warn("oauth2: discarding undecodable cache entry", zap.String("key", key), zap.Error(err))
		return AccessToken{}, false
	}

	if !token.ValidAt(c.s.now(), c.s.margin) {
		c.s.logger.Debug("oauth2: cached token expired", zap.String("key", key), zap.Time("expires_at", token.ExpiresAt))
		return AccessToken{}, false
	}

	c.s.logger.Debug("oauth2: token cache hit", zap.String("key", key))
	return token, true
}

func (c *TokenCache) save(ctx context.Context, key string, token AccessToken) {
	ttl := token.ExpiresIn - c.s.margin
	if ttl <= 0 {
		c.s.logger.Debug("oauth2: token lifetime within expiry margin, not caching",
			zap.String("key", key), zap.Duration("expires_in", token.ExpiresIn))
		return
	}

	data, err := json.Marshal(token)
	if err != nil {
		c.s.metrics.cacheError("encode")
		c.s.logger.Warn("oauth2: encode token for cache", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.store.Set(ctx, key, data, ttl); err != nil {
		c.s.metrics.cacheError("set")
		c.s.logger.Warn("oauth2: token cache store failed", zap.String("key", key), zap.Error(err))
	}
}
