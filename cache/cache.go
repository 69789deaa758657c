package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/openedx/edx-rest-api-client/config"
	"github.com/openedx/edx-rest-api-client/internal/logging"
)

// Common cache errors.
var (
	// ErrCacheMiss indicates that the key was not found or has expired.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidConfig indicates that the cache configuration is invalid.
	ErrInvalidConfig = errors.New("invalid cache configuration")

	// ErrClosed is returned by operations on a closed cache.
	ErrClosed = errors.New("cache closed")
)

// Cache is the storage contract the token cache consumes.
type Cache interface {
	// Get retrieves a value. Returns ErrCacheMiss if the key is absent or expired.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value with the given TTL. A TTL <= 0 means no expiry.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value. Deleting an absent key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// TTLReporter is implemented by caches that can report the remaining
// lifetime of an entry. The tiered cache uses it to back-fill its front tier.
type TTLReporter interface {
	TTL(ctx context.Context, key string) (time.Duration, error)
}

// New creates a cache from configuration. Redis-backed types connect and
// ping the server before returning.
func New(cfg *config.CacheConfig, logger *zap.Logger) (Cache, error) {
	if cfg == nil {
		return nil, ErrInvalidConfig
	}
	logger = logging.OrNop(logger)

	switch cfg.Type {
	case config.CacheTypeMemory, "":
		return NewMemory(cfg.MaxEntries, WithLogger(logger)), nil
	case config.CacheTypeRedis:
		return newRedisFromConfig(cfg, logger)
	case config.CacheTypeTiered:
		back, err := newRedisFromConfig(cfg, logger)
		if err != nil {
			return nil, err
		}
		front := NewMemory(cfg.MaxEntries, WithLogger(logger))
		return NewTiered(front, back, WithLogger(logger)), nil
	default:
		return nil, fmt.Errorf("%w: unknown cache type %q", ErrInvalidConfig, cfg.Type)
	}
}

func newRedisFromConfig(cfg *config.CacheConfig, logger *zap.Logger) (*RedisCache, error) {
	if cfg.Redis.URL == "" {
		return nil, fmt.Errorf("%w: redis URL is required", ErrInvalidConfig)
	}

	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid redis URL: %v", ErrInvalidConfig, err)
	}
	if cfg.Redis.PoolSize > 0 {
		opts.PoolSize = cfg.Redis.PoolSize
	}
	if cfg.Redis.DialTimeout > 0 {
		opts.DialTimeout = cfg.Redis.DialTimeout.Duration()
	}
	if cfg.Redis.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.Redis.ReadTimeout.Duration()
	}
	if cfg.Redis.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.Redis.WriteTimeout.Duration()
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("cache: redis connection failed: %w", err)
	}

	return NewRedis(client, cfg.Redis.KeyPrefix, WithLogger(logger)), nil
}

// Option configures a cache implementation.
type Option func(*options)

type options struct {
	logger        *zap.Logger
	now           func() time.Time
	frontFallback time.Duration
}

func newOptions(opts []Option) options {
	o := options{
		logger:        zap.NewNop(),
		now:           time.Now,
		frontFallback: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithLogger sets the logger for cache events.
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) {
		o.logger = logging.OrNop(logger)
	}
}

// WithClock overrides the time source of the memory cache (tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithFrontTTL sets the TTL the tiered cache uses when back-filling the
// front tier from a back tier that cannot report remaining lifetimes.
func WithFrontTTL(ttl time.Duration) Option {
	return func(o *options) {
		o.frontFallback = ttl
	}
}
