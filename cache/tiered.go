package cache

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// TieredCache serves reads from a fast front tier and falls back to a
// shared back tier. Writes go to both tiers.
type TieredCache struct {
	logger   *zap.Logger
	front    Cache
	back     Cache
	frontTTL time.Duration
}

// NewTiered composes front (usually MemoryCache) over back (usually RedisCache).
func NewTiered(front, back Cache, opts ...Option) *TieredCache {
	o := newOptions(opts)
	return &TieredCache{
		logger:   o.logger,
		front:    front,
		back:     back,
		frontTTL: o.frontFallback,
	}
}

// Get implements Cache. A back-tier hit is copied into the front tier with
// the back entry's remaining TTL when the back tier can report it.
func (c *TieredCache) Get(ctx context.Context, key string) ([]byte, error) {
	if value, err := c.front.Get(ctx, key); err == nil {
		return value, nil
	}

	value, err := c.back.Get(ctx, key)
	if err != nil {
		return nil, err
	}

	ttl := c.frontTTL
	if reporter, ok := c.back.(TTLReporter); ok {
		if remaining, terr := reporter.TTL(ctx, key); terr == nil {
			ttl = remaining
		}
	}
	if err := c.front.Set(ctx, key, value, ttl); err != nil {
		c.logger.Warn("tiered cache front fill failed",
			zap.String("key", key),
			zap.Error(err))
	}

	return value, nil
}

// Set implements Cache.
func (c *TieredCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return errors.Join(
		c.front.Set(ctx, key, value, ttl),
		c.back.Set(ctx, key, value, ttl),
	)
}

// Delete implements Cache.
func (c *TieredCache) Delete(ctx context.Context, key string) error {
	return errors.Join(
		c.front.Delete(ctx, key),
		c.back.Delete(ctx, key),
	)
}

// Close closes both tiers.
func (c *TieredCache) Close() error {
	return errors.Join(c.front.Close(), c.back.Close())
}
