package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisCache stores entries in Redis so every process sharing the server
// sees the same tokens. Expiry is delegated to Redis key TTLs.
type RedisCache struct {
	logger    *zap.Logger
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedis wraps an existing Redis client. keyPrefix is prepended to every key.
func NewRedis(client redis.UniversalClient, keyPrefix string, opts ...Option) *RedisCache {
	o := newOptions(opts)
	return &RedisCache{
		logger:    o.logger,
		client:    client,
		keyPrefix: keyPrefix,
	}
}

func (c *RedisCache) key(key string) string {
	return c.keyPrefix + key
}

// Get implements Cache.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrCacheMiss
	}
	if err != nil {
		return nil, fmt.Errorf("cache: redis get: %w", err)
	}
	return value, nil
}

// Set implements Cache.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := c.client.Set(ctx, c.key(key), value, ttl).Err(); err != nil {
		return fmt.Errorf("cache: redis set: %w", err)
	}
	c.logger.Debug("redis cache set",
		zap.String("key", key),
		zap.Duration("ttl", ttl))
	return nil
}

// Delete implements Cache.
func (c *RedisCache) Delete(ctx context.Context, key string) error {
	if err := c.client.Del(ctx, c.key(key)).Err(); err != nil {
		return fmt.Errorf("cache: redis delete: %w", err)
	}
	return nil
}

// TTL implements TTLReporter. Keys without expiry report zero.
func (c *RedisCache) TTL(ctx context.Context, key string) (time.Duration, error) {
	ttl, err := c.client.PTTL(ctx, c.key(key)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache: redis pttl: %w", err)
	}
	switch {
	case ttl == -2*time.Nanosecond || ttl == -2*time.Millisecond:
		return 0, ErrCacheMiss
	case ttl < 0:
		return 0, nil
	}
	return ttl, nil
}

// Close closes the underlying client.
func (c *RedisCache) Close() error {
	return c.client.Close()
}
