package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// failingCache rejects every operation.
type failingCache struct{ err error }

func (f failingCache) Get(context.Context, string) ([]byte, error) { return nil, f.err }
func (f failingCache) Set(context.Context, string, []byte, time.Duration) error { return f.err }
func (f failingCache) Delete(context.Context, string) error { return f.err }
func (f failingCache) Close() error { return nil }

func TestTieredCache_WritesBothTiers(t *testing.T) {
	mr := setupMiniRedis(t)
	front := NewMemory(10)
	back := newTestRedisCache(t, mr)
	c := NewTiered(front, back)

	ctx := context.Background()
	require.NoError(t, c.Set(ctx, "k", []byte("v"), time.Minute))

	_, err := front.Get(ctx, "k")
	assert.NoError(t, err)
	_, err = back.Get(ctx, "k")
	assert.NoError(t, err)
}

func TestTieredCache_BackfillsFrontWithRemainingTTL(t *testing.T) {
	mr := setupMiniRedis(t)
	front := NewMemory(10)
	back := newTestRedisCache(t, mr)
	c := NewTiered(front, back)

	ctx := context.Background()
	require.NoError(t, back.Set(ctx, "shared", []byte("from-redis"), 40*time.Second))

	value, err := c.Get(ctx, "shared")
	require.NoError(t, err)
	assert.Equal(t, []byte("from-redis"), value)

	ttl, err := front.TTL(ctx, "shared")
	require.NoError(t, err)
	assert.InDelta(t, (40 * time.Second).Seconds(), ttl.Seconds(), 1)
}

func TestTieredCache_FrontHitSkipsBack(t *testing.T) {
	front := NewMemory(10)
	c := NewTiered(front, failingCache{err: errors.New("back down")})

	ctx := context.Background()
	require.NoError(t, front.Set(ctx, "k", []byte("v"), 0))

	value, err := c.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), value)
}

func TestTieredCache_MissInBothTiers(t *testing.T) {
	c := NewTiered(NewMemory(10), NewMemory(10))

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrCacheMiss)
}

func TestTieredCache_FallbackFrontTTL(t *testing.T) {
	front := NewMemory(10)
	back := staticCache{value: []byte("v")}
	c := NewTiered(front, back, WithFrontTTL(5*time.Second))

	ctx := context.Background()
	_, err := c.Get(ctx, "k")
	require.NoError(t, err)

	ttl, err := front.TTL(ctx, "k")
	require.NoError(t, err)
	assert.InDelta(t, 5, ttl.Seconds(), 1)
}

func TestTieredCache_SetJoinsErrors(t *testing.T) {
	backErr := errors.New("back down")
	c := NewTiered(NewMemory(10), failingCache{err: backErr})

	err := c.Set(context.Background(), "k", []byte("v"), time.Minute)
	assert.ErrorIs(t, err, backErr)
	assert.ErrorIs(t, c.Delete(context.Background(), "k"), backErr)
	assert.NoError(t, c.Close())
}

// staticCache always returns the same value and cannot report TTLs.
type staticCache struct{ value []byte }

func (f staticCache) Get(context.Context, string) ([]byte, error) { return f.value, nil }
func (f staticCache) Set(context.Context, string, []byte, time.Duration) error { return nil }
func (f staticCache) Delete(context.Context, string) error { return nil }
func (f staticCache) Close() error { return nil }
