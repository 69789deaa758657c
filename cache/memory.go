package cache

import (
	"container/list"
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

const defaultMaxEntries = 10000

// MemoryCache is an in-process LRU cache with per-entry expiry.
// Expired entries are dropped lazily when touched or when capacity is needed.
type MemoryCache struct {
	logger     *zap.Logger
	now        func() time.Time
	maxEntries int

	mu      sync.Mutex
	items   map[string]*list.Element
	order   *list.List
	closed  bool
	hits    int64
	misses  int64
	evicted int64
}

type memoryEntry struct {
	key       string
	value     []byte
	expiresAt time.Time
}

func (e *memoryEntry) expired(now time.Time) bool {
	return !e.expiresAt.IsZero() && !now.Before(e.expiresAt)
}

// Stats is a snapshot of memory cache counters.
type Stats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// NewMemory creates a memory cache holding at most maxEntries values.
// A non-positive maxEntries selects the default of 10000.
func NewMemory(maxEntries int, opts ...Option) *MemoryCache {
	o := newOptions(opts)
	if maxEntries <= 0 {
		maxEntries = defaultMaxEntries
	}

	return &MemoryCache{
		logger:     o.logger,
		now:        o.now,
		maxEntries: maxEntries,
		items:      make(map[string]*list.Element),
		order:      list.New(),
	}
}

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrClosed
	}

	elem, ok := c.items[key]
	if !ok {
		c.misses++
		return nil, ErrCacheMiss
	}

	entry := elem.Value.(*memoryEntry)
	if entry.expired(c.now()) {
		c.remove(elem)
		c.misses++
		return nil, ErrCacheMiss
	}

	c.order.MoveToFront(elem)
	c.hits++

	out := make([]byte, len(entry.value))
	copy(out, entry.value)
	return out, nil
}

// Set implements Cache.
func (c *MemoryCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	stored := make([]byte, len(value))
	copy(stored, value)

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrClosed
	}

	entry := &memoryEntry{key: key, value: stored}
	if ttl > 0 {
		entry.expiresAt = c.now().Add(ttl)
	}

	if elem, ok := c.items[key]; ok {
		elem.Value = entry
		c.order.MoveToFront(elem)
		return nil
	}

	c.items[key] = c.order.PushFront(entry)
	for c.order.Len() > c.maxEntries {
		c.evictOne()
	}

	c.logger.Debug("memory cache set",
		zap.String("key", key),
		zap.Duration("ttl", ttl),
		zap.Int("size", c.order.Len()))

	return nil
}

// Delete implements Cache.
func (c *MemoryCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.items[key]; ok {
		c.remove(elem)
	}
	return nil
}

// TTL implements TTLReporter. Entries without expiry report zero.
func (c *MemoryCache) TTL(_ context.Context, key string) (time.Duration, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.items[key]
	if !ok {
		return 0, ErrCacheMiss
	}
	entry := elem.Value.(*memoryEntry)
	now := c.now()
	if entry.expired(now) {
		c.remove(elem)
		return 0, ErrCacheMiss
	}
	if entry.expiresAt.IsZero() {
		return 0, nil
	}
	return entry.expiresAt.Sub(now), nil
}

// Close drops all entries. Later operations return ErrClosed.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	c.items = make(map[string]*list.Element)
	c.order.Init()
	return nil
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return Stats{
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evicted,
		Size:      c.order.Len(),
	}
}

// evictOne removes the least recently used entry. Must be called with mu held.
func (c *MemoryCache) evictOne() {
	if elem := c.order.Back(); elem != nil {
		c.remove(elem)
		c.evicted++
	}
}

// remove must be called with mu held.
func (c *MemoryCache) remove(elem *list.Element) {
	c.order.Remove(elem)
	delete(c.items, elem.Value.(*memoryEntry).key)
}
