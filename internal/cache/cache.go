package cache

import (
	"sync"
	"time"
)

// entry stores a cached value together with the time it was fetched.
// Staleness is decided at read time by comparing against the cache TTL,
// so an entry is never deleted; it just stops being served as fresh.
type entry[V any] struct {
	value     V
	fetchedAt time.Time
}

// Cache is a TTL map keyed by K. A zero or negative TTL means entries
// never expire (used for identity lookups that are immutable in practice).
//
// The clock is injectable so freshness can be tested deterministically.
type Cache[K comparable, V any] struct {
	ttl time.Duration
	now func() time.Time

	mu    sync.RWMutex
	items map[K]entry[V]
}

// Option configures a Cache.
type Option[K comparable, V any] func(*Cache[K, V])

// WithClock replaces the wall clock, for tests.
func WithClock[K comparable, V any](now func() time.Time) Option[K, V] {
	return func(c *Cache[K, V]) {
		c.now = now
	}
}

// New creates a cache with the given TTL.
func New[K comparable, V any](ttl time.Duration, opts ...Option[K, V]) *Cache[K, V] {
	c := &Cache[K, V]{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[K]entry[V]),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Cache[K, V]) fresh(e entry[V], now time.Time) bool {
	if c.ttl <= 0 {
		return true
	}
	return now.Sub(e.fetchedAt) < c.ttl
}

// Get returns the value for key only while it is fresh. A stale entry
// physically remains but reads as a miss.
func (c *Cache[K, V]) Get(key K) (V, bool) {
	now := c.now()
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.items[key]; ok && c.fresh(e, now) {
		return e.value, true
	}
	var zero V
	return zero, false
}

// GetMany returns the fresh subset of keys. Absent or stale keys are
// simply omitted; the caller fills the gaps.
func (c *Cache[K, V]) GetMany(keys []K) map[K]V {
	now := c.now()
	out := make(map[K]V, len(keys))
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, k := range keys {
		if e, ok := c.items[k]; ok && c.fresh(e, now) {
			out[k] = e.value
		}
	}
	return out
}

// GetStale returns the value for key regardless of freshness. Callers use
// this when stale data beats no data, e.g. a feed panel during an outage.
func (c *Cache[K, V]) GetStale(key K) (V, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if e, ok := c.items[key]; ok {
		return e.value, true
	}
	var zero V
	return zero, false
}

// Put stores value under key, unconditionally overwriting any previous
// entry and restarting its TTL window.
func (c *Cache[K, V]) Put(key K, value V) {
	now := c.now()
	c.mu.Lock()
	c.items[key] = entry[V]{value: value, fetchedAt: now}
	c.mu.Unlock()
}

// PutAll stores every pair in values with the same fetch timestamp.
func (c *Cache[K, V]) PutAll(values map[K]V) {
	now := c.now()
	c.mu.Lock()
	for k, v := range values {
		c.items[k] = entry[V]{value: v, fetchedAt: now}
	}
	c.mu.Unlock()
}

// Len reports the number of entries, fresh or stale.
func (c *Cache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}
