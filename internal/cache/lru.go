// Package cache provides a size-bounded TTL cache used to memoize
// per-series selection statistics between runs in serve mode, where the
// same population is re-forecast repeatedly and the statistics of an
// unchanged history are identical.
package cache

import (
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

// TTLCache is a thread-safe LRU cache with per-entry expiration. Bounded so
// that a large series population cannot grow memory without limit.
type TTLCache[K comparable, V any] struct {
	cache   *lru.Cache[K, *entry[V]]
	ttl     time.Duration
	mu      sync.RWMutex
	hits    uint64
	misses  uint64
	evicted uint64
}

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// New creates a cache holding at most size entries; entries expire after
// ttl (0 means no expiration).
func New[K comparable, V any](size int, ttl time.Duration) (*TTLCache[K, V], error) {
	c, err := lru.New[K, *entry[V]](size)
	if err != nil {
		return nil, err
	}
	return &TTLCache[K, V]{cache: c, ttl: ttl}, nil
}

// Get returns the cached value, or the zero value and false when absent or
// expired.
func (c *TTLCache[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.cache.Get(key)
	if !ok || (c.ttl > 0 && time.Now().After(e.expiresAt)) {
		c.misses++
		var zero V
		return zero, false
	}
	c.hits++
	return e.value, true
}

// Set stores a value, evicting the least recently used entry when full.
func (c *TTLCache[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var expiresAt time.Time
	if c.ttl > 0 {
		expiresAt = time.Now().Add(c.ttl)
	}
	if c.cache.Add(key, &entry[V]{value: value, expiresAt: expiresAt}) {
		c.evicted++
	}
}

// Len returns the number of resident entries.
func (c *TTLCache[K, V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cache.Len()
}

// Purge drops every entry.
func (c *TTLCache[K, V]) Purge() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache.Purge()
}

// Stats reports hit/miss/eviction counters for observability.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Evicted uint64 `json:"evicted"`
	Size    int    `json:"size"`
}

// Stats returns a snapshot of the counters.
func (c *TTLCache[K, V]) Stats() Stats {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return Stats{Hits: c.hits, Misses: c.misses, Evicted: c.evicted, Size: c.cache.Len()}
}
