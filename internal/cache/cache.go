// Package cache provides a bounded TTL cache for upstream API responses.
// Entries expire individually and the whole cache evicts LRU when full, so
// a long-lived gateway cannot grow without bound.
package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
)

type entry[V any] struct {
	value     V
	expiresAt time.Time
}

// TTL is a size-bounded cache whose entries expire. The zero TTL on an
// entry means it never expires. Safe for concurrent use.
type TTL[K comparable, V any] struct {
	entries    *lru.Cache[K, entry[V]]
	defaultTTL time.Duration

	// now is swapped out by tests.
	now func() time.Time
}

// New creates a cache holding at most size entries, each expiring after
// defaultTTL. A non-positive defaultTTL disables expiry.
func New[K comparable, V any](size int, defaultTTL time.Duration) (*TTL[K, V], error) {
	entries, err := lru.New[K, entry[V]](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create cache: %w", err)
	}
	return &TTL[K, V]{
		entries:    entries,
		defaultTTL: defaultTTL,
		now:        time.Now,
	}, nil
}

// Get returns the cached value if present and not expired. Expired entries
// are removed on access.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	e, ok := c.entries.Get(key)
	if !ok {
		var zero V
		return zero, false
	}
	if !e.expiresAt.IsZero() && !c.now().Before(e.expiresAt) {
		c.entries.Remove(key)
		var zero V
		return zero, false
	}
	return e.value, true
}

// Set stores a value with the default TTL.
func (c *TTL[K, V]) Set(key K, value V) {
	c.SetTTL(key, value, c.defaultTTL)
}

// SetTTL stores a value with a per-entry TTL. Non-positive means no expiry.
func (c *TTL[K, V]) SetTTL(key K, value V, ttl time.Duration) {
	e := entry[V]{value: value}
	if ttl > 0 {
		e.expiresAt = c.now().Add(ttl)
	}
	c.entries.Add(key, e)
}

// Invalidate removes one key. It reports whether the key was present.
func (c *TTL[K, V]) Invalidate(key K) bool {
	return c.entries.Remove(key)
}

// InvalidateFunc removes every key the predicate matches and returns the
// number removed. Used to drop all composite keys touching a mutated
// resource.
func (c *TTL[K, V]) InvalidateFunc(match func(K) bool) int {
	removed := 0
	for _, key := range c.entries.Keys() {
		if match(key) {
			if c.entries.Remove(key) {
				removed++
			}
		}
	}
	return removed
}

// Purge drops everything.
func (c *TTL[K, V]) Purge() {
	c.entries.Purge()
}

// Len returns the number of stored entries, counting expired ones not yet
// evicted.
func (c *TTL[K, V]) Len() int {
	return c.entries.Len()
}
