// Package cache provides a bounded in-memory cache with TTL expiry.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// Cache is a size-bounded cache whose entries expire after a fixed TTL.
// Expired entries are dropped lazily on Get; when the cache is full the
// oldest entry is evicted on Put. Safe for concurrent use.
type Cache[V any] struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int
	entries  map[string]*list.Element
	order    *list.List
	now      func() time.Time
}

type entry[V any] struct {
	key      string
	value    V
	storedAt time.Time
}

// New creates a cache holding at most capacity entries, each valid for ttl.
func New[V any](capacity int, ttl time.Duration) *Cache[V] {
	if capacity <= 0 {
		capacity = 256
	}
	return &Cache[V]{
		ttl:      ttl,
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		order:    list.New(),
		now:      time.Now,
	}
}

// SetClock replaces the cache's time source. Intended for tests.
func (c *Cache[V]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Get returns the cached value for key if present and not expired.
func (c *Cache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	el, ok := c.entries[key]
	if !ok {
		return zero, false
	}
	e := el.Value.(*entry[V])
	if c.now().Sub(e.storedAt) >= c.ttl {
		c.order.Remove(el)
		delete(c.entries, key)
		return zero, false
	}
	return e.value, true
}

// Put stores value under key, evicting the oldest entry if the cache is full.
func (c *Cache[V]) Put(key string, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		e := el.Value.(*entry[V])
		e.value = value
		e.storedAt = c.now()
		c.order.MoveToBack(el)
		return
	}

	if c.order.Len() >= c.capacity {
		oldest := c.order.Front()
		if oldest != nil {
			c.order.Remove(oldest)
			delete(c.entries, oldest.Value.(*entry[V]).key)
		}
	}

	c.entries[key] = c.order.PushBack(&entry[V]{
		key:      key,
		value:    value,
		storedAt: c.now(),
	})
}

// Len returns the number of entries currently held, including entries that
// have expired but not yet been dropped.
func (c *Cache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Clear removes all entries.
func (c *Cache[V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.order.Init()
}
