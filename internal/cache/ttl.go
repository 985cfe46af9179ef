// Package cache provides a small, process-local key/value store with
// absolute per-entry expiry and a bounded size.
//
// Entries expire a fixed TTL after insertion; reads never extend their
// lifetime. When the store is full, expired entries are purged first and
// then the oldest inserted entry is evicted. All methods are safe for
// concurrent use.
package cache

import (
	"container/list"
	"sync"
	"time"
)

// DefaultMaxEntries bounds a cache created with a non-positive size.
const DefaultMaxEntries = 100

type entry[K comparable, V any] struct {
	key     K
	value   V
	expires time.Time
	elem    *list.Element
}

// TTL is a size-bounded map whose entries expire a fixed duration after they
// were stored.
type TTL[K comparable, V any] struct {
	ttl   time.Duration
	max   int
	now   func() time.Time
	mu    sync.Mutex
	items map[K]*entry[K, V]
	order *list.List // front = oldest insertion
	gen   uint64     // bumped by Clear
}

// Option customizes a TTL cache.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// New returns an empty cache. maxEntries <= 0 falls back to DefaultMaxEntries.
func New[K comparable, V any](ttl time.Duration, maxEntries int, opts ...Option) *TTL[K, V] {
	o := options{now: time.Now}
	for _, fn := range opts {
		fn(&o)
	}
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	return &TTL[K, V]{
		ttl:   ttl,
		max:   maxEntries,
		now:   o.now,
		items: make(map[K]*entry[K, V], maxEntries),
		order: list.New(),
	}
}

// TTL returns the configured entry lifetime.
func (c *TTL[K, V]) TTL() time.Duration { return c.ttl }

// Get returns the live value stored under key. Expired entries are removed
// and reported as a miss.
func (c *TTL[K, V]) Get(key K) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	var zero V
	e, ok := c.items[key]
	if !ok {
		return zero, false
	}
	if !c.now().Before(e.expires) {
		c.removeLocked(e)
		return zero, false
	}
	return e.value, true
}

// Set stores value under key, replacing any previous entry and restarting
// its lifetime.
func (c *TTL[K, V]) Set(key K, value V) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.setLocked(key, value)
}

// Generation identifies the cache contents between two Clear calls.
func (c *TTL[K, V]) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// SetIfGeneration stores value only if Clear has not run since gen was read.
// It reports whether the value was stored.
func (c *TTL[K, V]) SetIfGeneration(gen uint64, key K, value V) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.gen != gen {
		return false
	}
	c.setLocked(key, value)
	return true
}

func (c *TTL[K, V]) setLocked(key K, value V) {
	now := c.now()
	if old, ok := c.items[key]; ok {
		c.removeLocked(old)
	}
	if len(c.items) >= c.max {
		c.purgeLocked(now)
	}
	for len(c.items) >= c.max {
		oldest := c.order.Front()
		if oldest == nil {
			break
		}
		c.removeLocked(oldest.Value.(*entry[K, V]))
	}

	e := &entry[K, V]{key: key, value: value, expires: now.Add(c.ttl)}
	e.elem = c.order.PushBack(e)
	c.items[key] = e
}

// Delete drops key if present.
func (c *TTL[K, V]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.items[key]; ok {
		c.removeLocked(e)
	}
}

// Clear drops every entry.
func (c *TTL[K, V]) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[K]*entry[K, V], c.max)
	c.order.Init()
	c.gen++
}

// Len returns the number of stored entries, including ones that expired but
// were not purged yet.
func (c *TTL[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// purgeLocked removes expired entries. With a constant TTL insertion order
// equals expiry order, so the scan stops at the first live entry.
func (c *TTL[K, V]) purgeLocked(now time.Time) {
	for el := c.order.Front(); el != nil; {
		e := el.Value.(*entry[K, V])
		if now.Before(e.expires) {
			return
		}
		next := el.Next()
		c.removeLocked(e)
		el = next
	}
}

func (c *TTL[K, V]) removeLocked(e *entry[K, V]) {
	c.order.Remove(e.elem)
	delete(c.items, e.key)
}
