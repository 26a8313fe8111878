// Package cache provides a small thread-safe in-memory TTL cache.
package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	value     T
	expiresAt time.Time
}

// InMemory is a thread-safe map whose entries expire after a fixed TTL.
// Expired entries are never returned; a janitor goroutine evicts them until
// Close is called.
type InMemory[K comparable, T any] struct {
	mu    sync.RWMutex
	items map[K]entry[T]
	ttl   time.Duration
	now   func() time.Time

	stop     chan struct{}
	stopOnce sync.Once
}

// New creates a cache with the given TTL and starts its janitor.
// ttl must be positive.
func New[K comparable, T any](ttl time.Duration) *InMemory[K, T] {
	c := &InMemory[K, T]{
		items: make(map[K]entry[T]),
		ttl:   ttl,
		now:   time.Now,
		stop:  make(chan struct{}),
	}
	go c.janitor()
	return c
}

// Get returns the cached value for key. ok is false when the key is missing or expired.
func (c *InMemory[K, T]) Get(key K) (T, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.items[key]
	if !ok || c.now().After(e.expiresAt) {
		var zero T
		return zero, false
	}
	return e.value, true
}

// Set stores value under key for the cache TTL.
func (c *InMemory[K, T]) Set(key K, value T) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.items[key] = entry[T]{value: value, expiresAt: c.now().Add(c.ttl)}
}

// Delete removes key.
func (c *InMemory[K, T]) Delete(key K) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.items, key)
}

// Len returns the number of stored entries, expired ones included.
func (c *InMemory[K, T]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

// Close stops the janitor. The cache stays usable.
func (c *InMemory[K, T]) Close() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *InMemory[K, T]) janitor() {
	ticker := time.NewTicker(c.ttl)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictExpired()
		}
	}
}

func (c *InMemory[K, T]) evictExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for k, v := range c.items {
		if now.After(v.expiresAt) {
			delete(c.items, k)
		}
	}
}
