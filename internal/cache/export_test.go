package cache

import "time"

// SetClock replaces the time source so tests can expire entries deterministically.
func (c *InMemory[K, T]) SetClock(now func() time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// EvictExpired runs one janitor pass synchronously.
func (c *InMemory[K, T]) EvictExpired() {
	c.evictExpired()
}
