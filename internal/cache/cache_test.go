package cache_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/pkordes/tour-manager/internal/cache"
)

func TestInMemory_SetGet(t *testing.T) {
	c := cache.New[int64, string](time.Minute)
	defer c.Close()

	c.Set(1, "summer")

	got, ok := c.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "summer", got)

	_, ok = c.Get(2)
	assert.False(t, ok)
}

func TestInMemory_Expiry(t *testing.T) {
	c := cache.New[string, int](time.Minute)
	defer c.Close()

	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	c.SetClock(func() time.Time { return now })
	c.Set("k", 42)

	now = now.Add(2 * time.Minute)
	_, ok := c.Get("k")
	assert.False(t, ok, "expired entries are never returned")

	assert.Equal(t, 1, c.Len())
	c.EvictExpired()
	assert.Equal(t, 0, c.Len())
}

func TestInMemory_Delete(t *testing.T) {
	c := cache.New[string, int](time.Minute)
	defer c.Close()

	c.Set("k", 1)
	c.Delete("k")

	_, ok := c.Get("k")
	assert.False(t, ok)
}

func TestInMemory_ConcurrentAccess(t *testing.T) {
	c := cache.New[int, int](time.Minute)
	defer c.Close()

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Set(i, i)
			c.Get(i)
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, c.Len())
}

func TestInMemory_CloseTwice(t *testing.T) {
	c := cache.New[int, int](time.Millisecond)
	c.Close()
	c.Close()
}
