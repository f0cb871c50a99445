package cache

import (
	"sync"
	"time"
)

type item struct {
	value    any
	deadline time.Time
}

// TTLCache is a small expiring map for response caching. No eviction policy
// beyond expiry; the handlers that use it key on bounded request shapes.
type TTLCache struct {
	mu      sync.RWMutex
	entries map[string]item
}

func NewTTLCache() *TTLCache {
	return &TTLCache{entries: make(map[string]item)}
}

// Get returns the live value for key, dropping it if it has expired.
func (c *TTLCache) Get(key string) (any, bool) {
	c.mu.RLock()
	it, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if !it.deadline.IsZero() && time.Now().After(it.deadline) {
		c.mu.Lock()
		delete(c.entries, key)
		c.mu.Unlock()
		return nil, false
	}
	return it.value, true
}

// Set stores v under key. A non-positive ttl keeps the entry until restart.
func (c *TTLCache) Set(key string, v any, ttl time.Duration) {
	it := item{value: v}
	if ttl > 0 {
		it.deadline = time.Now().Add(ttl)
	}
	c.mu.Lock()
	c.entries[key] = it
	c.mu.Unlock()
}
