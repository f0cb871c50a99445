package cache

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// defaultMemoryTTL bounds entries written with a non-positive expiration so
// the map cannot grow forever.
const defaultMemoryTTL = 7 * 24 * time.Hour

type memEntry struct {
	value    interface{}
	expireAt time.Time
}

func (e *memEntry) expired() bool {
	return time.Now().After(e.expireAt)
}

// MemoryCache is a map-backed Service with LRU eviction at capacity and a
// background sweep for expired entries.
type MemoryCache struct {
	mu       sync.RWMutex
	items    map[string]*memEntry
	lastUsed map[string]time.Time
	maxSize  int
	janitor  *time.Ticker
}

// NewMemoryCache builds an in-memory cache and starts its sweeper.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	mc := &MemoryCache{
		items:    make(map[string]*memEntry),
		lastUsed: make(map[string]time.Time),
		maxSize:  cfg.MaxSize,
		janitor:  time.NewTicker(cfg.CleanupInterval),
	}
	go mc.sweep()
	return mc
}

func (mc *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if len(mc.items) >= mc.maxSize {
		mc.evictOldest()
	}

	ttl := expiration
	if ttl <= 0 {
		ttl = defaultMemoryTTL
	}
	mc.items[key] = &memEntry{value: value, expireAt: time.Now().Add(ttl)}
	mc.lastUsed[key] = time.Now()
	return nil
}

func (mc *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e, ok := mc.items[key]
	if !ok || e.expired() {
		if ok {
			mc.remove(key)
		}
		return ErrCacheMiss
	}
	mc.lastUsed[key] = time.Now()

	if strPtr, isStr := dest.(*string); isStr {
		if s, vs := e.value.(string); vs {
			*strPtr = s
			return nil
		}
	}
	*dest.(*interface{}) = e.value
	return nil
}

func (mc *MemoryCache) Delete(_ context.Context, keys ...string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	for _, key := range keys {
		mc.remove(key)
	}
	return nil
}

// DeleteByPattern drops everything. Pattern matching is not worth the cost
// for an L1 that refills from the source anyway.
func (mc *MemoryCache) DeleteByPattern(_ context.Context, _ string) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	mc.items = make(map[string]*memEntry)
	mc.lastUsed = make(map[string]time.Time)
	return nil
}

func (mc *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()
	for _, key := range keys {
		if e, ok := mc.items[key]; ok && !e.expired() {
			return true, nil
		}
	}
	return false, nil
}

func (mc *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	e, ok := mc.items[key]
	if !ok {
		mc.items[key] = &memEntry{value: int64(1), expireAt: time.Now().Add(defaultMemoryTTL)}
		return 1, nil
	}
	n, isInt := e.value.(int64)
	if !isInt {
		return 0, fmt.Errorf("value is not int64")
	}
	e.value = n + 1
	return n + 1, nil
}

func (mc *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if e, ok := mc.items[key]; ok {
		e.expireAt = time.Now().Add(expiration)
		return true, nil
	}
	return false, nil
}

func (mc *MemoryCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	for key, value := range values {
		if err := mc.Set(ctx, key, value, expiration); err != nil {
			return err
		}
	}
	return nil
}

func (mc *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	mc.mu.RLock()
	defer mc.mu.RUnlock()

	out := make(map[string]string)
	for _, key := range keys {
		e, ok := mc.items[key]
		if !ok || e.expired() {
			continue
		}
		if s, isStr := e.value.(string); isStr {
			out[key] = s
		}
	}
	return out, nil
}

func (mc *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	if e, ok := mc.items[key]; ok && !e.expired() {
		return false, nil
	}
	mc.items[key] = &memEntry{value: "locked", expireAt: time.Now().Add(ttl)}
	return true, nil
}

func (mc *MemoryCache) Unlock(ctx context.Context, key string) error {
	return mc.Delete(ctx, key)
}

// remove assumes mc.mu is held.
func (mc *MemoryCache) remove(key string) {
	delete(mc.items, key)
	delete(mc.lastUsed, key)
}

// evictOldest assumes mc.mu is held.
func (mc *MemoryCache) evictOldest() {
	if len(mc.items) == 0 {
		return
	}
	victim := ""
	oldest := time.Now()
	for key, used := range mc.lastUsed {
		if used.Before(oldest) {
			oldest = used
			victim = key
		}
	}
	if victim != "" {
		mc.remove(victim)
	}
}

func (mc *MemoryCache) sweep() {
	for range mc.janitor.C {
		mc.mu.Lock()
		now := time.Now()
		for key, e := range mc.items {
			if now.After(e.expireAt) {
				mc.remove(key)
			}
		}
		mc.mu.Unlock()
	}
}

// Close stops the background sweeper.
func (mc *MemoryCache) Close() error {
	if mc.janitor != nil {
		mc.janitor.Stop()
	}
	return nil
}
