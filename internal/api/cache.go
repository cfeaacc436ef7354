package api

import (
	"sync"
	"time"
)

// ResponseCache is a small in-memory TTL cache for search responses.
// Expired entries are dropped on read; when full, the oldest entry is
// evicted on write.
type ResponseCache struct {
	mu      sync.Mutex
	entries map[string]*cacheEntry
	maxSize int
	ttl     time.Duration
	nowFunc func() time.Time
}

type cacheEntry struct {
	value      any
	insertedAt time.Time
}

// NewResponseCache creates a cache holding at most maxSize entries for ttl.
func NewResponseCache(maxSize int, ttl time.Duration) *ResponseCache {
	return &ResponseCache{
		entries: make(map[string]*cacheEntry),
		maxSize: maxSize,
		ttl:     ttl,
		nowFunc: time.Now,
	}
}

// Get returns the cached value for key, or false when absent or expired.
func (c *ResponseCache) Get(key string) (any, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if c.nowFunc().Sub(entry.insertedAt) > c.ttl {
		delete(c.entries, key)
		return nil, false
	}
	return entry.value, true
}

// Set stores a value, evicting the oldest entry when the cache is full.
func (c *ResponseCache) Set(key string, value any) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		var oldestKey string
		var oldest time.Time
		for k, e := range c.entries {
			if oldestKey == "" || e.insertedAt.Before(oldest) {
				oldestKey = k
				oldest = e.insertedAt
			}
		}
		delete(c.entries, oldestKey)
	}

	c.entries[key] = &cacheEntry{value: value, insertedAt: c.nowFunc()}
}
