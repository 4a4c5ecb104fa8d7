package gateway

import (
	"strings"
	"sync"
	"time"
)

type cacheEntry struct {
	resp      *Response
	expiresAt time.Time
}

// ttlCache is a key-value response cache with per-entry expiry. Entries are
// evicted lazily on access and proactively by the periodic sweep.
type ttlCache struct {
	mu      sync.Mutex
	entries map[string]cacheEntry
}

func newTTLCache() *ttlCache {
	return &ttlCache{
		entries: make(map[string]cacheEntry),
	}
}

func (c *ttlCache) get(key string) (*Response, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return nil, false
	}
	if time.Now().After(e.expiresAt) {
		delete(c.entries, key)
		return nil, false
	}
	return e.resp, true
}

func (c *ttlCache) set(key string, resp *Response, ttl time.Duration) {
	if ttl <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{resp: resp, expiresAt: time.Now().Add(ttl)}
}

// invalidate removes the exact key and every key with the key as prefix, so
// "songs" takes out "songs-all" and "songs-user-7" in one call.
func (c *ttlCache) invalidate(key string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for k := range c.entries {
		if k == key || strings.HasPrefix(k, key) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

// sweep removes every expired entry and reports how many were dropped.
func (c *ttlCache) sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	removed := 0
	for k, e := range c.entries {
		if now.After(e.expiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *ttlCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}
