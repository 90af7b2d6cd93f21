package cache

import (
	"context"
	"sync"
	"time"

	"github.com/jonesrussell/north-cloud/embedder/internal/webembed"
)

type memoryEntry struct {
	embed     webembed.Embed
	expiresAt time.Time
}

// MemoryCache is an in-process TTL cache. Expired entries are dropped lazily
// on read.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	ttl     time.Duration
	now     func() time.Time
}

// NewMemoryCache creates an empty cache. A zero ttl keeps entries forever.
func NewMemoryCache(ttl time.Duration) *MemoryCache {
	return &MemoryCache{
		entries: make(map[string]memoryEntry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// WithClock replaces the time source. Intended for tests.
func (c *MemoryCache) WithClock(now func() time.Time) *MemoryCache {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
	return c
}

// Get returns a copy of the embed stored under key.
func (c *MemoryCache) Get(_ context.Context, key string) (*webembed.Embed, bool) {
	c.mu.RLock()
	entry, ok := c.entries[key]
	now := c.now()
	c.mu.RUnlock()

	if !ok {
		return nil, false
	}

	if !entry.expiresAt.IsZero() && !now.Before(entry.expiresAt) {
		c.mu.Lock()
		if current, still := c.entries[key]; still && current.expiresAt.Equal(entry.expiresAt) {
			delete(c.entries, key)
		}
		c.mu.Unlock()
		return nil, false
	}

	embed := entry.embed
	return &embed, true
}

// Set stores a copy of embed under key.
func (c *MemoryCache) Set(_ context.Context, key string, embed *webembed.Embed) error {
	if embed == nil {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	entry := memoryEntry{embed: *embed}
	if c.ttl > 0 {
		entry.expiresAt = c.now().Add(c.ttl)
	}
	c.entries[key] = entry
	return nil
}

// Flush empties the cache.
func (c *MemoryCache) Flush(context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := len(c.entries)
	c.entries = make(map[string]memoryEntry)
	return n, nil
}

// Len returns the number of stored entries, expired or not.
func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
