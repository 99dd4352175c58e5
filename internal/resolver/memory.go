package resolver

import (
	"context"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// MemoryCache keeps snapshots in process. Stored snapshots are immutable
// and swapped atomically.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*atomic.Pointer[Snapshot]
	now     func() time.Time
}

// NewMemoryCache creates an empty in-process cache.
func NewMemoryCache() *MemoryCache {
	return &MemoryCache{entries: make(map[string]*atomic.Pointer[Snapshot]), now: time.Now}
}

func (c *MemoryCache) Get(ctx context.Context, key string) (*Snapshot, bool) {
	c.mu.RLock()
	slot, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	snap := slot.Load()
	if snap == nil || !snap.Fresh(c.now()) {
		return nil, false
	}
	return snap, true
}

func (c *MemoryCache) Set(ctx context.Context, key string, s *Snapshot, ttl time.Duration) {
	c.mu.RLock()
	slot, ok := c.entries[key]
	c.mu.RUnlock()
	if !ok {
		c.mu.Lock()
		if slot, ok = c.entries[key]; !ok {
			slot = &atomic.Pointer[Snapshot]{}
			c.entries[key] = slot
		}
		c.mu.Unlock()
	}
	slot.Store(s)
}

func (c *MemoryCache) Invalidate(ctx context.Context, titleCode string) {
	prefix := "title:" + titleCode + ":"
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) || strings.HasPrefix(key, "all:") {
			delete(c.entries, key)
		}
	}
}
