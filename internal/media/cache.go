package media

import (
	"context"
	"sync"
	"time"

	"github.com/joshua-takyi/eventradar/internal/clock"
	"github.com/joshua-takyi/eventradar/internal/metrics"
)

// MemoryCache is a process-local URL cache. A background loop purges
// expired entries so the map does not grow without bound.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
	clock   clock.Clock
	stop    chan struct{}
	once    sync.Once
}

// NewMemoryCache starts the purge loop when purgeEvery > 0. Call Close to
// stop it.
func NewMemoryCache(clk clock.Clock, purgeEvery time.Duration) *MemoryCache {
	if clk == nil {
		clk = clock.NewSystem()
	}
	c := &MemoryCache{
		entries: make(map[string]Entry),
		clock:   clk,
		stop:    make(chan struct{}),
	}
	if purgeEvery > 0 {
		go c.purgeLoop(purgeEvery)
	}
	return c
}

func (c *MemoryCache) Get(_ context.Context, key string) (Entry, bool) {
	c.mu.RLock()
	e, ok := c.entries[key]
	c.mu.RUnlock()
	metrics.RecordCacheLookup("memory", ok)
	return e, ok
}

func (c *MemoryCache) Set(_ context.Context, key string, e Entry) {
	c.mu.Lock()
	c.entries[key] = e
	c.mu.Unlock()
}

func (c *MemoryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Purge drops expired entries and returns how many were removed.
func (c *MemoryCache) Purge() int {
	now := c.clock.Now()
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for k, e := range c.entries {
		if !now.Before(e.ExpiresAt) {
			delete(c.entries, k)
			removed++
		}
	}
	return removed
}

func (c *MemoryCache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *MemoryCache) purgeLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.Purge()
		case <-c.stop:
			return
		}
	}
}
