package services

import (
	"context"
	"sync"

	"github.com/joshua-takyi/eventradar/internal/metrics"
)

// FeedCoordinator makes feed fetches supersedable per session: starting a
// new fetch cancels the previous one, and only the most recently started
// fetch may deliver its result.
type FeedCoordinator struct {
	mu       sync.Mutex
	seq      uint64
	inflight map[string]*FeedTicket
}

// FeedTicket identifies one feed fetch.
type FeedTicket struct {
	key    string
	id     uint64
	ctx    context.Context
	cancel context.CancelFunc
}

// Context is cancelled when a newer fetch for the same key begins.
func (t *FeedTicket) Context() context.Context { return t.ctx }

func NewFeedCoordinator() *FeedCoordinator {
	return &FeedCoordinator{inflight: make(map[string]*FeedTicket)}
}

// Begin registers a fetch for key, cancelling any earlier one.
func (c *FeedCoordinator) Begin(parent context.Context, key string) *FeedTicket {
	ctx, cancel := context.WithCancel(parent)
	c.mu.Lock()
	defer c.mu.Unlock()

	c.seq++
	t := &FeedTicket{key: key, id: c.seq, ctx: ctx, cancel: cancel}
	metrics.FeedRequests.Inc()
	if key == "" {
		return t
	}
	if prev, ok := c.inflight[key]; ok {
		prev.cancel()
		metrics.FeedSuperseded.Inc()
	}
	c.inflight[key] = t
	return t
}

// Commit ends the fetch and reports whether it is still the latest for its
// key. A false result means the caller must drop its response.
func (c *FeedCoordinator) Commit(t *FeedTicket) bool {
	defer t.cancel()
	if t.key == "" {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.inflight[t.key]; ok && cur.id == t.id {
		delete(c.inflight, t.key)
		return true
	}
	return false
}

// InFlight is the number of keys with an outstanding fetch.
func (c *FeedCoordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}
