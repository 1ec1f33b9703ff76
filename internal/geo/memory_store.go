package geo

import (
	"context"
	"sync"
	"time"

	"github.com/joshua-takyi/eventradar/internal/clock"
)

// MemoryStore keeps viewer locations in process memory. Entries past their
// expiry are dropped lazily on read.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]StoredLocation
	clock   clock.Clock
}

func NewMemoryStore(clk clock.Clock) *MemoryStore {
	if clk == nil {
		clk = clock.NewSystem()
	}
	return &MemoryStore{entries: make(map[string]StoredLocation), clock: clk}
}

func (s *MemoryStore) GetLocation(_ context.Context, viewerKey string) (*StoredLocation, error) {
	s.mu.RLock()
	loc, ok := s.entries[viewerKey]
	s.mu.RUnlock()
	if !ok {
		return nil, nil
	}
	if !s.clock.Now().Before(loc.ExpiresAt) {
		s.mu.Lock()
		delete(s.entries, viewerKey)
		s.mu.Unlock()
		return nil, nil
	}
	return &loc, nil
}

func (s *MemoryStore) SaveLocation(_ context.Context, viewerKey string, loc Result, expiresAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[viewerKey] = StoredLocation{Result: loc, ExpiresAt: expiresAt}
	return nil
}
