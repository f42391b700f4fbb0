package dedupe

import (
	"context"
	"fmt"
	"sync"

	"courier/internal/constants"
)

// MemoryStore is the ephemeral variant: a capped in-process set. When the
// cap is exceeded it evicts roughly half the entries in map-iteration order.
// This is a deliberate capacity/correctness trade-off, not an LRU cache:
// under sustained load an already-seen id can be evicted early and come back
// as "new". It never returns an error.
type MemoryStore struct {
	mu         sync.Mutex
	seen       map[string]struct{}
	maxEntries int
}

func NewMemoryStore(maxEntries int) *MemoryStore {
	if maxEntries <= 0 {
		maxEntries = constants.DefaultDedupeMaxEntries
	}
	return &MemoryStore{
		seen:       make(map[string]struct{}),
		maxEntries: maxEntries,
	}
}

func (s *MemoryStore) MarkIfNew(ctx context.Context, tenant, eventID string) (bool, error) {
	key := fmt.Sprintf(constants.DedupeKeyFormat, tenant, eventID)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.seen[key]; ok {
		return false, nil
	}
	s.seen[key] = struct{}{}

	if len(s.seen) > s.maxEntries {
		s.evictHalfLocked()
	}

	return true, nil
}

// Len reports the current number of recorded keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.seen)
}

func (s *MemoryStore) evictHalfLocked() {
	drop := len(s.seen) / 2
	for key := range s.seen {
		if drop == 0 {
			break
		}
		delete(s.seen, key)
		drop--
	}
}
