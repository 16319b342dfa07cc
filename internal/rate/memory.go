package rate

import (
	"context"
	"sync"
	"time"
)

// entry tracks the request timestamps of one identifier. Timestamps
// are kept ordered; pruning drops everything outside the trailing
// window.
type entry struct {
	mu     sync.Mutex
	hits   []time.Time
	window time.Duration
}

// MemoryStore is a process-local sliding-window counter store. Each
// identifier's history is mutated under its own lock so two concurrent
// requests for the same identifier are both accounted for.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]*entry
	now     func() time.Time
}

// NewMemoryStore builds an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]*entry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Record(_ context.Context, identifier string, window time.Duration) (int, time.Duration, error) {
	e := s.entry(identifier, window)

	now := s.now()
	e.mu.Lock()
	defer e.mu.Unlock()

	e.window = window
	e.hits = pruneBefore(e.hits, now.Add(-window))
	e.hits = append(e.hits, now)

	ttl := e.hits[0].Add(window).Sub(now)
	return len(e.hits), ttl, nil
}

func (s *MemoryStore) Cleanup(_ context.Context) (int, error) {
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, e := range s.entries {
		e.mu.Lock()
		live := pruneBefore(e.hits, now.Add(-e.window))
		if len(live) == 0 {
			delete(s.entries, id)
			purged++
		} else {
			e.hits = live
		}
		e.mu.Unlock()
	}
	return purged, nil
}

func (s *MemoryStore) entry(identifier string, window time.Duration) *entry {
	s.mu.RLock()
	e, ok := s.entries[identifier]
	s.mu.RUnlock()
	if ok {
		return e
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if e, ok = s.entries[identifier]; ok {
		return e
	}
	e = &entry{window: window}
	s.entries[identifier] = e
	return e
}

func pruneBefore(hits []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(hits) && !hits[idx].After(cutoff) {
		idx++
	}
	if idx == 0 {
		return hits
	}
	return append(hits[:0:0], hits[idx:]...)
}
