package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps hit timestamps in process memory. Keys are never
// evicted beyond pruning their timestamps, so memory grows with the number
// of distinct clients seen by the process.
type MemoryStore struct {
	mu   sync.Mutex
	hits map[string][]time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{hits: make(map[string][]time.Time)}
}

func (s *MemoryStore) Hit(_ context.Context, key string, now time.Time, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bucket := s.hits[key]
	recent := bucket[:0]
	for _, ts := range bucket {
		if now.Sub(ts) < window {
			recent = append(recent, ts)
		}
	}
	recent = append(recent, now)
	s.hits[key] = recent

	return int64(len(recent)), nil
}

// Keys returns the number of client keys currently tracked.
func (s *MemoryStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.hits)
}
