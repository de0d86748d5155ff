package ratelimit

import (
	"context"
	"sync"
	"time"
)

const sweepEvery = 1024

type windowEntry struct {
	count     int64
	expiresAt time.Time
}

// MemoryStore keeps counters in process memory. Counts are not shared
// between replicas, so it is only suitable for a single node and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*windowEntry
	now     func() time.Time
	calls   int
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*windowEntry), now: time.Now}
}

func (s *MemoryStore) Increment(_ context.Context, key string, window time.Duration) (Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(now)
	}

	e, ok := s.entries[key]
	if !ok || !now.Before(e.expiresAt) {
		e = &windowEntry{expiresAt: now.Add(window)}
		s.entries[key] = e
	}
	e.count++
	return Counter{Count: e.count, Remaining: e.expiresAt.Sub(now)}, nil
}

func (s *MemoryStore) sweep(now time.Time) {
	for k, e := range s.entries {
		if !now.Before(e.expiresAt) {
			delete(s.entries, k)
		}
	}
}

func (s *MemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.entries, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Ping(context.Context) error { return nil }

func (s *MemoryStore) Name() string { return "memory" }

func (s *MemoryStore) Close() error { return nil }
