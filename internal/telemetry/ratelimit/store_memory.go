package ratelimit

import (
	"context"
	"sync"
	"time"

	"pulsegate/pkg/platform/clock"
)

// InMemoryStore keeps one sliding window per key in process memory.
type InMemoryStore struct {
	mu      sync.Mutex
	clock   clock.Clock
	windows map[string]*slidingWindow
}

type slidingWindow struct {
	hits   []time.Time
	window time.Duration
}

// NewInMemoryStore builds a store on c, or the real clock when c is nil.
func NewInMemoryStore(c clock.Clock) *InMemoryStore {
	if c == nil {
		c = clock.Real()
	}
	return &InMemoryStore{clock: c, windows: make(map[string]*slidingWindow)}
}

// Allow records a hit for key if the window has room.
func (s *InMemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock.Now()
	sw := s.windows[key]
	if sw == nil {
		sw = &slidingWindow{window: window}
		s.windows[key] = sw
	}
	sw.window = window
	sw.trim(now)

	if len(sw.hits) >= limit {
		resetAt := now.Add(window)
		if len(sw.hits) > 0 {
			resetAt = sw.hits[0].Add(window)
		}
		return Result{Allowed: false, Limit: limit, ResetAt: resetAt}, nil
	}
	sw.hits = append(sw.hits, now)
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(sw.hits),
		ResetAt:   sw.hits[0].Add(window),
	}, nil
}

// Reset forgets key.
func (s *InMemoryStore) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// trim drops hits that have left the window.
func (sw *slidingWindow) trim(now time.Time) {
	cutoff := now.Add(-sw.window)
	i := 0
	for i < len(sw.hits) && !sw.hits[i].After(cutoff) {
		i++
	}
	sw.hits = sw.hits[i:]
}
