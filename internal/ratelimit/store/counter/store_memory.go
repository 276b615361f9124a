package counter

import (
	"context"
	"sync"
	"time"

	"portal/internal/ratelimit/models"
)

type window struct {
	count     int
	expiresAt time.Time
}

// InMemory is a fixed-window counter store for dev, tests and as the
// fallback while Redis is unreachable.
type InMemory struct {
	mu      sync.Mutex
	windows map[models.Key]*window
	now     func() time.Time
}

func NewInMemory() *InMemory {
	return &InMemory{
		windows: make(map[models.Key]*window),
		now:     time.Now,
	}
}

// NewInMemoryWithClock is used by tests that need to move time forward.
func NewInMemoryWithClock(now func() time.Time) *InMemory {
	s := NewInMemory()
	s.now = now
	return s
}

func (s *InMemory) Increment(_ context.Context, key models.Key, ttl time.Duration) (models.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		w = &window{expiresAt: now.Add(ttl)}
		s.windows[key] = w
	}
	w.count++
	return models.Counter{Count: w.count, TTL: w.expiresAt.Sub(now)}, nil
}

func (s *InMemory) Get(_ context.Context, key models.Key) (models.Counter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	w, ok := s.windows[key]
	if !ok || !now.Before(w.expiresAt) {
		return models.Counter{}, nil
	}
	return models.Counter{Count: w.count, TTL: w.expiresAt.Sub(now)}, nil
}

func (s *InMemory) Reset(_ context.Context, key models.Key) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.windows, key)
	return nil
}

// Len reports how many windows are held, expired or not.
func (s *InMemory) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// Sweep drops expired windows. A Sweeper runs it on a schedule.
func (s *InMemory) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for k, w := range s.windows {
		if !now.Before(w.expiresAt) {
			delete(s.windows, k)
			removed++
		}
	}
	return removed
}
