package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Clock abstracts time for tests.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// SlidingWindow limits to at most limit events per window. Wait blocks until
// an event slot is available or the context is cancelled. It exists because
// the LLM contextualizer must stay under the provider's per-minute quota
// during bulk ingestion.
type SlidingWindow struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	clock  Clock
	events []time.Time
}

// NewSlidingWindow creates a limiter allowing limit events per window.
// A limit of 0 or less never admits anything; callers should treat that
// configuration as "disabled" and not construct a limiter at all.
func NewSlidingWindow(limit int, window time.Duration) *SlidingWindow {
	return NewSlidingWindowWithClock(limit, window, realClock{})
}

func NewSlidingWindowWithClock(limit int, window time.Duration, clock Clock) *SlidingWindow {
	return &SlidingWindow{
		limit:  limit,
		window: window,
		clock:  clock,
	}
}

// Wait blocks until the caller may proceed, then records the event.
func (s *SlidingWindow) Wait(ctx context.Context) error {
	for {
		s.mu.Lock()
		now := s.clock.Now()
		s.prune(now)
		if len(s.events) < s.limit {
			s.events = append(s.events, now)
			s.mu.Unlock()
			return nil
		}
		wait := s.events[0].Add(s.window).Sub(now)
		s.mu.Unlock()

		if err := s.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// Allow reports whether an event may proceed right now, recording it if so.
func (s *SlidingWindow) Allow() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.clock.Now()
	s.prune(now)
	if len(s.events) >= s.limit {
		return false
	}
	s.events = append(s.events, now)
	return true
}

// prune drops events older than the window. Caller holds the lock.
func (s *SlidingWindow) prune(now time.Time) {
	cutoff := now.Add(-s.window)
	i := 0
	for i < len(s.events) && !s.events[i].After(cutoff) {
		i++
	}
	if i > 0 {
		s.events = append(s.events[:0], s.events[i:]...)
	}
}
