package backup

import (
	"sync"
	"time"
)

// Limiter allows at most limit events in any rolling window.
type Limiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	now    func() time.Time
	events []time.Time
}

// NewLimiter returns a sliding-window limiter on the wall clock.
func NewLimiter(limit int, window time.Duration) *Limiter {
	return NewLimiterWithClock(limit, window, time.Now)
}

func NewLimiterWithClock(limit int, window time.Duration, now func() time.Time) *Limiter {
	if limit <= 0 {
		limit = 5
	}
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &Limiter{limit: limit, window: window, now: now}
}

// Allow records an event and reports whether it fits the budget. A refused
// event is not recorded.
func (l *Limiter) Allow() bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	cutoff := now.Add(-l.window)
	kept := l.events[:0]
	for _, t := range l.events {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	l.events = kept

	if len(l.events) >= l.limit {
		return false
	}
	l.events = append(l.events, now)
	return true
}
