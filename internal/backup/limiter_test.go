package backup

import (
	"testing"
	"time"
)

func TestLimiter_SlidingWindow(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	l := NewLimiterWithClock(3, time.Minute, func() time.Time { return now })

	for i := 0; i < 3; i++ {
		if !l.Allow() {
			t.Fatalf("call %d refused", i+1)
		}
		now = now.Add(10 * time.Second)
	}
	if l.Allow() {
		t.Fatal("4th call inside the window allowed")
	}

	// first event (t=0) falls out at t>60s
	now = time.Date(2024, 1, 1, 0, 1, 1, 0, time.UTC)
	if !l.Allow() {
		t.Error("call after the oldest event expired refused")
	}
	if l.Allow() {
		t.Error("window should be full again")
	}
}

func TestLimiter_Defaults(t *testing.T) {
	l := NewLimiter(0, 0)
	if l.limit != 5 || l.window != 5*time.Minute {
		t.Errorf("defaults = (%d, %s), want (5, 5m)", l.limit, l.window)
	}
}
