package orch

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// RateLimiter is a sliding window limiter: at most limit calls per interval.
type RateLimiter struct {
	mu       sync.Mutex
	clock    clockwork.Clock
	history  []time.Time
	limit    int
	interval time.Duration
}

// NewRateLimiter returns a limiter. A non-positive limit disables limiting.
func NewRateLimiter(limit int, interval time.Duration, clock clockwork.Clock) *RateLimiter {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &RateLimiter{clock: clock, limit: limit, interval: interval}
}

func (rl *RateLimiter) Allow() bool {
	if rl.limit <= 0 || rl.interval <= 0 {
		return true
	}
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.clock.Now()
	windowStart := now.Add(-rl.interval)

	fresh := rl.history[:0]
	for _, t := range rl.history {
		if t.After(windowStart) {
			fresh = append(fresh, t)
		}
	}
	if len(fresh) >= rl.limit {
		rl.history = fresh
		return false
	}
	rl.history = append(fresh, now)
	return true
}
