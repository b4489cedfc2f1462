package upstream

import (
	"context"
	"sync"
	"time"
)

// Throttle is a single-token bucket that replenishes at a fixed rate.
type Throttle struct {
	rate     float64 // tokens per second
	tokens   float64
	lastTime time.Time
	mu       sync.Mutex
}

// NewThrottle creates a Throttle allowing perMinute requests per minute.
func NewThrottle(perMinute int) *Throttle {
	return &Throttle{
		rate:     float64(perMinute) / 60.0,
		tokens:   1,
		lastTime: time.Now(),
	}
}

// reserve takes a token if one is available, otherwise it returns how long
// until the next one.
func (t *Throttle) reserve(now time.Time) time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()

	if elapsed := now.Sub(t.lastTime); elapsed > 0 {
		t.tokens += elapsed.Seconds() * t.rate
		if t.tokens > 1 {
			t.tokens = 1
		}
		t.lastTime = now
	}

	if t.tokens >= 1 {
		t.tokens--
		return 0
	}
	return time.Duration((1 - t.tokens) / t.rate * float64(time.Second))
}

// Wait blocks until a token is available or ctx is done.
func (t *Throttle) Wait(ctx context.Context) error {
	for {
		d := t.reserve(time.Now())
		if d == 0 {
			return nil
		}
		timer := time.NewTimer(d)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
