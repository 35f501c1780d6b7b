package client

import (
	"context"
	"sync"
	"time"
)

// tokenBucket gates outbound calls to the external price API. The limit
// is account-wide, so one bucket is shared across all symbols.
type tokenBucket struct {
	rate     float64 // tokens per second
	capacity float64

	mu     sync.Mutex
	tokens float64
	last   time.Time
}

// newTokenBucket builds a bucket that releases one token per spacing
// interval with the given burst capacity.
func newTokenBucket(spacing time.Duration, burst int) *tokenBucket {
	if spacing <= 0 {
		spacing = time.Nanosecond
	}
	if burst <= 0 {
		burst = 1
	}
	return &tokenBucket{
		rate:     1.0 / spacing.Seconds(),
		capacity: float64(burst),
		tokens:   float64(burst), // start full to allow an initial burst
		last:     time.Now(),
	}
}

// wait blocks until one token is available or ctx is cancelled.
func (tb *tokenBucket) wait(ctx context.Context) error {
	for {
		tb.mu.Lock()
		now := time.Now()
		elapsed := now.Sub(tb.last).Seconds()
		if elapsed > 0 {
			tb.tokens += elapsed * tb.rate
			if tb.tokens > tb.capacity {
				tb.tokens = tb.capacity
			}
			tb.last = now
		}
		if tb.tokens >= 1 {
			tb.tokens--
			tb.mu.Unlock()
			return nil
		}
		deficit := 1 - tb.tokens
		tb.mu.Unlock()

		waitDur := time.Duration(deficit / tb.rate * float64(time.Second))
		if waitDur <= 0 {
			waitDur = time.Millisecond
		}
		timer := time.NewTimer(waitDur)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
