// Package schedule provides the drift-correcting sleep helpers shared by
// the background loops.
package schedule

import (
	"context"
	"time"
)

// NextAlignedWake returns the next instant after now that falls on a
// multiple of interval. A cycle that starts exactly on a boundary wakes
// at the following boundary, never immediately.
func NextAlignedWake(now time.Time, interval time.Duration) time.Time {
	return now.Truncate(interval).Add(interval)
}

// SleepUntil blocks until t or until ctx is cancelled. A wake time in the
// past sleeps zero and returns immediately; the duration is never negative.
func SleepUntil(ctx context.Context, t time.Time) error {
	d := time.Until(t)
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
