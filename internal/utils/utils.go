package utils

import (
	"context"
	"time"
)

// WaitFor blocks for d or until ctx is done, whichever comes first.
func WaitFor(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
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

// Backoff returns the delay before retry attempt n (starting at 1), doubling
// base each time and capping at limit.
func Backoff(base, limit time.Duration, attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := base
	for i := 1; i < attempt; i++ {
		d *= 2
		if limit > 0 && d >= limit {
			return limit
		}
	}
	if limit > 0 && d > limit {
		return limit
	}
	return d
}
