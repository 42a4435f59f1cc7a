package retries

import (
	"context"
	"time"
)

const (
	DefaultAttempts  = 3
	DefaultBaseDelay = 200 * time.Millisecond

	HealthAttempts  = 2
	HealthBaseDelay = 100 * time.Millisecond
)

// Retry runs fn up to attempts times, sleeping delay between attempts.
// Only errors accepted by isRetriable are retried; anything else is
// returned immediately. Exhausting the budget returns the last error.
func Retry(ctx context.Context, attempts int, delay time.Duration, fn func() error, isRetriable func(error) bool) error {
	var lastErr error

	for i := 0; i < attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn()
		if lastErr == nil {
			return nil
		}

		if !isRetriable(lastErr) {
			return lastErr
		}

		if i < attempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return lastErr
}
