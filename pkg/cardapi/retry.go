package cardapi

import (
	"context"
	"time"
)

// RetryConfig controls the backoff used for collection listings.
type RetryConfig struct {
	MaxAttempts   int
	InitialDelay  time.Duration
	MaxDelay      time.Duration
	BackoffFactor float64
}

// DefaultRetryConfig tries three times, waiting 1s then 2s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxAttempts:   3,
		InitialDelay:  time.Second,
		MaxDelay:      10 * time.Second,
		BackoffFactor: 2.0,
	}
}

// delay returns the wait before attempt n+1, n counting from zero.
func (c RetryConfig) delay(n int) time.Duration {
	d := c.InitialDelay
	for range n {
		d = time.Duration(float64(d) * c.BackoffFactor)
		if d >= c.MaxDelay {
			return c.MaxDelay
		}
	}
	return min(d, c.MaxDelay)
}

// RetryWithCheck calls fn until it succeeds, shouldRetry rejects its error or
// the attempts run out. The last error is returned; a cancelled ctx during a
// wait returns ctx.Err().
func RetryWithCheck[T any](ctx context.Context, cfg RetryConfig, fn func() (T, error), shouldRetry func(error) bool) (T, error) {
	attempts := max(cfg.MaxAttempts, 1)

	for n := 0; ; n++ {
		result, err := fn()
		if err == nil || n == attempts-1 || !shouldRetry(err) {
			return result, err
		}

		timer := time.NewTimer(cfg.delay(n))
		select {
		case <-ctx.Done():
			timer.Stop()
			var zero T
			return zero, ctx.Err()
		case <-timer.C:
		}
	}
}
