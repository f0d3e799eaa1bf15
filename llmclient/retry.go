package llmclient

import (
	"context"
	"math"
	"time"
)

// RetryPolicy implements §4.6's backoff schedule: base 2s, doubling, capped
// at 60s, at most 3 attempts total. AUTH_ERROR, TOKEN_LIMIT, and
// CONTENT_FILTER never get a second attempt.
type RetryPolicy struct {
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	MaxAttempts int
	Sleep      func(time.Duration) // overridable for tests
}

// DefaultRetryPolicy returns the policy described in §4.6.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   2 * time.Second,
		MaxDelay:    60 * time.Second,
		MaxAttempts: 3,
		Sleep:       time.Sleep,
	}
}

func (p RetryPolicy) delayFor(attempt int) time.Duration {
	d := float64(p.BaseDelay) * math.Pow(2, float64(attempt))
	if d > float64(p.MaxDelay) {
		d = float64(p.MaxDelay)
	}
	return time.Duration(d)
}

// Call runs fn under the retry policy, classifying and respecting
// Error.Retriable between attempts.
func (p RetryPolicy) Call(ctx context.Context, fn func(ctx context.Context) (string, error)) (string, error) {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = time.Sleep
	}

	var lastErr error
	for attempt := 0; attempt < p.MaxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			default:
			}
			sleep(p.delayFor(attempt - 1))
		}

		resp, err := fn(ctx)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		if llmErr, ok := err.(*Error); ok && !llmErr.Retriable() {
			return "", err
		}
	}
	return "", lastErr
}
