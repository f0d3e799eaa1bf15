package llmclient

import (
	"context"
	"sync"
	"time"
)

// RateLimiter enforces a minimum interval between LLM calls, process-wide.
// A single shared instance sits in front of whichever ChatCompleter the
// pipeline is using, since most providers meter by requests-per-second
// regardless of how many goroutines are issuing them.
type RateLimiter struct {
	minInterval time.Duration
	mu          sync.Mutex
	last        time.Time
	now         func() time.Time
	sleep       func(time.Duration)
}

// DefaultMinInterval is the ~0.7s floor between calls referenced in §4.6.
const DefaultMinInterval = 700 * time.Millisecond

// NewRateLimiter returns a limiter enforcing minInterval between successive
// Wait calls.
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		minInterval: minInterval,
		now:         time.Now,
		sleep:       time.Sleep,
	}
}

// Wait blocks until minInterval has elapsed since the previous call
// returned, or ctx is cancelled.
func (r *RateLimiter) Wait(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.last.IsZero() {
		elapsed := r.now().Sub(r.last)
		if wait := r.minInterval - elapsed; wait > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
			r.sleep(wait)
		}
	}
	r.last = r.now()
	return nil
}

// RateLimited wraps a ChatCompleter so every call passes through the
// limiter first.
type RateLimited struct {
	Inner   ChatCompleter
	Limiter *RateLimiter
}

func (r *RateLimited) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	if err := r.Limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.Inner.ChatCompletion(ctx, messages)
}
