package llmclient

import (
	"context"

	"github.com/ta-061/tee-flow-inspector/analytics"
)

// Retrying wraps a ChatCompleter so every call goes through a RetryPolicy's
// backoff schedule, keeping §4.6's retry plumbing out of every call site
// that just wants a completion.
type Retrying struct {
	Inner  ChatCompleter
	Policy RetryPolicy
}

func (r *Retrying) ChatCompletion(ctx context.Context, messages []Message) (string, error) {
	policy := r.Policy
	if policy.MaxAttempts == 0 {
		policy = DefaultRetryPolicy()
	}
	result, err := policy.Call(ctx, func(ctx context.Context) (string, error) {
		return r.Inner.ChatCompletion(ctx, messages)
	})
	if err != nil {
		analytics.ReportEvent(analytics.LLMCallFailed)
	} else {
		analytics.ReportEvent(analytics.LLMCallSucceeded)
	}
	return result, err
}
