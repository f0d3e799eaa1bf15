package llmclient

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_RetriableClassification(t *testing.T) {
	assert.False(t, (&Error{Class: ErrAuth}).Retriable())
	assert.False(t, (&Error{Class: ErrTokenLimit}).Retriable())
	assert.False(t, (&Error{Class: ErrContentFilter}).Retriable())
	assert.True(t, (&Error{Class: ErrTimeout}).Retriable())
	assert.True(t, (&Error{Class: ErrServer}).Retriable())
	assert.True(t, (&Error{Class: ErrNetwork}).Retriable())
}

func TestRetryPolicy_StopsOnNonRetriableError(t *testing.T) {
	var sleeps []time.Duration
	policy := RetryPolicy{
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Second,
		MaxAttempts: 3,
		Sleep:       func(d time.Duration) { sleeps = append(sleeps, d) },
	}

	attempts := 0
	_, err := policy.Call(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", classify(ErrAuth, "nope", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 1, attempts)
	assert.Empty(t, sleeps)
}

func TestRetryPolicy_RetriesRetriableErrorUpToMaxAttempts(t *testing.T) {
	var sleeps []time.Duration
	policy := RetryPolicy{
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Second,
		MaxAttempts: 3,
		Sleep:       func(d time.Duration) { sleeps = append(sleeps, d) },
	}

	attempts := 0
	_, err := policy.Call(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		return "", classify(ErrServer, "down", nil)
	})

	require.Error(t, err)
	assert.Equal(t, 3, attempts)
	assert.Len(t, sleeps, 2)
}

func TestRetryPolicy_SucceedsAfterTransientFailure(t *testing.T) {
	policy := RetryPolicy{
		BaseDelay:   time.Millisecond,
		MaxDelay:    time.Second,
		MaxAttempts: 3,
		Sleep:       func(time.Duration) {},
	}

	attempts := 0
	resp, err := policy.Call(context.Background(), func(ctx context.Context) (string, error) {
		attempts++
		if attempts < 2 {
			return "", classify(ErrNetwork, "blip", nil)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", resp)
	assert.Equal(t, 2, attempts)
}

func TestRateLimiter_WaitsOutMinInterval(t *testing.T) {
	now := time.Now()
	var slept time.Duration
	limiter := &RateLimiter{
		minInterval: 700 * time.Millisecond,
		now:         func() time.Time { return now },
		sleep:       func(d time.Duration) { slept = d; now = now.Add(d) },
	}

	require.NoError(t, limiter.Wait(context.Background()))
	assert.Zero(t, slept)

	require.NoError(t, limiter.Wait(context.Background()))
	assert.Equal(t, 700*time.Millisecond, slept)
}

func TestUsageCounter_Accumulates(t *testing.T) {
	counter := &UsageCounter{}
	counter.Record(10, 20)
	counter.Record(5, 7)

	snap := counter.Snapshot()
	assert.Equal(t, int64(15), snap.PromptTokens)
	assert.Equal(t, int64(27), snap.CompletionTokens)
	assert.Equal(t, int64(2), snap.Calls)
}
