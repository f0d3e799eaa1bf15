package llmclient

import "sync/atomic"

// UsageCounter is a process-wide token-usage tally, read by the run summary
// and the per-error diagnostic snapshot (§7: "recent token counts?").
type UsageCounter struct {
	promptTokens     int64
	completionTokens int64
	calls            int64
}

// globalUsage is the singleton instance every provider implementation
// reports into, mirroring the teacher's package-level client singletons.
var globalUsage = &UsageCounter{}

// GlobalUsage returns the process-wide usage counter.
func GlobalUsage() *UsageCounter { return globalUsage }

// Record adds one call's token accounting.
func (u *UsageCounter) Record(promptTokens, completionTokens int) {
	atomic.AddInt64(&u.promptTokens, int64(promptTokens))
	atomic.AddInt64(&u.completionTokens, int64(completionTokens))
	atomic.AddInt64(&u.calls, 1)
}

// Snapshot is a point-in-time read of the counter.
type Snapshot struct {
	PromptTokens     int64
	CompletionTokens int64
	Calls            int64
}

// Snapshot returns the current totals.
func (u *UsageCounter) Snapshot() Snapshot {
	return Snapshot{
		PromptTokens:     atomic.LoadInt64(&u.promptTokens),
		CompletionTokens: atomic.LoadInt64(&u.completionTokens),
		Calls:            atomic.LoadInt64(&u.calls),
	}
}
