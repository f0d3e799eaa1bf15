// Package taint implements the taint analyzer (P5): a bounded,
// chain-ordered conversation with an LLM per candidate flow, with prefix
// caching, consistency reconciliation, and global findings merging. This is
// the pipeline's core phase; every earlier phase exists to hand it a short
// list of flows worth asking an expensive model about.
package taint

import "github.com/ta-061/tee-flow-inspector/model"

// turnState is the accumulated taint picture after one start or middle
// turn: what's tainted, what sanitized it, what it reached, and what rule
// the model matched. Fed back into the next turn's prompt and consulted by
// reconciliation after the end turn.
type turnState struct {
	function     string
	propagation  []string
	sanitizers   []string
	sinks        []string
	evidence     []string
	ruleMatches  model.RuleMatches
	findings     []model.Finding
}

// hasCompletePath reports whether the accumulated propagation chain
// connects an untrusted-world source to a sink argument — invariant rule
// 4.5.4.1's notion of "the taint flow actually reaches a sink". A chain
// counts as complete once some turn has recorded propagation and some turn
// (not necessarily the same one) at least one sink reference; a model that recorded a sink without ever describing
// how tainted data reached it has not demonstrated a real flow.
func hasCompletePath(turns []turnState) bool {
	sawPropagation := false
	sawSink := false
	for _, t := range turns {
		if len(t.propagation) > 0 {
			sawPropagation = true
		}
		if len(t.sinks) > 0 {
			sawSink = true
		}
	}
	return sawPropagation && sawSink
}

// endState is the parsed content of the end turn.
type endState struct {
	vulnerabilityFound bool
	decision           model.Decision
	severity           model.Severity
	confidence         float64
	category           model.RuleID
	residualRisks      []string
	evaluatedSinkLines []int
	findings           []model.Finding
	raw                string
}
