package model

import "strconv"

// SinkDecisionMethod records how a Sink entry was decided: by asking the
// LLM, or via a rule-based short-circuit for a well-known dangerous API.
type SinkDecisionMethod string

const (
	SinkDecisionLLM  SinkDecisionMethod = "llm"
	SinkDecisionRule SinkDecisionMethod = "rule"
)

// Sink identifies one parameter position of one external function as a
// taint sink. Uniqueness key is (FunctionName, ParamIndex).
//
//nolint:tagliatelle
type Sink struct {
	FunctionName string             `json:"function_name"`
	ParamIndex   int                `json:"param_index"`
	Reason       string             `json:"reason"`
	Method       SinkDecisionMethod `json:"method"`
}

// Key returns the deduplication key for a sink.
func (s Sink) Key() string {
	return sinkKey(s.FunctionName, s.ParamIndex)
}

func sinkKey(function string, paramIndex int) string {
	return function + "#" + strconv.Itoa(paramIndex)
}

// SinksArtifact is the JSON document written by the sink identifier (P3).
type SinksArtifact struct {
	Sinks   []Sink   `json:"sinks"`
	Skipped []string `json:"skipped,omitempty"` // functions the LLM never returned a verdict for
}

// ByFunction indexes sinks by function name for fast lookup during candidate
// flow generation.
func (a *SinksArtifact) ByFunction() map[string][]Sink {
	out := make(map[string][]Sink)
	for _, s := range a.Sinks {
		out[s.FunctionName] = append(out[s.FunctionName], s)
	}
	return out
}
