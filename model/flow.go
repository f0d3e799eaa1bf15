package model

import (
	"fmt"
	"sort"
	"strings"
)

// VD (Vulnerable Destination) is one concrete call-site of one sink with one
// tainted parameter.
//
//nolint:tagliatelle
type VD struct {
	File              string `json:"file"`
	Line              int    `json:"line"`
	SinkFunction      string `json:"sink_function"`
	ParamIndex        int    `json:"param_index"`
	ContainingFunction string `json:"containing_function"`
}

// GroupKey is the "same VD" key used by subchain elimination: identical
// (file, line, sink, param_index_set), not individual param_index. Two VDs
// at the same call site that differ only in which single param index
// triggered them still fold into one group, since the whole set of tainted
// indices is what distinguishes one sink call site from another here, not
// any one index in isolation.
func (v VD) GroupKey(paramIndices []int) string {
	idx := make([]int, len(paramIndices))
	copy(idx, paramIndices)
	sort.Ints(idx)
	parts := make([]string, len(idx))
	for i, p := range idx {
		parts[i] = fmt.Sprintf("%d", p)
	}
	return fmt.Sprintf("%s:%d:%s:[%s]", v.File, v.Line, v.SinkFunction, strings.Join(parts, ","))
}

// CallEdge is one static call-site: caller calls callee at (call_file,
// call_line), where caller itself is defined at (caller_file, caller_line).
//
//nolint:tagliatelle
type CallEdge struct {
	Caller     string `json:"caller"`
	Callee     string `json:"callee"`
	CallFile   string `json:"call_file"`
	CallLine   int    `json:"call_line"`
	CallerFile string `json:"caller_file"`
	CallerLine int    `json:"caller_line"`
}

// Chain is an ordered function sequence from an entry point to a sink:
// [f0, f1, ..., sink_function]. Every adjacent pair must be backed by at
// least one CallEdge (invariant 2, §8).
type Chain []string

// String renders a chain as "f0 -> f1 -> ... -> sink" for logs and reports.
func (c Chain) String() string {
	return strings.Join(c, " -> ")
}

// IsSubchainOf reports whether c is a contiguous subsequence of other.
func (c Chain) IsSubchainOf(other Chain) bool {
	if len(c) == 0 || len(c) > len(other) {
		return false
	}
	for start := 0; start+len(c) <= len(other); start++ {
		match := true
		for i := range c {
			if other[start+i] != c[i] {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}

// Equal reports whether two chains contain the same functions in the same
// order.
func (c Chain) Equal(other Chain) bool {
	if len(c) != len(other) {
		return false
	}
	for i := range c {
		if c[i] != other[i] {
			return false
		}
	}
	return true
}

// CandidateFlow aggregates one or more VDs that share (file, line, sink,
// chain, source) but differ only in param_index.
//
//nolint:tagliatelle
type CandidateFlow struct {
	VD             VD     `json:"vd"`
	Chain          Chain  `json:"chain"`
	ParamIndices   []int  `json:"param_indices"`
	SourceFunction string `json:"source_function"`
}

// OptimizationKey groups candidate flows for the parameter-merging step of
// §4.4 step 4.1: (file, line, sink, chain, source_function).
func (c CandidateFlow) OptimizationKey() string {
	return fmt.Sprintf("%s:%d:%s:%s:%s", c.VD.File, c.VD.Line, c.VD.SinkFunction, c.Chain.String(), c.SourceFunction)
}

// CandidateFlowsArtifact is the JSON document written by the candidate-flow
// generator (P4).
type CandidateFlowsArtifact struct {
	Flows    []CandidateFlow `json:"flows"`
	CallEdge []CallEdge      `json:"call_edges,omitempty"`
}
