package flowgen

import (
	"fmt"
	"sort"

	"github.com/ta-061/tee-flow-inspector/model"
)

// Optimize applies §4.4 step 4's four-stage cascade in order: parameter
// merging, exact dedup, subchain elimination, same-line sink merging.
func Optimize(flows []model.CandidateFlow) []model.CandidateFlow {
	flows = mergeParameters(flows)
	flows = dedupExact(flows)
	flows = eliminateSubchains(flows)
	flows = mergeSameLineSinks(flows)
	return flows
}

// mergeParameters groups by (file, line, sink, chain, source_function) and
// folds differing param_index values into one param_indices set.
func mergeParameters(flows []model.CandidateFlow) []model.CandidateFlow {
	groups := map[string]*model.CandidateFlow{}
	var order []string
	for _, f := range flows {
		key := f.OptimizationKey()
		existing, ok := groups[key]
		if !ok {
			copyFlow := f
			copyFlow.ParamIndices = append([]int(nil), f.ParamIndices...)
			groups[key] = &copyFlow
			order = append(order, key)
			continue
		}
		existing.ParamIndices = mergeIntSets(existing.ParamIndices, f.ParamIndices)
	}
	out := make([]model.CandidateFlow, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}

func mergeIntSets(a, b []int) []int {
	seen := map[int]bool{}
	for _, x := range a {
		seen[x] = true
	}
	out := append([]int(nil), a...)
	for _, x := range b {
		if !seen[x] {
			seen[x] = true
			out = append(out, x)
		}
	}
	sort.Ints(out)
	return out
}

// dedupExact drops byte-for-byte duplicate flows (identical key including
// the fully-merged param_indices).
func dedupExact(flows []model.CandidateFlow) []model.CandidateFlow {
	seen := map[string]bool{}
	var out []model.CandidateFlow
	for _, f := range flows {
		key := fmt.Sprintf("%s:%v", f.OptimizationKey(), f.ParamIndices)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, f)
	}
	return out
}

// eliminateSubchains drops any chain that is a contiguous subsequence of
// another chain within the same VD group, where "same VD" is
// (file, line, sink, param_index_set) per model.VD.GroupKey.
func eliminateSubchains(flows []model.CandidateFlow) []model.CandidateFlow {
	groups := map[string][]int{} // group key -> indices into flows
	for i, f := range flows {
		key := f.VD.GroupKey(f.ParamIndices)
		groups[key] = append(groups[key], i)
	}

	drop := map[int]bool{}
	for _, indices := range groups {
		for _, i := range indices {
			for _, j := range indices {
				if i == j || drop[i] {
					continue
				}
				if flows[i].Chain.Equal(flows[j].Chain) {
					continue
				}
				if flows[i].Chain.IsSubchainOf(flows[j].Chain) {
					drop[i] = true
				}
			}
		}
	}

	out := make([]model.CandidateFlow, 0, len(flows))
	for i, f := range flows {
		if !drop[i] {
			out = append(out, f)
		}
	}
	return out
}

// mergeSameLineSinks collapses multiple sink calls on the same source line
// (e.g. a macro expanding to two calls on one logical statement) into one
// flow, keeping the union of param_indices. Flows are grouped by file, line,
// source function and the chain without its trailing sink name; the first
// flow of a group keeps its VD and chain.
func mergeSameLineSinks(flows []model.CandidateFlow) []model.CandidateFlow {
	type lineKey struct {
		file, chain, source string
		line                int
	}
	groups := map[lineKey]*model.CandidateFlow{}
	var order []lineKey
	for _, f := range flows {
		path := f.Chain
		if len(path) > 0 {
			path = path[:len(path)-1]
		}
		key := lineKey{file: f.VD.File, line: f.VD.Line, chain: path.String(), source: f.SourceFunction}
		existing, ok := groups[key]
		if !ok {
			copyFlow := f
			copyFlow.ParamIndices = append([]int(nil), f.ParamIndices...)
			groups[key] = &copyFlow
			order = append(order, key)
			continue
		}
		existing.ParamIndices = mergeIntSets(existing.ParamIndices, f.ParamIndices)
	}
	out := make([]model.CandidateFlow, 0, len(order))
	for _, key := range order {
		out = append(out, *groups[key])
	}
	return out
}
