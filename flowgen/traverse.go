package flowgen

import "github.com/ta-061/tee-flow-inspector/model"

// DefaultMaxDepth bounds chain length to guarantee termination on
// pathological call graphs (§4.4 "Termination").
const DefaultMaxDepth = 8

// TraverseBackward implements §4.4 step 3: starting from vd's containing
// function, walk the reverse call graph toward any of sourceFunctions,
// accepting a path the moment it reaches one. Cycles are broken per-path
// (a node already on the current path is not revisited), not globally, so
// the same function can appear in multiple accepted chains via different
// routes.
func TraverseBackward(g *CallGraph, vd model.VD, sourceFunctions map[string]bool, maxDepth int) []model.Chain {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}
	start := vd.ContainingFunction
	if start == "" {
		return nil
	}
	if sourceFunctions[start] {
		return []model.Chain{{start, vd.SinkFunction}}
	}

	var accepted []model.Chain
	visited := map[string]bool{start: true}
	path := []string{start}

	var walk func(current string, depth int)
	walk = func(current string, depth int) {
		if depth >= maxDepth {
			return
		}
		for _, edge := range g.CallersOf(current) {
			caller := edge.Caller
			if visited[caller] {
				continue
			}
			if sourceFunctions[caller] {
				chain := make(model.Chain, 0, len(path)+2)
				chain = append(chain, caller)
				for i := len(path) - 1; i >= 0; i-- {
					chain = append(chain, path[i])
				}
				chain = append(chain, vd.SinkFunction)
				accepted = append(accepted, chain)
				continue
			}

			visited[caller] = true
			path = append(path, caller)
			walk(caller, depth+1)
			path = path[:len(path)-1]
			visited[caller] = false
		}
	}
	walk(start, 0)
	return accepted
}
