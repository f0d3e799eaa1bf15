package flowgen

import (
	"github.com/ta-061/tee-flow-inspector/model"
	"github.com/ta-061/tee-flow-inspector/output"
)

// DefaultSourceFunctions are the OP-TEE TA entry points treated as the
// trust boundary's "untrusted input arrives here" sources when the caller
// doesn't configure its own set.
var DefaultSourceFunctions = []string{
	"TA_InvokeCommandEntryPoint",
	"TA_OpenSessionEntryPoint",
}

// Options configures candidate-flow generation.
type Options struct {
	SourceFunctions    []string
	IncludeDebugMacros bool
	MaxDepth           int
}

// Generate runs §4.4 end to end.
func Generate(db *model.CompileDatabase, sinks *model.SinksArtifact, opts Options, logger *output.Logger) *model.CandidateFlowsArtifact {
	graph, calls, macros := BuildCallGraph(db, logger)
	vds := DetectSinkCallSites(calls, macros, sinks, opts.IncludeDebugMacros)

	sourceFunctions := opts.SourceFunctions
	if len(sourceFunctions) == 0 {
		sourceFunctions = DefaultSourceFunctions
	}
	sourceSet := make(map[string]bool, len(sourceFunctions))
	for _, s := range sourceFunctions {
		sourceSet[s] = true
	}

	maxDepth := opts.MaxDepth
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	var flows []model.CandidateFlow
	for _, vd := range vds {
		chains := TraverseBackward(graph, vd, sourceSet, maxDepth)
		for _, chain := range chains {
			flows = append(flows, model.CandidateFlow{
				VD:             vd,
				Chain:          chain,
				ParamIndices:   []int{vd.ParamIndex},
				SourceFunction: chain[0],
			})
		}
	}

	flows = Optimize(flows)

	return &model.CandidateFlowsArtifact{
		Flows:    flows,
		CallEdge: graph.Edges,
	}
}
