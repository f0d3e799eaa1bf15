package sinkid

import (
	"regexp"

	"github.com/ta-061/tee-flow-inspector/model"
)

// entryPointNames are the standard OP-TEE TA lifecycle entry points. They
// are user-defined by construction and never taint sinks in their own
// right, so candidate reduction excludes them even if a quirk of the
// classifier ever placed one in the external set.
var entryPointNames = map[string]bool{
	"TA_CreateEntryPoint":        true,
	"TA_DestroyEntryPoint":       true,
	"TA_OpenSessionEntryPoint":   true,
	"TA_CloseSessionEntryPoint":  true,
	"TA_InvokeCommandEntryPoint": true,
}

var callLikeRE = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

// CandidateFunctions implements §4.3's candidate reduction: scan every
// user-defined function's body text for call-like patterns, intersect the
// called identifiers with the external-declaration names, and drop entry
// points. The LLM is asked about this intersection only, never about
// declared-but-unused APIs.
func CandidateFunctions(artifact *model.Phase12Artifact) []string {
	calledNames := map[string]bool{}
	for _, fn := range artifact.UserDefinedFunctions {
		for _, match := range callLikeRE.FindAllStringSubmatch(fn.Body, -1) {
			calledNames[match[1]] = true
		}
	}

	externalNames := map[string]bool{}
	for _, d := range artifact.ExternalDeclarations {
		if d.Kind == model.DeclFunction {
			externalNames[d.Name] = true
		}
	}

	var out []string
	for name := range calledNames {
		if externalNames[name] && !entryPointNames[name] {
			out = append(out, name)
		}
	}
	return out
}
