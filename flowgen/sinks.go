package flowgen

import (
	"strings"

	"github.com/ta-061/tee-flow-inspector/cfront"
	"github.com/ta-061/tee-flow-inspector/model"
)

// DetectSinkCallSites implements §4.4 step 1: every call expression whose
// callee matches a sink function becomes a VD, one per tainted parameter
// index the sink identifier recorded for that function.
//
// includeDebugMacros controls the diagnostic-macro special case: when a
// call's callee textually matches a sink only because it's the underlying
// trace function a diagnostic macro (e.g. DMSG) expands to, the call site
// is restored to the macro's name and, unless includeDebugMacros is set,
// excluded entirely — diagnostic logging isn't a meaningful taint sink for
// this analysis by default.
func DetectSinkCallSites(calls []cfront.CallExpr, macros []cfront.MacroDecl, sinks *model.SinksArtifact, includeDebugMacros bool) []model.VD {
	byFunction := sinks.ByFunction()
	diagnosticMacros := diagnosticMacroNames(macros, byFunction)

	var vds []model.VD
	for _, call := range calls {
		calleeName := call.Callee
		lookupName := calleeName
		isDiagnostic := false
		if sinkName, ok := diagnosticMacros[call.Callee]; ok {
			// cfront already reports the macro's own name as the callee
			// (it never macro-expands call sites), so calleeName — and the
			// VD's SinkFunction below — stays the macro's literal name;
			// only the sink-table lookup is redirected to what it expands to.
			lookupName = sinkName
			isDiagnostic = true
		}

		sinkMatches, ok := byFunction[lookupName]
		if !ok {
			continue
		}
		if isDiagnostic && !includeDebugMacros {
			continue
		}

		for _, sink := range sinkMatches {
			vds = append(vds, model.VD{
				File:               call.File,
				Line:               call.Line,
				SinkFunction:       calleeName,
				ParamIndex:         sink.ParamIndex,
				ContainingFunction: call.ContainingFunction,
			})
		}
	}
	return vds
}

// diagnosticMacroNames maps a diagnostic macro's own literal name (e.g.
// "DMSG", the name cfront actually records as a call's callee, since it
// never macro-expands call sites) to the sink function its replacement text
// invokes. Built once per TU set since macro bodies rarely reference more
// than one sink function.
func diagnosticMacroNames(macros []cfront.MacroDecl, byFunction map[string][]model.Sink) map[string]string {
	out := map[string]string{}
	for _, m := range macros {
		if !m.IsFunctionLike || m.Value == "" {
			continue
		}
		for sinkName := range byFunction {
			if strings.Contains(m.Value, sinkName+"(") {
				out[m.Name] = sinkName
			}
		}
	}
	return out
}
