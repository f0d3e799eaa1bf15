package sinkid

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ta-061/tee-flow-inspector/model"
)

// The field regexes below tolerate whitespace and field reordering: "function: F;
// param_index: 2; reason: ..." and "param_index:2, function:F, reason:..."
// both match, per §4.3's "lenient regex that tolerates whitespace and
// reordering."
var (
	functionFieldRE = regexp.MustCompile(`(?i)function\s*:\s*([A-Za-z_][A-Za-z0-9_]*)`)
	paramFieldRE    = regexp.MustCompile(`(?i)param_index\s*:\s*(\d+)`)
	reasonFieldRE   = regexp.MustCompile(`(?i)reason\s*:\s*(.+)`)
	noneLineRE      = regexp.MustCompile(`(?i)^\s*none\s*$`)
)

// ParseResponse extracts (param_index, reason) triples for expectFunction
// from a free-form model response. Lines missing the function or
// param_index field, or naming a different function, are ignored; a line
// without a reason field yields an empty Reason. The model is never
// corrected, only read leniently.
func ParseResponse(expectFunction, response string) []model.Sink {
	var sinks []model.Sink
	for _, line := range strings.Split(response, "\n") {
		if noneLineRE.MatchString(line) {
			continue
		}
		fnMatch := functionFieldRE.FindStringSubmatch(line)
		paramMatch := paramFieldRE.FindStringSubmatch(line)
		if fnMatch == nil || paramMatch == nil {
			continue
		}
		if !strings.EqualFold(fnMatch[1], expectFunction) {
			continue
		}
		idx, err := strconv.Atoi(paramMatch[1])
		if err != nil {
			continue
		}
		reason := ""
		if reasonMatch := reasonFieldRE.FindStringSubmatch(line); reasonMatch != nil {
			reason = strings.TrimSpace(reasonMatch[1])
		}
		sinks = append(sinks, model.Sink{
			FunctionName: expectFunction,
			ParamIndex:   idx,
			Reason:       reason,
			Method:       model.SinkDecisionLLM,
		})
	}
	return sinks
}
