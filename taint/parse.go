package taint

import (
	"strconv"
	"strings"

	"github.com/ta-061/tee-flow-inspector/jsonrepair"
	"github.com/ta-061/tee-flow-inspector/model"
)

// parseStartMiddle turns a raw start/middle response into a turnState,
// running it through the full §4.6 extraction cascade for both the main
// object and the FINDINGS= block rather than assuming a clean two-line
// split actually happened.
func parseStartMiddle(response string, phase model.TurnPhase, fnName string, vd model.VD) turnState {
	obj, _ := jsonrepair.ParseText(response, "function")
	findingsText := extractAfterMarker(response, "FINDINGS=")
	findingsObj, _ := jsonrepair.ParseText(findingsText, "items")

	return turnState{
		function:    asString(obj["function"], fnName),
		propagation: asStringSlice(obj["propagation"]),
		sanitizers:  asStringSlice(obj["sanitizers"]),
		sinks:       asStringSlice(obj["sinks"]),
		evidence:    asStringSlice(obj["evidence"]),
		ruleMatches: parseRuleMatches(obj["rule_matches"]),
		findings:    buildFindings(findingsObj, phase, fnName, vd),
	}
}

// parseEnd turns a raw end-turn response into an endState.
func parseEnd(response string, vd model.VD) endState {
	verdictObj, _ := jsonrepair.ParseText(response, "vulnerability_found")
	decisionObj, _ := jsonrepair.ParseText(response, "decision")
	findingsText := extractAfterMarker(response, "END_FINDINGS=")
	findingsObj, _ := jsonrepair.ParseText(findingsText, "items")

	found := strings.EqualFold(asString(verdictObj["vulnerability_found"], "no"), "yes")

	return endState{
		vulnerabilityFound: found,
		decision:           model.Decision(asString(decisionObj["decision"], string(decisionFromBool(found)))),
		severity:           model.Severity(asString(decisionObj["severity"], string(model.SeverityLow))),
		confidence:         asFloat(decisionObj["confidence"]),
		category:           model.RuleID(asString(decisionObj["category"], string(model.RuleOther))),
		residualRisks:      asStringSlice(decisionObj["residual_risks"]),
		evaluatedSinkLines: asIntSlice(decisionObj["evaluated_sink_lines"]),
		findings:           buildFindings(findingsObj, model.TurnEnd, vd.ContainingFunction, vd),
		raw:                response,
	}
}

func decisionFromBool(found bool) model.Decision {
	if found {
		return model.DecisionYes
	}
	return model.DecisionNo
}

// extractAfterMarker returns the text following marker's first occurrence,
// or "" if marker never appears (the extraction cascade's fallback then
// takes over).
func extractAfterMarker(response, marker string) string {
	idx := strings.Index(response, marker)
	if idx < 0 {
		return ""
	}
	return response[idx+len(marker):]
}

func parseRuleMatches(v any) model.RuleMatches {
	obj, ok := v.(map[string]any)
	if !ok {
		return model.RuleMatches{RuleID: model.RuleOther}
	}
	rm := model.RuleMatches{RuleID: model.RuleID(asString(obj["rule_id"], string(model.RuleOther)))}
	for _, o := range asStringSlice(obj["others"]) {
		rm.Others = append(rm.Others, model.RuleID(o))
	}
	return rm
}

// buildFindings converts a parsed {"items": [...]} object into Findings,
// applying §4.5.5's line-number validation/coercion to each.
func buildFindings(obj map[string]any, phase model.TurnPhase, defaultFunction string, vd model.VD) []model.Finding {
	rawItems, _ := obj["items"].([]any)
	findings := make([]model.Finding, 0, len(rawItems))
	for _, raw := range rawItems {
		item, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		fn := asString(item["function"], defaultFunction)
		sinkFn := asString(item["sink_function"], vd.SinkFunction)
		rule := model.RuleID(asString(item["rule_id"], string(model.RuleOther)))
		citedFile := asString(item["file"], "")
		citedLine := int(asFloat(item["line"]))

		file, line, coerced := validateLine(citedFile, citedLine, vd)

		findings = append(findings, model.Finding{
			ID:           model.ComputeFindingID(file, fn, rule, line),
			Function:     fn,
			SinkFunction: sinkFn,
			RuleMatches:  model.RuleMatches{RuleID: rule},
			Category:     rule,
			File:         file,
			Line:         line,
			Phase:        phase,
			Message:      asString(item["message"], ""),
			Meta:         model.FindingMeta{LineCoerced: coerced},
		})
	}
	return findings
}

func asString(v any, def string) string {
	s, ok := v.(string)
	if !ok || s == "" {
		return def
	}
	return s
}

func asFloat(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case string:
		f, err := strconv.ParseFloat(n, 64)
		if err == nil {
			return f
		}
	}
	return 0
}

func asStringSlice(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func asIntSlice(v any) []int {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]int, 0, len(list))
	for _, item := range list {
		out = append(out, int(asFloat(item)))
	}
	return out
}
