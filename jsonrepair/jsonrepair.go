// Package jsonrepair implements the response-extraction and repair
// cascade (§4.6): turning whatever text an LLM handed back into a usable
// JSON object, without ever failing the caller. Grounded on the teacher's
// own markdown-fence extraction helper
// (sourcecode-parser/diagnostic/llm.go's extractJSONFromMarkdown),
// generalized into the full six-strategy cascade the spec describes.
package jsonrepair

import (
	"encoding/json"
	"strings"
)

// Stats records which strategy ultimately produced a value, and which
// repair rules (strategy 6 only) were tried and whether each fired, for
// debugging malformed-response rates.
type Stats struct {
	Strategy    string
	RulesTried  []string
	RulesFired  []string
	UsedFallback bool
}

const (
	strategyAlreadyParsed = "already_parsed"
	strategyFirstLine     = "first_line"
	strategyWholeText     = "whole_text"
	strategyFencedBlock   = "fenced_block"
	strategyBraceScan     = "brace_scan"
	strategyRepairRules   = "repair_rules"
	strategyFallback      = "fallback"
)

// Parse runs the six-strategy cascade against raw, which is either an
// already-decoded map (strategy 1 short-circuits) or a string of raw model
// output. sentinel, if non-empty, is a key that a correct response must
// contain (e.g. "items" for a findings block); when more than one candidate
// substring parses, the one containing sentinel wins.
func Parse(raw any, sentinel string) (map[string]any, Stats) {
	if m, ok := raw.(map[string]any); ok {
		return m, Stats{Strategy: strategyAlreadyParsed}
	}

	text, ok := raw.(string)
	if !ok {
		return fallbackValue(sentinel), Stats{Strategy: strategyFallback, UsedFallback: true}
	}
	return ParseText(text, sentinel)
}

// ParseText runs strategies 2-6 against a raw text response.
func ParseText(text string, sentinel string) (map[string]any, Stats) {
	if v, ok := tryParse(firstLine(text)); ok && (sentinel == "" || hasSentinel(v, sentinel)) {
		return v, Stats{Strategy: strategyFirstLine}
	}
	if v, ok := tryParse(text); ok && (sentinel == "" || hasSentinel(v, sentinel)) {
		return v, Stats{Strategy: strategyWholeText}
	}

	if v, ok := bestCandidate(extractFencedBlocks(text), sentinel); ok {
		return v, Stats{Strategy: strategyFencedBlock}
	}
	if v, ok := bestCandidate(braceScan(text), sentinel); ok {
		return v, Stats{Strategy: strategyBraceScan}
	}

	if v, stats, ok := repairCascade(text, sentinel); ok {
		stats.Strategy = strategyRepairRules
		return v, stats
	}

	// Last resort: accept any strategy's parse result even without the
	// sentinel, rather than discarding a structurally valid object.
	if v, ok := tryParse(text); ok {
		return v, Stats{Strategy: strategyWholeText}
	}
	if v, ok := bestCandidateAnySentinel(extractFencedBlocks(text)); ok {
		return v, Stats{Strategy: strategyFencedBlock}
	}
	if v, ok := bestCandidateAnySentinel(braceScan(text)); ok {
		return v, Stats{Strategy: strategyBraceScan}
	}

	return fallbackValue(sentinel), Stats{Strategy: strategyFallback, UsedFallback: true}
}

func fallbackValue(sentinel string) map[string]any {
	if sentinel == "items" {
		return map[string]any{"items": []any{}}
	}
	return map[string]any{}
}

func tryParse(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, false
	}
	var v map[string]any
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		return nil, false
	}
	return v, true
}

func hasSentinel(v map[string]any, sentinel string) bool {
	_, ok := v[sentinel]
	return ok
}

func firstLine(text string) string {
	if idx := strings.IndexAny(text, "\r\n"); idx >= 0 {
		return text[:idx]
	}
	return text
}

// bestCandidate parses each candidate and returns the first one that both
// parses and carries the sentinel key.
func bestCandidate(candidates []string, sentinel string) (map[string]any, bool) {
	for _, c := range candidates {
		if v, ok := tryParse(c); ok && (sentinel == "" || hasSentinel(v, sentinel)) {
			return v, true
		}
	}
	return nil, false
}

func bestCandidateAnySentinel(candidates []string) (map[string]any, bool) {
	for _, c := range candidates {
		if v, ok := tryParse(c); ok {
			return v, true
		}
	}
	return nil, false
}
