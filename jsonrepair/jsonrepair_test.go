package jsonrepair

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_AlreadyParsedMapShortCircuits(t *testing.T) {
	v, stats := Parse(map[string]any{"items": []any{}}, "items")
	assert.Equal(t, strategyAlreadyParsed, stats.Strategy)
	assert.Contains(t, v, "items")
}

func TestParse_WholeTextValidJSON(t *testing.T) {
	v, stats := Parse("{\n  \"items\": [{\"rule_id\": \"UDO\"}]\n}", "items")
	assert.Equal(t, strategyWholeText, stats.Strategy)
	items, ok := v["items"].([]any)
	require.True(t, ok)
	assert.Len(t, items, 1)
}

func TestParse_FencedJSONBlock(t *testing.T) {
	text := "Here is my answer:\n```json\n{\"items\": [1, 2]}\n```\nThanks."
	v, stats := Parse(text, "items")
	assert.Equal(t, strategyFencedBlock, stats.Strategy)
	assert.Contains(t, v, "items")
}

func TestParse_BraceScanFindsEmbeddedObject(t *testing.T) {
	text := `The result is {"items": ["a", "b"]} as requested.`
	v, stats := Parse(text, "items")
	assert.Equal(t, strategyBraceScan, stats.Strategy)
	assert.Contains(t, v, "items")
}

func TestParse_RepairsTrailingComma(t *testing.T) {
	text := `{"items": [1, 2,],}`
	v, stats := Parse(text, "items")
	assert.Equal(t, strategyRepairRules, stats.Strategy)
	assert.Contains(t, stats.RulesFired, "remove_trailing_commas")
	assert.Contains(t, v, "items")
}

func TestParse_RepairsBareKeys(t *testing.T) {
	text := `{items: ["a"]}`
	v, stats := Parse(text, "items")
	assert.Equal(t, strategyRepairRules, stats.Strategy)
	assert.Contains(t, stats.RulesFired, "quote_bare_keys")
	assert.Contains(t, v, "items")
}

func TestParse_RepairsUnbalancedBraces(t *testing.T) {
	text := `{"items": [{"rule_id": "IVW"}`
	v, stats := Parse(text, "items")
	assert.Equal(t, strategyRepairRules, stats.Strategy)
	assert.Contains(t, stats.RulesFired, "balance_brackets")
	assert.Contains(t, v, "items")
}

func TestParse_TotalFailureFallsBackToEmptyItems(t *testing.T) {
	v, stats := Parse("this is not json at all and never will be", "items")
	assert.True(t, stats.UsedFallback)
	items, ok := v["items"].([]any)
	require.True(t, ok)
	assert.Empty(t, items)
}

func TestParse_TotalFailureNonItemsSentinelReturnsEmptyMap(t *testing.T) {
	v, stats := Parse("garbage", "vulnerability_found")
	assert.True(t, stats.UsedFallback)
	assert.Empty(t, v)
}

func TestValidateTwoLineContract_WellFormed(t *testing.T) {
	response := "{\"vulnerability_found\": \"suspected\"}\nFINDINGS=[{\"rule_id\": \"UDO\"}]"
	assert.Equal(t, ViolationNone, ValidateTwoLineContract(response, "vulnerability_found"))
}

func TestValidateTwoLineContract_MissingFindingsPrefix(t *testing.T) {
	response := "{\"vulnerability_found\": \"no\"}\n[]"
	assert.Equal(t, ViolationBadPrefix, ValidateTwoLineContract(response, "vulnerability_found"))
}

func TestValidateTwoLineContract_FirstLineNotJSON(t *testing.T) {
	response := "I think this is safe.\nFINDINGS=[]"
	assert.Equal(t, ViolationMissingFirstLine, ValidateTwoLineContract(response, "vulnerability_found"))
}

func TestValidateTwoLineContract_MissingSecondLine(t *testing.T) {
	response := "{\"vulnerability_found\": \"no\"}"
	assert.Equal(t, ViolationMissingSecondLine, ValidateTwoLineContract(response, "vulnerability_found"))
}
