package report

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta-061/tee-flow-inspector/model"
)

func sampleArtifact() *model.VulnerabilitiesArtifact {
	return &model.VulnerabilitiesArtifact{
		Vulnerabilities: []model.Vulnerability{
			{
				VD:         model.VD{File: "ta/ta_entry.c", Line: 12, SinkFunction: "TEE_MemMove", ContainingFunction: "TA_InvokeCommandEntryPoint"},
				Chain:      model.Chain{"TA_InvokeCommandEntryPoint", "TEE_MemMove"},
				Decision:   model.DecisionYes,
				Severity:   model.SeverityHigh,
				Category:   model.RuleWeakInputValidation,
				Confidence: 0.85,
				Findings: []model.Finding{
					{File: "ta/ta_entry.c", Line: 12, Function: "TA_InvokeCommandEntryPoint", SinkFunction: "TEE_MemMove", RuleMatches: model.RuleMatches{RuleID: model.RuleWeakInputValidation}, Message: "no bound check"},
				},
				ConversationTrace: []model.ConversationTurn{
					{Phase: model.TurnStart, Function: "TA_InvokeCommandEntryPoint", Prompt: "...", Response: "..."},
				},
			},
			{
				VD:       model.VD{File: "ta/ta_entry.c", Line: 40, SinkFunction: "TEE_GenerateRandom"},
				Chain:    model.Chain{"TA_InvokeCommandEntryPoint", "TEE_GenerateRandom"},
				Decision: model.DecisionNo,
				Severity: model.SeverityLow,
				Category: model.RuleOther,
			},
		},
		CacheStats: model.CacheStats{Hits: 1, Misses: 2, Entries: 2},
	}
}

func TestWriteHTML_RendersSummaryAndFlows(t *testing.T) {
	var buf bytes.Buffer
	err := WriteHTML(&buf, "example_ta", sampleArtifact())
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "example_ta")
	assert.Contains(t, out, "TEE_MemMove")
	assert.Contains(t, out, "no bound check")
	assert.Contains(t, out, "<html")
}

func TestWriteSARIF_ProducesValidJSONWithExpectedRule(t *testing.T) {
	var buf bytes.Buffer
	err := WriteSARIF(&buf, "example_ta", sampleArtifact())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))

	runs, ok := decoded["runs"].([]any)
	require.True(t, ok)
	require.Len(t, runs, 1)

	run := runs[0].(map[string]any)
	results, ok := run["results"].([]any)
	require.True(t, ok)
	// Only the confirmed (decision=yes) vulnerability should produce a result.
	assert.Len(t, results, 1)
}
