package taint

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta-061/tee-flow-inspector/llmclient"
	"github.com/ta-061/tee-flow-inspector/model"
)

type scriptedCompleter struct {
	responses []string
	calls     int
}

func (c *scriptedCompleter) ChatCompletion(_ context.Context, _ []llmclient.Message) (string, error) {
	if c.calls >= len(c.responses) {
		c.calls++
		return `{"function":"x"}` + "\nFINDINGS={\"items\":[]}", nil
	}
	r := c.responses[c.calls]
	c.calls++
	return r, nil
}

func samplePhase12() *model.Phase12Artifact {
	return &model.Phase12Artifact{
		UserDefinedFunctions: []model.Declaration{
			{
				Name:         "TA_InvokeCommandEntryPoint",
				Kind:         model.DeclFunction,
				File:         "ta/ta_entry.c",
				Line:         10,
				IsDefinition: true,
				Body:         "TEE_Result TA_InvokeCommandEntryPoint(...) { TEE_MemMove(dst, params[0].memref.buffer, params[0].memref.size); }",
			},
		},
	}
}

func sampleFlow() model.CandidateFlow {
	vd := model.VD{File: "ta/ta_entry.c", Line: 12, SinkFunction: "TEE_MemMove", ParamIndex: 0, ContainingFunction: "TA_InvokeCommandEntryPoint"}
	return model.CandidateFlow{
		VD:             vd,
		Chain:          model.Chain{"TA_InvokeCommandEntryPoint", "TEE_MemMove"},
		ParamIndices:   []int{0},
		SourceFunction: "TA_InvokeCommandEntryPoint",
	}
}

const startResponse = `{"function":"TA_InvokeCommandEntryPoint","propagation":["buf <- params[0].memref.buffer"],"sanitizers":[],"sinks":["TEE_MemMove"],"evidence":["direct copy"],"rule_matches":{"rule_id":"weak_input_validation","others":[]}}
FINDINGS={"items":[{"file":"ta/ta_entry.c","line":12,"function":"TA_InvokeCommandEntryPoint","sink_function":"TEE_MemMove","rule_id":"weak_input_validation","message":"no length check before memmove"}]}`

const endResponseYes = `{"vulnerability_found":"yes"}
{"decision":"yes","severity":"high","confidence":0.9,"category":"weak_input_validation","residual_risks":[],"evaluated_sink_lines":[12]}
END_FINDINGS={"items":[]}`

func TestAnalyze_SingleFlowProducesVulnerability(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{startResponse, endResponseYes}}
	flows := &model.CandidateFlowsArtifact{Flows: []model.CandidateFlow{sampleFlow()}}

	result := Analyze(context.Background(), flows, samplePhase12(), completer, Options{}, nil)

	require.Len(t, result.Vulnerabilities, 1)
	v := result.Vulnerabilities[0]
	assert.Equal(t, model.DecisionYes, v.Decision)
	assert.Equal(t, model.SeverityHigh, v.Severity)
	require.Len(t, v.Findings, 1)
	assert.Equal(t, "weak_input_validation", string(v.Findings[0].RuleMatches.RuleID))
	assert.Equal(t, 0, result.CacheStats.Hits)
	assert.Equal(t, 1, result.CacheStats.Misses)
}

func TestAnalyze_SharedPrefixHitsCache(t *testing.T) {
	completer := &scriptedCompleter{responses: []string{startResponse, endResponseYes, endResponseYes}}
	flow1 := sampleFlow()
	flow2 := sampleFlow()
	flow2.VD.Line = 40 // a different sink call site, same chain prefix
	flows := &model.CandidateFlowsArtifact{Flows: []model.CandidateFlow{flow1, flow2}}

	result := Analyze(context.Background(), flows, samplePhase12(), completer, Options{}, nil)

	require.Len(t, result.Vulnerabilities, 2)
	assert.Equal(t, 1, result.CacheStats.Hits)
}

func TestReconcile_DowngradesOnMissingPropagation(t *testing.T) {
	v := model.Vulnerability{Decision: model.DecisionYes, VD: model.VD{SinkFunction: "memcpy"}}
	turns := []turnState{{function: "f", sinks: []string{"memcpy"}}} // no propagation recorded
	Reconcile(&v, turns, endState{vulnerabilityFound: true, raw: "no risk phrasing here"})

	assert.Equal(t, model.DecisionSuspected, v.Decision)
	require.Len(t, v.Reconciliations, 1)
	assert.Equal(t, "taint_flow_validity", v.Reconciliations[0].Rule)
}

func TestReconcile_SalvagesFindingsFromRawText(t *testing.T) {
	v := model.Vulnerability{
		Decision: model.DecisionYes,
		VD:       model.VD{File: "ta.c", Line: 5, SinkFunction: "memcpy", ContainingFunction: "f"},
	}
	turns := []turnState{{propagation: []string{"a <- b"}, sinks: []string{"memcpy"}}}
	Reconcile(&v, turns, endState{vulnerabilityFound: true, raw: "The buffer is copied without validation, an out-of-bounds write is possible."})

	assert.Equal(t, model.DecisionYes, v.Decision)
	require.NotEmpty(t, v.Findings)
	assert.True(t, v.Findings[0].Meta.Salvaged)
}

func TestReconcile_CryptoOnlyGuardDowngrades(t *testing.T) {
	v := model.Vulnerability{Decision: model.DecisionYes, VD: model.VD{SinkFunction: "TEE_CipherDoFinal"}}
	turns := []turnState{{propagation: []string{"a <- b"}, sinks: []string{"TEE_CipherDoFinal"}}}
	Reconcile(&v, turns, endState{})

	assert.Equal(t, model.DecisionNo, v.Decision)
	found := false
	for _, r := range v.Reconciliations {
		if r.Rule == "crypto_only_guard" {
			found = true
		}
	}
	assert.True(t, found)
}

func TestReconcile_UpgradesOnHighSeverityFindingWithCompletePath(t *testing.T) {
	v := model.Vulnerability{
		Decision: model.DecisionNo,
		Severity: model.SeverityLow,
		VD:       model.VD{SinkFunction: "memcpy"},
		Findings: []model.Finding{{RuleMatches: model.RuleMatches{RuleID: model.RuleUnencryptedOutput}}},
	}
	turns := []turnState{{propagation: []string{"a <- b"}, sinks: []string{"memcpy"}}}
	Reconcile(&v, turns, endState{})

	assert.Equal(t, model.DecisionYes, v.Decision)
	assert.Equal(t, model.SeverityHigh, v.Severity)
}

func TestValidateLine_CoercesImplausibleValue(t *testing.T) {
	vd := model.VD{File: "ta.c", Line: 99}
	file, line, coerced := validateLine("ta.c", -5, vd)
	assert.Equal(t, "ta.c", file)
	assert.Equal(t, 99, line)
	assert.True(t, coerced)
}

func TestValidateLine_AcceptsPlausiblePositiveLine(t *testing.T) {
	vd := model.VD{File: "ta.c", Line: 99}
	file, line, coerced := validateLine("other.c", 42, vd)
	assert.Equal(t, "other.c", file)
	assert.Equal(t, 42, line)
	assert.False(t, coerced)
}

func TestMergeGlobalFindings_EndWinsOverStart(t *testing.T) {
	start := model.Finding{ID: "a", File: "ta.c", Line: 10, Function: "f", SinkFunction: "memcpy", RuleMatches: model.RuleMatches{RuleID: model.RuleOther}, Phase: model.TurnStart}
	end := model.Finding{ID: "b", File: "ta.c", Line: 11, Function: "f", SinkFunction: "memcpy", RuleMatches: model.RuleMatches{RuleID: model.RuleOther}, Phase: model.TurnEnd}
	vulns := []model.Vulnerability{{Findings: []model.Finding{start, end}}}

	MergeGlobalFindings(vulns, 2)

	require.Len(t, vulns[0].Findings, 1)
	assert.Equal(t, "b", vulns[0].Findings[0].ID)
	assert.Equal(t, []string{"a"}, vulns[0].Findings[0].Refs)
}
