package sinkid

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta-061/tee-flow-inspector/llmclient"
	"github.com/ta-061/tee-flow-inspector/model"
)

type fakeCompleter struct {
	responses map[string]string
	calls     []string
}

func (f *fakeCompleter) ChatCompletion(ctx context.Context, messages []llmclient.Message) (string, error) {
	for _, m := range messages {
		for fn, resp := range f.responses {
			if contains(m.Content, fn) {
				f.calls = append(f.calls, fn)
				return resp, nil
			}
		}
	}
	return "none", nil
}

func contains(haystack, needle string) bool {
	return len(haystack) >= len(needle) && indexOf(haystack, needle) >= 0
}

func indexOf(haystack, needle string) int {
	for i := 0; i+len(needle) <= len(haystack); i++ {
		if haystack[i:i+len(needle)] == needle {
			return i
		}
	}
	return -1
}

func TestCandidateFunctions_IntersectsCalledAndExternal(t *testing.T) {
	artifact := &model.Phase12Artifact{
		UserDefinedFunctions: []model.Declaration{
			{Name: "handle", Body: "write_output(buf); unused_call(); TA_InvokeCommandEntryPoint();"},
		},
		ExternalDeclarations: []model.Declaration{
			{Name: "write_output", Kind: model.DeclFunction},
			{Name: "TA_InvokeCommandEntryPoint", Kind: model.DeclFunction},
		},
	}
	candidates := CandidateFunctions(artifact)
	assert.Contains(t, candidates, "write_output")
	assert.NotContains(t, candidates, "unused_call")
	assert.NotContains(t, candidates, "TA_InvokeCommandEntryPoint")
}

func TestParseResponse_TolerantOfReorderingAndWhitespace(t *testing.T) {
	resp := "param_index: 1 ,   function:write_output,reason:   shared memory write\n"
	sinks := ParseResponse("write_output", resp)
	require.Len(t, sinks, 1)
	assert.Equal(t, 1, sinks[0].ParamIndex)
	assert.Equal(t, "shared memory write", sinks[0].Reason)
}

func TestParseResponse_NoneProducesNoSinks(t *testing.T) {
	sinks := ParseResponse("write_output", "none")
	assert.Empty(t, sinks)
}

func TestIdentify_RuleBasedShortCircuitSkipsLLM(t *testing.T) {
	artifact := &model.Phase12Artifact{
		UserDefinedFunctions: []model.Declaration{{Name: "h", Body: "TEE_MemMove(dst, src, n);"}},
		ExternalDeclarations: []model.Declaration{{Name: "TEE_MemMove", Kind: model.DeclFunction}},
	}
	fake := &fakeCompleter{responses: map[string]string{}}
	result := Identify(context.Background(), artifact, fake, Options{}, nil)

	require.Len(t, result.Sinks, 1)
	assert.Equal(t, model.SinkDecisionRule, result.Sinks[0].Method)
	assert.Empty(t, fake.calls)
}

func TestIdentify_LLMPathDedupesByFunctionAndParam(t *testing.T) {
	artifact := &model.Phase12Artifact{
		UserDefinedFunctions: []model.Declaration{{Name: "h", Body: "write_output(buf, len);"}},
		ExternalDeclarations: []model.Declaration{{Name: "write_output", Kind: model.DeclFunction}},
	}
	fake := &fakeCompleter{responses: map[string]string{
		"write_output": "function: write_output; param_index: 0; reason: untrusted world write\n" +
			"function: write_output; param_index: 0; reason: length taken from caller",
	}}
	result := Identify(context.Background(), artifact, fake, Options{}, nil)

	require.Len(t, result.Sinks, 1)
	assert.Equal(t, "write_output", result.Sinks[0].FunctionName)
	assert.Equal(t, model.SinkDecisionLLM, result.Sinks[0].Method)
	assert.Empty(t, result.Skipped)
}

func TestIdentify_LLMFailureSkipsFunctionWithoutMarkingSafe(t *testing.T) {
	artifact := &model.Phase12Artifact{
		UserDefinedFunctions: []model.Declaration{{Name: "h", Body: "write_output(buf, len);"}},
		ExternalDeclarations: []model.Declaration{{Name: "write_output", Kind: model.DeclFunction}},
	}
	failing := failingCompleter{}
	result := Identify(context.Background(), artifact, failing, Options{}, nil)

	assert.Empty(t, result.Sinks)
	assert.Equal(t, []string{"write_output"}, result.Skipped)
}

type failingCompleter struct{}

func (failingCompleter) ChatCompletion(ctx context.Context, messages []llmclient.Message) (string, error) {
	return "", assertErr{}
}

type assertErr struct{}

func (assertErr) Error() string { return "simulated LLM failure" }
