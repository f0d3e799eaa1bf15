package flowgen

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta-061/tee-flow-inspector/model"
)

const chainSource = `
#include <tee_internal_api.h>

#define DMSG(...) trace_printf(__VA_ARGS__)

static void forward_to_sink(void *buf, size_t len)
{
	TEE_MemMove(buf, buf, len);
}

static void validate_and_forward(void *buf, size_t len)
{
	forward_to_sink(buf, len);
}

TEE_Result TA_InvokeCommandEntryPoint(void *s, uint32_t c, uint32_t t, TEE_Param p[4])
{
	validate_and_forward(p[0].memref.buffer, p[0].memref.size);
	DMSG("done");
	return TEE_SUCCESS;
}
`

func writeChainSource(t *testing.T) *model.CompileDatabase {
	t.Helper()
	dir := t.TempDir()
	file := filepath.Join(dir, "ta_entry.c")
	require.NoError(t, os.WriteFile(file, []byte(chainSource), 0o644))
	return &model.CompileDatabase{Entries: []model.CompileEntry{{Directory: dir, File: file}}}
}

func TestBuildCallGraph_CapturesEdgesAndMacros(t *testing.T) {
	db := writeChainSource(t)
	graph, calls, macros := BuildCallGraph(db, nil)

	require.NotEmpty(t, calls)
	assert.NotEmpty(t, graph.CallersOf("forward_to_sink"))
	require.Len(t, macros, 1)
	assert.Equal(t, "DMSG", macros[0].Name)
}

func sinksForTEEMemMove() *model.SinksArtifact {
	return &model.SinksArtifact{Sinks: []model.Sink{
		{FunctionName: "TEE_MemMove", ParamIndex: 0, Method: model.SinkDecisionRule},
	}}
}

func TestDetectSinkCallSites_FindsDirectSinkCall(t *testing.T) {
	db := writeChainSource(t)
	_, calls, macros := BuildCallGraph(db, nil)
	vds := DetectSinkCallSites(calls, macros, sinksForTEEMemMove(), false)

	require.Len(t, vds, 1)
	assert.Equal(t, "TEE_MemMove", vds[0].SinkFunction)
	assert.Equal(t, "forward_to_sink", vds[0].ContainingFunction)
}

func TestDetectSinkCallSites_ExcludesDiagnosticMacroByDefault(t *testing.T) {
	db := writeChainSource(t)
	_, calls, macros := BuildCallGraph(db, nil)
	sinks := &model.SinksArtifact{Sinks: []model.Sink{
		{FunctionName: "trace_printf", ParamIndex: 0, Method: model.SinkDecisionRule},
	}}

	excluded := DetectSinkCallSites(calls, macros, sinks, false)
	assert.Empty(t, excluded)

	included := DetectSinkCallSites(calls, macros, sinks, true)
	require.Len(t, included, 1)
	assert.Equal(t, "DMSG", included[0].SinkFunction)
}

func TestTraverseBackward_ReachesEntryPoint(t *testing.T) {
	db := writeChainSource(t)
	graph, calls, macros := BuildCallGraph(db, nil)
	vds := DetectSinkCallSites(calls, macros, sinksForTEEMemMove(), false)
	require.Len(t, vds, 1)

	sources := map[string]bool{"TA_InvokeCommandEntryPoint": true}
	chains := TraverseBackward(graph, vds[0], sources, DefaultMaxDepth)
	require.Len(t, chains, 1)
	assert.Equal(t, model.Chain{
		"TA_InvokeCommandEntryPoint", "validate_and_forward", "forward_to_sink", "TEE_MemMove",
	}, chains[0])
}

func TestGenerate_EndToEnd(t *testing.T) {
	db := writeChainSource(t)
	artifact := Generate(db, sinksForTEEMemMove(), Options{}, nil)

	require.Len(t, artifact.Flows, 1)
	flow := artifact.Flows[0]
	assert.Equal(t, "TA_InvokeCommandEntryPoint", flow.SourceFunction)
	assert.Equal(t, []int{0}, flow.ParamIndices)
	assert.NotEmpty(t, artifact.CallEdge)
}

func TestOptimize_MergesParamIndicesAndDropsSubchains(t *testing.T) {
	vd := model.VD{File: "ta.c", Line: 10, SinkFunction: "sink", ContainingFunction: "mid"}
	flows := []model.CandidateFlow{
		{VD: vd, Chain: model.Chain{"entry", "mid", "sink"}, ParamIndices: []int{0}, SourceFunction: "entry"},
		{VD: vd, Chain: model.Chain{"entry", "mid", "sink"}, ParamIndices: []int{1}, SourceFunction: "entry"},
		{VD: vd, Chain: model.Chain{"mid", "sink"}, ParamIndices: []int{0}, SourceFunction: "entry"},
	}

	out := Optimize(flows)
	require.Len(t, out, 1)
	assert.Equal(t, []int{0, 1}, out[0].ParamIndices)
	assert.Equal(t, model.Chain{"entry", "mid", "sink"}, out[0].Chain)
}

func TestOptimize_MergesSameLineSinks(t *testing.T) {
	vd1 := model.VD{File: "ta.c", Line: 20, SinkFunction: "sinkA", ContainingFunction: "mid"}
	vd2 := model.VD{File: "ta.c", Line: 20, SinkFunction: "sinkB", ContainingFunction: "mid"}
	flows := []model.CandidateFlow{
		{VD: vd1, Chain: model.Chain{"entry", "mid", "sinkA"}, ParamIndices: []int{0}, SourceFunction: "entry"},
		{VD: vd2, Chain: model.Chain{"entry", "mid", "sinkB"}, ParamIndices: []int{1}, SourceFunction: "entry"},
	}
	// Two different sinks called on the same line through the same path
	// from the same source collapse into one flow.
	out := Optimize(flows)
	assert.Len(t, out, 1)
}
