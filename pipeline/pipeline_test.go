package pipeline

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ta-061/tee-flow-inspector/config"
	"github.com/ta-061/tee-flow-inspector/llmclient"
	"github.com/ta-061/tee-flow-inspector/model"
)

// neverCalledCompleter fails the test if the pipeline ever reaches an LLM
// call, which an empty TA (no .c files, no sinks) should never do.
type neverCalledCompleter struct{ t *testing.T }

func (c neverCalledCompleter) ChatCompletion(context.Context, []llmclient.Message) (string, error) {
	c.t.Fatal("LLM should not be called for a TA with no source files")
	return "", nil
}

// TestRun_EmptyTA_CompletesWithEmptyArtifacts pins §8's "Empty TA" boundary
// behavior: the pipeline must complete, write (empty) artifacts, and never
// crash or touch the network.
func TestRun_EmptyTA_CompletesWithEmptyArtifacts(t *testing.T) {
	projectDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(projectDir, "ta"), 0o755))

	summaries, err := Run(context.Background(), Options{
		ProjectPaths: []string{projectDir},
		Config:       &config.Config{LLM: config.LLMConfig{Provider: "ollama", Model: "x", BaseURL: "http://localhost"}},
		Completer:    neverCalledCompleter{t: t},
	})
	require.NoError(t, err)
	require.Len(t, summaries, 1)

	summary := summaries[0]
	assert.Equal(t, filepath.Base(projectDir), summary.TA)
	assert.Zero(t, summary.LLMCalls)
	assert.Zero(t, summary.VulnerabilityCount)

	resultsDir := filepath.Join(projectDir, "ta", "results")
	taName := filepath.Base(projectDir)

	var phase12 model.Phase12Artifact
	readJSON(t, filepath.Join(resultsDir, taName+"_phase12.json"), &phase12)
	assert.Empty(t, phase12.UserDefinedFunctions)

	var sinks model.SinksArtifact
	readJSON(t, filepath.Join(resultsDir, taName+"_sinks.json"), &sinks)
	assert.Empty(t, sinks.Sinks)

	var flows model.CandidateFlowsArtifact
	readJSON(t, filepath.Join(resultsDir, taName+"_candidate_flows.json"), &flows)
	assert.Empty(t, flows.Flows)

	var vulns model.VulnerabilitiesArtifact
	readJSON(t, filepath.Join(resultsDir, taName+"_vulnerabilities.json"), &vulns)
	assert.Empty(t, vulns.Vulnerabilities)

	assert.FileExists(t, filepath.Join(resultsDir, taName+"_vulnerability_report.html"))
	assert.FileExists(t, filepath.Join(resultsDir, "taint_analysis_log.txt"))
	assert.FileExists(t, filepath.Join(resultsDir, "time.txt"))
}

// TestRun_UnknownProjectPath_IsSkippedNotFatal ensures a bad path among
// several doesn't abort the whole run (§7: TA-level failures are contained).
func TestRun_UnknownProjectPath_IsSkippedNotFatal(t *testing.T) {
	good := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(good, "ta"), 0o755))

	// bad is a plain file, not a directory, so MkdirAll(bad/ta/results)
	// fails and runTA must skip it rather than aborting the whole run.
	badParent := t.TempDir()
	bad := filepath.Join(badParent, "not-a-dir")
	require.NoError(t, os.WriteFile(bad, []byte("x"), 0o644))

	summaries, err := Run(context.Background(), Options{
		ProjectPaths: []string{bad, good},
		Config:       &config.Config{LLM: config.LLMConfig{Provider: "ollama", Model: "x", BaseURL: "http://localhost"}},
		Completer:    neverCalledCompleter{t: t},
	})
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, filepath.Base(good), summaries[0].TA)
}

func readJSON(t *testing.T, path string, v any) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}
