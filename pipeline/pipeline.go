// Package pipeline orchestrates the six phases (build-DB provisioning,
// classification, sink identification, candidate-flow generation, taint
// analysis, report rendering) across one or more TA project directories and
// writes the persisted per-TA artifact layout.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ta-061/tee-flow-inspector/analytics"
	"github.com/ta-061/tee-flow-inspector/builddb"
	"github.com/ta-061/tee-flow-inspector/classify"
	"github.com/ta-061/tee-flow-inspector/config"
	"github.com/ta-061/tee-flow-inspector/flowgen"
	"github.com/ta-061/tee-flow-inspector/llmclient"
	"github.com/ta-061/tee-flow-inspector/model"
	"github.com/ta-061/tee-flow-inspector/output"
	"github.com/ta-061/tee-flow-inspector/ragstore"
	"github.com/ta-061/tee-flow-inspector/report"
	"github.com/ta-061/tee-flow-inspector/sinkid"
	"github.com/ta-061/tee-flow-inspector/taint"
)

// Options configures one invocation of the analyze command, shared across
// every project path it was given.
type Options struct {
	ProjectPaths       []string
	DevkitIncludeDir   string
	LLMOnly            bool
	RAG                bool
	IncludeDebugMacros bool
	SkipClean          bool
	SARIF              bool
	Logger             *output.Logger
	Config             *config.Config
	// Completer, if set, replaces the client built from Config — used by
	// tests to avoid a real network round trip.
	Completer llmclient.ChatCompleter
}

// PhaseTiming is one phase's wall-clock contribution to a TA's run.
type PhaseTiming struct {
	Phase    string        `json:"phase"`
	Duration time.Duration `json:"duration"`
}

// Summary is the supplemented structured run report (§ SUPPLEMENTED
// FEATURES "per-run correlation ID and structured run summary"), written
// as time.txt.
type Summary struct {
	RunID            string        `json:"run_id"`
	TA               string        `json:"ta"`
	Phases           []PhaseTiming `json:"phases"`
	LLMCalls         int           `json:"llm_calls"`
	CacheHits        int           `json:"cache_hits"`
	CacheMisses      int           `json:"cache_misses"`
	IncompleteFlows  int           `json:"incomplete_flows"`
	VulnerabilityCount int         `json:"vulnerability_count"`
}

// countingCompleter wraps a ChatCompleter to tally calls for Summary.LLMCalls
// without requiring every phase to report its own count.
type countingCompleter struct {
	inner llmclient.ChatCompleter
	calls int
}

func (c *countingCompleter) ChatCompletion(ctx context.Context, messages []llmclient.Message) (string, error) {
	c.calls++
	return c.inner.ChatCompletion(ctx, messages)
}

// Run analyzes every TA under opts.ProjectPaths in turn (§5: one TA at a
// time, sequential phases) and returns one Summary per TA. A TA-level
// failure is logged and skipped rather than aborting the remaining TAs.
func Run(ctx context.Context, opts Options) ([]Summary, error) {
	if opts.Config == nil {
		return nil, fmt.Errorf("pipeline: no LLM configuration provided")
	}
	logger := opts.Logger
	if logger == nil {
		logger = output.NewLogger(output.VerbosityDefault)
	}

	completer := opts.Completer
	if completer == nil {
		base := opts.Config.NewClient()
		limiter := llmclient.NewRateLimiter(llmclient.DefaultMinInterval)
		completer = &llmclient.RateLimited{
			Inner:   &llmclient.Retrying{Inner: base, Policy: llmclient.DefaultRetryPolicy()},
			Limiter: limiter,
		}
	}

	var store ragstore.VectorStore
	if opts.RAG && opts.Config.RAG.Enabled {
		s, err := ragstore.NewSQLiteStore(opts.Config.RAG.IndexPath, ragstore.DefaultEmbedder)
		if err != nil {
			return nil, fmt.Errorf("opening RAG index: %w", err)
		}
		store = s
	}

	var summaries []Summary
	for _, path := range opts.ProjectPaths {
		summary, err := runTA(ctx, path, opts, completer, store, logger)
		if err != nil {
			logger.Error("%s: %v", path, err)
			continue
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

func runTA(ctx context.Context, projectPath string, opts Options, completer llmclient.ChatCompleter, store ragstore.VectorStore, logger *output.Logger) (Summary, error) {
	taName := filepath.Base(filepath.Clean(projectPath))
	resultsDir := filepath.Join(projectPath, "ta", "results")
	if err := os.MkdirAll(resultsDir, 0o755); err != nil {
		return Summary{}, fmt.Errorf("creating results directory: %w", err)
	}

	summary := Summary{RunID: uuid.New().String(), TA: taName}
	counted := &countingCompleter{inner: completer}

	if !opts.SkipClean {
		// Runs before the log file below exists, so the fresh log itself
		// never becomes one of the "stale artifacts" it removes.
		cleanStart := time.Now()
		n, err := removeStaleArtifacts(resultsDir)
		if err != nil {
			logger.Warning("%s: cleaning stale artifacts: %v", taName, err)
		} else if n > 0 {
			logger.Progress("%s: removed %d stale artifact(s)", taName, n)
		}
		summary.Phases = append(summary.Phases, PhaseTiming{Phase: "clean", Duration: time.Since(cleanStart)})
	}

	logPath := filepath.Join(resultsDir, "taint_analysis_log.txt")
	logFile, err := os.Create(logPath)
	if err != nil {
		return Summary{}, fmt.Errorf("creating %s: %w", logPath, err)
	}
	defer logFile.Close()
	// Always verbose: this is the log's own file, not the operator's
	// terminal, so every phase's timing belongs in it regardless of the
	// run's interactive --verbose setting.
	timingLogger := output.NewLoggerWithWriter(output.VerbosityVerbose, logFile)

	var compileDB *model.CompileDatabase
	timed(timingLogger, "build-db", &summary, func() {
		db, err := builddb.Provision(builddb.Options{
			ProjectDir:       projectPath,
			DevkitIncludeDir: opts.DevkitIncludeDir,
		}, logger)
		compileDB = db
		_ = err // Provision never returns a non-nil error (§4.1)
	})
	if compileDB == nil {
		return Summary{}, fmt.Errorf("build-db provisioner produced no database")
	}

	var phase12 *model.Phase12Artifact
	timed(timingLogger, "classify", &summary, func() {
		p12, err := classify.Classify(compileDB, classify.Options{
			ProjectRoot:      filepath.Join(projectPath, "ta"),
			DevkitIncludeDir: opts.DevkitIncludeDir,
			TAIncludeDir:     filepath.Join(projectPath, "ta", "include"),
			TADir:            filepath.Join(projectPath, "ta"),
		}, logger)
		if err != nil {
			logger.Warning("%s: classify: %v", taName, err)
			p12 = &model.Phase12Artifact{}
		}
		phase12 = p12
	})
	if err := writeArtifact(resultsDir, taName+"_phase12.json", phase12); err != nil {
		return Summary{}, err
	}

	var sinkStoreForSinkID ragstore.VectorStore
	if opts.RAG {
		sinkStoreForSinkID = store
	}
	var sinks *model.SinksArtifact
	timed(timingLogger, "sinkid", &summary, func() {
		sinks = sinkid.Identify(ctx, phase12, counted, sinkid.Options{
			VectorStore: sinkStoreForSinkID,
			LLMOnly:     opts.LLMOnly,
		}, logger)
	})
	if err := writeArtifact(resultsDir, taName+"_sinks.json", sinks); err != nil {
		return Summary{}, err
	}

	var flows *model.CandidateFlowsArtifact
	timed(timingLogger, "flowgen", &summary, func() {
		flows = flowgen.Generate(compileDB, sinks, flowgen.Options{
			IncludeDebugMacros: opts.IncludeDebugMacros,
		}, logger)
	})
	if err := writeArtifact(resultsDir, taName+"_candidate_flows.json", flows); err != nil {
		return Summary{}, err
	}

	var vulnStoreForTaint ragstore.VectorStore
	if opts.RAG {
		vulnStoreForTaint = store
	}
	var vulns *model.VulnerabilitiesArtifact
	timed(timingLogger, "taint", &summary, func() {
		vulns = taint.Analyze(ctx, flows, phase12, counted, taint.Options{
			VectorStore: vulnStoreForTaint,
		}, logger)
	})
	if err := writeArtifact(resultsDir, taName+"_vulnerabilities.json", vulns); err != nil {
		return Summary{}, err
	}

	timed(timingLogger, "report", &summary, func() {
		if err := writeHTMLReport(resultsDir, taName, vulns); err != nil {
			logger.Error("%s: writing HTML report: %v", taName, err)
		}
		if opts.SARIF {
			if err := writeSARIFReport(resultsDir, taName, vulns); err != nil {
				logger.Error("%s: writing SARIF report: %v", taName, err)
			}
		}
	})

	summary.LLMCalls = counted.calls
	summary.CacheHits = vulns.CacheStats.Hits
	summary.CacheMisses = vulns.CacheStats.Misses
	summary.VulnerabilityCount = len(vulns.Vulnerabilities)
	for _, v := range vulns.Vulnerabilities {
		if v.Incomplete {
			summary.IncompleteFlows++
		}
	}

	if err := writeRunArtifacts(resultsDir, timingLogger, summary); err != nil {
		return Summary{}, err
	}
	return summary, nil
}

// timed times fn under name via logger's own StartTiming/GetTiming pair,
// reports phase-boundary analytics events, and records the result onto
// summary for time.txt.
func timed(logger *output.Logger, phase string, summary *Summary, fn func()) {
	analytics.ReportEventWithProperties(analytics.PhaseStarted, map[string]interface{}{"phase": phase})
	stop := logger.StartTiming(phase)
	fn()
	stop()
	duration := logger.GetTiming(phase)
	summary.Phases = append(summary.Phases, PhaseTiming{Phase: phase, Duration: duration})
	analytics.ReportEventWithProperties(analytics.PhaseCompleted, map[string]interface{}{
		"phase": phase, "duration_ms": duration.Milliseconds(),
	})
}

func writeArtifact(dir, name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", name, err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}

func writeHTMLReport(dir, taName string, vulns *model.VulnerabilitiesArtifact) error {
	f, err := os.Create(filepath.Join(dir, taName+"_vulnerability_report.html"))
	if err != nil {
		return err
	}
	defer f.Close()
	return report.WriteHTML(f, taName, vulns)
}

func writeSARIFReport(dir, taName string, vulns *model.VulnerabilitiesArtifact) error {
	f, err := os.Create(filepath.Join(dir, taName+"_vulnerabilities.sarif"))
	if err != nil {
		return err
	}
	defer f.Close()
	return report.WriteSARIF(f, taName, vulns)
}

// removeStaleArtifacts deletes a TA's previously persisted artifacts unless
// --skip-clean was passed, so a re-run never mixes outputs from a prior
// configuration (e.g. different --rag setting) with the current one.
func removeStaleArtifacts(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, err
	}
	removed := 0
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// writeRunArtifacts renders taint_analysis_log.txt (via timingLogger's own
// PrintTimingSummary, since the phases were timed through it) and time.txt
// (the structured Summary) per §6's persisted layout.
func writeRunArtifacts(dir string, timingLogger *output.Logger, summary Summary) error {
	w := timingLogger.GetWriter()
	fmt.Fprintf(w, "run %s: TA %s\n", summary.RunID, summary.TA)
	fmt.Fprintf(w, "llm_calls=%d cache_hits=%d cache_misses=%d incomplete_flows=%d vulnerabilities=%d\n",
		summary.LLMCalls, summary.CacheHits, summary.CacheMisses, summary.IncompleteFlows, summary.VulnerabilityCount)
	timingLogger.PrintTimingSummary()

	timePath := filepath.Join(dir, "time.txt")
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling run summary: %w", err)
	}
	if err := os.WriteFile(timePath, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", timePath, err)
	}
	return nil
}
