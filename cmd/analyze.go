package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ta-061/tee-flow-inspector/analytics"
	"github.com/ta-061/tee-flow-inspector/config"
	"github.com/ta-061/tee-flow-inspector/output"
	"github.com/ta-061/tee-flow-inspector/pipeline"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Run the taint-analysis pipeline against one or more OP-TEE TA projects",
	Long: `analyze builds a compile database, classifies functions, identifies taint
sinks, generates candidate flows from entry point to sink, and drives an LLM
taint conversation over each flow, writing a per-TA HTML (and optionally
SARIF) report.

Examples:
  # Analyze a single TA project
  teeflow analyze -p /path/to/ta_project

  # Analyze several projects in one run, with retrieval-augmented prompts
  teeflow analyze -p ./ta_one -p ./ta_two --rag

  # Ask the LLM about every sink candidate, bypassing the built-in sink table
  teeflow analyze -p ./ta_project --llm-only`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		projectPaths, _ := cmd.Flags().GetStringArray("project")
		devkitDir, _ := cmd.Flags().GetString("devkit")
		llmOnly, _ := cmd.Flags().GetBool("llm-only")
		rag, _ := cmd.Flags().GetBool("rag")
		includeDebugMacros, _ := cmd.Flags().GetBool("include-debug-macros")
		skipClean, _ := cmd.Flags().GetBool("skip-clean")
		sarif, _ := cmd.Flags().GetBool("sarif")
		verbose, _ := cmd.Flags().GetBool("verbose")

		if len(projectPaths) == 0 {
			return fmt.Errorf("at least one -p/--project is required")
		}

		verbosity := output.VerbosityDefault
		if verbose {
			verbosity = output.VerbosityVerbose
		}
		logger := output.NewLogger(verbosity)

		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("loading LLM configuration: %w", err)
		}
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid LLM configuration (run `teeflow configure`): %w", err)
		}

		analytics.ReportEventWithProperties(analytics.AnalyzeStarted, map[string]interface{}{
			"project_count": len(projectPaths),
			"rag":           rag,
			"llm_only":      llmOnly,
		})
		start := time.Now()

		summaries, err := pipeline.Run(cmd.Context(), pipeline.Options{
			ProjectPaths:       projectPaths,
			DevkitIncludeDir:   devkitDir,
			LLMOnly:            llmOnly,
			RAG:                rag,
			IncludeDebugMacros: includeDebugMacros,
			SkipClean:          skipClean,
			SARIF:              sarif,
			Logger:             logger,
			Config:             cfg,
		})
		if err != nil {
			analytics.ReportEventWithProperties(analytics.AnalyzeFailed, map[string]interface{}{
				"error_type": "pipeline",
			})
			return fmt.Errorf("running analysis: %w", err)
		}

		totalVulns := 0
		for _, s := range summaries {
			totalVulns += s.VulnerabilityCount
			logger.Progress("%s: %d vulnerabilities, %d LLM calls, %d/%d cache hits/misses",
				s.TA, s.VulnerabilityCount, s.LLMCalls, s.CacheHits, s.CacheMisses)
		}
		analytics.ReportEventWithProperties(analytics.AnalyzeCompleted, map[string]interface{}{
			"project_count":     len(projectPaths),
			"vulnerability_sum": totalVulns,
			"duration_seconds":  time.Since(start).Seconds(),
		})

		fmt.Printf("Analyzed %d project(s) in %s; %d vulnerabilities found.\n",
			len(summaries), time.Since(start).Round(time.Second), totalVulns)
		return nil
	},
}

func init() {
	analyzeCmd.Flags().StringArrayP("project", "p", nil, "Path to a TA project directory (repeatable)")
	analyzeCmd.Flags().String("devkit", "", "Path to the OP-TEE dev-kit include directory")
	analyzeCmd.Flags().Bool("llm-only", false, "Send every sink candidate to the LLM instead of answering well-known APIs from the built-in sink table")
	analyzeCmd.Flags().Bool("rag", false, "Ground sink identification and taint analysis with retrieval over TEE API documents")
	analyzeCmd.Flags().Bool("include-debug-macros", false, "Include call sites reached only via diagnostic/trace macros")
	analyzeCmd.Flags().Bool("skip-clean", false, "Do not remove a TA's previous results before running")
	analyzeCmd.Flags().Bool("sarif", false, "Also emit a SARIF report alongside the HTML dossier")

	rootCmd.AddCommand(analyzeCmd)
}
