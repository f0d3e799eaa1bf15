// Package sinkid implements the sink identifier (P3): for every external
// function a user-defined function actually calls, ask the LLM which
// parameter positions are taint sinks, short-circuiting a small table of
// well-known dangerous APIs to save the call.
package sinkid

import (
	"context"
	"sort"

	"github.com/ta-061/tee-flow-inspector/llmclient"
	"github.com/ta-061/tee-flow-inspector/model"
	"github.com/ta-061/tee-flow-inspector/output"
	"github.com/ta-061/tee-flow-inspector/ragstore"
)

// Options configures sink identification.
type Options struct {
	// VectorStore, if non-nil, is queried for a RAG context fragment per
	// candidate function (--rag flag).
	VectorStore ragstore.VectorStore
	// LLMOnly disables the rule-based short-circuit table, forcing every
	// candidate through the model (--llm-only flag).
	LLMOnly bool
}

// Identify runs §4.3 end to end: candidate reduction, then one LLM
// interrogation per candidate (unless a rule-based short-circuit applies),
// deduplicated by (function_name, param_index).
func Identify(ctx context.Context, artifact *model.Phase12Artifact, completer llmclient.ChatCompleter, opts Options, logger *output.Logger) *model.SinksArtifact {
	candidates := CandidateFunctions(artifact)
	sort.Strings(candidates) // deterministic iteration for idempotent output

	dedup := map[string]model.Sink{}
	var skipped []string

	for _, name := range candidates {
		if !opts.LLMOnly {
			if ruleSinks, ok := ruleBasedMatch(name); ok {
				mergeSinks(dedup, ruleSinks)
				continue
			}
		}

		sinks, err := identifyOne(ctx, name, completer, opts, logger)
		if err != nil {
			if logger != nil {
				logger.Warning("sinkid: %s: %v", name, err)
			}
			skipped = append(skipped, name)
			continue
		}
		mergeSinks(dedup, sinks)
	}

	out := make([]model.Sink, 0, len(dedup))
	for _, s := range dedup {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FunctionName != out[j].FunctionName {
			return out[i].FunctionName < out[j].FunctionName
		}
		return out[i].ParamIndex < out[j].ParamIndex
	})
	sort.Strings(skipped)

	return &model.SinksArtifact{Sinks: out, Skipped: skipped}
}

func identifyOne(ctx context.Context, name string, completer llmclient.ChatCompleter, opts Options, logger *output.Logger) ([]model.Sink, error) {
	ragContext := ""
	if opts.VectorStore != nil {
		chunks, err := opts.VectorStore.SearchByAPI(ctx, name, 3)
		if err != nil && logger != nil {
			logger.Debug("sinkid: RAG lookup for %s: %v", name, err)
		}
		for i, c := range chunks {
			if i > 0 {
				ragContext += "\n---\n"
			}
			ragContext += c.Text
		}
	}

	prompt := BuildPrompt(name, ragContext)
	response, err := completer.ChatCompletion(ctx, []llmclient.Message{
		{Role: "user", Content: prompt},
	})
	if err != nil {
		return nil, err
	}
	return ParseResponse(name, response), nil
}

// mergeSinks folds newSinks into dedup, concatenating reasons on a
// (function_name, param_index) collision per §4.3's dedup rule.
func mergeSinks(dedup map[string]model.Sink, newSinks []model.Sink) {
	for _, s := range newSinks {
		key := s.Key()
		existing, ok := dedup[key]
		if !ok {
			dedup[key] = s
			continue
		}
		if existing.Reason != "" && s.Reason != "" && existing.Reason != s.Reason {
			existing.Reason += "; " + s.Reason
		} else if existing.Reason == "" {
			existing.Reason = s.Reason
		}
		dedup[key] = existing
	}
}
