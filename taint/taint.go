package taint

import (
	"context"

	"github.com/ta-061/tee-flow-inspector/jsonrepair"
	"github.com/ta-061/tee-flow-inspector/llmclient"
	"github.com/ta-061/tee-flow-inspector/model"
	"github.com/ta-061/tee-flow-inspector/output"
	"github.com/ta-061/tee-flow-inspector/ragstore"
)

// Options configures the taint analyzer.
type Options struct {
	// VectorStore, if non-nil, is queried for sink-API documentation on the
	// middle turn adjacent to the sink call (--rag flag).
	VectorStore ragstore.VectorStore
	// CacheEntries bounds the prefix cache (DefaultCacheEntries if zero).
	CacheEntries int
	// MergeWindow is the line-bucket width for global findings merging
	// (DefaultMergeWindow if zero).
	MergeWindow int
}

// sourceTaintedParam names the conventional tainted parameter for a known
// OP-TEE entry point. Every candidate flow starts at one of these, so this
// table — rather than per-flow metadata — is what §4.5.1's "name of its
// tainted parameter" draws on.
var sourceTaintedParam = map[string]string{
	"TA_InvokeCommandEntryPoint": "params",
	"TA_OpenSessionEntryPoint":   "params",
}

// Analyze runs §4.5 end to end: one bounded conversation per candidate
// flow, prefix-cached across flows, reconciled against the four
// consistency rules, then merged globally.
func Analyze(ctx context.Context, flows *model.CandidateFlowsArtifact, phase12 *model.Phase12Artifact, completer llmclient.ChatCompleter, opts Options, logger *output.Logger) *model.VulnerabilitiesArtifact {
	cache := newPrefixCache(opts.CacheEntries)

	if logger != nil {
		_ = logger.StartProgress("analyzing candidate flows", len(flows.Flows))
		defer func() { _ = logger.FinishProgress() }()
	}

	vulns := make([]model.Vulnerability, 0, len(flows.Flows))
	for _, flow := range flows.Flows {
		v := analyzeFlow(ctx, flow, phase12, completer, opts, cache, logger)
		vulns = append(vulns, v)
		if logger != nil {
			_ = logger.UpdateProgress(1)
		}
	}

	window := opts.MergeWindow
	if window <= 0 {
		window = DefaultMergeWindow
	}
	MergeGlobalFindings(vulns, window)

	return &model.VulnerabilitiesArtifact{
		Vulnerabilities: vulns,
		CacheStats:      cache.stats(),
	}
}

func analyzeFlow(ctx context.Context, flow model.CandidateFlow, phase12 *model.Phase12Artifact, completer llmclient.ChatCompleter, opts Options, cache *prefixCache, logger *output.Logger) model.Vulnerability {
	vd := flow.VD
	v := model.Vulnerability{VD: vd, Chain: flow.Chain, Decision: model.DecisionNo, Severity: model.SeverityLow, Category: model.RuleOther}

	if len(flow.Chain) < 2 {
		v.Incomplete = true
		v.IncompleteReason = "chain too short to analyze"
		return v
	}
	chainFns := flow.Chain[:len(flow.Chain)-1] // drop the trailing sink-function name
	taintedParam := sourceTaintedParam[chainFns[0]]
	if taintedParam == "" {
		taintedParam = "input"
	}

	messages := []llmclient.Message{{Role: "system", Content: systemPrompt}}
	turns := make([]turnState, 0, len(chainFns))

	for i, fnName := range chainFns {
		key := prefixKey(chainFns, i, taintedParam)
		if cached, ok := cache.get(key); ok {
			turns = cached.turns
			messages = cached.messages
			continue
		}

		decl, found := phase12.FindUserDefined(fnName)
		if !found {
			if logger != nil {
				logger.Warning("taint: %s: no body on record, analyzing with name only", fnName)
			}
			decl = model.Declaration{Name: fnName}
		}

		var phase model.TurnPhase
		var prompt string
		if i == 0 {
			phase = model.TurnStart
			prompt = BuildStartPrompt(decl, taintedParam)
		} else {
			phase = model.TurnMiddle
			prompt = BuildMiddlePrompt(decl, turns[len(turns)-1], sinkRAGContext(ctx, i, chainFns, vd, opts, logger))
		}

		response, err := callTurn(ctx, completer, &messages, prompt, fnName)
		if err != nil {
			v.Incomplete = true
			v.IncompleteReason = err.Error()
			return v
		}

		ts := parseStartMiddle(response, phase, fnName, vd)
		turns = append(turns, ts)
		cache.put(key, turns, messages)
	}

	endPrompt := BuildEndPrompt(vd, turns)
	endResponse, err := callTurn(ctx, completer, &messages, endPrompt, "end")
	if err != nil {
		v.Incomplete = true
		v.IncompleteReason = err.Error()
		return v
	}
	es := parseEnd(endResponse, vd)

	v.Decision = es.decision
	v.Severity = es.severity
	v.Category = es.category
	v.Confidence = es.confidence
	v.ResidualRisks = es.residualRisks
	v.Findings = allFindings(turns, es)
	v.ConversationTrace = buildTrace(messages)

	Reconcile(&v, turns, es)
	return v
}

// callTurn validates the two-line contract for a start/middle turn,
// issuing one intelligent correction retry on violation (§4.6), and always
// appends the final exchange to messages. Used for the end turn too, where
// the contract check is skipped (its shape differs and is forgiving via
// the same extraction cascade).
func callTurn(ctx context.Context, completer llmclient.ChatCompleter, messages *[]llmclient.Message, prompt, turnLabel string) (string, error) {
	*messages = append(*messages, llmclient.Message{Role: "user", Content: prompt})
	response, err := completer.ChatCompletion(ctx, *messages)
	if err != nil {
		return "", err
	}

	if turnLabel != "end" {
		if violation := jsonrepair.ValidateTwoLineContract(response, "function"); violation != jsonrepair.ViolationNone {
			*messages = append(*messages, llmclient.Message{Role: "assistant", Content: response})
			*messages = append(*messages, llmclient.Message{Role: "user", Content: correctionPrompt(string(violation))})
			retried, err := completer.ChatCompletion(ctx, *messages)
			if err == nil {
				response = retried
			}
		}
	}

	*messages = append(*messages, llmclient.Message{Role: "assistant", Content: response})
	return response, nil
}

func sinkRAGContext(ctx context.Context, i int, chainFns []string, vd model.VD, opts Options, logger *output.Logger) string {
	if opts.VectorStore == nil || i != len(chainFns)-1 {
		return ""
	}
	chunks, err := opts.VectorStore.SearchByAPI(ctx, vd.SinkFunction, 3)
	if err != nil {
		if logger != nil {
			logger.Debug("taint: RAG lookup for %s: %v", vd.SinkFunction, err)
		}
		return ""
	}
	out := ""
	for idx, c := range chunks {
		if idx > 0 {
			out += "\n---\n"
		}
		out += c.Text
	}
	return out
}

func allFindings(turns []turnState, end endState) []model.Finding {
	var out []model.Finding
	for _, t := range turns {
		out = append(out, t.findings...)
	}
	out = append(out, end.findings...)
	return out
}

func buildTrace(messages []llmclient.Message) []model.ConversationTurn {
	var trace []model.ConversationTurn
	var phase model.TurnPhase
	var pendingPrompt string
	for _, m := range messages {
		switch m.Role {
		case "user":
			pendingPrompt = m.Content
			phase = model.TurnMiddle
		case "assistant":
			trace = append(trace, model.ConversationTurn{Phase: phase, Prompt: pendingPrompt, Response: m.Content})
		}
	}
	if len(trace) > 0 {
		trace[0].Phase = model.TurnStart
		trace[len(trace)-1].Phase = model.TurnEnd
	}
	return trace
}
