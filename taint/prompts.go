package taint

import (
	"fmt"
	"strings"

	"github.com/ta-061/tee-flow-inspector/model"
)

// systemPrompt declares the model a deterministic taint analyst, fixes the
// trust-boundary policy, and pins the exact per-turn output shape (§4.5.1,
// §4.5.2). Sent once, as the conversation's first message.
const systemPrompt = `You are a deterministic taint analyst for OP-TEE Trusted Applications.

Trust boundary policy:
- Parameters arriving from the untrusted world (TA_InvokeCommandEntryPoint's
  params[], TA_OpenSessionEntryPoint's params[], anything read through a
  TEE_Param memref/value from the REE) are tainted sources.
- Allocations private to the TEE (TEE_Malloc'd buffers never touched by
  untrusted input, constants, literals) are untainted.
- Bytes produced by a cryptographically secure random generator
  (TEE_GenerateRandom and similar) are non-sensitive, even though they are
  technically "generated" data.
- Data labeled key, secret, passwd, token, credential, iv, nonce, seed, or
  session is sensitive regardless of its taint origin.

Rule IDs you may cite:
- unencrypted_output: sensitive or tainted data leaves the TA (shared
  memory, REE-visible buffer, log) without encryption.
- weak_input_validation: a tainted value reaches a sink without adequate
  bounds, length, or type checking.
- shared_memory_overwrite: a write through a shared-memory/REE-visible
  pointer happens without validating its bounds against the tainted length.
- other: any other concrete issue worth recording that doesn't fit above.

You must follow the exact output shape given in each turn's instructions.
Never explain your reasoning in prose outside the specified JSON. Be
deterministic: given the same function bodies and taint state, always
reach the same verdict.`

// BuildStartPrompt is turn 0: the source function's body plus the name of
// its tainted parameter.
func BuildStartPrompt(source model.Declaration, taintedParam string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Turn: start\nFunction: %s\nTainted parameter: %s\n\n", source.Name, taintedParam)
	b.WriteString("Function body:\n```c\n")
	b.WriteString(source.Body)
	b.WriteString("\n```\n\n")
	b.WriteString(startMiddleOutputShape)
	return b.String()
}

// BuildMiddlePrompt is turns 1..n-2: the intermediate function's body, the
// incoming taint state from the previous turn, and an optional RAG
// fragment when this turn is adjacent to the sink call.
func BuildMiddlePrompt(fn model.Declaration, incoming turnState, ragContext string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Turn: middle\nFunction: %s\n\n", fn.Name)
	b.WriteString("Incoming taint state from the previous function:\n")
	fmt.Fprintf(&b, "  propagation: %s\n", strings.Join(incoming.propagation, "; "))
	fmt.Fprintf(&b, "  sanitizers: %s\n", strings.Join(incoming.sanitizers, "; "))
	fmt.Fprintf(&b, "  sinks reached so far: %s\n\n", strings.Join(incoming.sinks, "; "))

	b.WriteString("Function body:\n```c\n")
	b.WriteString(fn.Body)
	b.WriteString("\n```\n\n")

	if ragContext != "" {
		b.WriteString("Reference documentation for the sink API this function calls:\n")
		b.WriteString(ragContext)
		b.WriteString("\n\n")
	}

	b.WriteString(startMiddleOutputShape)
	return b.String()
}

// BuildEndPrompt is the final turn: a request for the chain's verdict given
// everything accumulated so far.
func BuildEndPrompt(vd model.VD, accumulated []turnState) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Turn: end\nSink function: %s (argument index %d)\nSink call site: %s:%d\n\n",
		vd.SinkFunction, vd.ParamIndex, vd.File, vd.Line)

	b.WriteString("Accumulated taint state across the chain:\n")
	for _, t := range accumulated {
		fmt.Fprintf(&b, "- %s: propagation=[%s] sanitizers=[%s] sinks=[%s] rule=%s\n",
			t.function, strings.Join(t.propagation, "; "), strings.Join(t.sanitizers, "; "),
			strings.Join(t.sinks, "; "), t.ruleMatches.RuleID)
	}
	b.WriteString("\n")
	b.WriteString(endOutputShape)
	return b.String()
}

// correctionPrompt is appended to a retried turn when the previous response
// violated the two-line contract (§4.6's "intelligent retry").
func correctionPrompt(violation string) string {
	return fmt.Sprintf("Your previous response did not follow the required output shape (%s). "+
		"Respond again, following the shape exactly, with no extra commentary.", violation)
}

const startMiddleOutputShape = `Respond with exactly two lines, nothing else:
1. A JSON object: {"function": "...", "propagation": ["lhs <- rhs", ...], "sanitizers": [...], "sinks": [...], "evidence": [...], "rule_matches": {"rule_id": "...", "others": [...]}}
2. A line beginning "FINDINGS=" followed by {"items": [...]} where each item is {"file":"...","line":N,"function":"...","sink_function":"...","rule_id":"...","message":"..."}. Use {"items": []} if there is nothing to report yet.`

const endOutputShape = `Respond with exactly three lines, nothing else:
1. {"vulnerability_found": "yes"|"no"}
2. A JSON object: {"decision": "yes"|"no"|"suspected", "severity": "low"|"medium"|"high"|"critical", "confidence": 0.0-1.0, "category": "...", "residual_risks": [...], "evaluated_sink_lines": [N, ...]}
3. A line beginning "END_FINDINGS=" followed by {"items": [...]} in the same shape as earlier turns.`
