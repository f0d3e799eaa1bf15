package sinkid

import (
	"fmt"
	"strings"
)

// BuildPrompt asks the model to enumerate dangerous parameter positions of
// one external function, optionally grounded by a RAG-retrieved
// specification fragment (§4.3). The response format is deliberately loose
// prose the lenient regex in parse.go tolerates — forcing strict JSON here
// buys nothing when the information content is just a handful of
// (index, reason) pairs.
func BuildPrompt(functionName string, ragContext string) string {
	var b strings.Builder
	b.WriteString("You are reviewing the OP-TEE Trusted Execution Environment Internal Core API ")
	b.WriteString("for taint-sink candidates.\n\n")
	fmt.Fprintf(&b, "Function under review: %s\n\n", functionName)

	if ragContext != "" {
		b.WriteString("Reference documentation:\n")
		b.WriteString(ragContext)
		b.WriteString("\n\n")
	}

	b.WriteString("For each parameter position that could let tainted or unencrypted data reach ")
	b.WriteString("the untrusted world, a shared-memory buffer, or bypass input validation, reply ")
	b.WriteString("with one line of the form:\n")
	b.WriteString("function: " + functionName + "; param_index: <n>; reason: <short reason>\n\n")
	b.WriteString("If no parameter position is dangerous, reply with exactly: none\n")
	return b.String()
}
