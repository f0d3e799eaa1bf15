package jsonrepair

import "strings"

// extractFencedBlocks returns the contents of every ```json ... ``` or
// ``` ... ``` fenced block in text, in order of appearance.
func extractFencedBlocks(text string) []string {
	var out []string
	remaining := text
	for {
		start := strings.Index(remaining, "```")
		if start == -1 {
			break
		}
		afterOpen := remaining[start+3:]
		// Skip an optional language tag on the opening fence line.
		if nl := strings.IndexByte(afterOpen, '\n'); nl != -1 {
			tag := strings.TrimSpace(afterOpen[:nl])
			if tag != "" && !strings.ContainsAny(tag, "{}\"") {
				afterOpen = afterOpen[nl+1:]
			}
		}
		end := strings.Index(afterOpen, "```")
		if end == -1 {
			break
		}
		out = append(out, strings.TrimSpace(afterOpen[:end]))
		remaining = afterOpen[end+3:]
	}
	return out
}

// braceScan finds every balanced {...} substring in text, accounting for
// nested braces and braces inside quoted strings, and returns each as a
// candidate, longest-first (a response that wraps the real object in prose
// usually has the real object as the outermost balanced span).
func braceScan(text string) []string {
	var out []string
	depth := 0
	start := -1
	inString := false
	escaped := false

	for i, r := range text {
		if inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '"':
			inString = true
		case '{':
			if depth == 0 {
				start = i
			}
			depth++
		case '}':
			if depth > 0 {
				depth--
				if depth == 0 && start != -1 {
					out = append(out, text[start:i+1])
					start = -1
				}
			}
		}
	}

	// Longest candidates are likeliest to be the complete object; shorter
	// ones are often nested fragments that happened to balance on their own.
	sortByLengthDesc(out)
	return out
}

func sortByLengthDesc(s []string) {
	for i := 1; i < len(s); i++ {
		for j := i; j > 0 && len(s[j-1]) < len(s[j]); j-- {
			s[j-1], s[j] = s[j], s[j-1]
		}
	}
}
