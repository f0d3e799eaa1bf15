package jsonrepair

import "strings"

// ContractViolation describes why a start/middle turn response failed the
// two-line shape check.
type ContractViolation string

const (
	ViolationNone           ContractViolation = ""
	ViolationMissingFirstLine ContractViolation = "missing_first_line_json"
	ViolationMissingSecondLine ContractViolation = "missing_findings_line"
	ViolationBadPrefix      ContractViolation = "second_line_missing_findings_prefix"
)

// ValidateTwoLineContract checks that a start/middle turn response has the
// documented two-line shape: the first line parses as JSON and contains
// requiredKeys, the second begins with "FINDINGS=". A violation here
// triggers the intelligent retry the taint analyzer issues with a
// correction prompt, rather than falling through to the repair cascade.
func ValidateTwoLineContract(response string, requiredKeys ...string) ContractViolation {
	lines := strings.SplitN(strings.TrimLeft(response, "\r\n"), "\n", 2)
	if len(lines) == 0 || strings.TrimSpace(lines[0]) == "" {
		return ViolationMissingFirstLine
	}

	first, ok := tryParse(lines[0])
	if !ok {
		return ViolationMissingFirstLine
	}
	for _, key := range requiredKeys {
		if !hasSentinel(first, key) {
			return ViolationMissingFirstLine
		}
	}

	if len(lines) < 2 || strings.TrimSpace(lines[1]) == "" {
		return ViolationMissingSecondLine
	}
	if !strings.HasPrefix(strings.TrimSpace(lines[1]), "FINDINGS=") {
		return ViolationBadPrefix
	}
	return ViolationNone
}
