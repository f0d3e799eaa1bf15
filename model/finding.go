package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// TurnPhase identifies which conversation turn produced a Finding.
type TurnPhase string

const (
	TurnStart  TurnPhase = "start"
	TurnMiddle TurnPhase = "middle"
	TurnEnd    TurnPhase = "end"
)

// RuleID enumerates the four vulnerability categories the analyzer reasons
// about. "Other" is a catch-all for auxiliary observations that don't map
// to one of the three named bad-partitioning classes.
type RuleID string

const (
	RuleUnencryptedOutput    RuleID = "unencrypted_output"
	RuleWeakInputValidation  RuleID = "weak_input_validation"
	RuleSharedMemoryOverwrite RuleID = "shared_memory_overwrite"
	RuleOther                RuleID = "other"
)

// RuleMatches captures the primary rule a turn matched plus any auxiliary
// rule IDs, in the fixed order the model emitted them.
//
//nolint:tagliatelle
type RuleMatches struct {
	RuleID RuleID   `json:"rule_id"`
	Others []RuleID `json:"others,omitempty"`
}

// FindingMeta carries side-channel facts about how a Finding was produced,
// without polluting its primary fields.
type FindingMeta struct {
	LineCoerced bool `json:"line_coerced,omitempty"`
	Salvaged    bool `json:"salvaged,omitempty"`
}

// Finding is a single piece of evidence emitted during taint analysis.
//
//nolint:tagliatelle
type Finding struct {
	ID           string      `json:"id"`
	Chain        Chain       `json:"chain"`
	Function     string      `json:"function"`
	SinkFunction string      `json:"sink_function"`
	RuleMatches  RuleMatches `json:"rule_matches"`
	Category     RuleID      `json:"category"`
	File         string      `json:"file"`
	Line         int         `json:"line"`
	Phase        TurnPhase   `json:"phase"`
	Message      string      `json:"message"`
	Meta         FindingMeta `json:"meta,omitempty"`

	// Refs lists IDs of findings this one dominates after global merging
	// (§4.5.6). Empty until the merge step runs.
	Refs []string `json:"refs,omitempty"`
}

// lineBucket coarsens a line number so that findings whose model-cited line
// drifted by a line or two still collapse to the same ID. Width matches the
// merge window default of 2 lines (§4.5.6).
const lineBucketWidth = 2

func lineBucket(line int) int {
	if line <= 0 {
		return 0
	}
	return line / lineBucketWidth
}

// ComputeFindingID returns the stable 12-character hash used as a Finding's
// ID, derived from (file, function, primary rule ID, line bucket) so that
// near-duplicate findings across turns and runs collapse to the same
// identity (invariant 4, §8).
func ComputeFindingID(file, function string, primaryRule RuleID, line int) string {
	payload := fmt.Sprintf("%s|%s|%s|%d", file, function, primaryRule, lineBucket(line))
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:])[:12]
}
