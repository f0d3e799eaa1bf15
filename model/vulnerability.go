package model

// Decision is the per-flow verdict produced at chain completion.
type Decision string

const (
	DecisionYes       Decision = "yes"
	DecisionNo        Decision = "no"
	DecisionSuspected Decision = "suspected"
)

// Severity ranks how dangerous a confirmed vulnerability is.
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// ConversationTurn is one exchange in a taint-analysis conversation, kept
// for the report's transcript view.
type ConversationTurn struct {
	Phase    TurnPhase `json:"phase"`
	Function string    `json:"function"`
	Prompt   string    `json:"prompt"`
	Response string    `json:"response"`
}

// ReconciliationNote records one consistency-rule adjustment made to a
// verdict after the end turn (§4.5.4).
type ReconciliationNote struct {
	Rule   string `json:"rule"`
	Reason string `json:"reason"`
	From   Decision `json:"from"`
	To     Decision `json:"to"`
}

// Vulnerability is the per-flow verdict: yes/no/suspected, with severity,
// category, supporting findings and the full conversation trace.
//
//nolint:tagliatelle
type Vulnerability struct {
	VD                VD                   `json:"vd"`
	Chain             Chain                `json:"chain"`
	Decision          Decision             `json:"decision"`
	Severity          Severity             `json:"severity"`
	Category          RuleID               `json:"category"`
	Confidence        float64              `json:"confidence"`
	Findings          []Finding            `json:"findings"`
	ConversationTrace []ConversationTurn   `json:"conversation_trace"`
	ResidualRisks     []string             `json:"residual_risks,omitempty"`
	Reconciliations   []ReconciliationNote `json:"reconciliations,omitempty"`
	Incomplete        bool                 `json:"incomplete,omitempty"`
	IncompleteReason  string               `json:"incomplete_reason,omitempty"`
}

// VulnerabilitiesArtifact is the JSON document written by the taint
// analyzer (P5).
type VulnerabilitiesArtifact struct {
	Vulnerabilities []Vulnerability `json:"vulnerabilities"`
	CacheStats      CacheStats      `json:"cache_stats"`
}

// CacheStats summarizes prefix-cache effectiveness for one TA run (§4.5.3).
type CacheStats struct {
	Hits    int `json:"hits"`
	Misses  int `json:"misses"`
	Entries int `json:"entries"`
}
