package taint

import (
	"regexp"
	"strings"

	"github.com/ta-061/tee-flow-inspector/model"
)

// cryptoOnlySinks are crypto-primitive APIs whose mere use is not itself a
// vulnerability (§4.5.4 rule 4).
var cryptoOnlySinks = map[string]bool{
	"TEE_CipherInit": true, "TEE_CipherUpdate": true, "TEE_CipherDoFinal": true,
	"TEE_AEInit": true, "TEE_AEUpdateAAD": true, "TEE_AEUpdate": true,
	"TEE_AEEncryptFinal": true, "TEE_AEDecryptFinal": true,
	"TEE_MACInit": true, "TEE_MACUpdate": true, "TEE_MACComputeFinal": true, "TEE_MACCompareFinal": true,
	"TEE_AsymmetricEncrypt": true, "TEE_AsymmetricDecrypt": true,
	"TEE_AsymmetricSignDigest": true, "TEE_AsymmetricVerifyDigest": true,
	"TEE_DeriveKey": true, "TEE_GenerateKey": true, "TEE_GenerateRandom": true,
	"TEE_DigestDoFinal": true, "TEE_DigestUpdate": true,
}

// salvagePatterns are the "loose structural risk" regexes the findings-
// existence rule falls back to when the model claimed a vulnerability but
// produced no structured findings (§4.5.4 rule 2, §4.6 salvage extraction).
var salvagePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bunencrypted\b[^.\n]*`),
	regexp.MustCompile(`(?i)\b(buffer |stack |heap )?overflow\b[^.\n]*`),
	regexp.MustCompile(`(?i)\b(missing|no|insufficient|lacks?)\s+(bounds|length|input)?\s*(check|valid)[^.\n]*`),
	regexp.MustCompile(`(?i)\bout[- ]of[- ]bounds\b[^.\n]*`),
	regexp.MustCompile(`(?i)\bwithout (validat|sanitiz|check)\w*[^.\n]*`),
}

// Reconcile applies §4.5.4's four consistency rules, in order, mutating v
// and appending a ReconciliationNote for each adjustment made. The first
// three rules trigger on the model's raw vulnerability_found verdict
// (end.vulnerabilityFound), not on v.Decision — the latter is the separate
// "decision" field from the same turn and may not agree with it.
func Reconcile(v *model.Vulnerability, turns []turnState, end endState) {
	ruleTaintFlowValidity(v, turns, end)
	ruleFindingsExistence(v, end)
	ruleUpgrade(v, turns, end)
	ruleCryptoOnlyGuard(v)
}

func note(v *model.Vulnerability, rule, reason string, from, to model.Decision) {
	if from == to {
		return // no adjustment, nothing to record
	}
	v.Reconciliations = append(v.Reconciliations, model.ReconciliationNote{
		Rule: rule, Reason: reason, From: from, To: to,
	})
	v.Decision = to
}

// ruleTaintFlowValidity: vulnerability_found=yes with no demonstrated
// source-to-sink propagation is downgraded to suspected.
func ruleTaintFlowValidity(v *model.Vulnerability, turns []turnState, end endState) {
	if !end.vulnerabilityFound {
		return
	}
	if hasCompletePath(turns) {
		return
	}
	note(v, "taint_flow_validity", "taint_flow_discontinuity", v.Decision, model.DecisionSuspected)
}

// ruleFindingsExistence: vulnerability_found=yes with zero findings triggers
// salvage extraction from the raw end-turn text; if nothing is recovered,
// downgrade.
func ruleFindingsExistence(v *model.Vulnerability, end endState) {
	if !end.vulnerabilityFound || len(v.Findings) > 0 {
		return
	}
	salvaged := salvageFindings(end.raw, v.VD)
	if len(salvaged) > 0 {
		v.Findings = append(v.Findings, salvaged...)
		return
	}
	note(v, "findings_existence", "no_findings_to_support_verdict", v.Decision, model.DecisionSuspected)
}

// ruleUpgrade: vulnerability_found=no is upgraded when findings already
// demonstrate a high-severity, complete-path rule match the model
// under-called.
func ruleUpgrade(v *model.Vulnerability, turns []turnState, end endState) {
	if end.vulnerabilityFound {
		return
	}
	if !hasCompletePath(turns) {
		return
	}
	for _, f := range v.Findings {
		if f.RuleMatches.RuleID != model.RuleOther {
			note(v, "upgrade", "high_severity_finding_with_complete_path", v.Decision, model.DecisionYes)
			if v.Severity == "" || v.Severity == model.SeverityLow {
				v.Severity = model.SeverityHigh
			}
			return
		}
	}
}

// ruleCryptoOnlyGuard: if the flow's sink function (its VD's sink) is a
// crypto primitive, a "yes"/"suspected" verdict is downgraded — calling a
// cipher API correctly isn't itself a vulnerability. The sink names the
// model recorded during earlier turns are not consulted.
func ruleCryptoOnlyGuard(v *model.Vulnerability) {
	if v.Decision == model.DecisionNo {
		return
	}
	if !cryptoOnlySinks[v.VD.SinkFunction] {
		return
	}
	from := v.Decision
	note(v, "crypto_only_guard", "crypto_only", from, model.DecisionNo)
}

// salvageFindings re-scans raw model output for loose structural risk
// phrasing when a claimed vulnerability produced no structured findings.
func salvageFindings(raw string, vd model.VD) []model.Finding {
	var out []model.Finding
	for _, line := range strings.Split(raw, "\n") {
		for _, pat := range salvagePatterns {
			if m := pat.FindString(line); m != "" {
				out = append(out, model.Finding{
					ID:           model.ComputeFindingID(vd.File, vd.ContainingFunction, model.RuleOther, vd.Line),
					Function:     vd.ContainingFunction,
					SinkFunction: vd.SinkFunction,
					RuleMatches:  model.RuleMatches{RuleID: model.RuleOther},
					Category:     model.RuleOther,
					File:         vd.File,
					Line:         vd.Line,
					Phase:        model.TurnEnd,
					Message:      strings.TrimSpace(m),
					Meta:         model.FindingMeta{Salvaged: true},
				})
				break
			}
		}
	}
	return out
}
