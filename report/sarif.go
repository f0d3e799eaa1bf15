// Package report implements the report renderer (P6): the mandatory
// self-contained HTML dossier and an optional SARIF export for CI systems
// that already consume it.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	sarif "github.com/owenrumney/go-sarif/v2/sarif"

	"github.com/ta-061/tee-flow-inspector/model"
)

// WriteSARIF renders every vulnerability whose decision isn't "no" as a
// SARIF 2.1.0 result, grouped into rules by primary rule ID. Grounded on
// the teacher's sast-engine/output/sarif_formatter.go: one run, rules built
// from the unique rule IDs seen, one result per detection with a code flow
// for the taint path.
func WriteSARIF(w io.Writer, taName string, artifact *model.VulnerabilitiesArtifact) error {
	log, err := sarif.New(sarif.Version210)
	if err != nil {
		return err
	}
	run := sarif.NewRunWithInformationURI("tee-flow-inspector", "https://github.com/ta-061/tee-flow-inspector")

	seenRules := map[model.RuleID]bool{}
	for _, v := range artifact.Vulnerabilities {
		if v.Decision == model.DecisionNo {
			continue
		}
		if !seenRules[v.Category] {
			seenRules[v.Category] = true
			addRule(run, v.Category)
		}
		addResult(run, taName, v)
	}

	log.AddRun(run)
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(log)
}

func addRule(run *sarif.Run, rule model.RuleID) {
	level := "warning"
	run.AddRule(string(rule)).
		WithDescription(ruleDescription(rule)).
		WithName(string(rule)).
		WithDefaultConfiguration(sarif.NewReportingConfiguration().WithLevel(level))
}

func ruleDescription(rule model.RuleID) string {
	switch rule {
	case model.RuleUnencryptedOutput:
		return "Sensitive or tainted data leaves the TA without encryption."
	case model.RuleWeakInputValidation:
		return "A tainted value reaches a sink without adequate validation."
	case model.RuleSharedMemoryOverwrite:
		return "A shared-memory write happens without validating tainted bounds."
	default:
		return "Other taint-analysis observation."
	}
}

func addResult(run *sarif.Run, taName string, v model.Vulnerability) {
	message := fmt.Sprintf("%s: %s reaches %s (%s, confidence %.0f%%)",
		taName, v.Chain.String(), v.VD.SinkFunction, v.Severity, v.Confidence*100)

	result := run.CreateResultForRule(string(v.Category)).WithMessage(sarif.NewTextMessage(message))

	region := sarif.NewRegion().WithStartLine(v.VD.Line)
	location := sarif.NewLocation().WithPhysicalLocation(
		sarif.NewPhysicalLocation().
			WithArtifactLocation(sarif.NewArtifactLocation().WithUri(v.VD.File)).
			WithRegion(region),
	)
	result.AddLocation(location)

	if len(v.Chain) >= 2 {
		addCodeFlow(result, v)
	}
}

func addCodeFlow(result *sarif.Result, v model.Vulnerability) {
	sourceLocation := sarif.NewLocation().
		WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(v.VD.File)),
		).
		WithMessage(sarif.NewTextMessage("taint source: " + v.Chain[0]))

	sinkLocation := sarif.NewLocation().
		WithPhysicalLocation(
			sarif.NewPhysicalLocation().
				WithArtifactLocation(sarif.NewArtifactLocation().WithUri(v.VD.File)).
				WithRegion(sarif.NewRegion().WithStartLine(v.VD.Line)),
		).
		WithMessage(sarif.NewTextMessage("taint sink: " + v.VD.SinkFunction))

	threadFlow := sarif.NewThreadFlow().WithLocations([]*sarif.ThreadFlowLocation{
		sarif.NewThreadFlowLocation().WithLocation(sourceLocation),
		sarif.NewThreadFlowLocation().WithLocation(sinkLocation),
	})
	codeFlow := sarif.NewCodeFlow().
		WithThreadFlows([]*sarif.ThreadFlow{threadFlow}).
		WithMessage(sarif.NewTextMessage("Taint flow: " + v.Chain.String()))

	result.WithCodeFlows([]*sarif.CodeFlow{codeFlow})
}
