package report

import (
	"html/template"
	"io"

	"github.com/ta-061/tee-flow-inspector/model"
)

// Stats summarizes one TA's vulnerability set for the dossier header.
type Stats struct {
	Total      int
	Confirmed  int
	Suspected  int
	Safe       int
	BySeverity map[model.Severity]int
}

func computeStats(vulns []model.Vulnerability) Stats {
	s := Stats{Total: len(vulns), BySeverity: map[model.Severity]int{}}
	for _, v := range vulns {
		switch v.Decision {
		case model.DecisionYes:
			s.Confirmed++
			s.BySeverity[v.Severity]++
		case model.DecisionSuspected:
			s.Suspected++
		case model.DecisionNo:
			s.Safe++
		}
	}
	return s
}

// page is the template's root data value.
type page struct {
	TAName          string
	Stats           Stats
	Vulnerabilities []model.Vulnerability
	CacheStats      model.CacheStats
}

var templateFuncs = template.FuncMap{
	"severityClass": func(s model.Severity) string {
		switch s {
		case model.SeverityCritical:
			return "sev-critical"
		case model.SeverityHigh:
			return "sev-high"
		case model.SeverityMedium:
			return "sev-medium"
		default:
			return "sev-low"
		}
	},
	"decisionClass": func(d model.Decision) string {
		switch d {
		case model.DecisionYes:
			return "decision-yes"
		case model.DecisionSuspected:
			return "decision-suspected"
		default:
			return "decision-no"
		}
	},
}

var htmlTemplate = template.Must(template.New("report").Funcs(templateFuncs).Parse(htmlTemplateSource))

// WriteHTML renders the self-contained vulnerability dossier: aggregate
// stats, one collapsible section per flow with its findings and full
// conversation transcript, embedded CSS/JS so the file opens standalone
// (§6's "single self-contained file").
func WriteHTML(w io.Writer, taName string, artifact *model.VulnerabilitiesArtifact) error {
	data := page{
		TAName:          taName,
		Stats:           computeStats(artifact.Vulnerabilities),
		Vulnerabilities: artifact.Vulnerabilities,
		CacheStats:      artifact.CacheStats,
	}
	return htmlTemplate.Execute(w, data)
}

const htmlTemplateSource = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>tee-flow-inspector report: {{.TAName}}</title>
<style>
body { font-family: -apple-system, Segoe UI, sans-serif; margin: 2rem; background: #fafafa; color: #1a1a1a; }
h1 { margin-bottom: 0.2rem; }
.summary { display: flex; gap: 1.5rem; margin: 1rem 0 2rem; }
.summary div { background: #fff; border: 1px solid #ddd; border-radius: 6px; padding: 0.75rem 1.25rem; }
.flow { border: 1px solid #ddd; border-radius: 6px; margin-bottom: 1rem; background: #fff; }
.flow summary { cursor: pointer; padding: 0.75rem 1rem; font-weight: 600; }
.flow-body { padding: 0 1rem 1rem; }
.chain { font-family: ui-monospace, monospace; color: #444; }
.decision-yes { color: #b00020; }
.decision-suspected { color: #a56a00; }
.decision-no { color: #1a7f37; }
.sev-critical { background: #b00020; color: #fff; }
.sev-high { background: #d9534f; color: #fff; }
.sev-medium { background: #f0ad4e; color: #1a1a1a; }
.sev-low { background: #e5e5e5; color: #1a1a1a; }
.badge { display: inline-block; padding: 0.1rem 0.5rem; border-radius: 4px; font-size: 0.8rem; margin-left: 0.5rem; }
table.findings { width: 100%; border-collapse: collapse; margin-top: 0.5rem; }
table.findings th, table.findings td { text-align: left; border-bottom: 1px solid #eee; padding: 0.3rem 0.5rem; font-size: 0.9rem; }
.transcript { margin-top: 1rem; }
.turn { border-left: 3px solid #ccc; padding-left: 0.75rem; margin-bottom: 0.75rem; }
.turn pre { white-space: pre-wrap; background: #f4f4f4; padding: 0.5rem; border-radius: 4px; max-height: 16rem; overflow: auto; }
</style>
</head>
<body>
<h1>tee-flow-inspector</h1>
<p>Trusted Application: <strong>{{.TAName}}</strong></p>

<div class="summary">
  <div>Total flows<br><strong>{{.Stats.Total}}</strong></div>
  <div>Confirmed<br><strong>{{.Stats.Confirmed}}</strong></div>
  <div>Suspected<br><strong>{{.Stats.Suspected}}</strong></div>
  <div>Safe<br><strong>{{.Stats.Safe}}</strong></div>
  <div>Cache hits/misses<br><strong>{{.CacheStats.Hits}}/{{.CacheStats.Misses}}</strong></div>
</div>

{{range .Vulnerabilities}}
<details class="flow">
  <summary>
    <span class="{{decisionClass .Decision}}">{{.Decision}}</span>
    <span class="badge {{severityClass .Severity}}">{{.Severity}}</span>
    <span class="chain">{{.Chain.String}}</span>
  </summary>
  <div class="flow-body">
    <p>Sink: <code>{{.VD.SinkFunction}}</code> at <code>{{.VD.File}}:{{.VD.Line}}</code>, category {{.Category}}, confidence {{.Confidence}}</p>
    {{if .Incomplete}}<p><em>Incomplete: {{.IncompleteReason}}</em></p>{{end}}
    {{if .ResidualRisks}}
    <p>Residual risks:</p>
    <ul>{{range .ResidualRisks}}<li>{{.}}</li>{{end}}</ul>
    {{end}}
    {{if .Reconciliations}}
    <p>Reconciliation adjustments:</p>
    <ul>{{range .Reconciliations}}<li>{{.Rule}}: {{.From}} &rarr; {{.To}} ({{.Reason}})</li>{{end}}</ul>
    {{end}}
    {{if .Findings}}
    <table class="findings">
      <tr><th>File</th><th>Line</th><th>Function</th><th>Rule</th><th>Message</th></tr>
      {{range .Findings}}
      <tr><td>{{.File}}</td><td>{{.Line}}{{if .Meta.LineCoerced}} (coerced){{end}}</td><td>{{.Function}}</td><td>{{.RuleMatches.RuleID}}</td><td>{{.Message}}</td></tr>
      {{end}}
    </table>
    {{end}}
    {{if .ConversationTrace}}
    <div class="transcript">
      <p>Conversation transcript:</p>
      {{range .ConversationTrace}}
      <div class="turn">
        <strong>{{.Phase}} turn — {{.Function}}</strong>
        <pre>{{.Response}}</pre>
      </div>
      {{end}}
    </div>
    {{end}}
  </div>
</details>
{{else}}
<p>No candidate flows were analyzed.</p>
{{end}}

<script>
document.addEventListener("keydown", function(e) {
  if (e.key === "e") {
    document.querySelectorAll("details.flow").forEach(function(d) { d.open = true; });
  } else if (e.key === "c") {
    document.querySelectorAll("details.flow").forEach(function(d) { d.open = false; });
  }
});
</script>
</body>
</html>
`
