package taint

import (
	"fmt"
	"sort"

	"github.com/ta-061/tee-flow-inspector/model"
)

// DefaultMergeWindow is the default line-bucket width for global findings
// merging (§4.5.6).
const DefaultMergeWindow = 2

type ownedFinding struct {
	vulnIdx int
	finding model.Finding
}

// MergeGlobalFindings implements §4.5.6: after every flow has a verdict,
// findings across the whole run are grouped by (file, line/window bucket,
// function, sink_function, primary rule); two findings whose lines are
// within window of each other but fall in different buckets (lines 11 and
// 12 with window 2) are not merged. The end-phase finding in each
// group wins over middle, which wins over start, and dominated findings'
// IDs accumulate into the survivor's Refs. Vulnerabilities are mutated in
// place; dominated findings are removed from wherever they originally sat.
func MergeGlobalFindings(vulns []model.Vulnerability, window int) {
	if window <= 0 {
		window = DefaultMergeWindow
	}

	var owned []ownedFinding
	for vi := range vulns {
		for _, f := range vulns[vi].Findings {
			owned = append(owned, ownedFinding{vulnIdx: vi, finding: f})
		}
	}
	if len(owned) == 0 {
		return
	}

	groups := map[string][]int{}
	for i, o := range owned {
		key := mergeKey(o.finding, window)
		groups[key] = append(groups[key], i)
	}

	keep := make([]bool, len(owned))
	for _, indices := range groups {
		winner := indices[0]
		for _, i := range indices[1:] {
			if phaseRank(owned[i].finding.Phase) > phaseRank(owned[winner].finding.Phase) {
				winner = i
			}
		}
		keep[winner] = true
		var refs []string
		for _, i := range indices {
			if i != winner {
				refs = append(refs, owned[i].finding.ID)
			}
		}
		sort.Strings(refs)
		owned[winner].finding.Refs = refs
	}

	perVuln := map[int][]model.Finding{}
	for i, o := range owned {
		if keep[i] {
			perVuln[o.vulnIdx] = append(perVuln[o.vulnIdx], o.finding)
		}
	}
	for vi := range vulns {
		findings := perVuln[vi]
		sort.Slice(findings, func(a, b int) bool {
			if findings[a].File != findings[b].File {
				return findings[a].File < findings[b].File
			}
			return findings[a].Line < findings[b].Line
		})
		vulns[vi].Findings = findings
	}
}

func mergeKey(f model.Finding, window int) string {
	return fmt.Sprintf("%s|%d|%s|%s|%s", f.File, f.Line/window, f.Function, f.SinkFunction, f.RuleMatches.RuleID)
}

func phaseRank(p model.TurnPhase) int {
	switch p {
	case model.TurnEnd:
		return 3
	case model.TurnMiddle:
		return 2
	case model.TurnStart:
		return 1
	default:
		return 0
	}
}
