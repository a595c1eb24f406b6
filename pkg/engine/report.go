package engine

import (
	"sort"

	"github.com/depwarden/depwarden/pkg/graph"
	"github.com/depwarden/depwarden/pkg/policy"
)

// FindingKind labels what a finding is about.
type FindingKind string

const (
	FindingPass                  FindingKind = "pass"
	FindingLicenseDeny           FindingKind = "license_deny"
	FindingLicenseWarn           FindingKind = "license_warn"
	FindingUnlicensedDeny        FindingKind = "unlicensed_deny"
	FindingUnlicensedWarn        FindingKind = "unlicensed_warn"
	FindingClarificationMismatch FindingKind = "clarification_mismatch"
	FindingDuplicateVersion      FindingKind = "duplicate_version"
)

// Finding is one diagnostic in a report.
type Finding struct {
	Package graph.Package  `json:"package"`
	Kind    FindingKind    `json:"kind"`
	Verdict policy.Verdict `json:"verdict"`
	Reason  string         `json:"reason"`
}

// Report is the full outcome of one evaluation run. It is a plain
// value: producing it has no side effects beyond metrics.
type Report struct {
	// Verdict is the aggregate: the worst of all node license verdicts
	// and all duplicate-group verdicts.
	Verdict policy.Verdict `json:"verdict"`
	// Findings is ordered by package name, version, then kind.
	Findings []Finding `json:"findings"`
	// Excluded lists the "name@version" keys inside skip-tree closures,
	// sorted. These nodes were exempt from duplicate-version analysis
	// only; their license verdicts still appear in Findings.
	Excluded []string `json:"excluded,omitempty"`
	// DuplicateGroups carries the computed groups for display.
	DuplicateGroups []graph.DuplicateGroup `json:"duplicate_groups,omitempty"`

	PolicyDigest string `json:"policy_digest"`
	GraphDigest  string `json:"graph_digest"`
	NodeCount    int    `json:"node_count"`
}

// Violations returns the findings with Warn or Deny severity, in
// report order.
func (r *Report) Violations() []Finding {
	var out []Finding
	for _, f := range r.Findings {
		if f.Verdict != policy.VerdictPass {
			out = append(out, f)
		}
	}
	return out
}

// sortFindings fixes the report ordering so that two runs over the
// same inputs produce byte-identical reports.
func sortFindings(findings []Finding) {
	sort.Slice(findings, func(i, j int) bool {
		a, b := findings[i], findings[j]
		if a.Package.Name != b.Package.Name {
			return a.Package.Name < b.Package.Name
		}
		if a.Package.Version != b.Package.Version {
			return a.Package.Version < b.Package.Version
		}
		return a.Kind < b.Kind
	})
}
