package store

import (
	"encoding/json"
	"time"
)

// Run is one persisted evaluation run.
type Run struct {
	RunID        string          `json:"run_id"`
	Ts           time.Time       `json:"ts"`
	Verdict      string          `json:"verdict"`
	PolicyDigest string          `json:"policy_digest"`
	GraphDigest  string          `json:"graph_digest"`
	NodeCount    int             `json:"node_count"`
	FindingCount int             `json:"finding_count"`
	// Report is the full report JSON as produced by the engine.
	Report json.RawMessage `json:"report,omitempty"`
}

// FindingRow is one finding flattened for querying. The authoritative
// report lives in Run.Report; these rows exist for filtering and the
// report generators.
type FindingRow struct {
	RunID   string `json:"run_id"`
	Name    string `json:"name"`
	Version string `json:"version"`
	Kind    string `json:"kind"`
	Verdict string `json:"verdict"`
	Reason  string `json:"reason"`
}

// RunFilter selects runs for listing.
type RunFilter struct {
	Limit   int
	Verdict string // empty matches all
}
