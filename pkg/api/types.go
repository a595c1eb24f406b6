package api

import (
	"encoding/json"

	"github.com/depwarden/depwarden/pkg/engine"
	"github.com/depwarden/depwarden/pkg/store"
)

// CheckRequest is the body of POST /v1/check: the parsed policy
// document and the resolved dependency graph, both as raw JSON.
type CheckRequest struct {
	Policy json.RawMessage `json:"policy"`
	Graph  json.RawMessage `json:"graph"`
}

// CheckResponse returns the run identity and the full report.
type CheckResponse struct {
	RunID  string         `json:"run_id"`
	Cached bool           `json:"cached"`
	Report *engine.Report `json:"report"`
}

// RunsResponse lists stored runs, newest first.
type RunsResponse struct {
	Runs []*store.Run `json:"runs"`
}

// ErrorResponse is the uniform error body.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the healthz body.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}
