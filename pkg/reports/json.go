package reports

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
)

// JSONGenerator renders the full stored report document for a run.
type JSONGenerator struct {
	store RunStore
}

// NewJSONGenerator creates a JSON generator over the given store.
func NewJSONGenerator(s RunStore) *JSONGenerator {
	return &JSONGenerator{store: s}
}

// Generate writes the run's report as indented JSON.
func (g *JSONGenerator) Generate(ctx context.Context, runID string) (io.Reader, error) {
	run, err := g.store.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load run %s: %w", runID, err)
	}

	buf := &bytes.Buffer{}
	if err := json.Indent(buf, run.Report, "", "  "); err != nil {
		return nil, fmt.Errorf("stored report for run %s is not valid JSON: %w", runID, err)
	}
	return buf, nil
}
