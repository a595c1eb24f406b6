package reports

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
)

// CSVGenerator renders a run's findings as CSV, one row per finding.
type CSVGenerator struct {
	store RunStore
}

// NewCSVGenerator creates a CSV generator over the given store.
func NewCSVGenerator(s RunStore) *CSVGenerator {
	return &CSVGenerator{store: s}
}

// Generate writes the findings of the run as CSV.
func (g *CSVGenerator) Generate(ctx context.Context, runID string) (io.Reader, error) {
	findings, err := g.store.QueryFindings(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load findings for run %s: %w", runID, err)
	}

	buf := &bytes.Buffer{}
	writer := csv.NewWriter(buf)

	headers := []string{"package", "version", "kind", "verdict", "reason"}
	if err := writer.Write(headers); err != nil {
		return nil, err
	}
	for _, f := range findings {
		if err := writer.Write([]string{f.Name, f.Version, f.Kind, f.Verdict, f.Reason}); err != nil {
			return nil, err
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, err
	}

	return buf, nil
}
