package reports

import (
	"context"
	"io"

	"github.com/depwarden/depwarden/pkg/store"
)

// Format selects the output encoding of a generated report.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// RunStore defines the data access the generators need.
type RunStore interface {
	GetRun(ctx context.Context, runID string) (*store.Run, error)
	QueryFindings(ctx context.Context, runID string) ([]store.FindingRow, error)
}

// Generator renders a stored run into an output document.
type Generator interface {
	Generate(ctx context.Context, runID string) (io.Reader, error)
}
