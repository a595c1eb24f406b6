package reports

import "fmt"

// NewGenerator creates a report generator for the requested format.
func NewGenerator(format Format, s RunStore) (Generator, error) {
	switch format {
	case FormatCSV:
		return NewCSVGenerator(s), nil
	case FormatJSON:
		return NewJSONGenerator(s), nil
	default:
		return nil, fmt.Errorf("unknown report format: %s", format)
	}
}
