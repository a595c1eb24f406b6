package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads and parses a policy document. The format is chosen by file
// extension: .yaml/.yml are parsed as YAML, everything else as JSON.
// The returned document is validated and has defaults applied.
func Load(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid yaml policy %s: %v", path, err)}
		}
	default:
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid json policy %s: %v", path, err)}
		}
	}

	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// Parse parses a JSON policy document from a byte slice. Used by the
// HTTP API, which always receives JSON bodies.
func Parse(data []byte) (*Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("invalid policy body: %v", err)}
	}
	doc.applyDefaults()
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return &doc, nil
}

// applyDefaults fills unset modes with the conservative defaults:
// copyleft warns, unlicensed denies, multiple versions warn.
func (d *Document) applyDefaults() {
	if d.Licenses.Copyleft == "" {
		d.Licenses.Copyleft = ModeWarn
	}
	if d.Licenses.Unlicensed == "" {
		d.Licenses.Unlicensed = ModeDeny
	}
	if d.Bans.MultipleVersions == "" {
		d.Bans.MultipleVersions = ModeWarn
	}
}
