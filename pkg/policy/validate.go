package policy

import "fmt"

// ConfigurationError reports a malformed policy document. It is fatal:
// the run aborts immediately and no report is produced.
type ConfigurationError struct {
	Reason string
}

func (e *ConfigurationError) Error() string {
	return "policy configuration: " + e.Reason
}

// Validate checks the document for structural problems. An identifier
// present in both allow and deny is NOT an error; deny simply wins.
func (d *Document) Validate() error {
	if !d.Licenses.Copyleft.Valid() {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid copyleft mode %q", d.Licenses.Copyleft)}
	}
	if !d.Licenses.Unlicensed.Valid() {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid unlicensed mode %q", d.Licenses.Unlicensed)}
	}
	if !d.Bans.MultipleVersions.Valid() {
		return &ConfigurationError{Reason: fmt.Sprintf("invalid multiple_versions mode %q", d.Bans.MultipleVersions)}
	}

	for _, e := range d.Licenses.Exceptions {
		if e.Name == "" {
			return &ConfigurationError{Reason: "exception entry is missing a package name"}
		}
	}

	seen := make(map[string]bool)
	for _, c := range d.Licenses.Clarify {
		if c.Name == "" {
			return &ConfigurationError{Reason: "clarification entry is missing a package name"}
		}
		if c.Expression == "" {
			return &ConfigurationError{Reason: fmt.Sprintf("clarification for %q has no expression", c.Name)}
		}
		if c.LicenseFileHash == "" {
			return &ConfigurationError{Reason: fmt.Sprintf("clarification for %q has no license_file_hash", c.Name)}
		}
		if seen[c.Name] {
			return &ConfigurationError{Reason: fmt.Sprintf("duplicate clarification for %q", c.Name)}
		}
		seen[c.Name] = true
	}

	for _, s := range d.Bans.Skip {
		if s.Name == "" || s.Version == "" {
			return &ConfigurationError{Reason: "ban skip entry requires both name and version"}
		}
	}
	for _, s := range d.Bans.SkipTree {
		if s.Name == "" {
			return &ConfigurationError{Reason: "ban skip_tree entry requires a name"}
		}
	}

	return nil
}
