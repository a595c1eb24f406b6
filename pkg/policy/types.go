package policy

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// RuleMode controls how a class of findings is treated.
type RuleMode string

const (
	ModeAllow RuleMode = "allow"
	ModeWarn  RuleMode = "warn"
	ModeDeny  RuleMode = "deny"
)

// Valid reports whether the mode is one of the known values.
func (m RuleMode) Valid() bool {
	switch m {
	case ModeAllow, ModeWarn, ModeDeny:
		return true
	}
	return false
}

// Exception grants extra allowed license identifiers to a single named
// package. It never widens the global allow list.
type Exception struct {
	Name  string   `json:"name" yaml:"name"`
	Allow []string `json:"allow" yaml:"allow"`
}

// Clarification replaces a package's detected license expression with a
// policy-supplied one. The override only applies when LicenseFileHash
// matches the content hash of the package's actual license file.
type Clarification struct {
	Name            string `json:"name" yaml:"name"`
	Expression      string `json:"expression" yaml:"expression"`
	LicenseFileHash string `json:"license_file_hash" yaml:"license_file_hash"`
}

// SkipEntry exempts one exact (name, version) pair from
// duplicate-version reporting.
type SkipEntry struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version" yaml:"version"`
}

// SkipTreeEntry excludes a package and its entire transitive dependency
// subtree from duplicate-version analysis. An empty Version matches the
// named package at any version, at any position in the graph.
type SkipTreeEntry struct {
	Name    string `json:"name" yaml:"name"`
	Version string `json:"version,omitempty" yaml:"version,omitempty"`
}

// LicenseRules holds the license portion of the policy.
type LicenseRules struct {
	Allow      []string        `json:"allow" yaml:"allow"`
	Deny       []string        `json:"deny" yaml:"deny"`
	Copyleft   RuleMode        `json:"copyleft" yaml:"copyleft"`
	Unlicensed RuleMode        `json:"unlicensed" yaml:"unlicensed"`
	Exceptions []Exception     `json:"exceptions,omitempty" yaml:"exceptions,omitempty"`
	Clarify    []Clarification `json:"clarify,omitempty" yaml:"clarify,omitempty"`
}

// BanRules holds the duplicate-version portion of the policy.
type BanRules struct {
	MultipleVersions RuleMode        `json:"multiple_versions" yaml:"multiple_versions"`
	Skip             []SkipEntry     `json:"skip,omitempty" yaml:"skip,omitempty"`
	SkipTree         []SkipTreeEntry `json:"skip_tree,omitempty" yaml:"skip_tree,omitempty"`
}

// Document is a complete dependency policy. It is constructed once per
// evaluation run and treated as immutable afterwards; every component
// receives it explicitly rather than reading ambient state.
type Document struct {
	Licenses LicenseRules `json:"licenses" yaml:"licenses"`
	Bans     BanRules     `json:"bans" yaml:"bans"`
}

// IsDenied reports whether the identifier is explicitly denied.
// Denial has the highest precedence: it wins over allow, exceptions
// and copyleft handling alike.
func (d *Document) IsDenied(id string) bool {
	for _, v := range d.Licenses.Deny {
		if v == id {
			return true
		}
	}
	return false
}

// IsAllowed reports whether the identifier is globally allowed.
func (d *Document) IsAllowed(id string) bool {
	for _, v := range d.Licenses.Allow {
		if v == id {
			return true
		}
	}
	return false
}

// ExceptionAllows reports whether the identifier is allowed for the
// named package via an exceptions entry.
func (d *Document) ExceptionAllows(pkg, id string) bool {
	for _, e := range d.Licenses.Exceptions {
		if e.Name != pkg {
			continue
		}
		for _, v := range e.Allow {
			if v == id {
				return true
			}
		}
	}
	return false
}

// ClarificationFor returns the clarification for the named package, if
// one exists.
func (d *Document) ClarificationFor(pkg string) (Clarification, bool) {
	for _, c := range d.Licenses.Clarify {
		if c.Name == pkg {
			return c, true
		}
	}
	return Clarification{}, false
}

// MatchSkip reports whether the exact (name, version) pair appears in
// the ban skip list.
func (d *Document) MatchSkip(name, version string) bool {
	for _, s := range d.Bans.Skip {
		if s.Name == name && s.Version == version {
			return true
		}
	}
	return false
}

// Digest returns a stable content digest of the document, used as a
// cache key component and recorded with every stored run.
func (d *Document) Digest() string {
	data, err := json.Marshal(d)
	if err != nil {
		return ""
	}
	sum := sha256.Sum256(data)
	return "sha256:" + hex.EncodeToString(sum[:])
}
