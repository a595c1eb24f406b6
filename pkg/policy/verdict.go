package policy

import "fmt"

// Verdict is the outcome severity of a single check or of a whole run.
// Deny strictly outranks Warn, which outranks Pass.
type Verdict int

const (
	VerdictPass Verdict = iota
	VerdictWarn
	VerdictDeny
)

func (v Verdict) String() string {
	switch v {
	case VerdictDeny:
		return "deny"
	case VerdictWarn:
		return "warn"
	default:
		return "pass"
	}
}

// MarshalJSON renders the verdict as its string form.
func (v Verdict) MarshalJSON() ([]byte, error) {
	return []byte(`"` + v.String() + `"`), nil
}

// UnmarshalJSON accepts the string form produced by MarshalJSON.
func (v *Verdict) UnmarshalJSON(data []byte) error {
	switch string(data) {
	case `"deny"`:
		*v = VerdictDeny
	case `"warn"`:
		*v = VerdictWarn
	case `"pass"`:
		*v = VerdictPass
	default:
		return fmt.Errorf("unknown verdict %s", data)
	}
	return nil
}

// Worst returns the more severe of the two verdicts.
func Worst(a, b Verdict) Verdict {
	if b > a {
		return b
	}
	return a
}

// Verdict maps a rule mode to the verdict it produces when triggered.
func (m RuleMode) Verdict() Verdict {
	switch m {
	case ModeDeny:
		return VerdictDeny
	case ModeWarn:
		return VerdictWarn
	default:
		return VerdictPass
	}
}
