package license

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/depwarden/depwarden/pkg/integrity"
	"github.com/depwarden/depwarden/pkg/policy"
)

func testPolicy() *policy.Document {
	return &policy.Document{
		Licenses: policy.LicenseRules{
			Allow:      []string{"MIT", "Apache-2.0", "ISC"},
			Deny:       []string{"AGPL-3.0"},
			Copyleft:   policy.ModeWarn,
			Unlicensed: policy.ModeDeny,
		},
		Bans: policy.BanRules{MultipleVersions: policy.ModeWarn},
	}
}

func evaluate(t *testing.T, doc *policy.Document, pkgName, declared string) Evaluation {
	t.Helper()
	ev := NewEvaluator(DefaultTaxonomy(), integrity.StaticSource{})
	result, err := ev.Evaluate(context.Background(), pkgName, declared, "", doc)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	return result
}

func TestAllowedLicensePasses(t *testing.T) {
	result := evaluate(t, testPolicy(), "serde", "MIT")
	if result.Verdict != policy.VerdictPass {
		t.Errorf("verdict = %v, want pass (%s)", result.Verdict, result.Reason)
	}
}

func TestDenyOverridesAllow(t *testing.T) {
	// The precedence law: deny wins even when the same identifier is
	// also in the allow list.
	doc := testPolicy()
	doc.Licenses.Deny = append(doc.Licenses.Deny, "MIT")

	result := evaluate(t, doc, "serde", "MIT")
	if result.Verdict != policy.VerdictDeny {
		t.Errorf("verdict = %v, want deny (%s)", result.Verdict, result.Reason)
	}
}

func TestAndDenyIsAbsorbing(t *testing.T) {
	result := evaluate(t, testPolicy(), "pkg", "MIT AND AGPL-3.0")
	if result.Verdict != policy.VerdictDeny {
		t.Errorf("verdict = %v, want deny (%s)", result.Verdict, result.Reason)
	}
}

func TestOrTakesBestBranch(t *testing.T) {
	result := evaluate(t, testPolicy(), "pkg", "AGPL-3.0 OR MIT")
	if result.Verdict != policy.VerdictPass {
		t.Errorf("verdict = %v, want pass (%s)", result.Verdict, result.Reason)
	}
}

func TestOrWithNoAcceptableBranch(t *testing.T) {
	result := evaluate(t, testPolicy(), "pkg", "AGPL-3.0 OR SomethingObscure")
	if result.Verdict != policy.VerdictDeny {
		t.Errorf("verdict = %v, want deny (%s)", result.Verdict, result.Reason)
	}
}

func TestExceptionScopedToPackage(t *testing.T) {
	doc := testPolicy()
	doc.Licenses.Exceptions = []policy.Exception{
		{Name: "ring", Allow: []string{"OpenSSL"}},
	}

	// The named package gets the extra identifier.
	result := evaluate(t, doc, "ring", "OpenSSL")
	if result.Verdict != policy.VerdictPass {
		t.Errorf("ring verdict = %v, want pass (%s)", result.Verdict, result.Reason)
	}

	// A different package with the same license does not.
	result = evaluate(t, doc, "other", "OpenSSL")
	if result.Verdict != policy.VerdictDeny {
		t.Errorf("other verdict = %v, want deny (%s)", result.Verdict, result.Reason)
	}
}

func TestCopyleftModes(t *testing.T) {
	tests := []struct {
		mode policy.RuleMode
		want policy.Verdict
	}{
		{policy.ModeAllow, policy.VerdictPass},
		{policy.ModeWarn, policy.VerdictWarn},
		{policy.ModeDeny, policy.VerdictDeny},
	}
	for _, tt := range tests {
		doc := testPolicy()
		doc.Licenses.Copyleft = tt.mode
		result := evaluate(t, doc, "pkg", "GPL-3.0")
		if result.Verdict != tt.want {
			t.Errorf("copyleft mode %s: verdict = %v, want %v", tt.mode, result.Verdict, tt.want)
		}
	}
}

func TestCopyleftWarnSatisfiesAnd(t *testing.T) {
	// Warn-mode copyleft is still "acceptable" for expression
	// satisfaction; the warn is carried in the verdict, not a deny.
	result := evaluate(t, testPolicy(), "pkg", "MIT AND GPL-3.0")
	if result.Verdict != policy.VerdictWarn {
		t.Errorf("verdict = %v, want warn (%s)", result.Verdict, result.Reason)
	}
}

func TestUnlicensedModes(t *testing.T) {
	tests := []struct {
		mode policy.RuleMode
		want policy.Verdict
	}{
		{policy.ModeAllow, policy.VerdictPass},
		{policy.ModeWarn, policy.VerdictWarn},
		{policy.ModeDeny, policy.VerdictDeny},
	}
	for _, tt := range tests {
		doc := testPolicy()
		doc.Licenses.Unlicensed = tt.mode
		result := evaluate(t, doc, "pkg", "")
		if result.Verdict != tt.want {
			t.Errorf("unlicensed mode %s: verdict = %v, want %v", tt.mode, result.Verdict, tt.want)
		}
		if !result.Unlicensed {
			t.Errorf("unlicensed mode %s: Unlicensed flag not set", tt.mode)
		}
	}
}

func TestUnparseableDegradesToUnlicensed(t *testing.T) {
	result := evaluate(t, testPolicy(), "pkg", "MIT AND OR")
	if !result.Unlicensed {
		t.Error("unparseable expression should degrade to unlicensed")
	}
	if result.Verdict != policy.VerdictDeny {
		t.Errorf("verdict = %v, want deny under unlicensed=deny", result.Verdict)
	}
}

func TestClarificationOverride(t *testing.T) {
	licenseText := []byte("The MIT License ...")
	token := integrity.HashBytes(licenseText)

	doc := testPolicy()
	doc.Licenses.Clarify = []policy.Clarification{
		{Name: "ring", Expression: "MIT AND ISC", LicenseFileHash: token},
	}

	src := integrity.StaticSource{"ring": token}
	ev := NewEvaluator(DefaultTaxonomy(), src)

	// Detected GPL-3.0 would warn; the valid clarification overrides it.
	result, err := ev.Evaluate(context.Background(), "ring", "GPL-3.0", "ring/LICENSE", doc)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if result.Verdict != policy.VerdictPass {
		t.Errorf("verdict = %v, want pass (%s)", result.Verdict, result.Reason)
	}
	if result.Mismatch {
		t.Error("Mismatch flag must not be set for a valid clarification")
	}
}

func TestClarificationMismatchFallsBack(t *testing.T) {
	doc := testPolicy()
	doc.Licenses.Clarify = []policy.Clarification{
		{Name: "ring", Expression: "MIT", LicenseFileHash: "sha256:expected"},
	}

	src := integrity.StaticSource{"ring": "sha256:actual"}
	ev := NewEvaluator(DefaultTaxonomy(), src)

	result, err := ev.Evaluate(context.Background(), "ring", "Apache-2.0", "ring/LICENSE", doc)
	if err != nil {
		t.Fatalf("Evaluate failed: %v", err)
	}
	if !result.Mismatch {
		t.Error("expected Mismatch flag")
	}
	// Detected license still evaluated on its own merits.
	if result.Verdict != policy.VerdictPass {
		t.Errorf("verdict = %v, want pass from detected Apache-2.0", result.Verdict)
	}
}

func TestClarificationMissingFileIsFatal(t *testing.T) {
	doc := testPolicy()
	doc.Licenses.Clarify = []policy.Clarification{
		{Name: "ring", Expression: "MIT", LicenseFileHash: "sha256:expected"},
	}

	ev := NewEvaluator(DefaultTaxonomy(), integrity.StaticSource{})

	_, err := ev.Evaluate(context.Background(), "ring", "Apache-2.0", "ring/LICENSE", doc)
	var cfgErr *policy.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}

	// Same when the package has no license file path at all.
	_, err = ev.Evaluate(context.Background(), "ring", "Apache-2.0", "", doc)
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError for missing path, got %v", err)
	}
}

func TestLocalSourceHash(t *testing.T) {
	dir := t.TempDir()
	text := []byte("license body\n")
	path := filepath.Join(dir, "LICENSE")
	if err := os.WriteFile(path, text, 0644); err != nil {
		t.Fatal(err)
	}

	src := integrity.NewLocalSource("")
	got, err := src.LicenseHash(context.Background(), "pkg", path)
	if err != nil {
		t.Fatalf("LicenseHash failed: %v", err)
	}
	if got != integrity.HashBytes(text) {
		t.Errorf("hash mismatch: %s vs %s", got, integrity.HashBytes(text))
	}

	_, err = src.LicenseHash(context.Background(), "pkg", filepath.Join(dir, "missing"))
	if !errors.Is(err, integrity.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
