package store

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("NewStore failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(id string, ts time.Time, verdict string) *Run {
	return &Run{
		RunID:        id,
		Ts:           ts,
		Verdict:      verdict,
		PolicyDigest: "sha256:policy",
		GraphDigest:  "sha256:graph",
		NodeCount:    3,
		FindingCount: 1,
		Report:       []byte(`{"verdict":"` + verdict + `"}`),
	}
}

func TestSaveAndGetRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", time.Now().UTC(), "warn")
	findings := []FindingRow{
		{RunID: "run-1", Name: "serde", Version: "1.0.0", Kind: "license_warn", Verdict: "warn", Reason: "copyleft"},
	}
	if err := s.SaveRun(ctx, run, findings); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}

	got, err := s.GetRun(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Verdict != "warn" || got.NodeCount != 3 {
		t.Errorf("got run %+v", got)
	}
	if string(got.Report) != string(run.Report) {
		t.Errorf("report body = %s, want %s", got.Report, run.Report)
	}

	rows, err := s.QueryFindings(ctx, "run-1")
	if err != nil {
		t.Fatalf("QueryFindings failed: %v", err)
	}
	if len(rows) != 1 || rows[0].Name != "serde" {
		t.Errorf("findings = %+v", rows)
	}
}

func TestGetRunNotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(context.Background(), "nope")
	if !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("expected sql.ErrNoRows, got %v", err)
	}
}

func TestSaveRunDuplicateID(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	run := sampleRun("run-1", time.Now().UTC(), "pass")
	if err := s.SaveRun(ctx, run, nil); err != nil {
		t.Fatalf("SaveRun failed: %v", err)
	}
	if err := s.SaveRun(ctx, run, nil); err == nil {
		t.Error("duplicate run_id should fail")
	}
}

func TestListRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Now().UTC().Add(-time.Hour)
	for i, verdict := range []string{"pass", "deny", "warn"} {
		run := sampleRun(
			[]string{"run-a", "run-b", "run-c"}[i],
			base.Add(time.Duration(i)*time.Minute),
			verdict,
		)
		if err := s.SaveRun(ctx, run, nil); err != nil {
			t.Fatalf("SaveRun failed: %v", err)
		}
	}

	runs, err := s.ListRuns(ctx, RunFilter{})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(runs) != 3 {
		t.Fatalf("got %d runs, want 3", len(runs))
	}
	if runs[0].RunID != "run-c" {
		t.Errorf("newest run first, got %s", runs[0].RunID)
	}
	if len(runs[0].Report) != 0 {
		t.Error("listing must not carry report bodies")
	}

	denied, err := s.ListRuns(ctx, RunFilter{Verdict: "deny"})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(denied) != 1 || denied[0].RunID != "run-b" {
		t.Errorf("verdict filter gave %+v", denied)
	}

	limited, err := s.ListRuns(ctx, RunFilter{Limit: 2})
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("limit 2 gave %d runs", len(limited))
	}
}

func TestPruneRuns(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	old := sampleRun("run-old", time.Now().UTC().Add(-48*time.Hour), "pass")
	fresh := sampleRun("run-new", time.Now().UTC(), "pass")
	oldFindings := []FindingRow{{RunID: "run-old", Name: "x", Kind: "pass", Verdict: "pass"}}
	if err := s.SaveRun(ctx, old, oldFindings); err != nil {
		t.Fatal(err)
	}
	if err := s.SaveRun(ctx, fresh, nil); err != nil {
		t.Fatal(err)
	}

	n, err := s.PruneRuns(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("PruneRuns failed: %v", err)
	}
	if n != 1 {
		t.Errorf("pruned %d runs, want 1", n)
	}

	if _, err := s.GetRun(ctx, "run-old"); !errors.Is(err, sql.ErrNoRows) {
		t.Errorf("old run should be gone, got %v", err)
	}
	if _, err := s.GetRun(ctx, "run-new"); err != nil {
		t.Errorf("new run should survive: %v", err)
	}

	// Findings cascade with their run.
	rows, err := s.QueryFindings(ctx, "run-old")
	if err != nil {
		t.Fatalf("QueryFindings failed: %v", err)
	}
	if len(rows) != 0 {
		t.Errorf("orphan findings: %+v", rows)
	}
}
