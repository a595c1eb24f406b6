package api

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/depwarden/depwarden/pkg/engine"
	"github.com/depwarden/depwarden/pkg/integrity"
	"github.com/depwarden/depwarden/pkg/license"
	"github.com/depwarden/depwarden/pkg/store"
)

// mockStore keeps runs in memory.
type mockStore struct {
	runs     map[string]*store.Run
	findings map[string][]store.FindingRow
}

func newMockStore() *mockStore {
	return &mockStore{
		runs:     make(map[string]*store.Run),
		findings: make(map[string][]store.FindingRow),
	}
}

func (m *mockStore) SaveRun(ctx context.Context, run *store.Run, findings []store.FindingRow) error {
	m.runs[run.RunID] = run
	m.findings[run.RunID] = findings
	return nil
}

func (m *mockStore) GetRun(ctx context.Context, runID string) (*store.Run, error) {
	run, ok := m.runs[runID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return run, nil
}

func (m *mockStore) ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error) {
	var out []*store.Run
	for _, r := range m.runs {
		if filter.Verdict != "" && r.Verdict != filter.Verdict {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (m *mockStore) QueryFindings(ctx context.Context, runID string) ([]store.FindingRow, error) {
	return m.findings[runID], nil
}

// fakeCache always hits after one Set.
type fakeCache struct {
	report *engine.Report
}

func (c *fakeCache) Get(ctx context.Context, policyDigest, graphDigest string) (*engine.Report, bool) {
	if c.report != nil && c.report.PolicyDigest == policyDigest && c.report.GraphDigest == graphDigest {
		return c.report, true
	}
	return nil, false
}

func (c *fakeCache) Set(ctx context.Context, report *engine.Report) {
	c.report = report
}

func newTestServer(t *testing.T, st StoreInterface, cache CacheInterface) *httptest.Server {
	t.Helper()
	ev := license.NewEvaluator(license.DefaultTaxonomy(), integrity.StaticSource{})
	checker := engine.NewChecker(ev, 2)
	s := NewServer("127.0.0.1:0", st, checker, cache, "test")
	ts := httptest.NewServer(s.server.Handler)
	t.Cleanup(ts.Close)
	return ts
}

const testPolicyJSON = `{
  "licenses": {"allow": ["MIT", "ISC"], "deny": ["AGPL-3.0"], "copyleft": "warn", "unlicensed": "deny"},
  "bans": {"multiple_versions": "warn"}
}`

const testGraphJSON = `{
  "packages": [
    {"name": "serde", "version": "1.0.0", "license": "MIT"},
    {"name": "bad", "version": "0.1.0", "license": "AGPL-3.0"}
  ],
  "edges": [{"from": "serde@1.0.0", "to": "bad@0.1.0"}]
}`

func postCheck(t *testing.T, ts *httptest.Server, policyJSON, graphJSON string) (*http.Response, CheckResponse) {
	t.Helper()
	body, err := json.Marshal(CheckRequest{
		Policy: json.RawMessage(policyJSON),
		Graph:  json.RawMessage(graphJSON),
	})
	if err != nil {
		t.Fatal(err)
	}
	resp, err := http.Post(ts.URL+"/v1/check", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("POST /v1/check failed: %v", err)
	}
	t.Cleanup(func() { resp.Body.Close() })

	var out CheckResponse
	if resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode failed: %v", err)
		}
	}
	return resp, out
}

func TestCheckEndpoint(t *testing.T) {
	st := newMockStore()
	ts := newTestServer(t, st, nil)

	resp, out := postCheck(t, ts, testPolicyJSON, testGraphJSON)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if out.Report == nil || out.Report.Verdict.String() != "deny" {
		t.Fatalf("response = %+v", out)
	}
	if out.RunID == "" {
		t.Error("missing run_id")
	}
	if out.Cached {
		t.Error("first check must not be cached")
	}

	// The run was persisted with flattened findings.
	if _, ok := st.runs[out.RunID]; !ok {
		t.Error("run not persisted")
	}
	if len(st.findings[out.RunID]) != len(out.Report.Findings) {
		t.Error("findings not flattened into rows")
	}
}

func TestCheckEndpointCacheHit(t *testing.T) {
	cache := &fakeCache{}
	ts := newTestServer(t, newMockStore(), cache)

	_, first := postCheck(t, ts, testPolicyJSON, testGraphJSON)
	if first.Cached {
		t.Fatal("first check must miss")
	}

	_, second := postCheck(t, ts, testPolicyJSON, testGraphJSON)
	if !second.Cached {
		t.Fatal("second identical check must hit the cache")
	}
	if second.RunID != "" {
		t.Error("cache hits carry no new run id")
	}
	if second.Report.Verdict != first.Report.Verdict {
		t.Error("cached report differs from original")
	}
}

func TestCheckEndpointBadInput(t *testing.T) {
	ts := newTestServer(t, newMockStore(), nil)

	resp, err := http.Post(ts.URL+"/v1/check", "application/json", strings.NewReader(`{not json`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("malformed body: status = %d, want 400", resp.StatusCode)
	}

	// Policy validation failures are caught at parse time.
	badPolicy := `{"licenses": {"copyleft": "sometimes"}}`
	resp2, _ := postCheck(t, ts, badPolicy, testGraphJSON)
	if resp2.StatusCode != http.StatusBadRequest {
		t.Errorf("bad mode: status = %d, want 400", resp2.StatusCode)
	}
}

func TestCheckEndpointCycleIsUnprocessable(t *testing.T) {
	ts := newTestServer(t, newMockStore(), nil)

	cyclic := `{
	  "packages": [
	    {"name": "a", "version": "1.0.0", "license": "MIT"},
	    {"name": "b", "version": "1.0.0", "license": "MIT"}
	  ],
	  "edges": [
	    {"from": "a@1.0.0", "to": "b@1.0.0"},
	    {"from": "b@1.0.0", "to": "a@1.0.0"}
	  ]
	}`
	resp, _ := postCheck(t, ts, testPolicyJSON, cyclic)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Errorf("cycle: status = %d, want 422", resp.StatusCode)
	}
}

func TestCheckEndpointMethodNotAllowed(t *testing.T) {
	ts := newTestServer(t, newMockStore(), nil)

	resp, err := http.Get(ts.URL + "/v1/check")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestRunsEndpoints(t *testing.T) {
	st := newMockStore()
	ts := newTestServer(t, st, nil)

	_, out := postCheck(t, ts, testPolicyJSON, testGraphJSON)

	resp, err := http.Get(ts.URL + "/v1/runs")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var runs RunsResponse
	if err := json.NewDecoder(resp.Body).Decode(&runs); err != nil {
		t.Fatal(err)
	}
	if len(runs.Runs) != 1 || runs.Runs[0].RunID != out.RunID {
		t.Errorf("runs = %+v", runs.Runs)
	}

	resp, err = http.Get(ts.URL + "/v1/runs/" + out.RunID)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("get run: status = %d", resp.StatusCode)
	}

	resp, err = http.Get(ts.URL + "/v1/runs/nope")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("unknown run: status = %d, want 404", resp.StatusCode)
	}
}

func TestRunReportEndpoint(t *testing.T) {
	ts := newTestServer(t, newMockStore(), nil)
	_, out := postCheck(t, ts, testPolicyJSON, testGraphJSON)

	resp, err := http.Get(ts.URL + "/v1/runs/" + out.RunID + "/report?format=csv")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("Content-Type = %q", ct)
	}
	var buf bytes.Buffer
	buf.ReadFrom(resp.Body)
	if !strings.HasPrefix(buf.String(), "package,version,kind,verdict,reason") {
		t.Errorf("csv body:\n%s", buf.String())
	}

	resp, err = http.Get(ts.URL + "/v1/runs/" + out.RunID + "/report?format=xml")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("unknown format: status = %d, want 400", resp.StatusCode)
	}
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t, newMockStore(), nil)

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var health HealthResponse
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil {
		t.Fatal(err)
	}
	if health.Status != "ok" || health.Version != "test" {
		t.Errorf("health = %+v", health)
	}
}
