package api

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/depwarden/depwarden/pkg/engine"
	"github.com/depwarden/depwarden/pkg/graph"
	"github.com/depwarden/depwarden/pkg/policy"
	"github.com/depwarden/depwarden/pkg/reports"
	"github.com/depwarden/depwarden/pkg/store"
)

// Context keys
type contextKey string

const traceIDKey contextKey = "trace_id"

// StoreInterface narrows the store to what the server needs, so tests
// can substitute a mock.
type StoreInterface interface {
	SaveRun(ctx context.Context, run *store.Run, findings []store.FindingRow) error
	GetRun(ctx context.Context, runID string) (*store.Run, error)
	ListRuns(ctx context.Context, filter store.RunFilter) ([]*store.Run, error)
	QueryFindings(ctx context.Context, runID string) ([]store.FindingRow, error)
}

// CheckerInterface is the evaluation entry point.
type CheckerInterface interface {
	Run(ctx context.Context, g *graph.Graph, doc *policy.Document) (*engine.Report, error)
}

// CacheInterface is the optional shared report cache.
type CacheInterface interface {
	Get(ctx context.Context, policyDigest, graphDigest string) (*engine.Report, bool)
	Set(ctx context.Context, report *engine.Report)
}

// Server encapsulates the HTTP API server.
type Server struct {
	store   StoreInterface
	checker CheckerInterface
	cache   CacheInterface // nil disables caching
	server  *http.Server
	version string
}

// NewServer creates the API server. cache may be nil.
func NewServer(addr string, st StoreInterface, checker CheckerInterface, cache CacheInterface, version string) *Server {
	s := &Server{
		store:   st,
		checker: checker,
		cache:   cache,
		version: version,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/v1/check", s.withTrace(s.handleCheck))
	mux.HandleFunc("/v1/runs", s.withTrace(s.handleRuns))
	mux.HandleFunc("/v1/runs/", s.withTrace(s.handleRunByID))
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())

	s.server = &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Start begins serving. It blocks until the listener fails or Close is
// called.
func (s *Server) Start() error {
	log.Printf("API server listening on %s", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// withTrace attaches a short random trace ID for log correlation.
func (s *Server) withTrace(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err == nil {
			ctx := context.WithValue(r.Context(), traceIDKey, hex.EncodeToString(buf))
			r = r.WithContext(ctx)
		}
		next(w, r)
	}
}

func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, 64<<20))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	var req CheckRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request: %v", err))
		return
	}

	doc, err := policy.Parse(req.Policy)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	g, err := graph.Parse(req.Graph)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx := r.Context()

	if s.cache != nil {
		if report, ok := s.cache.Get(ctx, doc.Digest(), engine.Digest(g)); ok {
			writeJSON(w, http.StatusOK, CheckResponse{RunID: "", Cached: true, Report: report})
			return
		}
	}

	report, err := s.checker.Run(ctx, g, doc)
	if err != nil {
		var cfgErr *policy.ConfigurationError
		var intErr *graph.IntegrityError
		if errors.As(err, &cfgErr) || errors.As(err, &intErr) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	runID := uuid.NewString()
	if err := s.persistRun(ctx, runID, report); err != nil {
		log.Printf("Failed to persist run %s (trace %v): %v", runID, ctx.Value(traceIDKey), err)
		// The evaluation itself succeeded; return the report anyway.
	}

	if s.cache != nil {
		s.cache.Set(ctx, report)
	}

	writeJSON(w, http.StatusOK, CheckResponse{RunID: runID, Report: report})
}

func (s *Server) persistRun(ctx context.Context, runID string, report *engine.Report) error {
	data, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	run := &store.Run{
		RunID:        runID,
		Ts:           time.Now().UTC(),
		Verdict:      report.Verdict.String(),
		PolicyDigest: report.PolicyDigest,
		GraphDigest:  report.GraphDigest,
		NodeCount:    report.NodeCount,
		FindingCount: len(report.Findings),
		Report:       data,
	}

	rows := make([]store.FindingRow, 0, len(report.Findings))
	for _, f := range report.Findings {
		rows = append(rows, store.FindingRow{
			RunID:   runID,
			Name:    f.Package.Name,
			Version: f.Package.Version,
			Kind:    string(f.Kind),
			Verdict: f.Verdict.String(),
			Reason:  f.Reason,
		})
	}

	return s.store.SaveRun(ctx, run, rows)
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	filter := store.RunFilter{Verdict: r.URL.Query().Get("verdict")}
	if limit := r.URL.Query().Get("limit"); limit != "" {
		fmt.Sscanf(limit, "%d", &filter.Limit)
	}

	runs, err := s.store.ListRuns(r.Context(), filter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, RunsResponse{Runs: runs})
}

// handleRunByID serves /v1/runs/{id} and /v1/runs/{id}/report.
func (s *Server) handleRunByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rest := strings.TrimPrefix(r.URL.Path, "/v1/runs/")
	parts := strings.Split(rest, "/")
	runID := parts[0]
	if runID == "" {
		writeError(w, http.StatusBadRequest, "missing run id")
		return
	}

	if len(parts) == 2 && parts[1] == "report" {
		s.handleRunReport(w, r, runID)
		return
	}
	if len(parts) != 1 {
		writeError(w, http.StatusNotFound, "not found")
		return
	}

	run, err := s.store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, fmt.Sprintf("run %s not found", runID))
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) handleRunReport(w http.ResponseWriter, r *http.Request, runID string) {
	format := reports.Format(r.URL.Query().Get("format"))
	if format == "" {
		format = reports.FormatJSON
	}

	gen, err := reports.NewGenerator(format, s.store)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := gen.Generate(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusNotFound, err.Error())
		return
	}

	switch format {
	case reports.FormatCSV:
		w.Header().Set("Content-Type", "text/csv")
	default:
		w.Header().Set("Content-Type", "application/json")
	}
	io.Copy(w, out)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok", Version: s.version})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
