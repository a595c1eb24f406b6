package store

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store manages the SQLite connection and schema.
type Store struct {
	db *sql.DB
}

// NewStore initializes the SQLite database connection.
// It enables WAL mode for concurrency and durability.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite db: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping sqlite db: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL;"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON;"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	s := &Store{db: db}

	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("schema migration failed: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the necessary tables if they don't exist.
func (s *Store) migrate() error {
	// Runs carry the full report JSON; findings are flattened per row
	// for querying and report generation.
	query := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id TEXT PRIMARY KEY,
		ts DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
		verdict TEXT NOT NULL,
		policy_digest TEXT NOT NULL,
		graph_digest TEXT NOT NULL,
		node_count INTEGER NOT NULL,
		finding_count INTEGER NOT NULL,
		report JSON NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_ts ON runs(ts);
	CREATE INDEX IF NOT EXISTS idx_runs_digests ON runs(policy_digest, graph_digest);

	CREATE TABLE IF NOT EXISTS findings (
		run_id TEXT NOT NULL REFERENCES runs(run_id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		version TEXT,
		kind TEXT NOT NULL,
		verdict TEXT NOT NULL,
		reason TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_findings_run ON findings(run_id);
	CREATE INDEX IF NOT EXISTS idx_findings_kind ON findings(kind);
	`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}

	return nil
}

// SaveRun persists a run and its flattened findings atomically.
func (s *Store) SaveRun(ctx context.Context, run *Run, findings []FindingRow) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (run_id, ts, verdict, policy_digest, graph_digest, node_count, finding_count, report)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.RunID, run.Ts, run.Verdict, run.PolicyDigest, run.GraphDigest,
		run.NodeCount, run.FindingCount, []byte(run.Report),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	for _, f := range findings {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO findings (run_id, name, version, kind, verdict, reason)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			run.RunID, f.Name, f.Version, f.Kind, f.Verdict, f.Reason,
		)
		if err != nil {
			return fmt.Errorf("failed to insert finding: %w", err)
		}
	}

	return tx.Commit()
}

// GetRun fetches one run by ID. Returns sql.ErrNoRows if absent.
func (s *Store) GetRun(ctx context.Context, runID string) (*Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT run_id, ts, verdict, policy_digest, graph_digest, node_count, finding_count, report
		 FROM runs WHERE run_id = ?`, runID)

	var run Run
	var report []byte
	if err := row.Scan(&run.RunID, &run.Ts, &run.Verdict, &run.PolicyDigest,
		&run.GraphDigest, &run.NodeCount, &run.FindingCount, &report); err != nil {
		return nil, err
	}
	run.Report = report
	return &run, nil
}

// ListRuns returns recent runs, newest first, without report bodies.
func (s *Store) ListRuns(ctx context.Context, filter RunFilter) ([]*Run, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT run_id, ts, verdict, policy_digest, graph_digest, node_count, finding_count
		 FROM runs`
	args := []interface{}{}
	if filter.Verdict != "" {
		query += ` WHERE verdict = ?`
		args = append(args, filter.Verdict)
	}
	query += ` ORDER BY ts DESC, run_id DESC LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		var run Run
		if err := rows.Scan(&run.RunID, &run.Ts, &run.Verdict, &run.PolicyDigest,
			&run.GraphDigest, &run.NodeCount, &run.FindingCount); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, &run)
	}
	return runs, rows.Err()
}

// QueryFindings returns the flattened findings for a run.
func (s *Store) QueryFindings(ctx context.Context, runID string) ([]FindingRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, name, version, kind, verdict, reason
		 FROM findings WHERE run_id = ? ORDER BY name, version, kind`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query findings: %w", err)
	}
	defer rows.Close()

	var findings []FindingRow
	for rows.Next() {
		var f FindingRow
		if err := rows.Scan(&f.RunID, &f.Name, &f.Version, &f.Kind, &f.Verdict, &f.Reason); err != nil {
			return nil, fmt.Errorf("failed to scan finding: %w", err)
		}
		findings = append(findings, f)
	}
	return findings, rows.Err()
}
