package store

import (
	"context"
	"fmt"
	"log"
	"time"
)

// PruneRuns deletes runs older than the retention window. Findings go
// with them via the foreign key cascade. Returns the number of runs
// removed.
func (s *Store) PruneRuns(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE ts < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune runs: %w", err)
	}
	return res.RowsAffected()
}

// PruneWorker periodically enforces run retention.
type PruneWorker struct {
	store     *Store
	retention time.Duration
	interval  time.Duration
}

// NewPruneWorker creates a worker. A zero interval defaults to hourly.
func NewPruneWorker(st *Store, retention, interval time.Duration) *PruneWorker {
	if interval == 0 {
		interval = 1 * time.Hour
	}
	return &PruneWorker{store: st, retention: retention, interval: interval}
}

// Run starts the prune loop. It exits when the context is canceled.
func (w *PruneWorker) Run(ctx context.Context) {
	if w.retention <= 0 {
		log.Println("Run pruning disabled")
		return
	}

	log.Printf("Starting prune worker (retention: %v, interval: %v)", w.retention, w.interval)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	// Initial run
	w.prune(ctx)

	for {
		select {
		case <-ctx.Done():
			log.Println("Prune worker stopping")
			return
		case <-ticker.C:
			w.prune(ctx)
		}
	}
}

func (w *PruneWorker) prune(ctx context.Context) {
	n, err := w.store.PruneRuns(ctx, w.retention)
	if err != nil {
		log.Printf("Prune failed: %v", err)
		return
	}
	if n > 0 {
		log.Printf("Pruned %d runs", n)
	}
}
