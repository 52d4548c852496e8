// Package reaper implements the expiry reaper (spec §4.7): a periodic
// task that deletes expired job records and their artifact directories.
// The teacher has no equivalent component; its periodic-tick shape is
// styled on the worker loop's own poll loop (internal/worker), which is
// itself grounded on the teacher's task-manager pattern.
package reaper

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/slidecaster/slidecaster/internal/clock"
)

// Store is the subset of the record-store client the reaper needs.
type Store interface {
	ListExpired(ctx context.Context, now time.Time) ([]string, error)
	DeleteJob(ctx context.Context, id string) error
}

// Config carries the reaper's tunables.
type Config struct {
	DataRoot string
	Interval time.Duration
}

// Reaper runs the periodic expiry sweep of spec §4.7.
type Reaper struct {
	store Store
	clock clock.Clock
	log   *slog.Logger
	cfg   Config
}

// New builds a Reaper.
func New(store Store, clk clock.Clock, log *slog.Logger, cfg Config) *Reaper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Hour
	}
	return &Reaper{store: store, clock: clk, log: log, cfg: cfg}
}

// Run ticks every cfg.Interval until ctx is cancelled. It does not run a
// sweep immediately on entry; the first sweep happens after the first
// interval elapses, matching the worker's own "launch as a periodic task"
// phrasing.
func (r *Reaper) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-r.clock.After(r.cfg.Interval):
		}
		r.Tick(ctx)
	}
}

// Tick runs one expiry sweep (spec §4.7 steps 1-4).
func (r *Reaper) Tick(ctx context.Context) {
	now := r.clock.Now()

	ids, err := r.store.ListExpired(ctx, now)
	if err != nil {
		r.log.ErrorContext(ctx, "reaper: list expired failed", "error", err)
		return
	}

	reaped := 0
	for _, id := range ids {
		jobDir := filepath.Join(r.cfg.DataRoot, "jobs", id)
		if err := os.RemoveAll(jobDir); err != nil {
			r.log.WarnContext(ctx, "reaper: remove artifact directory failed", "job_id", id, "error", err)
		}

		if err := r.store.DeleteJob(ctx, id); err != nil {
			r.log.ErrorContext(ctx, "reaper: delete record failed", "job_id", id, "error", err)
			continue
		}
		reaped++
	}

	r.log.InfoContext(ctx, "reaper tick complete", "expired", len(ids), "reaped", reaped)
}
