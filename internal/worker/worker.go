// Package worker implements the worker loop (spec §4.6): a single
// cooperative poll loop per process that claims pending jobs up to a
// concurrency cap, dispatches them to the pipeline runner, and recovers
// stuck in-flight jobs left behind by a prior crash. Grounded on the
// teacher's TaskManager in mcpserver/tasks.go (concurrency counter+mutex,
// StartTask/runPipeline split), generalized from an HTTP-triggered task
// manager to a self-polling loop.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/slidecaster/slidecaster/internal/clock"
	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/pipelinerun"
	"github.com/slidecaster/slidecaster/internal/progressreport"
)

// Store is the subset of the record-store client the worker needs.
type Store interface {
	ListByStatus(ctx context.Context, status jobs.Status, limit int) ([]jobs.Record, error)
	UpdateJob(ctx context.Context, id string, patch jobs.Patch) (jobs.Record, error)
	GetJob(ctx context.Context, id string) (jobs.Record, error)
}

// Config carries the worker loop's tunables (spec §4.9).
type Config struct {
	DataRoot          string
	MaxConcurrentJobs int
	PollInterval      time.Duration
}

// StageFactory builds the concrete StageRunner set for one job; the
// worker asks for a fresh set per job since some stages (e.g. script's
// language list) may vary per record in the future.
type StageFactory func(record jobs.Record) pipelinerun.Stages

// Worker runs the poll loop described in spec §4.6.
type Worker struct {
	store  Store
	clock  clock.Clock
	log    *slog.Logger
	cfg    Config
	stages StageFactory

	mu       sync.Mutex
	inFlight int
}

// New builds a Worker. stages is invoked once per claimed job to build its
// concrete stage set.
func New(store Store, clk clock.Clock, log *slog.Logger, cfg Config, stages StageFactory) *Worker {
	if cfg.MaxConcurrentJobs <= 0 {
		cfg.MaxConcurrentJobs = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	return &Worker{store: store, clock: clk, log: log, cfg: cfg, stages: stages}
}

// Recover transitions stale `processing` records left by a prior crash to
// `failed` (spec §4.6 step 1). The pipeline runner is never invoked for
// these; recovery failures are logged and left for the next startup
// (spec §7 "Recovery failures").
func (w *Worker) Recover(ctx context.Context) {
	stuck, err := w.store.ListByStatus(ctx, jobs.StatusProcessing, 500)
	if err != nil {
		w.log.ErrorContext(ctx, "recovery: list stuck jobs failed", "error", err)
		return
	}

	recovered := 0
	for _, rec := range stuck {
		patch := jobs.PatchFailed(w.clock.Now(), "recovered at startup: worker restarted while job was processing")
		if _, err := w.store.UpdateJob(ctx, rec.ID, patch); err != nil {
			w.log.ErrorContext(ctx, "recovery: mark stuck job failed failed", "job_id", rec.ID, "error", err)
			continue
		}
		recovered++
	}
	if recovered > 0 {
		w.log.InfoContext(ctx, "recovery complete", "recovered", recovered)
	}
}

// Run enters the polling loop of spec §4.6 step 3. It blocks until ctx is
// cancelled.
func (w *Worker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.clock.After(w.cfg.PollInterval):
		}
		w.tick(ctx)
	}
}

func (w *Worker) tick(ctx context.Context) {
	w.mu.Lock()
	available := w.cfg.MaxConcurrentJobs - w.inFlight
	w.mu.Unlock()
	if available <= 0 {
		return
	}

	pending, err := w.store.ListByStatus(ctx, jobs.StatusPending, available)
	if err != nil {
		w.log.ErrorContext(ctx, "poll: list pending jobs failed", "error", err)
		return
	}

	for _, rec := range pending {
		w.mu.Lock()
		w.inFlight++
		w.mu.Unlock()
		go w.process(ctx, rec)
	}
}

// process implements the job-processing task of spec §4.6.
func (w *Worker) process(ctx context.Context, rec jobs.Record) {
	defer func() {
		w.mu.Lock()
		w.inFlight--
		w.mu.Unlock()
	}()

	log := w.log.With("job_id", rec.ID)

	claimPatch := jobs.PatchProcessing(w.clock.Now())
	if _, err := w.store.UpdateJob(ctx, rec.ID, claimPatch); err != nil {
		log.ErrorContext(ctx, "claim failed", "error", err)
		return
	}

	// Re-read immediately after claiming: with no optimistic-concurrency
	// token on the record store, this is the only way to detect a
	// concurrent claim by another worker and abandon the job rather than
	// run the pipeline twice.
	claimed, err := w.store.GetJob(ctx, rec.ID)
	if err != nil {
		log.ErrorContext(ctx, "claim readback failed", "error", err)
		return
	}
	if claimed.Status != jobs.StatusProcessing {
		log.WarnContext(ctx, "claim readback status mismatch, abandoning", "status", claimed.Status)
		return
	}

	reporter := progressreport.New(w.store, w.clock, rec.ID)
	stages := w.stages(claimed)

	outcome, err := pipelinerun.Run(ctx, w.cfg.DataRoot, claimed, stages, reporter)
	if err != nil {
		w.finish(ctx, log, rec.ID, outcome, err)
		return
	}

	completePatch := jobs.PatchCompleted(w.clock.Now(), outcome.VideoPath, outcome.VideoSize)
	if _, err := w.store.UpdateJob(ctx, rec.ID, completePatch); err != nil {
		log.ErrorContext(ctx, "persist completion failed", "error", err)
		return
	}
	log.InfoContext(ctx, "job complete", "video_path", outcome.VideoPath, "video_size", outcome.VideoSize)
}

// finish handles a non-nil pipelinerun.Run error: cancellation leaves the
// record exactly as the cancelling endpoint set it (spec §4.5); any other
// error is translated into a failed record with a one-line message.
func (w *Worker) finish(ctx context.Context, log *slog.Logger, id string, outcome pipelinerun.Outcome, runErr error) {
	if errors.Is(runErr, pipelinerun.Cancelled) {
		log.InfoContext(ctx, "job cancelled")
		return
	}

	message := summarize(runErr)
	patch := jobs.PatchFailed(w.clock.Now(), message)
	if _, err := w.store.UpdateJob(ctx, id, patch); err != nil {
		log.ErrorContext(ctx, "persist failure failed", "error", err)
		return
	}
	log.WarnContext(ctx, "job failed", "error", message)
}

// summarize produces the concise one-line error_message of spec §7: no
// stack trace, just the failure and (if present) which stage it came from.
func summarize(err error) string {
	var stageErr *pipelinerun.StageError
	if errors.As(err, &stageErr) {
		return fmt.Sprintf("%s stage failed: %v", stageErr.Step.Name, stageErr.Err)
	}
	return err.Error()
}
