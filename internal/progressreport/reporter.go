// Package progressreport implements the progress reporter (spec §4.8): it
// translates per-stage progress callbacks into a monotonic global
// percentage with a human-readable message, rate-limiting persistence to
// the record store. The band translation and write-throttle are adapted
// from the teacher's progress.Event model and the 2s write-throttle
// closure in its task runner.
package progressreport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/slidecaster/slidecaster/internal/clock"
	"github.com/slidecaster/slidecaster/internal/jobs"
)

// Store is the subset of the record-store client the reporter needs.
// Store failures are swallowed here (spec §7: progress writes are
// observability, not correctness); a failed read in CheckCancelled is
// absorbed too, and the last known answer is returned instead.
type Store interface {
	UpdateJob(ctx context.Context, id string, patch jobs.Patch) (jobs.Record, error)
	GetJob(ctx context.Context, id string) (jobs.Record, error)
}

const minWriteInterval = 2 * time.Second

// Reporter is bound to a single in-flight job.
type Reporter struct {
	store Store
	clock clock.Clock
	jobID string

	mu              sync.Mutex
	bandStart       int
	bandEnd         int
	lastPersistedPct int
	lastMessage     string
	lastWriteAt     time.Time
	lastCancelCheck time.Time
	lastCancelled   bool
}

// New creates a Reporter for one job.
func New(store Store, clk clock.Clock, jobID string) *Reporter {
	return &Reporter{store: store, clock: clk, jobID: jobID}
}

// SetStep records which stage is running and its global percentage range
// (spec §4.8 set_step). It persists a band-boundary update immediately so
// current_step changes are never silently dropped by the write-throttle.
func (r *Reporter) SetStep(ctx context.Context, step jobs.Step, bandStart, bandEnd int, message string) {
	r.mu.Lock()
	r.bandStart = bandStart
	r.bandEnd = bandEnd
	r.mu.Unlock()

	r.persist(ctx, step, bandStart, message, true)
}

// Report computes the global percentage for (done, total) within the
// current band and persists it if it has advanced, per spec §4.8.
func (r *Reporter) Report(ctx context.Context, step jobs.Step, done, total int, message string) {
	r.mu.Lock()
	bandStart, bandEnd := r.bandStart, r.bandEnd
	r.mu.Unlock()

	pct := bandStart
	if total > 0 {
		frac := float64(done) / float64(total)
		pct = bandStart + int(frac*float64(bandEnd-bandStart))
	}
	if pct < bandStart {
		pct = bandStart
	}
	if pct > bandEnd {
		pct = bandEnd
	}

	r.persist(ctx, step, pct, message, false)
}

// Finalise forces a persist at the band's end (spec §4.8 finalise).
func (r *Reporter) Finalise(ctx context.Context, step jobs.Step, message string) {
	r.mu.Lock()
	bandEnd := r.bandEnd
	r.mu.Unlock()
	r.persist(ctx, step, bandEnd, message, true)
}

// persist enforces the monotonic clamp max(last, pct) and the write
// throttle, then best-effort patches the record store.
func (r *Reporter) persist(ctx context.Context, step jobs.Step, pct int, message string, force bool) {
	r.mu.Lock()
	if pct < r.lastPersistedPct {
		pct = r.lastPersistedPct
	}

	changed := pct > r.lastPersistedPct || message != r.lastMessage
	elapsedOK := r.clock.Since(r.lastWriteAt) >= minWriteInterval
	delta := pct - r.lastPersistedPct

	shouldWrite := force || (changed && (elapsedOK || delta > 1))
	if !shouldWrite {
		r.mu.Unlock()
		return
	}

	r.lastPersistedPct = pct
	r.lastMessage = message
	r.lastWriteAt = r.clock.Now()
	r.mu.Unlock()

	_, _ = r.store.UpdateJob(ctx, r.jobID, jobs.PatchProgress(step, pct, message))
}

// CheckCancelled consults the store's current status field, caching the
// result for up to 2s to avoid hammering it (spec §4.8). On a store
// failure it returns the last known answer rather than erroring, since a
// transient read failure must not itself abort processing.
func (r *Reporter) CheckCancelled(ctx context.Context) bool {
	r.mu.Lock()
	if r.clock.Since(r.lastCancelCheck) < 2*time.Second {
		cached := r.lastCancelled
		r.mu.Unlock()
		return cached
	}
	r.mu.Unlock()

	record, err := r.store.GetJob(ctx, r.jobID)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastCancelCheck = r.clock.Now()
	if err != nil {
		return r.lastCancelled
	}
	r.lastCancelled = record.Status == jobs.StatusCancelled
	return r.lastCancelled
}

// StageMessage renders a human-readable stage message, e.g. for logging
// alongside the reporter's own updates.
func StageMessage(step jobs.Step, done, total int) string {
	if total <= 0 {
		return fmt.Sprintf("%s: running", step)
	}
	return fmt.Sprintf("%s: %d/%d", step, done, total)
}
