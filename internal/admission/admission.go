// Package admission implements the admission controller (spec §4.3): an
// ordered sequence of checks that short-circuits on first refusal before a
// job record is ever created. The ordered-check, sentinel-error shape is
// carried from the stream-gateway admission controller in the example
// corpus; the checks themselves (rate limit, queue depth, quality probe)
// are this system's own.
package admission

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/slidecaster/slidecaster/internal/clock"
	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/quality"
)

// Refusal categories (spec §4.3, §7); the HTTP layer maps each to a status code.
var (
	ErrRateLimited     = errors.New("daily limit exceeded")
	ErrQueueFull       = errors.New("queue full")
	ErrQualityTooLow   = errors.New("quality probe rejected")
	ErrProbeUnavailable = errors.New("quality probe unavailable")
)

// RefusalError wraps one of the sentinel refusals above with the specific
// reason text reported to the HTTP caller.
type RefusalError struct {
	Category error
	Reason   string
}

func (e *RefusalError) Error() string { return e.Reason }
func (e *RefusalError) Unwrap() error { return e.Category }

// Store is the subset of the record-store client the controller needs.
type Store interface {
	CountRecentByIP(ctx context.Context, clientIP string, since time.Time) (int, error)
	CountByStatus(ctx context.Context, status jobs.Status) (int, error)
	CreateJob(ctx context.Context, url, clientIP string, expiresAt time.Time) (jobs.Record, error)
}

// Controller performs the three checks of spec §4.3 in order.
type Controller struct {
	store  Store
	probe  quality.Prober
	clock  clock.Clock
	log    *slog.Logger

	rateLimitPerDay int
	maxQueueSize    int
	jobExpiry       time.Duration
}

// New builds a Controller with the admission limits of spec §4.9.
func New(store Store, probe quality.Prober, clk clock.Clock, log *slog.Logger, rateLimitPerDay, maxQueueSize int, jobExpiry time.Duration) *Controller {
	return &Controller{
		store:           store,
		probe:           probe,
		clock:           clk,
		log:             log,
		rateLimitPerDay: rateLimitPerDay,
		maxQueueSize:    maxQueueSize,
		jobExpiry:       jobExpiry,
	}
}

// Admit runs the ordered checks and creates a record on success, returning
// the created record. On refusal, it returns a *RefusalError and creates nothing.
func (c *Controller) Admit(ctx context.Context, candidateURL, clientIP string) (jobs.Record, error) {
	now := c.clock.Now()

	count, err := c.store.CountRecentByIP(ctx, clientIP, now.Add(-24*time.Hour))
	if err != nil {
		return jobs.Record{}, fmt.Errorf("admission: rate limit check: %w", err)
	}
	if count >= c.rateLimitPerDay {
		return jobs.Record{}, &RefusalError{Category: ErrRateLimited, Reason: "daily limit exceeded"}
	}

	pending, err := c.store.CountByStatus(ctx, jobs.StatusPending)
	if err != nil {
		return jobs.Record{}, fmt.Errorf("admission: queue depth check: %w", err)
	}
	if pending >= c.maxQueueSize {
		return jobs.Record{}, &RefusalError{Category: ErrQueueFull, Reason: "queue full"}
	}

	result := c.probe.Probe(ctx, candidateURL)
	if !result.Accepted {
		category := ErrQualityTooLow
		if result.Unavailable {
			category = ErrProbeUnavailable
		}
		c.log.InfoContext(ctx, "admission refused by quality probe", "url", candidateURL, "reason", result.Reason, "unavailable", result.Unavailable)
		return jobs.Record{}, &RefusalError{Category: category, Reason: result.Reason}
	}

	record, err := c.store.CreateJob(ctx, candidateURL, clientIP, now.Add(c.jobExpiry))
	if err != nil {
		return jobs.Record{}, fmt.Errorf("admission: create job: %w", err)
	}
	return record, nil
}
