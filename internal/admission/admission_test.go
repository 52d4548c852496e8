package admission

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slidecaster/slidecaster/internal/clock"
	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/quality"
)

func noopLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubStore struct {
	recentByIP  int
	byStatus    map[jobs.Status]int
	createCalls int
	lastURL     string
}

func (s *stubStore) CountRecentByIP(ctx context.Context, clientIP string, since time.Time) (int, error) {
	return s.recentByIP, nil
}

func (s *stubStore) CountByStatus(ctx context.Context, status jobs.Status) (int, error) {
	return s.byStatus[status], nil
}

func (s *stubStore) CreateJob(ctx context.Context, url, clientIP string, expiresAt time.Time) (jobs.Record, error) {
	s.createCalls++
	s.lastURL = url
	return jobs.Record{ID: "new-job", URL: url, ClientIP: clientIP, Status: jobs.StatusPending, ExpiresAt: expiresAt}, nil
}

type stubProber struct {
	result quality.Result
}

func (s stubProber) Probe(ctx context.Context, url string) quality.Result { return s.result }

func newController(store *stubStore, prober quality.Prober) *Controller {
	return New(store, prober, clock.NewFake(time.Now()), noopLogger(), 5, 10, 24*time.Hour)
}

func TestAdmit_HappyPath(t *testing.T) {
	store := &stubStore{byStatus: map[jobs.Status]int{}}
	c := newController(store, stubProber{result: quality.Result{Accepted: true}})

	rec, err := c.Admit(t.Context(), "https://example.com/a", "10.0.0.1")
	require.NoError(t, err)
	require.Equal(t, "new-job", rec.ID)
	require.Equal(t, 1, store.createCalls)
}

func TestAdmit_RateLimited(t *testing.T) {
	store := &stubStore{recentByIP: 5, byStatus: map[jobs.Status]int{}}
	c := newController(store, stubProber{result: quality.Result{Accepted: true}})

	_, err := c.Admit(t.Context(), "https://example.com/a", "10.0.0.2")
	require.Error(t, err)
	var refusal *RefusalError
	require.True(t, errors.As(err, &refusal))
	require.ErrorIs(t, refusal, ErrRateLimited)
	require.Equal(t, 0, store.createCalls)
}

func TestAdmit_AcceptsAtExactlyRateLimit(t *testing.T) {
	store := &stubStore{recentByIP: 4, byStatus: map[jobs.Status]int{}}
	c := newController(store, stubProber{result: quality.Result{Accepted: true}})

	_, err := c.Admit(t.Context(), "https://example.com/a", "10.0.0.2")
	require.NoError(t, err)
}

func TestAdmit_QueueFull(t *testing.T) {
	store := &stubStore{byStatus: map[jobs.Status]int{jobs.StatusPending: 10}}
	c := newController(store, stubProber{result: quality.Result{Accepted: true}})

	_, err := c.Admit(t.Context(), "https://example.com/a", "10.0.0.3")
	var refusal *RefusalError
	require.True(t, errors.As(err, &refusal))
	require.ErrorIs(t, refusal, ErrQueueFull)
}

func TestAdmit_QualityRefused(t *testing.T) {
	store := &stubStore{byStatus: map[jobs.Status]int{}}
	c := newController(store, stubProber{result: quality.Result{Reason: "summary too short"}})

	_, err := c.Admit(t.Context(), "https://example.com/a", "10.0.0.4")
	var refusal *RefusalError
	require.True(t, errors.As(err, &refusal))
	require.ErrorIs(t, refusal, ErrQualityTooLow)
	require.Equal(t, 0, store.createCalls)
}

func TestAdmit_ProbeUnavailable(t *testing.T) {
	store := &stubStore{byStatus: map[jobs.Status]int{}}
	c := newController(store, stubProber{result: quality.Result{Reason: "timeout", Unavailable: true}})

	_, err := c.Admit(t.Context(), "https://example.com/a", "10.0.0.5")
	var refusal *RefusalError
	require.True(t, errors.As(err, &refusal))
	require.ErrorIs(t, refusal, ErrProbeUnavailable)
}
