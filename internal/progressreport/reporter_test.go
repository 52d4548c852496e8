package progressreport

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slidecaster/slidecaster/internal/clock"
	"github.com/slidecaster/slidecaster/internal/jobs"
)

type recordingStore struct {
	patches []jobs.Patch
	status  jobs.Status
}

func (s *recordingStore) UpdateJob(ctx context.Context, id string, patch jobs.Patch) (jobs.Record, error) {
	s.patches = append(s.patches, patch)
	return jobs.Record{}, nil
}

func (s *recordingStore) GetJob(ctx context.Context, id string) (jobs.Record, error) {
	return jobs.Record{Status: s.status}, nil
}

func TestReport_BandTranslation(t *testing.T) {
	store := &recordingStore{}
	clk := clock.NewFake(time.Now())
	r := New(store, clk, "job1")

	r.SetStep(t.Context(), jobs.StepAudio, 20, 55, "starting audio")
	clk.Advance(3 * time.Second)
	r.Report(t.Context(), jobs.StepAudio, 5, 10, "halfway")

	require.Len(t, store.patches, 2)
	last := store.patches[len(store.patches)-1]
	require.Equal(t, 37, *last.Progress) // 20 + 0.5*(55-20) = 37
}

func TestReport_MonotonicClamp(t *testing.T) {
	store := &recordingStore{}
	clk := clock.NewFake(time.Now())
	r := New(store, clk, "job1")

	r.SetStep(t.Context(), jobs.StepAudio, 20, 55, "")
	clk.Advance(3 * time.Second)
	r.Report(t.Context(), jobs.StepAudio, 9, 10, "almost done") // 20 + 0.9*35 = 51
	clk.Advance(3 * time.Second)
	// Next stage's first callback resets done/total to (0, total) — band
	// translation alone should never regress below the previous persisted pct.
	r.SetStep(t.Context(), jobs.StepSlides, 55, 80, "starting slides")

	last := store.patches[len(store.patches)-1]
	require.GreaterOrEqual(t, *last.Progress, 51)
}

func TestFinalise_ForcesBandEnd(t *testing.T) {
	store := &recordingStore{}
	clk := clock.NewFake(time.Now())
	r := New(store, clk, "job1")

	r.SetStep(t.Context(), jobs.StepVideo, 80, 100, "")
	r.Finalise(t.Context(), jobs.StepVideo, "done")

	last := store.patches[len(store.patches)-1]
	require.Equal(t, 100, *last.Progress)
}

func TestCheckCancelled_CachesForTwoSeconds(t *testing.T) {
	store := &recordingStore{status: jobs.StatusProcessing}
	clk := clock.NewFake(time.Now())
	r := New(store, clk, "job1")

	require.False(t, r.CheckCancelled(t.Context()))

	store.status = jobs.StatusCancelled
	// Still within the 2s cache window: stale answer returned.
	require.False(t, r.CheckCancelled(t.Context()))

	clk.Advance(3 * time.Second)
	require.True(t, r.CheckCancelled(t.Context()))
}
