package worker

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slidecaster/slidecaster/internal/clock"
	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/pipelinerun"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writeAll(path string, data []byte) error {
	return os.WriteFile(path, data, 0o644)
}

type fakeStore struct {
	mu      sync.Mutex
	records map[string]jobs.Record
	patches []jobs.Patch
}

func newFakeStore(records ...jobs.Record) *fakeStore {
	s := &fakeStore{records: map[string]jobs.Record{}}
	for _, r := range records {
		s.records[r.ID] = r
	}
	return s
}

func (s *fakeStore) ListByStatus(ctx context.Context, status jobs.Status, limit int) ([]jobs.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []jobs.Record
	for _, r := range s.records {
		if r.Status == status {
			out = append(out, r)
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *fakeStore) UpdateJob(ctx context.Context, id string, patch jobs.Patch) (jobs.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, patch)
	rec := s.records[id]
	if patch.Status != nil {
		rec.Status = *patch.Status
	}
	if patch.Progress != nil {
		rec.Progress = *patch.Progress
	}
	if patch.VideoPath != nil {
		rec.VideoPath = *patch.VideoPath
	}
	if patch.ErrorMessage != nil {
		rec.ErrorMessage = *patch.ErrorMessage
	}
	s.records[id] = rec
	return rec, nil
}

func (s *fakeStore) GetJob(ctx context.Context, id string) (jobs.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id], nil
}

func (s *fakeStore) statusOf(id string) jobs.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[id].Status
}

type fakeStage struct {
	size int
	err  error
}

func (f *fakeStage) Run(ctx context.Context, jobDir string, record jobs.Record, progress pipelinerun.ProgressFunc) ([]string, error) {
	if f.err != nil {
		return nil, f.err
	}
	path := filepath.Join(jobDir, "output_en.mp4")
	if err := writeFile(path, f.size); err != nil {
		return nil, err
	}
	progress(1, 1, "done")
	return []string{path}, nil
}

func writeFile(path string, size int) error {
	data := make([]byte, size)
	return writeAll(path, data)
}

func TestRecover_TransitionsStuckJobsToFailed(t *testing.T) {
	store := newFakeStore(jobs.Record{ID: "job1", Status: jobs.StatusProcessing})
	w := New(store, clock.NewFake(time.Now()), testLogger(), Config{DataRoot: t.TempDir()}, noopStages)

	w.Recover(t.Context())

	require.Equal(t, jobs.StatusFailed, store.statusOf("job1"))
}

func TestTick_ClaimsPendingUpToAvailableCapacity(t *testing.T) {
	store := newFakeStore(
		jobs.Record{ID: "job1", Status: jobs.StatusPending},
		jobs.Record{ID: "job2", Status: jobs.StatusPending},
		jobs.Record{ID: "job3", Status: jobs.StatusPending},
	)
	cfg := Config{DataRoot: t.TempDir(), MaxConcurrentJobs: 2}
	w := New(store, clock.NewFake(time.Now()), testLogger(), cfg, func(r jobs.Record) pipelinerun.Stages {
		return okStages()
	})

	w.tick(t.Context())

	deadline := time.After(2 * time.Second)
	for {
		w.mu.Lock()
		inFlight := w.inFlight
		w.mu.Unlock()
		if inFlight == 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("jobs never finished")
		case <-time.After(5 * time.Millisecond):
		}
	}

	completed := 0
	store.mu.Lock()
	for _, r := range store.records {
		if r.Status == jobs.StatusCompleted {
			completed++
		}
	}
	store.mu.Unlock()
	require.Equal(t, 2, completed)
}

func TestProcess_StageFailureMarksJobFailed(t *testing.T) {
	store := newFakeStore(jobs.Record{ID: "job1", Status: jobs.StatusPending})
	w := New(store, clock.NewFake(time.Now()), testLogger(), Config{DataRoot: t.TempDir()}, func(r jobs.Record) pipelinerun.Stages {
		return pipelinerun.Stages{
			Script: &fakeStage{err: fmt.Errorf("boom")},
			Audio:  &fakeStage{size: 1},
			Slides: &fakeStage{size: 1},
			Video:  &fakeStage{size: 1},
		}
	})

	w.process(t.Context(), jobs.Record{ID: "job1", Status: jobs.StatusPending})

	require.Equal(t, jobs.StatusFailed, store.statusOf("job1"))
}

func okStages() pipelinerun.Stages {
	return pipelinerun.Stages{
		Script: &fakeStage{size: 1},
		Audio:  &fakeStage{size: 1},
		Slides: &fakeStage{size: 1},
		Video:  &fakeStage{size: 42},
	}
}

func noopStages(r jobs.Record) pipelinerun.Stages { return okStages() }
