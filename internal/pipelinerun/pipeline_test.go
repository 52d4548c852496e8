package pipelinerun

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slidecaster/slidecaster/internal/clock"
	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/progressreport"
)

type fakeStore struct {
	status jobs.Status
}

func (s *fakeStore) UpdateJob(ctx context.Context, id string, patch jobs.Patch) (jobs.Record, error) {
	return jobs.Record{}, nil
}

func (s *fakeStore) GetJob(ctx context.Context, id string) (jobs.Record, error) {
	return jobs.Record{Status: s.status}, nil
}

// writingStage is a StageRunner that writes a single artifact file of the
// given size under jobDir and reports one progress callback.
type writingStage struct {
	name     string
	size     int
	progress func(done, total int, message string)
}

func (w *writingStage) Run(ctx context.Context, jobDir string, record jobs.Record, progress func(done, total int, message string)) ([]string, error) {
	progress(1, 1, "done")
	path := filepath.Join(jobDir, w.name)
	data := make([]byte, w.size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, err
	}
	return []string{path}, nil
}

type erroringStage struct{ err error }

func (e *erroringStage) Run(ctx context.Context, jobDir string, record jobs.Record, progress func(done, total int, message string)) ([]string, error) {
	return nil, e.err
}

func newReporter(store progressreport.Store) *progressreport.Reporter {
	return progressreport.New(store, clock.NewFake(time.Now()), "job1")
}

func TestRun_HappyPath(t *testing.T) {
	dataRoot := t.TempDir()
	store := &fakeStore{status: jobs.StatusProcessing}
	reporter := newReporter(store)

	stages := Stages{
		Script: &writingStage{name: "script.yaml", size: 10},
		Audio:  &writingStage{name: "audio.mp3", size: 10},
		Slides: &writingStage{name: "slide_0.png", size: 10},
		Video:  &writingStage{name: "output_en.mp4", size: 42},
	}

	record := jobs.Record{ID: "job1"}
	outcome, err := Run(t.Context(), dataRoot, record, stages, reporter)
	require.NoError(t, err)
	require.Equal(t, int64(42), outcome.VideoSize)
	require.Equal(t, filepath.Join("jobs", "job1", "output_en.mp4"), outcome.VideoPath)
}

func TestRun_StageErrorWraps(t *testing.T) {
	dataRoot := t.TempDir()
	store := &fakeStore{status: jobs.StatusProcessing}
	reporter := newReporter(store)

	boom := require.New(t)
	stages := Stages{
		Script: &erroringStage{err: context.DeadlineExceeded},
		Audio:  &writingStage{name: "audio.mp3", size: 10},
		Slides: &writingStage{name: "slide_0.png", size: 10},
		Video:  &writingStage{name: "output_en.mp4", size: 42},
	}

	_, err := Run(t.Context(), dataRoot, jobs.Record{ID: "job1"}, stages, reporter)
	boom.Error(err)
	var stageErr *StageError
	boom.ErrorAs(err, &stageErr)
	boom.Equal(jobs.StepScript, stageErr.Step.Name)
}

func TestRun_EmptyArtifactFailsStage(t *testing.T) {
	dataRoot := t.TempDir()
	store := &fakeStore{status: jobs.StatusProcessing}
	reporter := newReporter(store)

	stages := Stages{
		Script: &writingStage{name: "script.yaml", size: 0},
		Audio:  &writingStage{name: "audio.mp3", size: 10},
		Slides: &writingStage{name: "slide_0.png", size: 10},
		Video:  &writingStage{name: "output_en.mp4", size: 42},
	}

	_, err := Run(t.Context(), dataRoot, jobs.Record{ID: "job1"}, stages, reporter)
	require.Error(t, err)
	var stageErr *StageError
	require.ErrorAs(t, err, &stageErr)
	require.Equal(t, jobs.StepScript, stageErr.Step.Name)
}

func TestRun_CancelledBeforeFirstStage(t *testing.T) {
	dataRoot := t.TempDir()
	store := &fakeStore{status: jobs.StatusCancelled}
	reporter := newReporter(store)

	stages := Stages{
		Script: &writingStage{name: "script.yaml", size: 10},
		Audio:  &writingStage{name: "audio.mp3", size: 10},
		Slides: &writingStage{name: "slide_0.png", size: 10},
		Video:  &writingStage{name: "output_en.mp4", size: 42},
	}

	_, err := Run(t.Context(), dataRoot, jobs.Record{ID: "job1"}, stages, reporter)
	require.ErrorIs(t, err, Cancelled)
}
