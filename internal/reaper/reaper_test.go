package reaper

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/slidecaster/slidecaster/internal/clock"
)

type fakeStore struct {
	expired   []string
	deleted   []string
	listErr   error
	deleteErr map[string]error
}

func (s *fakeStore) ListExpired(ctx context.Context, now time.Time) ([]string, error) {
	return s.expired, s.listErr
}

func (s *fakeStore) DeleteJob(ctx context.Context, id string) error {
	if err := s.deleteErr[id]; err != nil {
		return err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestTick_RemovesArtifactsAndDeletesRecords(t *testing.T) {
	dataRoot := t.TempDir()
	jobDir := filepath.Join(dataRoot, "jobs", "job1")
	require.NoError(t, os.MkdirAll(jobDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "output_en.mp4"), []byte("x"), 0o644))

	store := &fakeStore{expired: []string{"job1"}}
	r := New(store, clock.NewFake(time.Now()), testLogger(), Config{DataRoot: dataRoot})

	r.Tick(t.Context())

	require.Equal(t, []string{"job1"}, store.deleted)
	_, err := os.Stat(jobDir)
	require.True(t, os.IsNotExist(err))
}

func TestTick_ContinuesAfterOneDeleteFails(t *testing.T) {
	dataRoot := t.TempDir()
	store := &fakeStore{
		expired:   []string{"job1", "job2"},
		deleteErr: map[string]error{"job1": context.DeadlineExceeded},
	}
	r := New(store, clock.NewFake(time.Now()), testLogger(), Config{DataRoot: dataRoot})

	r.Tick(t.Context())

	require.Equal(t, []string{"job2"}, store.deleted)
}

func TestTick_MissingArtifactDirDoesNotBlockDelete(t *testing.T) {
	dataRoot := t.TempDir()
	store := &fakeStore{expired: []string{"ghost-job"}}
	r := New(store, clock.NewFake(time.Now()), testLogger(), Config{DataRoot: dataRoot})

	r.Tick(t.Context())

	require.Equal(t, []string{"ghost-job"}, store.deleted)
}
