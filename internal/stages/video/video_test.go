package video

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slidecaster/slidecaster/internal/jobs"
)

func requireFFmpeg(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		t.Skip("ffmpeg not installed, skipping video mux test")
	}
}

func writeFixture(t *testing.T, jobDir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "audio"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "slides", "en"), 0o755))

	// Minimal valid MP3 and PNG fixtures are produced by ffmpeg itself in
	// a real run; here we only need globSorted/writeImageConcatList to see
	// files. TestRun_InvalidMediaFailsInFFmpeg relies on ffmpeg rejecting
	// these fake files.
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "audio", "phrase_0000.mp3"), []byte("not-real-audio"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "slides", "en", "slide_0000.png"), []byte("not-real-png"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "slides", "en", "slide_0001.png"), []byte("not-real-png"), 0o644))
}

func TestRun_NoAudioFails(t *testing.T) {
	jobDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "slides", "en"), 0o755))

	stage := New(Config{})
	_, err := stage.Run(t.Context(), jobDir, jobs.Record{}, func(int, int, string) {})
	require.Error(t, err)
}

func TestRun_NoSlidesFails(t *testing.T) {
	jobDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "audio"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "audio", "phrase_0000.mp3"), []byte("x"), 0o644))

	stage := New(Config{})
	_, err := stage.Run(t.Context(), jobDir, jobs.Record{}, func(int, int, string) {})
	require.Error(t, err)
}

func TestRun_InvalidMediaFailsInFFmpeg(t *testing.T) {
	requireFFmpeg(t)

	jobDir := t.TempDir()
	writeFixture(t, jobDir)

	stage := New(Config{})
	_, err := stage.Run(t.Context(), jobDir, jobs.Record{}, func(int, int, string) {})
	// The fixtures are not real media, so ffmpeg is expected to reject
	// them; this exercises the error-wrapping path end to end.
	require.Error(t, err)
}

func TestWriteImageConcatList_RepeatsFinalFrame(t *testing.T) {
	dir := t.TempDir()
	slides := []string{
		filepath.Join(dir, "slide_0000.png"),
		filepath.Join(dir, "slide_0001.png"),
	}
	listPath := filepath.Join(dir, "list.txt")

	require.NoError(t, writeImageConcatList(slides, 5, listPath))

	data, err := os.ReadFile(listPath)
	require.NoError(t, err)
	content := string(data)
	require.Contains(t, content, "duration 5.000")
	// The concat demuxer drops the duration of the trailing entry, so the
	// last slide is listed twice: once with a duration, once without.
	require.Equal(t, 2, countOccurrences(content, "slide_0001.png"))
}

func countOccurrences(s, substr string) int {
	count := 0
	for i := 0; i+len(substr) <= len(s); i++ {
		if s[i:i+len(substr)] == substr {
			count++
		}
	}
	return count
}
