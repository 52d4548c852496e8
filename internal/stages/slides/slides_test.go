package slides

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slidecaster/slidecaster/internal/jobs"
)

func writeScript(t *testing.T, jobDir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "script"), 0o755))
	content := "title: t\nsummary: s\nsegments:\n  - speaker: Alex\n    text: hello there\n  - speaker: Sam\n    text: welcome back\n"
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "script", "script.yaml"), []byte(content), 0o644))
}

func TestRun_RendersOneSlidePerSegment(t *testing.T) {
	jobDir := t.TempDir()
	writeScript(t, jobDir)

	stage, err := New(Config{})
	require.NoError(t, err)

	paths, err := stage.Run(t.Context(), jobDir, jobs.Record{}, func(int, int, string) {})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.FileExists(t, filepath.Join(jobDir, "slides", "en", "slide_0000.png"))
	require.FileExists(t, filepath.Join(jobDir, "slides", "en", "slide_0001.png"))
}

func TestRun_SkipsExistingSlide(t *testing.T) {
	jobDir := t.TempDir()
	writeScript(t, jobDir)
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "slides", "en"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "slides", "en", "slide_0000.png"), []byte("cached"), 0o644))

	stage, err := New(Config{})
	require.NoError(t, err)

	paths, err := stage.Run(t.Context(), jobDir, jobs.Record{}, func(int, int, string) {})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	cached, err := os.ReadFile(filepath.Join(jobDir, "slides", "en", "slide_0000.png"))
	require.NoError(t, err)
	require.Equal(t, "cached", string(cached))
}
