package audio

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/tts"
)

type stubProvider struct {
	calls  int
	format tts.AudioFormat
}

func (p *stubProvider) Name() string { return "stub" }

func (p *stubProvider) DefaultVoices() tts.VoiceMap {
	return tts.VoiceMap{
		Host1: tts.Voice{ID: "v1", Name: "Alex"},
		Host2: tts.Voice{ID: "v2", Name: "Sam"},
	}
}

func (p *stubProvider) Synthesize(ctx context.Context, text string, voice tts.Voice) (tts.AudioResult, error) {
	p.calls++
	format := p.format
	if format == "" {
		format = tts.FormatMP3
	}
	return tts.AudioResult{Data: []byte("audio-" + text), Format: format}, nil
}

func (p *stubProvider) Close() error { return nil }

func writeScript(t *testing.T, jobDir string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "script"), 0o755))
	content := "title: t\nsummary: s\nsegments:\n  - speaker: Alex\n    text: hello\n  - speaker: Sam\n    text: world\n"
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "script", "script.yaml"), []byte(content), 0o644))
}

func TestRun_SynthesizesEachSegment(t *testing.T) {
	jobDir := t.TempDir()
	writeScript(t, jobDir)
	provider := &stubProvider{}
	stage := New(Config{}, provider)

	paths, err := stage.Run(t.Context(), jobDir, jobs.Record{}, func(int, int, string) {})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.Equal(t, 2, provider.calls)
	for _, p := range paths {
		info, err := os.Stat(p)
		require.NoError(t, err)
		require.Greater(t, info.Size(), int64(0))
	}
}

func TestRun_SkipsExistingPhrase(t *testing.T) {
	jobDir := t.TempDir()
	writeScript(t, jobDir)
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "audio"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "audio", "phrase_0000.mp3"), []byte("cached"), 0o644))

	provider := &stubProvider{}
	stage := New(Config{}, provider)

	_, err := stage.Run(t.Context(), jobDir, jobs.Record{}, func(int, int, string) {})
	require.NoError(t, err)
	require.Equal(t, 1, provider.calls) // only the second, missing segment is synthesized
}
