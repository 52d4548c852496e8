package script

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/slidecaster/slidecaster/internal/ingest"
	"github.com/slidecaster/slidecaster/internal/jobs"
	tscript "github.com/slidecaster/slidecaster/internal/script"
)

type stubIngester struct {
	content *ingest.Content
	err     error
}

func (s stubIngester) Ingest(ctx context.Context, source string) (*ingest.Content, error) {
	return s.content, s.err
}

type stubGenerator struct {
	script *tscript.Script
	err    error
	calls  int
}

func (g *stubGenerator) Generate(ctx context.Context, content string, opts tscript.GenerateOptions) (*tscript.Script, error) {
	g.calls++
	return g.script, g.err
}

func sampleScript() *tscript.Script {
	return &tscript.Script{
		Title:   "A title",
		Summary: "A summary",
		Segments: []tscript.Segment{
			{Speaker: "Alex", Text: "Hello there"},
			{Speaker: "Sam", Text: "Welcome back"},
			{Speaker: "Alex", Text: "Let's dig in"},
		},
	}
}

func TestRun_WritesScriptYAML(t *testing.T) {
	jobDir := t.TempDir()
	ingester := stubIngester{content: &ingest.Content{Text: "full text", Title: "A title"}}
	gen := &stubGenerator{script: sampleScript()}
	stage := New(Config{Model: "haiku"}, ingester, gen)

	var lastMsg string
	paths, err := stage.Run(t.Context(), jobDir, jobs.Record{URL: "https://example.com/post"}, func(done, total int, message string) {
		lastMsg = message
	})
	require.NoError(t, err)
	require.Len(t, paths, 1)
	require.Equal(t, "script complete", lastMsg)

	data, err := os.ReadFile(filepath.Join(jobDir, "script", "script.yaml"))
	require.NoError(t, err)
	require.Contains(t, string(data), "A title")
	require.Equal(t, 1, gen.calls)
}

func TestRun_SkipsWhenScriptAlreadyExists(t *testing.T) {
	jobDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(jobDir, "script"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(jobDir, "script", "script.yaml"), []byte("title: cached\n"), 0o644))

	gen := &stubGenerator{script: sampleScript()}
	stage := New(Config{}, stubIngester{}, gen)

	_, err := stage.Run(t.Context(), jobDir, jobs.Record{URL: "https://example.com/post"}, func(int, int, string) {})
	require.NoError(t, err)
	require.Equal(t, 0, gen.calls)
}

func TestRun_WritesLanguageVariants(t *testing.T) {
	jobDir := t.TempDir()
	ingester := stubIngester{content: &ingest.Content{Text: "full text", Title: "A title"}}
	gen := &stubGenerator{script: sampleScript()}
	stage := New(Config{Languages: []string{"es"}}, ingester, gen)

	paths, err := stage.Run(t.Context(), jobDir, jobs.Record{URL: "https://example.com/post"}, func(int, int, string) {})
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.FileExists(t, filepath.Join(jobDir, "script", "script_es.yaml"))
	require.Equal(t, 2, gen.calls)
}
