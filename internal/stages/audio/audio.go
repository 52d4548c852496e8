// Package audio implements the audio stage (spec §4.5, §6.4): it
// synthesizes one narration file per script segment through a TTS
// provider and writes them under the job's audio/ directory. Grounded on
// the teacher's tts.Provider/ProviderSet and its per-segment synthesis
// loop in pipeline.go.
package audio

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/slidecaster/slidecaster/internal/assembly"
	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/stages/script"
	"github.com/slidecaster/slidecaster/internal/tts"
)

// Config carries the audio stage's tunables.
type Config struct {
	ProviderName string // "elevenlabs" or "polly"
	Voice1       string
	Voice2       string
	Voice3       string
	ProviderCfg  tts.ProviderConfig
}

// Stage runs the audio stage against one job's directory.
type Stage struct {
	cfg      Config
	provider tts.Provider
}

// New builds a Stage. provider is optional; when nil, each Run creates one
// from cfg and closes it when done.
func New(cfg Config, provider tts.Provider) *Stage {
	return &Stage{cfg: cfg, provider: provider}
}

// Run implements pipelinerun.StageRunner. It reads script/script.yaml,
// synthesizes each segment into audio/phrase_NNNN.mp3, skipping files
// already present and non-empty (idempotent per utterance, spec §6.4).
func (s *Stage) Run(ctx context.Context, jobDir string, record jobs.Record, progress func(done, total int, message string)) ([]string, error) {
	doc, err := readScript(filepath.Join(jobDir, "script", "script.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}

	audioDir := filepath.Join(jobDir, "audio")
	if err := os.MkdirAll(audioDir, 0o755); err != nil {
		return nil, fmt.Errorf("create audio directory: %w", err)
	}

	provider := s.provider
	if provider == nil {
		var provErr error
		provider, provErr = tts.NewProvider(s.cfg.ProviderName, s.cfg.Voice1, s.cfg.Voice2, s.cfg.Voice3, s.cfg.ProviderCfg)
		if provErr != nil {
			return nil, fmt.Errorf("build TTS provider: %w", provErr)
		}
		defer provider.Close()
	}

	voices := provider.DefaultVoices()
	total := len(doc.Segments)
	paths := make([]string, 0, total)

	for i, seg := range doc.Segments {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		path := filepath.Join(audioDir, fmt.Sprintf("phrase_%04d.mp3", i))
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			paths = append(paths, path)
			progress(i+1, total, "phrase already present, skipping")
			continue
		}

		voice := tts.VoiceForSpeaker(seg.Speaker, voices)
		var result tts.AudioResult
		err := tts.WithRetry(ctx, func() error {
			var synthErr error
			result, synthErr = provider.Synthesize(ctx, seg.Text, voice)
			return synthErr
		})
		if err != nil {
			return nil, fmt.Errorf("synthesize phrase %d: %w", i, err)
		}

		if result.Format == tts.FormatMP3 {
			if err := os.WriteFile(path, result.Data, 0o644); err != nil {
				return nil, fmt.Errorf("write phrase %d: %w", i, err)
			}
		} else {
			if err := convertToMP3(ctx, result, path); err != nil {
				return nil, fmt.Errorf("convert phrase %d to mp3: %w", i, err)
			}
		}
		paths = append(paths, path)
		progress(i+1, total, fmt.Sprintf("synthesized phrase %d/%d", i+1, total))
	}

	return paths, nil
}

func readScript(path string) (*script.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return script.ParseDocument(data)
}

// convertToMP3 spills a non-MP3 provider result to a temp file and shells
// out to FFmpeg, matching assembly.ConvertToMP3's audio-quality constants.
func convertToMP3(ctx context.Context, result tts.AudioResult, output string) error {
	tmp, err := os.CreateTemp(filepath.Dir(output), "raw-*."+string(result.Format))
	if err != nil {
		return fmt.Errorf("create temp raw audio: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(result.Data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp raw audio: %w", err)
	}
	tmp.Close()

	return assembly.ConvertToMP3(ctx, tmp.Name(), string(result.Format), output)
}
