// Package video implements the video stage (spec §4.5, §6.4): it muxes
// the slide images and narration audio for one language into
// output_<lang>.mp4 via an FFmpeg subprocess. Generalized from the
// teacher's audio-only concatenation in assembly/ffmpeg.go to an
// image-sequence + audio mux.
package video

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/slidecaster/slidecaster/internal/assembly"
	"github.com/slidecaster/slidecaster/internal/jobs"
)

// Config carries the video stage's tunables.
type Config struct {
	Language        string // defaults to "en"
	SecondsPerSlide float64
}

// Stage runs the video stage against one job's directory. Not idempotent
// per spec §6.4: a prior partial output_<lang>.mp4 is always rerendered.
type Stage struct {
	cfg Config
}

func New(cfg Config) *Stage {
	if cfg.SecondsPerSlide <= 0 {
		cfg.SecondsPerSlide = 6
	}
	if cfg.Language == "" {
		cfg.Language = "en"
	}
	return &Stage{cfg: cfg}
}

// Run implements pipelinerun.StageRunner. It concatenates the audio
// phrases, builds an image-sequence input list matched to slide count,
// and muxes the two via FFmpeg.
func (s *Stage) Run(ctx context.Context, jobDir string, record jobs.Record, progress func(done, total int, message string)) ([]string, error) {
	audioFiles, err := globSorted(filepath.Join(jobDir, "audio"), "phrase_*.mp3")
	if err != nil {
		return nil, fmt.Errorf("list audio phrases: %w", err)
	}
	if len(audioFiles) == 0 {
		return nil, fmt.Errorf("no audio phrases found in %s", filepath.Join(jobDir, "audio"))
	}

	slideFiles, err := globSorted(filepath.Join(jobDir, "slides", s.cfg.Language), "slide_*.png")
	if err != nil {
		return nil, fmt.Errorf("list slides: %w", err)
	}
	if len(slideFiles) == 0 {
		return nil, fmt.Errorf("no slides found for language %s", s.cfg.Language)
	}

	remotionDir := filepath.Join(jobDir, "remotion")
	if err := os.MkdirAll(remotionDir, 0o755); err != nil {
		return nil, fmt.Errorf("create remotion workdir: %w", err)
	}

	progress(0, 3, "concatenating narration")
	narrationPath := filepath.Join(remotionDir, fmt.Sprintf("narration_%s.mp3", s.cfg.Language))
	assembler := assembly.NewFFmpegAssembler()
	if err := assembler.Assemble(ctx, audioFiles, remotionDir, narrationPath); err != nil {
		return nil, fmt.Errorf("assemble narration: %w", err)
	}

	progress(1, 3, "building slide sequence")
	concatListPath := filepath.Join(remotionDir, fmt.Sprintf("slides_%s.txt", s.cfg.Language))
	if err := writeImageConcatList(slideFiles, s.cfg.SecondsPerSlide, concatListPath); err != nil {
		return nil, fmt.Errorf("build slide concat list: %w", err)
	}

	progress(2, 3, "rendering video")
	outputPath := filepath.Join(jobDir, fmt.Sprintf("output_%s.mp4", s.cfg.Language))
	if err := muxSlideshow(ctx, concatListPath, narrationPath, outputPath); err != nil {
		return nil, fmt.Errorf("mux video: %w", err)
	}

	progress(3, 3, "video complete")
	return []string{outputPath}, nil
}

func globSorted(dir, pattern string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)
	return matches, nil
}

// writeImageConcatList builds an FFmpeg concat-demuxer list that holds
// each slide on screen for secondsPerSlide; the final entry is repeated
// without a duration directive, which the concat demuxer requires to
// avoid dropping the last frame.
func writeImageConcatList(slides []string, secondsPerSlide float64, listPath string) error {
	var b strings.Builder
	for _, slide := range slides {
		fmt.Fprintf(&b, "file '%s'\n", slide)
		fmt.Fprintf(&b, "duration %.3f\n", secondsPerSlide)
	}
	if len(slides) > 0 {
		fmt.Fprintf(&b, "file '%s'\n", slides[len(slides)-1])
	}
	return os.WriteFile(listPath, []byte(b.String()), 0o644)
}

func muxSlideshow(ctx context.Context, concatListPath, narrationPath, output string) error {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-f", "concat",
		"-safe", "0",
		"-i", concatListPath,
		"-i", narrationPath,
		"-c:v", "libx264",
		"-pix_fmt", "yuv420p",
		"-vsync", "vfr",
		"-c:a", "aac",
		"-b:a", assembly.AudioBitrate,
		"-shortest",
		"-y",
		output,
	)
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("ffmpeg mux failed: %w\n%s", err, stderr.String())
	}

	info, err := os.Stat(output)
	if err != nil {
		return fmt.Errorf("output file not created: %w", err)
	}
	if info.Size() == 0 {
		return fmt.Errorf("output file is empty")
	}
	return nil
}
