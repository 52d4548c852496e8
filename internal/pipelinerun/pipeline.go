// Package pipelinerun is the pipeline runner (spec §4.5): it executes the
// four pipeline stages for one job inside its artifact directory,
// translating each stage's local progress onto a global band and checking
// for cancellation at stage boundaries. The stage-sequencing and
// typed-error shape is adapted from the teacher's pipeline.Run and
// PipelineError.
package pipelinerun

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/progressreport"
)

var tracer = otel.Tracer("slidecaster/pipelinerun")

// StageError reports a failure from one of the four stages (spec §4.5,
// §7). The message is a concise one-line summary; no stack trace is
// persisted to the job record.
type StageError struct {
	Step Step
	Err  error
}

func (e *StageError) Error() string { return fmt.Sprintf("%s stage failed: %v", e.Step, e.Err) }
func (e *StageError) Unwrap() error { return e.Err }

// Cancelled is returned by Run when the job was observed cancelled; the
// caller (the worker) must not overwrite the cancelled status.
var Cancelled = fmt.Errorf("job cancelled")

// Step identifies one of the four pipeline stages along with its progress
// band (spec §4.5's stage table).
type Step struct {
	Name      jobs.Step
	BandStart int
	BandEnd   int
}

var steps = []Step{
	{Name: jobs.StepScript, BandStart: 0, BandEnd: 20},
	{Name: jobs.StepAudio, BandStart: 20, BandEnd: 55},
	{Name: jobs.StepSlides, BandStart: 55, BandEnd: 80},
	{Name: jobs.StepVideo, BandStart: 80, BandEnd: 100},
}

// ProgressFunc is the per-stage progress callback contract of spec §4.5:
// (done, total, message).
type ProgressFunc = func(done, total int, message string)

// StageRunner is implemented by each of the four concrete stages. record
// is the job's current database record (read-only; stages act on jobDir,
// not on the record store) so the script stage can read the submitted
// URL without a side channel.
type StageRunner interface {
	// Run executes the stage against jobDir, invoking progress as work
	// completes, and returns the paths of artifacts it produced.
	Run(ctx context.Context, jobDir string, record jobs.Record, progress ProgressFunc) ([]string, error)
}

// Stages bundles the four concrete stage implementations in order.
type Stages struct {
	Script StageRunner
	Audio  StageRunner
	Slides StageRunner
	Video  StageRunner

	// Languages is the configured language order for this job (spec §D.3:
	// the first entry is primary). A nil/empty slice falls back to
	// directory order.
	Languages []string
}

func (s Stages) runners() []StageRunner {
	return []StageRunner{s.Script, s.Audio, s.Slides, s.Video}
}

// Outcome is the pipeline's result for a successful run (spec §4.5).
type Outcome struct {
	VideoPath string
	VideoSize int64
}

// Run executes the four stages in sequence inside dataRoot/jobs/<id>/,
// reporting progress through reporter and honouring cancellation at each
// stage boundary (spec §4.5, §5).
func Run(ctx context.Context, dataRoot string, record jobs.Record, stages Stages, reporter *progressreport.Reporter) (Outcome, error) {
	ctx, span := tracer.Start(ctx, "pipeline.run")
	defer span.End()
	span.SetAttributes(attribute.String("job.id", record.ID))

	jobDir := filepath.Join(dataRoot, "jobs", record.ID)
	if err := os.MkdirAll(jobDir, 0o755); err != nil {
		return Outcome{}, fmt.Errorf("create job directory: %w", err)
	}

	runners := stages.runners()
	for i, step := range steps {
		if reporter.CheckCancelled(ctx) {
			span.SetStatus(codes.Ok, "cancelled before stage")
			return Outcome{}, Cancelled
		}

		span.AddEvent("stage start", trace.WithAttributes(
			attribute.String("job.stage", string(step.Name)),
		))

		reporter.SetStep(ctx, step.Name, step.BandStart, step.BandEnd, fmt.Sprintf("starting %s", step.Name))

		progress := func(done, total int, message string) {
			reporter.Report(ctx, step.Name, done, total, message)
		}

		artifacts, err := func() (paths []string, err error) {
			defer func() {
				if r := recover(); r != nil {
					err = fmt.Errorf("panic: %v", r)
				}
			}()
			return runners[i].Run(ctx, jobDir, record, progress)
		}()
		if err != nil {
			span.RecordError(err)
			return Outcome{}, &StageError{Step: step, Err: err}
		}
		if err := verifyArtifacts(artifacts); err != nil {
			return Outcome{}, &StageError{Step: step, Err: err}
		}

		reporter.Finalise(ctx, step.Name, fmt.Sprintf("%s complete", step.Name))
	}

	if reporter.CheckCancelled(ctx) {
		return Outcome{}, Cancelled
	}

	videoPath, err := chooseVideoPath(jobDir, stages.Languages)
	if err != nil {
		return Outcome{}, &StageError{Step: steps[len(steps)-1], Err: err}
	}
	info, err := os.Stat(videoPath)
	if err != nil {
		return Outcome{}, &StageError{Step: steps[len(steps)-1], Err: fmt.Errorf("stat final artifact: %w", err)}
	}

	relPath, err := filepath.Rel(dataRoot, videoPath)
	if err != nil {
		relPath = videoPath
	}
	return Outcome{VideoPath: relPath, VideoSize: info.Size()}, nil
}

// verifyArtifacts applies spec §4.5's rule that an empty (zero-byte)
// artifact is treated as a stage failure, even if the stage itself
// reported success.
func verifyArtifacts(paths []string) error {
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return fmt.Errorf("declared artifact missing: %s: %w", p, err)
		}
		if info.Size() == 0 {
			return fmt.Errorf("declared artifact is empty: %s", p)
		}
	}
	return nil
}

// chooseVideoPath selects the primary-language output per spec §4.5/§D.3:
// the first entry of languages that has a matching output_<lang>.mp4 wins.
// With no configured languages (or none of them present), it falls back to
// the first output_*.mp4 found in directory order.
func chooseVideoPath(jobDir string, languages []string) (string, error) {
	entries, err := os.ReadDir(jobDir)
	if err != nil {
		return "", fmt.Errorf("read job directory: %w", err)
	}

	present := map[string]bool{}
	var fallback string
	for _, e := range entries {
		name := e.Name()
		if !e.IsDir() && strings.HasPrefix(name, "output_") && filepath.Ext(name) == ".mp4" {
			present[name] = true
			if fallback == "" {
				fallback = name
			}
		}
	}

	for _, lang := range languages {
		name := fmt.Sprintf("output_%s.mp4", lang)
		if present[name] {
			return filepath.Join(jobDir, name), nil
		}
	}

	if fallback != "" {
		return filepath.Join(jobDir, fallback), nil
	}
	return "", fmt.Errorf("no output_<lang>.mp4 artifact found in %s", jobDir)
}
