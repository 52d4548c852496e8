// Package script implements the script stage (spec §4.5, §6.4): it
// fetches the submitted URL's readable content and asks an LLM to turn it
// into a narrated, multi-speaker script, written to script.yaml. The
// fetch path is grounded on ingest.URLIngester; the generation path is
// grounded on the teacher's script.ClaudeGenerator.
package script

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/slidecaster/slidecaster/internal/ingest"
	"github.com/slidecaster/slidecaster/internal/jobs"
	tscript "github.com/slidecaster/slidecaster/internal/script"
)

// Config carries the script stage's tunables, sourced from job
// configuration rather than hardcoded as the teacher's CLI flags were.
type Config struct {
	Model        string
	APIKey       string
	Tone         string
	Duration     string
	Format       string // show format: conversation, interview, deep-dive, etc.; see tscript.FormatNames
	Voices       int
	Languages    []string // additional languages beyond the primary; spec §6.5 script_<lang>.yaml
	ReviewScript bool
}

// Document mirrors tscript.Script for YAML serialization: spec.md's
// persistent layout names the artifact script.yaml, not the teacher's
// JSON sidecar, so the wire shape is YAML-tagged independently of the
// teacher's json-tagged in-memory type.
type Document struct {
	Title    string     `yaml:"title"`
	Summary  string     `yaml:"summary"`
	Segments []Segment  `yaml:"segments"`
}

type Segment struct {
	Speaker string `yaml:"speaker"`
	Text    string `yaml:"text"`
}

// ParseDocument parses a script.yaml's bytes. Used by the audio and
// slides stages, which read the script stage's output rather than
// regenerating it.
func ParseDocument(data []byte) (*Document, error) {
	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse script document: %w", err)
	}
	if len(doc.Segments) == 0 {
		return nil, fmt.Errorf("script document has no segments")
	}
	return &doc, nil
}

func toDocument(s *tscript.Script) *Document {
	doc := &Document{Title: s.Title, Summary: s.Summary}
	for _, seg := range s.Segments {
		doc.Segments = append(doc.Segments, Segment{Speaker: seg.Speaker, Text: seg.Text})
	}
	return doc
}

// Stage runs the script stage against one job's directory.
type Stage struct {
	cfg       Config
	ingester  ingest.Ingester
	generator tscript.Generator
}

// New builds a Stage. generator is optional; when nil, each Run that
// generates a script creates one from cfg.Model/cfg.APIKey.
func New(cfg Config, ingester ingest.Ingester, generator tscript.Generator) *Stage {
	return &Stage{cfg: cfg, ingester: ingester, generator: generator}
}

// Run implements pipelinerun.StageRunner. jobDir is the job's root
// directory; script.yaml is written under jobDir/script/.
func (s *Stage) Run(ctx context.Context, jobDir string, record jobs.Record, progress func(done, total int, message string)) ([]string, error) {
	if s.cfg.Format != "" && !tscript.IsValidFormat(s.cfg.Format) {
		return nil, fmt.Errorf("unknown show format %q: must be one of %s", s.cfg.Format, strings.Join(tscript.FormatNames(), ", "))
	}

	scriptDir := filepath.Join(jobDir, "script")
	if err := os.MkdirAll(scriptDir, 0o755); err != nil {
		return nil, fmt.Errorf("create script directory: %w", err)
	}

	primaryPath := filepath.Join(scriptDir, "script.yaml")
	if existing, err := os.Stat(primaryPath); err == nil && existing.Size() > 0 {
		// Idempotent per spec §6.4: a non-empty script.yaml is reused.
		paths := []string{primaryPath}
		for _, lang := range s.cfg.Languages {
			paths = append(paths, filepath.Join(scriptDir, fmt.Sprintf("script_%s.yaml", lang)))
		}
		progress(1, 1, "script already present, skipping")
		return paths, nil
	}

	progress(0, 3, "fetching source content")

	content, err := s.ingester.Ingest(ctx, record.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch source content: %w", err)
	}

	progress(1, 3, "generating script")

	generator := s.generator
	if generator == nil {
		var genErr error
		generator, genErr = tscript.NewGenerator(s.cfg.Model, s.cfg.APIKey)
		if genErr != nil {
			return nil, fmt.Errorf("build script generator: %w", genErr)
		}
	}

	opts := tscript.GenerateOptions{
		Topic:    content.Title,
		Tone:     s.cfg.Tone,
		Duration: s.cfg.Duration,
		Format:   s.cfg.Format,
		Model:    s.cfg.Model,
		Voices:   s.cfg.Voices,
	}

	generated, err := generator.Generate(ctx, content.Text, opts)
	if err != nil {
		return nil, fmt.Errorf("generate script: %w", err)
	}

	if s.cfg.ReviewScript {
		if notes := review(generated); len(notes) > 0 {
			progress(2, 3, fmt.Sprintf("script review: %s", strings.Join(notes, "; ")))
		}
	}

	if err := writeYAML(primaryPath, toDocument(generated)); err != nil {
		return nil, fmt.Errorf("write script.yaml: %w", err)
	}

	paths := []string{primaryPath}
	for _, lang := range s.cfg.Languages {
		variantPath := filepath.Join(scriptDir, fmt.Sprintf("script_%s.yaml", lang))
		variant, err := generator.Generate(ctx, content.Text, withLanguage(opts, lang))
		if err != nil {
			return nil, fmt.Errorf("generate %s script variant: %w", lang, err)
		}
		if err := writeYAML(variantPath, toDocument(variant)); err != nil {
			return nil, fmt.Errorf("write script_%s.yaml: %w", lang, err)
		}
		paths = append(paths, variantPath)
	}

	progress(3, 3, "script complete")
	return paths, nil
}

func withLanguage(opts tscript.GenerateOptions, lang string) tscript.GenerateOptions {
	opts.Topic = opts.Topic + " (" + lang + ")"
	return opts
}

func writeYAML(path string, doc *Document) error {
	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// review applies the non-blocking segment/slide balance check of the
// teacher's script.Reviewer, folded into this stage per the supplemented
// review-pass feature.
func review(s *tscript.Script) []string {
	var notes []string
	if len(s.Segments) < 3 {
		notes = append(notes, "fewer than 3 segments; slide coverage may be thin")
	}
	speakerSeen := map[string]bool{}
	for _, seg := range s.Segments {
		speakerSeen[seg.Speaker] = true
	}
	if len(speakerSeen) < 2 {
		notes = append(notes, "script uses a single speaker")
	}
	return notes
}
