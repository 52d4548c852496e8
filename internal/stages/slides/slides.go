// Package slides implements the slides stage (spec §4.5, §6.4): it
// renders one image per script segment into the job's slides/<lang>/
// directory. Grounded on the avatar-generation pattern in the example
// corpus (fogleman/gg context + golang/freetype glyph rendering),
// generalized from circular avatars to full-bleed title-card slides.
package slides

import (
	"context"
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/slidecaster/slidecaster/internal/jobs"
	"github.com/slidecaster/slidecaster/internal/stages/script"
)

const (
	slideWidth  = 1920
	slideHeight = 1080
	margin      = 120
)

// Palette cycles background colors across slides so a run of many
// segments remains visually distinguishable.
var palette = []color.NRGBA{
	{R: 0x1B, G: 0x26, B: 0x38, A: 0xFF},
	{R: 0x2D, G: 0x1B, B: 0x38, A: 0xFF},
	{R: 0x1B, G: 0x38, B: 0x2D, A: 0xFF},
	{R: 0x38, G: 0x2D, B: 0x1B, A: 0xFF},
}

// Config carries the slides stage's tunables.
type Config struct {
	FontPath string // TTF path; empty uses the bundled fallback face
	Language string // primary language subdirectory name, defaults to "en"
}

// Stage runs the slides stage against one job's directory.
type Stage struct {
	cfg  Config
	face font.Face
}

// New builds a Stage, loading the title/body font once.
func New(cfg Config) (*Stage, error) {
	face, err := loadFace(cfg.FontPath, 48)
	if err != nil {
		return nil, fmt.Errorf("load slide font: %w", err)
	}
	return &Stage{cfg: cfg, face: face}, nil
}

// Run implements pipelinerun.StageRunner. It reads script/script.yaml and
// renders slides/<lang>/slide_NNNN.png, one per segment, skipping images
// already present and non-empty (idempotent per slide, spec §6.4).
func (s *Stage) Run(ctx context.Context, jobDir string, record jobs.Record, progress func(done, total int, message string)) ([]string, error) {
	data, err := os.ReadFile(filepath.Join(jobDir, "script", "script.yaml"))
	if err != nil {
		return nil, fmt.Errorf("read script: %w", err)
	}
	doc, err := script.ParseDocument(data)
	if err != nil {
		return nil, fmt.Errorf("parse script: %w", err)
	}

	lang := s.cfg.Language
	if lang == "" {
		lang = "en"
	}
	slideDir := filepath.Join(jobDir, "slides", lang)
	if err := os.MkdirAll(slideDir, 0o755); err != nil {
		return nil, fmt.Errorf("create slides directory: %w", err)
	}

	total := len(doc.Segments)
	paths := make([]string, 0, total)

	for i, seg := range doc.Segments {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		path := filepath.Join(slideDir, fmt.Sprintf("slide_%04d.png", i))
		if info, err := os.Stat(path); err == nil && info.Size() > 0 {
			paths = append(paths, path)
			progress(i+1, total, "slide already present, skipping")
			continue
		}

		if err := s.renderSlide(path, i, doc.Title, seg); err != nil {
			return nil, fmt.Errorf("render slide %d: %w", i, err)
		}
		paths = append(paths, path)
		progress(i+1, total, fmt.Sprintf("rendered slide %d/%d", i+1, total))
	}

	return paths, nil
}

func (s *Stage) renderSlide(path string, index int, title string, seg script.Segment) error {
	dc := gg.NewContext(slideWidth, slideHeight)

	bg := palette[index%len(palette)]
	dc.SetColor(bg)
	dc.DrawRectangle(0, 0, slideWidth, slideHeight)
	dc.Fill()

	dc.SetColor(color.White)
	dc.SetFontFace(s.face)
	dc.DrawStringWrapped(seg.Text, margin, slideHeight/2, 0, 0.5, slideWidth-2*margin, 1.4, gg.AlignLeft)

	dc.SetRGBA(1, 1, 1, 0.6)
	dc.DrawString(seg.Speaker, margin, margin)
	if title != "" {
		dc.DrawStringAnchored(title, slideWidth-margin, margin, 1, 0.5)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create slide file: %w", err)
	}
	defer f.Close()
	if err := dc.EncodePNG(f); err != nil {
		return fmt.Errorf("encode slide png: %w", err)
	}
	return nil
}

func loadFace(fontPath string, size float64) (font.Face, error) {
	var fontBytes []byte
	var err error
	if fontPath != "" {
		fontBytes, err = os.ReadFile(fontPath)
		if err != nil {
			return nil, fmt.Errorf("read font file: %w", err)
		}
	} else {
		fontBytes = goregular.TTF
	}

	parsed, err := truetype.Parse(fontBytes)
	if err != nil {
		return nil, fmt.Errorf("parse TTF: %w", err)
	}
	return truetype.NewFace(parsed, &truetype.Options{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingNone,
	}), nil
}
