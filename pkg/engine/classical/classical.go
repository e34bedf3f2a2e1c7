// Package classical adapts tesseract to the engine interface.
//
// The engine renders the prepared page as PNG, asks a Runner for hOCR and turns every
// hOCR line into one region. Tesseract reports word confidences only, so a region's
// confidence is the mean of its words' x_wconf.
package classical

import (
	"context"
	"errors"
	"fmt"

	"github.com/gardar/ocrmux/pkg/engine"
	"github.com/gardar/ocrmux/pkg/hocr"
	"github.com/gardar/ocrmux/pkg/prep"
	"github.com/gardar/ocrmux/pkg/result"
)

// DefaultLanguage is the tesseract language used when none is configured.
const DefaultLanguage = "eng"

// DefaultRequirements suit tesseract's own binarization.
var DefaultRequirements = prep.Requirements{
	Color:        prep.ColorGray,
	MaxDimension: 4000,
	Deskew:       true,
}

// Request is one recognition call.
type Request struct {
	PNG      []byte
	Language string // Tesseract language codes joined by '+'
	DPI      int    // Resolution hint, 0 lets tesseract guess
}

// Runner produces hOCR for an image.
type Runner interface {
	HOCR(ctx context.Context, req Request) ([]byte, error)
}

// Options configures an Engine.
type Options struct {
	Name         string             // Defaults to "tesseract"
	Language     string             // Defaults to DefaultLanguage
	Requirements *prep.Requirements // Defaults to DefaultRequirements
}

// Engine is the classical OCR engine.
type Engine struct {
	runner Runner
	name   string
	lang   string
	req    prep.Requirements
}

var _ engine.Engine = (*Engine)(nil)

// New returns an Engine that reads pages with runner.
func New(runner Runner, opts Options) *Engine {
	e := &Engine{runner: runner, name: opts.Name, lang: opts.Language, req: DefaultRequirements}
	if e.name == "" {
		e.name = "tesseract"
	}
	if e.lang == "" {
		e.lang = DefaultLanguage
	}
	if opts.Requirements != nil {
		e.req = *opts.Requirements
	}
	return e
}

func (e *Engine) Name() string                    { return e.name }
func (e *Engine) Kind() result.EngineKind         { return result.KindClassical }
func (e *Engine) Capabilities() engine.Capability { return engine.DetectAndRecognize }
func (e *Engine) Requirements() prep.Requirements { return e.req }

// Recognize runs tesseract on page and returns one region per hOCR line.
func (e *Engine) Recognize(ctx context.Context, page *prep.PreparedPage) ([]result.TextRegion, error) {
	img, err := page.PNG()
	if err != nil {
		return nil, err
	}
	out, err := e.runner.HOCR(ctx, Request{PNG: img, Language: e.lang, DPI: page.DPI})
	if err != nil {
		return nil, err
	}
	doc, err := hocr.Parse(out)
	if err != nil {
		return nil, fmt.Errorf("unreadable hOCR output: %w", err)
	}
	var regions []result.TextRegion
	for _, p := range doc.Pages {
		regions = append(regions, Regions(p, page)...)
	}
	return regions, nil
}

// Regions converts the lines of an hOCR page into regions in page pixel coordinates.
// Lines without text are skipped.
func Regions(p hocr.Page, page *prep.PreparedPage) []result.TextRegion {
	var regions []result.TextRegion
	for _, line := range p.AllLines() {
		text := line.Text()
		if text == "" {
			continue
		}
		box := line.BBox
		if box.Empty() {
			box = wordBounds(line.Words)
		}
		poly := result.RectPolygon(box.X1, box.Y1, box.X2, box.Y2)
		regions = append(regions, result.TextRegion{
			Text:       text,
			Confidence: lineConfidence(line),
			Polygon:    page.ToPagePolygon(poly),
		})
	}
	return regions
}

// lineConfidence is the mean x_wconf of the line's words scaled to [0,1], or unknown
// when no word reports one.
func lineConfidence(line hocr.Line) result.Confidence {
	var sum float64
	var n int
	for _, w := range line.Words {
		if w.HasConfidence && w.Text != "" {
			sum += w.Confidence
			n++
		}
	}
	if n == 0 {
		return result.Unknown
	}
	return result.Score(sum / float64(n) / 100)
}

func wordBounds(words []hocr.Word) hocr.BBox {
	var b hocr.BBox
	first := true
	for _, w := range words {
		if w.BBox.Empty() {
			continue
		}
		if first {
			b, first = w.BBox, false
			continue
		}
		b.X1, b.Y1 = min(b.X1, w.BBox.X1), min(b.Y1, w.BBox.Y1)
		b.X2, b.Y2 = max(b.X2, w.BBox.X2), max(b.Y2, w.BBox.Y2)
	}
	return b
}

// ErrNotInstalled is returned by runners whose tesseract installation is missing.
var ErrNotInstalled = errors.New("tesseract not installed")
