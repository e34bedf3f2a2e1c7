// Package neural adapts detector and recognizer models to the engine interface.
//
// A Model reads an image and returns text lines with per-token probabilities. The
// adapter turns each line into a region whose confidence aggregates those
// probabilities, by default with their minimum: one unreadable character makes the
// whole region doubtful. Model backends live in subpackages (onnx, docai).
package neural

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	"github.com/gardar/ocrmux/pkg/engine"
	"github.com/gardar/ocrmux/pkg/prep"
	"github.com/gardar/ocrmux/pkg/result"
)

// Line is one recognized text line in image coordinates.
type Line struct {
	Polygon    result.Polygon
	Text       string
	TokenProbs []float64 // Probability of each emitted token, empty when unknown
}

// Model reads text from an image.
type Model interface {
	Read(ctx context.Context, img image.Image) ([]Line, error)
}

// Aggregation folds token probabilities into a region confidence.
type Aggregation int

const (
	// AggregateMin takes the least certain token.
	AggregateMin Aggregation = iota
	// AggregateMean averages over tokens.
	AggregateMean
)

// ParseAggregation maps "min" and "mean" to an Aggregation.
func ParseAggregation(s string) (Aggregation, error) {
	switch strings.ToLower(s) {
	case "", "min":
		return AggregateMin, nil
	case "mean":
		return AggregateMean, nil
	}
	return 0, fmt.Errorf("unknown confidence aggregation %q", s)
}

func (a Aggregation) String() string {
	if a == AggregateMean {
		return "mean"
	}
	return "min"
}

// Aggregate folds probs with a. No tokens yields an unknown confidence.
func Aggregate(probs []float64, a Aggregation) result.Confidence {
	if len(probs) == 0 {
		return result.Unknown
	}
	switch a {
	case AggregateMean:
		var sum float64
		for _, p := range probs {
			sum += p
		}
		return result.Score(sum / float64(len(probs)))
	default:
		m := math.Inf(1)
		for _, p := range probs {
			m = math.Min(m, p)
		}
		return result.Score(m)
	}
}

// DefaultRequirements keep color, which detection models are trained on.
var DefaultRequirements = prep.Requirements{Color: prep.ColorRGB, MaxDimension: 2560}

// Options configures an Engine.
type Options struct {
	Name         string             // Defaults to "neural"
	Aggregation  Aggregation        // Defaults to AggregateMin
	Requirements *prep.Requirements // Defaults to DefaultRequirements
}

// Engine is the neural OCR engine.
type Engine struct {
	model Model
	name  string
	agg   Aggregation
	req   prep.Requirements
}

var _ engine.Engine = (*Engine)(nil)

// New returns an Engine backed by model.
func New(model Model, opts Options) *Engine {
	e := &Engine{model: model, name: opts.Name, agg: opts.Aggregation, req: DefaultRequirements}
	if e.name == "" {
		e.name = "neural"
	}
	if opts.Requirements != nil {
		e.req = *opts.Requirements
	}
	return e
}

func (e *Engine) Name() string                    { return e.name }
func (e *Engine) Kind() result.EngineKind         { return result.KindNeural }
func (e *Engine) Requirements() prep.Requirements { return e.req }

// Capabilities reports RecognizeOnly for models that cannot locate text.
func (e *Engine) Capabilities() engine.Capability {
	if c, ok := e.model.(interface{ Capability() engine.Capability }); ok {
		return c.Capability()
	}
	return engine.DetectAndRecognize
}

// Recognize reads page with the model and maps lines into page coordinates.
func (e *Engine) Recognize(ctx context.Context, page *prep.PreparedPage) ([]result.TextRegion, error) {
	lines, err := e.model.Read(ctx, page.Image)
	if err != nil {
		return nil, err
	}
	regions := make([]result.TextRegion, 0, len(lines))
	for _, l := range lines {
		regions = append(regions, result.TextRegion{
			Text:       l.Text,
			Confidence: Aggregate(l.TokenProbs, e.agg),
			Polygon:    page.ToPagePolygon(l.Polygon),
		})
	}
	return regions, nil
}
