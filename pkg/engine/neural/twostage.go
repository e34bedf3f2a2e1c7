package neural

import (
	"context"
	"image"
	"math"
	"strings"

	"golang.org/x/image/draw"

	"github.com/gardar/ocrmux/pkg/engine"
	"github.com/gardar/ocrmux/pkg/result"
)

// Detector proposes text polygons in image coordinates.
type Detector interface {
	Detect(ctx context.Context, img image.Image) ([]result.Polygon, error)
}

// Recognizer reads the text of a cropped line image.
type Recognizer interface {
	Recognize(ctx context.Context, crop image.Image) (text string, probs []float64, err error)
}

// TwoStage is a Model made of a detector and a recognizer. Without a detector the whole
// image is read as one line.
type TwoStage struct {
	Detector   Detector
	Recognizer Recognizer
}

// Capability implements the optional capability probe used by Engine.
func (m TwoStage) Capability() engine.Capability {
	if m.Detector == nil {
		return engine.RecognizeOnly
	}
	return engine.DetectAndRecognize
}

// Read detects text polygons and recognizes each polygon's bounding crop.
func (m TwoStage) Read(ctx context.Context, img image.Image) ([]Line, error) {
	if m.Detector == nil {
		text, probs, err := m.Recognizer.Recognize(ctx, img)
		if err != nil {
			return nil, err
		}
		return []Line{{Text: text, TokenProbs: probs}}, nil
	}

	polys, err := m.Detector.Detect(ctx, img)
	if err != nil {
		return nil, err
	}
	lines := make([]Line, 0, len(polys))
	for _, poly := range polys {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		crop := Crop(img, poly)
		if crop == nil {
			continue
		}
		text, probs, err := m.Recognizer.Recognize(ctx, crop)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		lines = append(lines, Line{Polygon: poly, Text: text, TokenProbs: probs})
	}
	return lines, nil
}

// Crop copies the bounding rectangle of poly out of img. It returns nil when the
// rectangle does not overlap the image.
func Crop(img image.Image, poly result.Polygon) image.Image {
	b := poly.Bounds()
	r := image.Rect(
		int(math.Floor(b.X1)), int(math.Floor(b.Y1)),
		int(math.Ceil(b.X2)), int(math.Ceil(b.Y2)),
	).Add(img.Bounds().Min).Intersect(img.Bounds())
	if r.Empty() {
		return nil
	}
	dst := image.NewRGBA(image.Rect(0, 0, r.Dx(), r.Dy()))
	draw.Draw(dst, dst.Bounds(), img, r.Min, draw.Src)
	return dst
}
