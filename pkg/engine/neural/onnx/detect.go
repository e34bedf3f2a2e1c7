package onnx

import (
	"context"
	"fmt"
	"image"
	"math"
	"sort"

	ort "github.com/yalue/onnxruntime_go"

	"github.com/gardar/ocrmux/pkg/result"
)

// DetectionConfig tunes probability map post-processing.
type DetectionConfig struct {
	Threshold   float64 // Pixel probability threshold, default 0.3
	BoxScore    float64 // Minimum mean probability of a box, default 0.5
	UnclipRatio float64 // Box growth factor, default 1.5
	MinSide     float64 // Boxes thinner than this in map pixels are dropped, default 3
	MaxSide     int     // Input size limit, default 960
}

func (c *DetectionConfig) setDefaults() {
	if c.Threshold <= 0 {
		c.Threshold = 0.3
	}
	if c.BoxScore <= 0 {
		c.BoxScore = 0.5
	}
	if c.UnclipRatio <= 0 {
		c.UnclipRatio = 1.5
	}
	if c.MinSide <= 0 {
		c.MinSide = 3
	}
	if c.MaxSide <= 0 {
		c.MaxSide = 960
	}
}

// Detector locates text lines with a segmentation network.
type Detector struct {
	session session
	cfg     DetectionConfig
}

// Detect returns text line polygons in img's coordinates, top to bottom.
func (d *Detector) Detect(ctx context.Context, img image.Image) ([]result.Polygon, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b := img.Bounds()
	w, h := inputSize(b.Dx(), b.Dy(), d.cfg.MaxSide)
	out, shape, err := run(d.session, chw(img, w, h, imagenet), w, h)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}
	prob, mw, mh, err := probabilityMap(shape, out)
	if err != nil {
		return nil, fmt.Errorf("detector: %w", err)
	}

	sx, sy := float64(b.Dx())/float64(mw), float64(b.Dy())/float64(mh)
	rects := Boxes(prob, mw, mh, d.cfg)
	polys := make([]result.Polygon, 0, len(rects))
	for _, r := range rects {
		polys = append(polys, result.RectPolygon(r.X1*sx, r.Y1*sy, r.X2*sx, r.Y2*sy))
	}
	return polys, nil
}

// inputSize scales w x h to fit maxSide with both sides a multiple of 32.
func inputSize(w, h, maxSide int) (int, int) {
	scale := 1.0
	if m := max(w, h); m > maxSide {
		scale = float64(maxSide) / float64(m)
	}
	round32 := func(v int) int {
		r := int(math.Round(float64(v)*scale/32)) * 32
		return max(r, 32)
	}
	return round32(w), round32(h)
}

// probabilityMap extracts a text probability map from a detector output. DB models emit
// [1,1,H,W] or [1,H,W]; CRAFT emits [1,H,W,2] whose first channel is the region score.
func probabilityMap(shape ort.Shape, data []float32) ([]float32, int, int, error) {
	switch {
	case len(shape) == 4 && shape[1] == 1:
		return data, int(shape[3]), int(shape[2]), nil
	case len(shape) == 3:
		return data, int(shape[2]), int(shape[1]), nil
	case len(shape) == 4 && shape[3] == 2:
		h, w := int(shape[1]), int(shape[2])
		prob := make([]float32, w*h)
		for i := range prob {
			prob[i] = data[2*i]
		}
		return prob, w, h, nil
	}
	return nil, 0, 0, fmt.Errorf("unsupported output shape %v", shape)
}

// Boxes thresholds a w x h probability map, groups 4-connected pixels and returns the
// grown bounding boxes of groups whose mean probability reaches cfg.BoxScore.
func Boxes(prob []float32, w, h int, cfg DetectionConfig) []result.Rect {
	cfg.setDefaults()
	threshold := float32(cfg.Threshold)
	seen := make([]bool, w*h)
	var rects []result.Rect
	var queue []int

	for start := range prob {
		if seen[start] || prob[start] <= threshold {
			continue
		}
		seen[start] = true
		queue = append(queue[:0], start)
		minX, minY, maxX, maxY := w, h, -1, -1
		var sum float64
		for n := 0; n < len(queue); n++ {
			i := queue[n]
			x, y := i%w, i/w
			sum += float64(prob[i])
			minX, maxX = min(minX, x), max(maxX, x)
			minY, maxY = min(minY, y), max(maxY, y)
			for _, j := range neighbours(x, y, w, h) {
				if j >= 0 && !seen[j] && prob[j] > threshold {
					seen[j] = true
					queue = append(queue, j)
				}
			}
		}

		if sum/float64(len(queue)) < cfg.BoxScore {
			continue
		}
		bw, bh := float64(maxX-minX+1), float64(maxY-minY+1)
		if min(bw, bh) < cfg.MinSide {
			continue
		}
		grow := bw * bh * cfg.UnclipRatio / (2 * (bw + bh))
		rects = append(rects, result.Rect{
			X1: math.Max(0, float64(minX)-grow),
			Y1: math.Max(0, float64(minY)-grow),
			X2: math.Min(float64(w), float64(maxX+1)+grow),
			Y2: math.Min(float64(h), float64(maxY+1)+grow),
		})
	}

	sort.SliceStable(rects, func(i, j int) bool {
		if rects[i].Y1 != rects[j].Y1 {
			return rects[i].Y1 < rects[j].Y1
		}
		return rects[i].X1 < rects[j].X1
	})
	return rects
}

// neighbours returns the 4-connected indexes of (x, y), -1 outside the map.
func neighbours(x, y, w, h int) [4]int {
	n := [4]int{-1, -1, -1, -1}
	if x > 0 {
		n[0] = y*w + x - 1
	}
	if x < w-1 {
		n[1] = y*w + x + 1
	}
	if y > 0 {
		n[2] = (y-1)*w + x
	}
	if y < h-1 {
		n[3] = (y+1)*w + x
	}
	return n
}
