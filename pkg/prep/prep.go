// Package prep normalizes page images into the form an OCR engine expects.
//
// Transforms always run in the same order: clamp, color conversion, downscale, deskew,
// binarize. Each transform leaves its own output unchanged, so preparing an already
// prepared image with the same Requirements yields identical pixels.
package prep

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"math"
	"sync"

	"github.com/gardar/ocrmux/pkg/result"
)

// MinDimension is the side length of the blank page substituted for empty images.
const MinDimension = 32

// ColorMode is the pixel format an engine consumes.
type ColorMode int

const (
	ColorRGB ColorMode = iota
	ColorGray
)

func (c ColorMode) String() string {
	if c == ColorGray {
		return "gray"
	}
	return "rgb"
}

// Requirements are declared by each engine. The struct is comparable and is used as a
// key to prepare each distinct variant only once per page.
type Requirements struct {
	Color        ColorMode
	MaxDimension int  // Longest side in pixels, 0 means unlimited
	Binarize     bool // Otsu threshold to black and white
	Deskew       bool // Straighten text lines skewed by up to MaxSkewDegrees
}

func (r Requirements) String() string {
	return fmt.Sprintf("%s/max=%d/bin=%t/deskew=%t", r.Color, r.MaxDimension, r.Binarize, r.Deskew)
}

// Transform records what Prepare did to a page.
type Transform struct {
	Scale       float64 // Prepared pixels per page pixel
	SkewDegrees float64 // Rotation applied about the image centre, 0 when none
	Grayscale   bool
	Binarized   bool
	Clamped     bool // The page was empty and replaced by a blank MinDimension square
}

// PreparedPage is a page after normalization. It keeps the identity of its source page
// and is shared read-only by every engine that declared the same Requirements.
type PreparedPage struct {
	Index        int
	DPI          int
	Image        image.Image
	Requirements Requirements
	Transform    Transform
	PageWidth    int // Page pixel bounds that engine coordinates map back into
	PageHeight   int

	pngOnce sync.Once
	png     []byte
	pngErr  error
}

// Prepare applies req to page. It never fails: unusable input is clamped instead.
func Prepare(page result.Page, req Requirements) *PreparedPage {
	pp := &PreparedPage{
		Index:        page.Index,
		DPI:          page.DPI,
		Requirements: req,
		PageWidth:    page.Width,
		PageHeight:   page.Height,
		Transform:    Transform{Scale: 1},
	}

	img := page.Image
	if img == nil || img.Bounds().Empty() {
		img = blankGray(MinDimension, MinDimension)
		pp.Transform.Clamped = true
		pp.PageWidth, pp.PageHeight = MinDimension, MinDimension
	}

	if req.Color == ColorGray {
		img = toGray(img)
		pp.Transform.Grayscale = true
	} else {
		img = toRGBA(img)
	}

	if scaled, scale := downscale(img, req.MaxDimension); scale != 1 {
		img = scaled
		pp.Transform.Scale = scale
	}

	if req.Deskew {
		if angle := EstimateSkew(img); math.Abs(angle) >= MinSkewDegrees {
			img = rotate(img, angle)
			pp.Transform.SkewDegrees = angle
		}
	}

	if req.Binarize {
		img = binarize(img)
		if req.Color != ColorGray {
			img = toRGBA(img)
		}
		pp.Transform.Binarized = true
	}

	pp.Image = img
	return pp
}

// Width returns the prepared image width.
func (p *PreparedPage) Width() int { return p.Image.Bounds().Dx() }

// Height returns the prepared image height.
func (p *PreparedPage) Height() int { return p.Image.Bounds().Dy() }

// ToPage maps a point in prepared image coordinates back to page pixels by undoing the
// rotation and then the scale.
func (p *PreparedPage) ToPage(pt result.Point) result.Point {
	if a := p.Transform.SkewDegrees; a != 0 {
		cx, cy := float64(p.Width())/2, float64(p.Height())/2
		rad := -a * math.Pi / 180
		sin, cos := math.Sin(rad), math.Cos(rad)
		dx, dy := pt.X-cx, pt.Y-cy
		pt = result.Point{X: cx + dx*cos - dy*sin, Y: cy + dx*sin + dy*cos}
	}
	if s := p.Transform.Scale; s > 0 && s != 1 {
		pt = result.Point{X: pt.X / s, Y: pt.Y / s}
	}
	return pt
}

// ToPagePolygon maps every vertex of poly with ToPage.
func (p *PreparedPage) ToPagePolygon(poly result.Polygon) result.Polygon {
	out := make(result.Polygon, len(poly))
	for i, pt := range poly {
		out[i] = p.ToPage(pt)
	}
	return out
}

// PNG returns the prepared image encoded as PNG. The encoding is computed once.
func (p *PreparedPage) PNG() ([]byte, error) {
	p.pngOnce.Do(func() {
		var buf bytes.Buffer
		if err := png.Encode(&buf, p.Image); err != nil {
			p.pngErr = fmt.Errorf("failed to encode page %d: %w", p.Index, err)
			return
		}
		p.png = buf.Bytes()
	})
	return p.png, p.pngErr
}

// AsPage returns the prepared image as a page, for feeding it through Prepare again.
func (p *PreparedPage) AsPage() result.Page {
	return result.Page{Index: p.Index, Width: p.Width(), Height: p.Height(), DPI: p.DPI, Image: p.Image}
}
