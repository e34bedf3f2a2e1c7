package prep

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmux/pkg/result"
)

// lines draws horizontal dark bars on a white page, rotated by deg about the centre.
func lines(w, h int, deg float64) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(w)/2, float64(h)/2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			// Sample the unrotated pattern at the inverse-rotated position.
			dx, dy := float64(x)-cx, float64(y)-cy
			sy := -dx*sin + dy*cos + cy
			sx := dx*cos + dy*sin + cx
			dark := sx > 40 && sx < float64(w)-40 && int(sy)%40 < 8
			if dark {
				img.Set(x, y, color.Black)
			} else {
				img.Set(x, y, color.White)
			}
		}
	}
	return img
}

func page(img image.Image) result.Page {
	b := img.Bounds()
	return result.Page{Index: 3, Width: b.Dx(), Height: b.Dy(), DPI: 150, Image: img}
}

func TestPrepareClampsEmptyPage(t *testing.T) {
	pp := Prepare(result.Page{Index: 2}, Requirements{Color: ColorGray})
	assert.True(t, pp.Transform.Clamped)
	assert.Equal(t, 2, pp.Index)
	assert.Equal(t, MinDimension, pp.Width())
	assert.Equal(t, MinDimension, pp.Height())

	pp = Prepare(page(image.NewRGBA(image.Rect(5, 5, 5, 20))), Requirements{})
	assert.True(t, pp.Transform.Clamped)
}

func TestPrepareDownscale(t *testing.T) {
	pp := Prepare(page(lines(400, 200, 0)), Requirements{Color: ColorGray, MaxDimension: 100})
	assert.Equal(t, 100, pp.Width())
	assert.Equal(t, 50, pp.Height())
	assert.InDelta(t, 0.25, pp.Transform.Scale, 1e-9)
	assert.True(t, pp.Transform.Grayscale)
	assert.IsType(t, &image.Gray{}, pp.Image)

	got := pp.ToPage(result.Point{X: 50, Y: 25})
	assert.InDelta(t, 200, got.X, 1e-9)
	assert.InDelta(t, 100, got.Y, 1e-9)
}

func TestPrepareIsIdempotent(t *testing.T) {
	reqs := []Requirements{
		{Color: ColorRGB},
		{Color: ColorGray, MaxDimension: 120},
		{Color: ColorGray, Binarize: true},
		{Color: ColorRGB, MaxDimension: 90, Binarize: true},
		{Color: ColorGray, Deskew: true},
	}
	for _, req := range reqs {
		t.Run(req.String(), func(t *testing.T) {
			first := Prepare(page(lines(240, 160, 0)), req)
			second := Prepare(first.AsPage(), req)

			a, err := first.PNG()
			require.NoError(t, err)
			b, err := second.PNG()
			require.NoError(t, err)
			assert.Equal(t, a, b)
		})
	}
}

func TestBinarizeProducesTwoLevels(t *testing.T) {
	pp := Prepare(page(lines(120, 120, 0)), Requirements{Color: ColorGray, Binarize: true})
	g := pp.Image.(*image.Gray)
	for _, v := range g.Pix {
		require.True(t, v == 0 || v == 0xff, "unexpected level %d", v)
	}
	assert.True(t, pp.Transform.Binarized)
}

func TestEstimateSkew(t *testing.T) {
	assert.Equal(t, 0.0, EstimateSkew(blankGray(50, 50)))
	assert.Equal(t, 0.0, EstimateSkew(lines(300, 300, 0)))
	// Lines drawn at +3 degrees are straightened by rotating -3 degrees.
	assert.InDelta(t, -3, EstimateSkew(lines(300, 300, 3)), SkewStepDegrees)
}

func TestDeskewRoundTrip(t *testing.T) {
	pp := Prepare(page(lines(300, 300, 3)), Requirements{Color: ColorGray, Deskew: true})
	require.NotZero(t, pp.Transform.SkewDegrees)

	// The centre is a fixed point of the rotation.
	c := pp.ToPage(result.Point{X: 150, Y: 150})
	assert.InDelta(t, 150, c.X, 1e-9)
	assert.InDelta(t, 150, c.Y, 1e-9)

	// Distances from the centre are preserved.
	p := pp.ToPage(result.Point{X: 250, Y: 150})
	assert.InDelta(t, 100, math.Hypot(p.X-150, p.Y-150), 1e-9)
}

func TestSmallSkewIsIgnored(t *testing.T) {
	pp := Prepare(page(lines(300, 300, 0.4)), Requirements{Color: ColorGray, Deskew: true})
	assert.Zero(t, pp.Transform.SkewDegrees)
}
