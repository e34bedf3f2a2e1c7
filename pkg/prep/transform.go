package prep

import (
	"image"
	"image/color"
	"math"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Deskew search parameters.
const (
	MaxSkewDegrees  = 5.0
	SkewStepDegrees = 0.5
	MinSkewDegrees  = 1.0 // Smaller estimates are left alone
)

// skewSampleSide bounds the image size used for skew estimation.
const skewSampleSide = 1000

func blankGray(w, h int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func toGray(src image.Image) *image.Gray {
	if g, ok := src.(*image.Gray); ok && g.Rect.Min == (image.Point{}) {
		return g
	}
	b := src.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

func toRGBA(src image.Image) *image.RGBA {
	if c, ok := src.(*image.RGBA); ok && c.Rect.Min == (image.Point{}) {
		return c
	}
	b := src.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	return dst
}

// sameKind returns an empty image of the given size in src's pixel format.
func sameKind(src image.Image, w, h int) draw.Image {
	if _, ok := src.(*image.Gray); ok {
		return image.NewGray(image.Rect(0, 0, w, h))
	}
	return image.NewRGBA(image.Rect(0, 0, w, h))
}

// downscale shrinks src so its longest side is at most maxDim. It returns src and a scale
// of 1 when nothing needs to change.
func downscale(src image.Image, maxDim int) (image.Image, float64) {
	b := src.Bounds()
	longest := max(b.Dx(), b.Dy())
	if maxDim <= 0 || longest <= maxDim {
		return src, 1
	}
	scale := float64(maxDim) / float64(longest)
	w := max(1, int(math.Round(float64(b.Dx())*scale)))
	h := max(1, int(math.Round(float64(b.Dy())*scale)))

	dst := sameKind(src, w, h)
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst, scale
}

// EstimateSkew returns the rotation in degrees that best aligns the text lines of img
// with the horizontal axis, searched in SkewStepDegrees steps within ±MaxSkewDegrees.
// The estimate maximizes the sharpness of the horizontal projection profile of dark
// pixels. Blank images return 0.
func EstimateSkew(img image.Image) float64 {
	g := toGray(img)
	b := g.Bounds()
	step := max(1, max(b.Dx(), b.Dy())/skewSampleSide)

	cx, cy := float64(b.Dx())/2, float64(b.Dy())/2
	var xs, ys []float64
	for y := 0; y < b.Dy(); y += step {
		row := g.Pix[y*g.Stride:]
		for x := 0; x < b.Dx(); x += step {
			if row[x] < 128 {
				xs = append(xs, float64(x)-cx)
				ys = append(ys, float64(y)-cy)
			}
		}
	}
	if len(xs) == 0 {
		return 0
	}

	diag := math.Hypot(float64(b.Dx()), float64(b.Dy()))
	bins := make([]float64, int(diag)+2)
	best, bestScore := 0.0, profileScore(xs, ys, 0, diag, bins)
	for k := 1; float64(k)*SkewStepDegrees <= MaxSkewDegrees; k++ {
		for _, a := range []float64{float64(k) * SkewStepDegrees, -float64(k) * SkewStepDegrees} {
			if s := profileScore(xs, ys, a, diag, bins); s > bestScore {
				best, bestScore = a, s
			}
		}
	}
	return best
}

// profileScore projects the points rotated by deg onto the vertical axis and returns the
// sum of squared differences between adjacent bins.
func profileScore(xs, ys []float64, deg, diag float64, bins []float64) float64 {
	clear(bins)
	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	for i := range xs {
		y := xs[i]*sin + ys[i]*cos + diag/2
		if idx := int(y); idx >= 0 && idx < len(bins) {
			bins[idx]++
		}
	}
	var score float64
	for i := 1; i < len(bins); i++ {
		d := bins[i] - bins[i-1]
		score += d * d
	}
	return score
}

// rotate turns src by deg about its centre onto a white canvas of the same size.
func rotate(src image.Image, deg float64) image.Image {
	b := src.Bounds()
	dst := sameKind(src, b.Dx(), b.Dy())
	draw.Draw(dst, dst.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)

	rad := deg * math.Pi / 180
	sin, cos := math.Sin(rad), math.Cos(rad)
	cx, cy := float64(b.Dx())/2, float64(b.Dy())/2
	s2d := f64.Aff3{
		cos, -sin, cx - cos*cx + sin*cy,
		sin, cos, cy - sin*cx - cos*cy,
	}
	draw.BiLinear.Transform(dst, s2d, src, b, draw.Src, nil)
	return dst
}

// binarize thresholds img at its Otsu level. Pixels above the level become white.
func binarize(img image.Image) *image.Gray {
	g := toGray(img)
	t := otsu(g)
	out := image.NewGray(g.Rect)
	for i, v := range g.Pix {
		if v > t {
			out.Pix[i] = 0xff
		}
	}
	return out
}

// otsu returns the threshold that maximizes the between-class variance of g's histogram.
func otsu(g *image.Gray) uint8 {
	var hist [256]float64
	for _, v := range g.Pix {
		hist[v]++
	}
	total := float64(len(g.Pix))
	if total == 0 {
		return 0
	}
	var sum float64
	for i, n := range hist {
		sum += float64(i) * n
	}

	var sumB, wB float64
	best, bestVar := 0, -1.0
	for t := 0; t < 256; t++ {
		wB += hist[t]
		wF := total - wB
		if wB == 0 || wF == 0 {
			if bestVar < 0 {
				best, bestVar = t, 0
			}
			continue
		}
		sumB += float64(t) * hist[t]
		mB := sumB / wB
		mF := (sum - sumB) / wF
		if v := wB * wF * (mB - mF) * (mB - mF); v > bestVar {
			best, bestVar = t, v
		}
	}
	return uint8(best)
}
