package onnx

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	ort "github.com/yalue/onnxruntime_go"

	"github.com/gardar/ocrmux/pkg/result"
)

func TestInputSize(t *testing.T) {
	tests := []struct {
		w, h, max    int
		wantW, wantH int
	}{
		{w: 640, h: 480, max: 960, wantW: 640, wantH: 480},
		{w: 1920, h: 1080, max: 960, wantW: 960, wantH: 544},
		{w: 10, h: 10, max: 960, wantW: 32, wantH: 32},
		{w: 100, h: 50, max: 960, wantW: 96, wantH: 64},
	}
	for _, tt := range tests {
		w, h := inputSize(tt.w, tt.h, tt.max)
		assert.Equal(t, tt.wantW, w, "%dx%d", tt.w, tt.h)
		assert.Equal(t, tt.wantH, h, "%dx%d", tt.w, tt.h)
	}
}

func TestProbabilityMap(t *testing.T) {
	data := []float32{0.1, 0.2, 0.3, 0.4, 0.5, 0.6}

	prob, w, h, err := probabilityMap(ort.NewShape(1, 1, 2, 3), data)
	require.NoError(t, err)
	assert.Equal(t, 3, w)
	assert.Equal(t, 2, h)
	assert.Equal(t, data, prob)

	_, w, h, err = probabilityMap(ort.NewShape(1, 3, 2), data)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 3}, []int{w, h})

	// CRAFT interleaves region and affinity scores.
	prob, w, h, err = probabilityMap(ort.NewShape(1, 3, 1, 2), data)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 3}, []int{w, h})
	assert.Equal(t, []float32{0.1, 0.3, 0.5}, prob)

	_, _, _, err = probabilityMap(ort.NewShape(1, 6), data)
	assert.Error(t, err)
}

// fill sets the w x h map to v inside the rectangle.
func fill(prob []float32, w int, r image.Rectangle, v float32) {
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			prob[y*w+x] = v
		}
	}
}

func TestBoxes(t *testing.T) {
	const w, h = 100, 60
	prob := make([]float32, w*h)
	fill(prob, w, image.Rect(10, 35, 50, 45), 0.9)  // second line
	fill(prob, w, image.Rect(10, 10, 90, 20), 0.9)  // first line
	fill(prob, w, image.Rect(60, 35, 90, 45), 0.35) // above threshold, weak box
	fill(prob, w, image.Rect(5, 55, 95, 57), 0.9)   // too thin

	boxes := Boxes(prob, w, h, DetectionConfig{})
	require.Len(t, boxes, 2)

	// 80x10 box grows by 800*1.5/180.
	grow := 800 * 1.5 / 180
	assert.InDelta(t, 10-grow, boxes[0].X1, 1e-9)
	assert.InDelta(t, 10-grow, boxes[0].Y1, 1e-9)
	assert.InDelta(t, 90+grow, boxes[0].X2, 1e-9)
	assert.InDelta(t, 20+grow, boxes[0].Y2, 1e-9)

	assert.Less(t, boxes[1].X2, 60.0)
	assert.Greater(t, boxes[1].Y1, boxes[0].Y2)
}

func TestBoxesClampToMap(t *testing.T) {
	const w, h = 20, 20
	prob := make([]float32, w*h)
	fill(prob, w, image.Rect(0, 0, 20, 20), 1)
	boxes := Boxes(prob, w, h, DetectionConfig{})
	require.Len(t, boxes, 1)
	assert.Equal(t, result.Rect{X1: 0, Y1: 0, X2: 20, Y2: 20}, boxes[0])
}

func TestDecodeCTC(t *testing.T) {
	charset := []string{"a", "b", "c"}
	// Classes: blank, a, b, c, space.
	rows := [][]float32{
		{0.1, 0.8, 0.05, 0.05, 0},
		{0.1, 0.7, 0.1, 0.1, 0}, // repeated a collapses
		{0.9, 0.05, 0.05, 0, 0},
		{0.1, 0.6, 0.1, 0.2, 0}, // a again after a blank
		{0, 0, 0, 0.1, 0.9},
		{0.2, 0, 0, 0.8, 0},
	}
	var scores []float32
	for _, r := range rows {
		scores = append(scores, r...)
	}
	text, probs := DecodeCTC(scores, len(rows), 5, charset)
	assert.Equal(t, "aa c", text)
	require.Len(t, probs, 4)
	assert.InDelta(t, 0.8, probs[0], 1e-6)
	assert.InDelta(t, 0.6, probs[1], 1e-6)
	assert.InDelta(t, 0.9, probs[2], 1e-6)
	assert.InDelta(t, 0.8, probs[3], 1e-6)
}

func TestDecodeCTCLogits(t *testing.T) {
	// Logits are softmaxed before picking the best class.
	scores := []float32{0, 5, 0, 0, 0, 5}
	text, probs := DecodeCTC(scores, 2, 3, []string{"x", "y"})
	assert.Equal(t, "xy", text)
	want := math.Exp(5) / (math.Exp(5) + 2)
	require.Len(t, probs, 2)
	assert.InDelta(t, want, probs[0], 1e-6)
	assert.InDelta(t, want, probs[1], 1e-6)
}

func TestSequenceShape(t *testing.T) {
	steps, classes, err := sequenceShape(ort.NewShape(1, 40, 97))
	require.NoError(t, err)
	assert.Equal(t, []int{40, 97}, []int{steps, classes})

	steps, classes, err = sequenceShape(ort.NewShape(40, 1, 97))
	require.NoError(t, err)
	assert.Equal(t, []int{40, 97}, []int{steps, classes})

	_, _, err = sequenceShape(ort.NewShape(40, 97))
	assert.Error(t, err)
}

func TestParseCharset(t *testing.T) {
	assert.Equal(t, []string{"a", "ð", " ", "!"}, ParseCharset([]byte("a\r\nð\n\n \n!\n")))
	assert.Empty(t, ParseCharset(nil))
}

func TestCHW(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.RGBA{R: 255, G: 0, B: 255, A: 255})
		}
	}
	data := chw(img, 4, 2, centered)
	require.Len(t, data, 3*8)
	assert.InDelta(t, 1, data[0], 1e-6, "red plane first")
	assert.InDelta(t, -1, data[8], 1e-6, "green plane")
	assert.InDelta(t, 1, data[16], 1e-6, "blue plane")
}

func TestFiles(t *testing.T) {
	assert.ElementsMatch(t, []string{RecognizerFile, CharsetFile, DetectorFile}, Files(Config{}))
	assert.ElementsMatch(t, []string{"rec.onnx", CharsetFile}, Files(Config{RecognizerFile: "rec.onnx", DetectorFile: "-"}))
}
