package onnx

import (
	"context"
	"fmt"
	"image"
	"math"
	"strings"

	ort "github.com/yalue/onnxruntime_go"
)

// Recognizer reads a text line crop with a CTC network.
type Recognizer struct {
	session  session
	charset  []string
	height   int
	maxWidth int
}

// Recognize returns the crop's text and the probability of each emitted character.
func (r *Recognizer) Recognize(ctx context.Context, crop image.Image) (string, []float64, error) {
	if err := ctx.Err(); err != nil {
		return "", nil, err
	}
	b := crop.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return "", nil, nil
	}
	w := int(math.Round(float64(b.Dx()) * float64(r.height) / float64(b.Dy())))
	w = min(max(w, r.height/4), r.maxWidth)

	out, shape, err := run(r.session, chw(crop, w, r.height, centered), w, r.height)
	if err != nil {
		return "", nil, fmt.Errorf("recognizer: %w", err)
	}
	steps, classes, err := sequenceShape(shape)
	if err != nil {
		return "", nil, fmt.Errorf("recognizer: %w", err)
	}
	text, probs := DecodeCTC(out, steps, classes, r.charset)
	return text, probs, nil
}

// sequenceShape accepts [1,T,C] and [T,1,C] outputs.
func sequenceShape(shape ort.Shape) (steps, classes int, err error) {
	if len(shape) == 3 {
		switch {
		case shape[0] == 1:
			return int(shape[1]), int(shape[2]), nil
		case shape[1] == 1:
			return int(shape[0]), int(shape[2]), nil
		}
	}
	return 0, 0, fmt.Errorf("unsupported output shape %v", shape)
}

// DecodeCTC greedily decodes steps x classes scores. Class 0 is the blank, class i is
// charset[i-1] and the class right after the charset, when present, is a space. Rows
// that are not probability distributions are softmaxed first.
func DecodeCTC(scores []float32, steps, classes int, charset []string) (string, []float64) {
	var sb strings.Builder
	var probs []float64
	prev := 0
	row := make([]float64, classes)
	for t := 0; t < steps; t++ {
		for c := range row {
			row[c] = float64(scores[t*classes+c])
		}
		if !isDistribution(row) {
			softmax(row)
		}
		best := 0
		for c := 1; c < classes; c++ {
			if row[c] > row[best] {
				best = c
			}
		}
		if best != 0 && best != prev {
			switch {
			case best-1 < len(charset):
				sb.WriteString(charset[best-1])
				probs = append(probs, row[best])
			case best-1 == len(charset):
				sb.WriteByte(' ')
				probs = append(probs, row[best])
			}
		}
		prev = best
	}
	return sb.String(), probs
}

func isDistribution(row []float64) bool {
	var sum float64
	for _, v := range row {
		if v < 0 || v > 1 {
			return false
		}
		sum += v
	}
	return math.Abs(sum-1) < 1e-3
}

func softmax(row []float64) {
	m := math.Inf(-1)
	for _, v := range row {
		m = math.Max(m, v)
	}
	var sum float64
	for i, v := range row {
		row[i] = math.Exp(v - m)
		sum += row[i]
	}
	for i := range row {
		row[i] /= sum
	}
}

// ParseCharset reads one token per line. Blank lines are skipped, but a line holding a
// single space is the space token.
func ParseCharset(data []byte) []string {
	var charset []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSuffix(line, "\r")
		if line == "" {
			continue
		}
		charset = append(charset, line)
	}
	return charset
}
