package onnx

import (
	"fmt"
	"image"

	ort "github.com/yalue/onnxruntime_go"
	"golang.org/x/image/draw"
)

// normalization maps a 0..255 channel value v to (v/255 - mean) / std.
type normalization struct {
	mean, std [3]float32
}

var (
	imagenet = normalization{mean: [3]float32{0.485, 0.456, 0.406}, std: [3]float32{0.229, 0.224, 0.225}}
	centered = normalization{mean: [3]float32{0.5, 0.5, 0.5}, std: [3]float32{0.5, 0.5, 0.5}}
)

// chw resizes img to w x h and lays it out as a normalized [3,h,w] float32 slice.
func chw(img image.Image, w, h int, n normalization) []float32 {
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.BiLinear.Scale(dst, dst.Bounds(), img, img.Bounds(), draw.Src, nil)

	plane := w * h
	data := make([]float32, 3*plane)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			o := dst.PixOffset(x, y)
			i := y*w + x
			for c := 0; c < 3; c++ {
				v := float32(dst.Pix[o+c]) / 255
				data[c*plane+i] = (v - n.mean[c]) / n.std[c]
			}
		}
	}
	return data
}

// run feeds one [1,3,h,w] input through s and returns the first output's data and shape.
func run(s session, data []float32, w, h int) ([]float32, ort.Shape, error) {
	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(h), int64(w)), data)
	if err != nil {
		return nil, nil, fmt.Errorf("input tensor: %w", err)
	}
	defer input.Destroy()

	outputs := []ort.Value{nil}
	if err := s.Run([]ort.Value{input}, outputs); err != nil {
		return nil, nil, err
	}
	defer outputs[0].Destroy()

	out, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, nil, fmt.Errorf("unexpected output type %T", outputs[0])
	}
	// The tensor's buffer is freed on Destroy.
	return append([]float32(nil), out.GetData()...), out.GetShape().Clone(), nil
}
