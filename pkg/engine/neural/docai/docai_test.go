package docai

import (
	"context"
	"errors"
	"image"
	"testing"

	"cloud.google.com/go/documentai/apiv1/documentaipb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/result"
)

func anchor(start, end int64) *documentaipb.Document_TextAnchor {
	return &documentaipb.Document_TextAnchor{
		TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{{StartIndex: start, EndIndex: end}},
	}
}

func normalized(x1, y1, x2, y2 float32) *documentaipb.BoundingPoly {
	return &documentaipb.BoundingPoly{NormalizedVertices: []*documentaipb.NormalizedVertex{
		{X: x1, Y: y1}, {X: x2, Y: y1}, {X: x2, Y: y2}, {X: x1, Y: y2},
	}}
}

// sampleDocument holds two lines, "Halló heimur" and "Bless", on one page.
func sampleDocument() *documentaipb.Document {
	text := "Halló heimur\nBless\n"
	return &documentaipb.Document{
		Text: text,
		Pages: []*documentaipb.Document_Page{{
			Dimension: &documentaipb.Document_Page_Dimension{Width: 1000, Height: 500},
			Lines: []*documentaipb.Document_Page_Line{
				{Layout: &documentaipb.Document_Page_Layout{
					TextAnchor:   anchor(0, 13),
					BoundingPoly: normalized(0.1, 0.1, 0.5, 0.2),
					Confidence:   0.95,
				}},
				{Layout: &documentaipb.Document_Page_Layout{
					TextAnchor: anchor(13, 19),
					BoundingPoly: &documentaipb.BoundingPoly{Vertices: []*documentaipb.Vertex{
						{X: 100, Y: 300}, {X: 300, Y: 300}, {X: 300, Y: 350}, {X: 100, Y: 350},
					}},
					Confidence: 0.7,
				}},
			},
			Tokens: []*documentaipb.Document_Page_Token{
				{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(0, 6), Confidence: 0.9}},
				{Layout: &documentaipb.Document_Page_Layout{TextAnchor: anchor(6, 13), Confidence: 0.6}},
			},
		}},
	}
}

func TestLines(t *testing.T) {
	lines := Lines(sampleDocument(), 500, 250)
	require.Len(t, lines, 2)

	assert.Equal(t, "Halló heimur", lines[0].Text)
	assert.InDeltaSlice(t, []float64{0.9, 0.6}, lines[0].TokenProbs, 1e-6)
	b := lines[0].Polygon.Bounds()
	assert.InDelta(t, 50, b.X1, 1e-3)
	assert.InDelta(t, 25, b.Y1, 1e-3)
	assert.InDelta(t, 250, b.X2, 1e-3)
	assert.InDelta(t, 50, b.Y2, 1e-3)

	// No tokens inside, the line confidence is used. Pixel vertices scale from 1000x500.
	assert.Equal(t, "Bless", lines[1].Text)
	assert.InDeltaSlice(t, []float64{0.7}, lines[1].TokenProbs, 1e-6)
	assert.Equal(t, result.Rect{X1: 50, Y1: 150, X2: 150, Y2: 175}, lines[1].Polygon.Bounds())
}

func TestTextFromLayout(t *testing.T) {
	layout := &documentaipb.Document_Page_Layout{TextAnchor: &documentaipb.Document_TextAnchor{
		TextSegments: []*documentaipb.Document_TextAnchor_TextSegment{
			{StartIndex: 0, EndIndex: 2},
			{StartIndex: 4, EndIndex: 99},
		},
	}}
	assert.Equal(t, "þælegt", textFromLayout(layout, "þægilegt"), "indexes count runes, the end is clamped")
	assert.Equal(t, "", textFromLayout(nil, "text"))
}

func TestContains(t *testing.T) {
	line := &documentaipb.Document_Page_Layout{TextAnchor: anchor(10, 20)}
	assert.True(t, contains(line, &documentaipb.Document_Page_Layout{TextAnchor: anchor(10, 15)}))
	assert.False(t, contains(line, &documentaipb.Document_Page_Layout{TextAnchor: anchor(18, 25)}))
	assert.False(t, contains(line, &documentaipb.Document_Page_Layout{}))
}

func TestRead(t *testing.T) {
	var got *documentaipb.ProcessRequest
	m := &Model{
		name: "projects/p/locations/eu/processors/x",
		process: func(_ context.Context, req *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
			got = req
			return &documentaipb.ProcessResponse{Document: sampleDocument()}, nil
		},
		logger: log.Nop,
	}
	lines, err := m.Read(context.Background(), image.NewRGBA(image.Rect(0, 0, 1000, 500)))
	require.NoError(t, err)
	require.Len(t, lines, 2)
	assert.Equal(t, "projects/p/locations/eu/processors/x", got.GetName())
	assert.Equal(t, "image/png", got.GetRawDocument().GetMimeType())
	assert.NotEmpty(t, got.GetRawDocument().GetContent())
}

func TestReadError(t *testing.T) {
	m := &Model{
		process: func(context.Context, *documentaipb.ProcessRequest) (*documentaipb.ProcessResponse, error) {
			return nil, errors.New("quota exceeded")
		},
		logger: log.Nop,
	}
	_, err := m.Read(context.Background(), image.NewRGBA(image.Rect(0, 0, 10, 10)))
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestConfig(t *testing.T) {
	cfg := Config{ProjectID: "p", Location: "eu", ProcessorID: "x"}
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "eu-documentai.googleapis.com:443", cfg.endpoint())
	assert.Equal(t, "projects/p/locations/eu/processors/x", cfg.Name())

	cfg.ProcessorID = ""
	assert.ErrorContains(t, cfg.Validate(), "processor_id")
}
