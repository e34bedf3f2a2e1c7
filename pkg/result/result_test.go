package result

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func region(text string, x1, y1, x2, y2 float64) TextRegion {
	return TextRegion{Text: text, Polygon: RectPolygon(x1, y1, x2, y2)}
}

func TestIoU(t *testing.T) {
	tests := []struct {
		name string
		a, b Polygon
		want float64
	}{
		{"identical", RectPolygon(0, 0, 10, 10), RectPolygon(0, 0, 10, 10), 1},
		{"half overlap", RectPolygon(0, 0, 10, 10), RectPolygon(5, 0, 15, 10), 50.0 / 150.0},
		{"disjoint", RectPolygon(0, 0, 10, 10), RectPolygon(20, 20, 30, 30), 0},
		{"contained", RectPolygon(0, 0, 10, 10), RectPolygon(0, 0, 5, 10), 0.5},
		{"reversed winding", RectPolygon(0, 0, 10, 10), Polygon{{0, 10}, {10, 10}, {10, 0}, {0, 0}}, 1},
		{"degenerate", RectPolygon(0, 0, 10, 10), Polygon{{1, 1}, {2, 2}}, 0},
		{
			"rotated square",
			RectPolygon(0, 0, 2, 2),
			Polygon{{1, 0}, {2, 1}, {1, 2}, {0, 1}},
			2.0 / 4.0,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, IoU(tt.a, tt.b), 1e-9)
			assert.InDelta(t, tt.want, IoU(tt.b, tt.a), 1e-9)
		})
	}
}

func TestPolygonClampAndBounds(t *testing.T) {
	p := Polygon{{-5, 2}, {120, 2}, {120, 60}, {-5, 60}}
	c := p.Clamp(100, 50)

	assert.False(t, p.Within(100, 50))
	assert.True(t, c.Within(100, 50))
	assert.Equal(t, Rect{X1: 0, Y1: 2, X2: 100, Y2: 50}, c.Bounds())
	assert.Equal(t, Point{-5, 2}, p[0], "Clamp must not modify its receiver")
}

func TestReadingOrder(t *testing.T) {
	// Two rows; the second word of row one sits slightly higher than the first.
	in := []TextRegion{
		region("row2-right", 200, 100, 300, 130),
		region("row1-right", 200, 8, 300, 38),
		region("row2-left", 10, 102, 100, 132),
		region("row1-left", 10, 10, 100, 40),
	}
	got := ReadingOrder(in)

	var texts []string
	for _, r := range got {
		texts = append(texts, r.Text)
	}
	assert.Equal(t, []string{"row1-left", "row1-right", "row2-left", "row2-right"}, texts)
	assert.Equal(t, "row2-right", in[0].Text, "input must be left untouched")
}

func TestReadingOrderIsDeterministicOnTies(t *testing.T) {
	in := []TextRegion{
		region("a", 0, 0, 10, 10),
		region("b", 0, 0, 10, 10),
	}
	got := ReadingOrder(in)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].Text)
	assert.Equal(t, "b", got[1].Text)
}

func TestAssemble(t *testing.T) {
	pages := []MergedPage{
		{Index: 1, Status: PageOK, Regions: []TextRegion{{Text: "second"}}},
		{Index: 0, Status: PageOK, Regions: []TextRegion{{Text: "first"}, {Text: "line"}}},
	}
	doc, err := Assemble(pages)
	require.NoError(t, err)

	assert.Equal(t, DocumentSuccess, doc.Status)
	assert.Equal(t, 0, doc.Pages[0].Index)
	assert.Equal(t, 1, doc.Pages[1].Index)
	assert.Equal(t, "first\nline\n\nsecond", doc.Text())
	assert.Empty(t, doc.FailedPages())
}

func TestAssembleDegradedAndGaps(t *testing.T) {
	doc, err := Assemble([]MergedPage{
		{Index: 0, Status: PageOK},
		{Index: 1, Status: PageFailed},
	})
	require.NoError(t, err)
	assert.Equal(t, DocumentDegradedSuccess, doc.Status)
	assert.Equal(t, []int{1}, doc.FailedPages())

	_, err = Assemble([]MergedPage{{Index: 0}, {Index: 2}})
	assert.Error(t, err)
}

func TestConfidence(t *testing.T) {
	assert.Equal(t, Confidence{Value: 1, Known: true}, Score(1.7))
	assert.Equal(t, Confidence{Value: 0, Known: true}, Score(-0.2))
	nan := 0.0
	assert.Equal(t, Unknown, Score(nan/nan))

	assert.True(t, Unknown.Below(0.1))
	assert.True(t, Score(0.4).Below(0.5))
	assert.False(t, Score(0.5).Below(0.5))
}

func TestConfidenceJSON(t *testing.T) {
	data, err := json.Marshal([]Confidence{Score(0.25), Unknown})
	require.NoError(t, err)
	assert.JSONEq(t, `[0.25, null]`, string(data))

	var back []Confidence
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, []Confidence{Score(0.25), Unknown}, back)
}
