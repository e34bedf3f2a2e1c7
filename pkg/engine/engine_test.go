package engine

import (
	"context"
	"errors"
	"image"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/ocrerr"
	"github.com/gardar/ocrmux/pkg/prep"
	"github.com/gardar/ocrmux/pkg/result"
)

type fakeEngine struct {
	capability Capability
	recognize  func(ctx context.Context) ([]result.TextRegion, error)
}

func (f *fakeEngine) Name() string                    { return "fake" }
func (f *fakeEngine) Kind() result.EngineKind         { return result.KindNeural }
func (f *fakeEngine) Capabilities() Capability        { return f.capability }
func (f *fakeEngine) Requirements() prep.Requirements { return prep.Requirements{} }
func (f *fakeEngine) Recognize(ctx context.Context, _ *prep.PreparedPage) ([]result.TextRegion, error) {
	return f.recognize(ctx)
}

func testPage() *prep.PreparedPage {
	img := image.NewGray(image.Rect(0, 0, 100, 50))
	return prep.Prepare(result.Page{Index: 4, Width: 100, Height: 50, Image: img}, prep.Requirements{})
}

func init() {
	Logger = log.Nop
}

func TestInvokeNormalizes(t *testing.T) {
	e := &fakeEngine{recognize: func(context.Context) ([]result.TextRegion, error) {
		return []result.TextRegion{
			{Text: "  hello ", Confidence: result.Confidence{Value: 1.5, Known: true}, Polygon: result.RectPolygon(-10, 5, 60, 70)},
			{Text: "   ", Polygon: result.RectPolygon(0, 0, 1, 1)},
			{Text: "nan", Confidence: result.Confidence{Value: math.NaN(), Known: true}, Polygon: result.RectPolygon(1, 1, 2, 2)},
		}, nil
	}}

	res := Invoke(context.Background(), e, testPage(), time.Second)
	require.True(t, res.Available())
	assert.Equal(t, 4, res.PageIndex)
	assert.Equal(t, "fake", res.Engine)
	require.Len(t, res.Regions, 2)

	first := res.Regions[0]
	assert.Equal(t, "hello", first.Text)
	assert.Equal(t, result.Score(1), first.Confidence)
	assert.True(t, first.Polygon.Within(100, 50))
	assert.Equal(t, []result.EngineKind{result.KindNeural}, first.Engines)
	assert.Equal(t, result.Unknown, res.Regions[1].Confidence)
}

func TestInvokeRecognizeOnlyCoversPage(t *testing.T) {
	e := &fakeEngine{capability: RecognizeOnly, recognize: func(context.Context) ([]result.TextRegion, error) {
		return []result.TextRegion{{Text: "whole page"}}, nil
	}}
	res := Invoke(context.Background(), e, testPage(), 0)
	require.Len(t, res.Regions, 1)
	assert.Equal(t, result.RectPolygon(0, 0, 100, 50), res.Regions[0].Polygon)
}

func TestInvokeError(t *testing.T) {
	e := &fakeEngine{recognize: func(context.Context) ([]result.TextRegion, error) {
		return nil, errors.New("segfault in model")
	}}
	res := Invoke(context.Background(), e, testPage(), time.Second)
	assert.False(t, res.Available())
	assert.Equal(t, ocrerr.EngineUnavailable, ocrerr.CodeOf(res.Err))
	assert.Equal(t, 4, ocrerr.PageOf(res.Err))
	assert.Contains(t, res.Err.Error(), "segfault in model")
}

func TestInvokePanic(t *testing.T) {
	e := &fakeEngine{recognize: func(context.Context) ([]result.TextRegion, error) {
		panic("index out of range")
	}}
	res := Invoke(context.Background(), e, testPage(), time.Second)
	assert.Equal(t, ocrerr.EngineUnavailable, ocrerr.CodeOf(res.Err))
	assert.Contains(t, res.Err.Error(), "index out of range")
}

func TestInvokeTimeoutAbandonsStuckEngine(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	e := &fakeEngine{recognize: func(context.Context) ([]result.TextRegion, error) {
		<-release // ignores its context
		return []result.TextRegion{{Text: "late"}}, nil
	}}

	start := time.Now()
	res := Invoke(context.Background(), e, testPage(), 20*time.Millisecond)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, ocrerr.EngineUnavailable, ocrerr.CodeOf(res.Err))
	assert.ErrorIs(t, res.Err, context.DeadlineExceeded)
	assert.Empty(t, res.Regions)
}
