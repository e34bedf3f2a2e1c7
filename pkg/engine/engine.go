// Package engine defines the uniform wrapper around OCR backends and the boundary that
// turns backend failures into EngineUnavailable results.
//
// Backends live in subpackages: neural (detector and recognizer models) and classical
// (tesseract). The pipeline only talks to the Engine interface and always calls it
// through Invoke.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/ocrerr"
	"github.com/gardar/ocrmux/pkg/prep"
	"github.com/gardar/ocrmux/pkg/result"
)

// Capability describes what an engine can do with a page.
type Capability int

const (
	// DetectAndRecognize engines locate text regions and read them.
	DetectAndRecognize Capability = iota
	// RecognizeOnly engines read text without locating it. Their regions cover the page.
	RecognizeOnly
)

func (c Capability) String() string {
	if c == RecognizeOnly {
		return "recognize-only"
	}
	return "detect-and-recognize"
}

// Engine is an OCR backend.
//
// Recognize returns regions in the engine's reading order, with polygons in page pixel
// coordinates. Implementations must be safe for concurrent use.
type Engine interface {
	Name() string
	Kind() result.EngineKind
	Capabilities() Capability
	Requirements() prep.Requirements
	Recognize(ctx context.Context, page *prep.PreparedPage) ([]result.TextRegion, error)
}

// Logger is used by Invoke to report unavailable engines.
var Logger log.Logger = log.Default

type outcome struct {
	regions []result.TextRegion
	err     error
}

// Invoke runs e on page under timeout. It never fails: errors, panics and timeouts are
// reported through the Err field of the returned result as an EngineUnavailable error.
// An engine that ignores its context is abandoned at the deadline and its late output
// is discarded.
func Invoke(ctx context.Context, e Engine, page *prep.PreparedPage, timeout time.Duration) result.EngineResult {
	res := result.EngineResult{Engine: e.Name(), Kind: e.Kind(), PageIndex: page.Index}

	var cancel context.CancelFunc
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	start := time.Now()
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("engine panicked: %v\n%s", r, debug.Stack())}
			}
		}()
		regions, err := e.Recognize(ctx, page)
		done <- outcome{regions: regions, err: err}
	}()

	var out outcome
	select {
	case out = <-done:
		if out.err == nil && ctx.Err() != nil {
			// Finished, but only after the deadline.
			out = outcome{err: ctx.Err()}
		}
	case <-ctx.Done():
		out = outcome{err: ctx.Err()}
	}
	res.Duration = time.Since(start)

	if out.err != nil {
		res.Err = unavailable(e.Name(), page.Index, out.err)
		Logger.Warnw("engine unavailable", "engine", e.Name(), "page", page.Index, "elapsed", res.Duration, "error", out.err)
		return res
	}
	res.Regions = Normalize(out.regions, e, page)
	Logger.Debugw("engine finished", "engine", e.Name(), "page", page.Index, "regions", len(res.Regions), "elapsed", res.Duration)
	return res
}

func unavailable(engine string, page int, err error) *ocrerr.Error {
	msg := "recognition failed"
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		msg = "timed out"
	case errors.Is(err, context.Canceled):
		msg = "cancelled"
	}
	return ocrerr.Wrap(ocrerr.EngineUnavailable, err, "%s", msg).AtPage(page).ForEngine(engine)
}

// Normalize trims region text, drops empty regions, clamps polygons into the page and
// confidences into [0,1]. RecognizeOnly engines get the full page as geometry for
// regions that carry none.
func Normalize(regions []result.TextRegion, e Engine, page *prep.PreparedPage) []result.TextRegion {
	w, h := page.PageWidth, page.PageHeight
	full := result.RectPolygon(0, 0, float64(w), float64(h))

	out := make([]result.TextRegion, 0, len(regions))
	for _, r := range regions {
		r.Text = strings.TrimSpace(r.Text)
		if r.Text == "" {
			continue
		}
		if len(r.Polygon) < 3 && e.Capabilities() == RecognizeOnly {
			r.Polygon = full
		}
		r.Polygon = r.Polygon.Clamp(w, h)
		if r.Confidence.Known {
			r.Confidence = result.Score(r.Confidence.Value)
		}
		r.Engines = []result.EngineKind{e.Kind()}
		out = append(out, r)
	}
	return out
}
