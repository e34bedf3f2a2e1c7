package result

import (
	"image"
	"time"
)

// Document is an input payload with its declared media type. It is never modified
// once received.
type Document struct {
	Data      []byte // Raw payload
	MediaType string // Declared media type, may be empty
}

// Page is one rasterized page of a Document.
type Page struct {
	Index  int         // Zero-based, matches document page order
	Width  int         // Pixel width
	Height int         // Pixel height
	DPI    int         // Rendering resolution
	Image  image.Image // Rendered pixels
}

// EngineKind identifies the family of an OCR engine.
type EngineKind string

const (
	KindNeural    EngineKind = "neural"
	KindClassical EngineKind = "classical"
)

// Provenance records which engine produced or overrode a region.
type Provenance string

const (
	ProvenanceNeural            Provenance = "neural"
	ProvenanceClassical         Provenance = "classical"
	ProvenanceClassicalOverride Provenance = "classical-override"
)

// ProvenanceOf returns the provenance of a region taken verbatim from an engine of kind k.
func ProvenanceOf(k EngineKind) Provenance {
	if k == KindClassical {
		return ProvenanceClassical
	}
	return ProvenanceNeural
}

// PageProvenance summarizes how a MergedPage was produced.
type PageProvenance string

const (
	PageNeuralOnly    PageProvenance = "neural-only"
	PageClassicalOnly PageProvenance = "classical-only"
	PageMerged        PageProvenance = "merged"
	PageNone          PageProvenance = "none"
)

// PageProvenanceOf returns the page provenance for a page produced by a single engine kind.
func PageProvenanceOf(k EngineKind) PageProvenance {
	if k == KindClassical {
		return PageClassicalOnly
	}
	return PageNeuralOnly
}

// PageStatus is the outcome of a single page.
type PageStatus string

const (
	PageOK       PageStatus = "ok"
	PageDegraded PageStatus = "degraded"    // an engine failed, another succeeded
	PageFailed   PageStatus = "failed-page" // no engine produced usable output
)

// DocumentStatus is the outcome of a document that did not fail as a whole.
type DocumentStatus string

const (
	DocumentSuccess         DocumentStatus = "success"
	DocumentDegradedSuccess DocumentStatus = "success-with-degraded-page"
)

// Confidence is a score in [0,1], or unknown when the engine does not report one.
// The zero value is unknown.
type Confidence struct {
	Value float64
	Known bool
}

// Unknown is the confidence of engines that do not report one.
var Unknown = Confidence{}

// Score returns a known confidence clamped into [0,1].
func Score(v float64) Confidence {
	if v != v { // NaN
		return Unknown
	}
	if v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	return Confidence{Value: v, Known: true}
}

// Below reports whether c is unknown or strictly below threshold.
func (c Confidence) Below(threshold float64) bool {
	return !c.Known || c.Value < threshold
}

// TextRegion is a recognized piece of text with its location on the page.
type TextRegion struct {
	Text       string       `json:"text"`
	Confidence Confidence   `json:"confidence"`
	Polygon    Polygon      `json:"polygon"`              // Page pixel coordinates
	Provenance Provenance   `json:"provenance,omitempty"` // Set by the merge step
	Engines    []EngineKind `json:"engines,omitempty"`    // Engines that contributed
}

// EngineResult is the output of one engine on one prepared page.
// It is not modified after the adapter returns it.
type EngineResult struct {
	Engine    string        // Engine name
	Kind      EngineKind    // Engine family
	PageIndex int           // Page the result belongs to
	Regions   []TextRegion  // Engine reading order
	Err       error         // Non-nil when the engine was unavailable
	Duration  time.Duration // Wall time spent in the engine call
}

// Available reports whether the engine produced a usable result.
func (r EngineResult) Available() bool { return r.Err == nil }

// EngineFailure records an unavailable engine on a page.
type EngineFailure struct {
	Engine string     `json:"engine"`
	Kind   EngineKind `json:"kind"`
	Reason string     `json:"reason"`
}

// MergedPage is the reconciled output for one page.
type MergedPage struct {
	Index      int             `json:"index"`
	Width      int             `json:"width"`
	Height     int             `json:"height"`
	Regions    []TextRegion    `json:"regions"`
	Provenance PageProvenance  `json:"provenance"`
	Status     PageStatus      `json:"status"`
	Failures   []EngineFailure `json:"failures,omitempty"`
}

// DocumentResult is the terminal artifact returned to a caller, one MergedPage per page.
type DocumentResult struct {
	Pages  []MergedPage   `json:"pages"`
	Status DocumentStatus `json:"status"`
}
