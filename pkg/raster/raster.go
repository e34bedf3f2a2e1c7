// Package raster converts input documents into ordered page images.
//
// Images produce exactly one page. PDFs are rendered page by page at a configurable DPI
// through a PDFRenderer, by default poppler's pdftoppm. Rendering is all-or-nothing: when
// any page fails the caller receives a CorruptDocument error and no pages.
package raster

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	// Decoders registered with image.Decode.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/ocrerr"
	"github.com/gardar/ocrmux/pkg/result"
)

// Rendering limits.
const (
	DefaultDPI      = 150
	MinDPI          = 36
	MaxDPI          = 600
	DefaultMaxPages = 200
)

// Options configures a Rasterizer.
type Options struct {
	DPI      int           // Target resolution, DefaultDPI when zero
	MaxPages int           // Page limit for PDFs, DefaultMaxPages when zero
	Timeout  time.Duration // Timeout for the default renderer's tool calls
	Renderer PDFRenderer   // PDF renderer, a PopplerRenderer when nil
	Logger   log.Logger    // log.Default when nil
}

// Rasterizer turns documents into pages.
type Rasterizer struct {
	dpi      int
	maxPages int
	pdf      PDFRenderer
	logger   log.Logger
}

// New returns a Rasterizer for opts.
func New(opts Options) *Rasterizer {
	r := &Rasterizer{
		dpi:      ClampDPI(opts.DPI),
		maxPages: opts.MaxPages,
		pdf:      opts.Renderer,
		logger:   opts.Logger,
	}
	if r.maxPages <= 0 {
		r.maxPages = DefaultMaxPages
	}
	if r.pdf == nil {
		r.pdf = &PopplerRenderer{Timeout: opts.Timeout}
	}
	if r.logger == nil {
		r.logger = log.Default
	}
	return r
}

// ClampDPI maps zero to DefaultDPI and keeps other values inside [MinDPI, MaxDPI].
func ClampDPI(dpi int) int {
	switch {
	case dpi == 0:
		return DefaultDPI
	case dpi < MinDPI:
		return MinDPI
	case dpi > MaxDPI:
		return MaxDPI
	}
	return dpi
}

// DPI returns the rendering resolution.
func (r *Rasterizer) DPI() int { return r.dpi }

// Rasterize returns the pages of doc in physical order.
func (r *Rasterizer) Rasterize(ctx context.Context, doc result.Document) ([]result.Page, error) {
	if len(doc.Data) == 0 {
		return nil, ocrerr.New(ocrerr.CorruptDocument, "empty payload")
	}
	mediaType := Resolve(doc.MediaType, doc.Data)
	if mediaType == "" {
		return nil, ocrerr.New(ocrerr.UnsupportedFormat, "no renderer for media type %q", doc.MediaType)
	}

	if mediaType != MediaPDF {
		img, _, err := image.Decode(bytes.NewReader(doc.Data))
		if err != nil {
			return nil, ocrerr.Wrap(ocrerr.CorruptDocument, err, "failed to decode %s", mediaType).AtPage(0)
		}
		return []result.Page{newPage(0, img, r.dpi)}, nil
	}
	return r.rasterizePDF(ctx, doc.Data)
}

func (r *Rasterizer) rasterizePDF(ctx context.Context, data []byte) ([]result.Page, error) {
	count, err := r.pdf.PageCount(ctx, data)
	if err != nil {
		return nil, r.classify(ctx, err, "failed to read PDF")
	}
	if count == 0 {
		return nil, ocrerr.New(ocrerr.CorruptDocument, "PDF has no pages")
	}
	if count > r.maxPages {
		return nil, ocrerr.New(ocrerr.UnsupportedFormat, "PDF has %d pages, limit is %d", count, r.maxPages)
	}

	start := time.Now()
	images, err := r.pdf.Render(ctx, data, r.dpi, count)
	if err != nil {
		return nil, r.classify(ctx, err, "failed to render PDF")
	}
	if len(images) != count {
		return nil, ocrerr.New(ocrerr.CorruptDocument, "rendered %d of %d pages", len(images), count)
	}

	pages := make([]result.Page, len(images))
	for i, img := range images {
		pages[i] = newPage(i, img, r.dpi)
	}
	r.logger.Debugw("rasterized PDF", "pages", len(pages), "dpi", r.dpi, "elapsed", time.Since(start))
	return pages, nil
}

// classify turns renderer failures into taxonomy errors. Cancellation is passed through.
func (r *Rasterizer) classify(ctx context.Context, err error, msg string) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	if errors.Is(err, ErrRendererMissing) {
		return ocrerr.Wrap(ocrerr.UnsupportedFormat, err, "no PDF renderer available")
	}
	var oe *ocrerr.Error
	if errors.As(err, &oe) {
		return err
	}
	return ocrerr.Wrap(ocrerr.CorruptDocument, err, "%s", msg)
}

func newPage(index int, img image.Image, dpi int) result.Page {
	b := img.Bounds()
	return result.Page{Index: index, Width: b.Dx(), Height: b.Dy(), DPI: dpi, Image: img}
}

// String describes the rasterizer for logs.
func (r *Rasterizer) String() string {
	return fmt.Sprintf("raster(dpi=%d, maxPages=%d)", r.dpi, r.maxPages)
}
