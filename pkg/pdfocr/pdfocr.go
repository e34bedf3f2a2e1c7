// Package pdfocr builds searchable PDFs from hOCR.
//
// The recognized text is drawn word by word on an optional content layer, invisible
// unless Config.Debug is set, stretched over the box the word was found in. Readers can
// search and select it and may toggle the layer.
//
// AssembleWithOCR creates a new PDF from page images. ApplyOCR lays the text over the
// pages of an existing PDF and refuses inputs that already carry an OCR layer unless
// forced. Searchable picks one of the two for a processed document.
package pdfocr

import (
	"errors"
	"fmt"

	"github.com/gardar/ocrmux/pkg/hocr"
	"github.com/gardar/ocrmux/pkg/raster"
	"github.com/gardar/ocrmux/pkg/result"
)

// AssembleWithOCR creates a PDF with one page per image and the text of the matching
// hOCR page on top.
func AssembleWithOCR(doc *hocr.Document, images [][]byte, cfg Config) ([]byte, error) {
	if err := validate(doc, cfg); err != nil {
		return nil, err
	}
	if len(images) == 0 {
		return nil, errors.New("no image data provided")
	}
	if len(images) < len(doc.Pages) {
		return nil, fmt.Errorf("not enough images (%d) for hOCR pages (%d)", len(images), len(doc.Pages))
	}
	for i, data := range images {
		if len(data) == 0 {
			return nil, fmt.Errorf("image %d is empty", i+1)
		}
		if _, err := detectImageType(data); err != nil {
			return nil, fmt.Errorf("image %d has invalid format: %w", i+1, err)
		}
	}
	return createPDFFromImages(doc, images, cfg)
}

// ApplyOCR lays the hOCR pages over the pages of input, starting at cfg.StartPage.
func ApplyOCR(input []byte, doc *hocr.Document, cfg Config) ([]byte, error) {
	if len(input) == 0 {
		return nil, errors.New("input PDF data is empty")
	}
	if err := validate(doc, cfg); err != nil {
		return nil, err
	}
	logger := cfg.logger()
	if cfg.DumpPDF {
		dumpPDFStructure(input, 2000, logger)
	}

	layers, err := CheckExistingOCRLayers(input, cfg.LayerName)
	if err != nil {
		return nil, fmt.Errorf("layer detection failed: %w", err)
	}
	if len(layers.Layers) > 0 {
		logger.Infow("existing layers detected", "layers", layers.Layers)
	}
	for _, w := range layers.Warnings {
		logger.Warnw(w)
	}
	if layers.HasOCRLayer {
		if !cfg.Force {
			return nil, fmt.Errorf("file already has OCR (layer %q), force to reapply", layers.OCRLayerName)
		}
		logger.Warnw("file already has OCR, reapplying duplicates the text", "layer", layers.OCRLayerName)
	}
	return modifyExistingPDF(input, doc, cfg)
}

func validate(doc *hocr.Document, cfg Config) error {
	switch {
	case doc == nil || len(doc.Pages) == 0:
		return errors.New("hOCR data contains no pages")
	case cfg.StartPage < 1:
		return fmt.Errorf("start page must be at least 1, got %d", cfg.StartPage)
	case cfg.LayerName == "":
		return errors.New("layer name is empty")
	}
	return nil
}

// Searchable renders a processed document as a searchable PDF. PDF input gets the text
// laid over its own pages; image input becomes a one page PDF. dpi is the resolution
// the pages were rasterized at.
func Searchable(res *result.DocumentResult, input result.Document, dpi int, lang string, cfg Config) ([]byte, error) {
	doc := hocr.FromResult(res, lang)
	cfg.DPI = dpi

	switch mt := raster.Resolve(input.MediaType, input.Data); {
	case mt == raster.MediaPDF:
		return ApplyOCR(input.Data, doc, cfg)
	case raster.IsImage(mt):
		return AssembleWithOCR(doc, [][]byte{input.Data}, cfg)
	default:
		return nil, fmt.Errorf("cannot build a PDF from %q", input.MediaType)
	}
}
