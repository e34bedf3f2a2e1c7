package pdfocr

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// literal matches the body of a PDF literal string, escapes included.
const literal = `\(((?:\\.|[^\\)])+)\)`

// layerPatterns find optional content group names in raw PDF bytes. Writers order the
// dictionary keys differently, so several spellings are tried.
var layerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`/Type\s*/OCG\s*/Name\s*` + literal),
	regexp.MustCompile(`/OCG\s*<<[^>]*?/Name\s*` + literal),
	regexp.MustCompile(`/Name\s*` + literal + `[^<>]{1,50}?/Type\s*/OCG`),
}

// detectPDFLayers returns the distinct layer names found in pdfData, in order of
// appearance per pattern.
func detectPDFLayers(pdfData []byte) ([]string, error) {
	if len(pdfData) == 0 {
		return nil, errors.New("empty PDF data")
	}
	var layers []string
	seen := make(map[string]bool)
	for _, re := range layerPatterns {
		for _, m := range re.FindAllSubmatch(pdfData, -1) {
			name := decodePDFString(m[1])
			if !seen[name] {
				seen[name] = true
				layers = append(layers, name)
			}
		}
	}
	return layers, nil
}

// LayerCheckResult describes the layers of a PDF.
type LayerCheckResult struct {
	Layers       []string // Every detected layer name
	HasOCRLayer  bool     // A layer named like ours exists
	OCRLayerName string   // The matching layer
	Warnings     []string // Other layers that look like OCR
}

// CheckExistingOCRLayers looks for a layer called ocrLayerName, with or without the
// per page suffix.
func CheckExistingOCRLayers(pdfData []byte, ocrLayerName string) (LayerCheckResult, error) {
	var res LayerCheckResult
	layers, err := detectPDFLayers(pdfData)
	if err != nil {
		return res, fmt.Errorf("cannot analyze layers: %w", err)
	}
	res.Layers = layers

	perPage := regexp.MustCompile(`^` + regexp.QuoteMeta(ocrLayerName) + `\s*\(Page\s*\d+`)
	for _, layer := range layers {
		if layer == ocrLayerName || perPage.MatchString(layer) {
			res.HasOCRLayer = true
			res.OCRLayerName = layer
			break
		}
		if strings.Contains(strings.ToLower(layer), "ocr") {
			res.Warnings = append(res.Warnings, fmt.Sprintf("existing layer %q might contain OCR", layer))
		}
	}
	return res, nil
}
