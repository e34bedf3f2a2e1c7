package pdfocr

import (
	"bytes"
	"fmt"
	"io"

	"codeberg.org/go-pdf/fpdf"
	"codeberg.org/go-pdf/fpdf/contrib/gofpdi"

	"github.com/gardar/ocrmux/pkg/hocr"
)

// modifyExistingPDF imports the pages of an existing PDF and lays the text of the
// matching hOCR page over each one. Inputs are validated by the caller.
func modifyExistingPDF(input []byte, doc *hocr.Document, cfg Config) (out []byte, err error) {
	// The importer panics on PDFs it cannot parse.
	defer func() {
		if r := recover(); r != nil {
			out, err = nil, fmt.Errorf("cannot import PDF: %v", r)
		}
	}()

	pdf := fpdf.New("P", "pt", "", "")
	pdf.SetCreator("ocrmux", true)
	importer := gofpdi.NewImporter()
	rs := io.ReadSeeker(bytes.NewReader(input))
	scale := cfg.scale()
	logger := cfg.logger()

	for i, page := range doc.Pages {
		w, h := page.BBox.X2*scale, page.BBox.Y2*scale
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

		tpl := importer.ImportPageFromStream(pdf, &rs, i+cfg.StartPage, "/MediaBox")
		importer.UseImportedTemplate(pdf, tpl, 0, 0, w, 0)

		stats, err := drawOCRLayer(pdf, page, i+1, scale, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to draw OCR layer for page %d: %w", i+1, err)
		}
		logger.Debugw("page overlaid", "page", i+cfg.StartPage, "words", stats.words)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}
