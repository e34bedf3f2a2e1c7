package pdfocr

import (
	"bytes"
	"fmt"
	"image"
	"image/png"
	"strings"

	"codeberg.org/go-pdf/fpdf"

	"github.com/gardar/ocrmux/pkg/hocr"
)

// createPDFFromImages builds a PDF with one page per image, each sized to its hOCR page
// and carrying that page's text layer. Inputs are validated by the caller.
func createPDFFromImages(doc *hocr.Document, images [][]byte, cfg Config) ([]byte, error) {
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCreator("ocrmux", true)
	scale := cfg.scale()
	logger := cfg.logger()

	for i := cfg.StartPage - 1; i < len(doc.Pages) && i < len(images); i++ {
		page := doc.Pages[i]
		w, h := page.BBox.X2*scale, page.BBox.Y2*scale
		pdf.AddPageFormat("P", fpdf.SizeType{Wd: w, Ht: h})

		data, imageType, err := embeddable(images[i])
		if err != nil {
			return nil, fmt.Errorf("image %d: %w", i+1, err)
		}
		name := fmt.Sprintf("page%d", i+1)
		opts := fpdf.ImageOptions{ImageType: imageType}
		pdf.RegisterImageOptionsReader(name, opts, bytes.NewReader(data))
		pdf.ImageOptions(name, 0, 0, w, h, false, opts, 0, "")

		stats, err := drawOCRLayer(pdf, page, i+1, scale, cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to draw OCR layer for page %d: %w", i+1, err)
		}
		logger.Debugw("page assembled", "page", i+1, "words", stats.words, "width", w, "height", h)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("failed to generate PDF: %w", err)
	}
	return buf.Bytes(), nil
}

// embeddable returns data in a format fpdf can embed. PNG, JPEG and GIF pass through;
// other decodable formats are converted to PNG.
func embeddable(data []byte) ([]byte, string, error) {
	imageType, err := detectImageType(data)
	if err != nil {
		return nil, "", err
	}
	switch imageType {
	case "PNG", "JPEG", "GIF":
		return data, imageType, nil
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode %s image: %w", imageType, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, "", err
	}
	return buf.Bytes(), "PNG", nil
}

// detectImageType returns the upper-cased name of the image format of data.
func detectImageType(data []byte) (string, error) {
	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to decode image config: %w", err)
	}
	return strings.ToUpper(format), nil
}
