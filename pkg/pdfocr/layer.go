package pdfocr

import (
	"fmt"

	"codeberg.org/go-pdf/fpdf"
	"golang.org/x/text/encoding/charmap"

	"github.com/gardar/ocrmux/pkg/hocr"
)

// layerStats counts the words drawn on one page.
type layerStats struct {
	words          int
	encodingErrors int
}

// drawOCRLayer draws the words of page on a new layer of the current PDF page. hOCR
// coordinates are multiplied by scale to get points.
func drawOCRLayer(pdf *fpdf.Fpdf, page hocr.Page, pageNum int, scale float64, cfg Config) (layerStats, error) {
	layer := pdf.AddLayer(fmt.Sprintf("%s (Page %d)", cfg.LayerName, pageNum), true)
	pdf.BeginLayer(layer)
	pdf.SetFont(cfg.Font.Name, cfg.Font.Style, cfg.Font.Size)
	if cfg.Debug {
		pdf.SetTextColor(255, 0, 0)
		pdf.SetDrawColor(255, 0, 0)
	} else {
		pdf.SetAlpha(0, "Normal")
	}

	var stats layerStats
	for _, line := range page.AllLines() {
		for _, word := range line.Words {
			if word.Text == "" || word.BBox.Empty() {
				continue
			}
			stats.words++
			if !drawWord(pdf, word, scale, cfg) {
				stats.encodingErrors++
			}
		}
	}
	if cfg.Debug {
		pdf.SetTextColor(0, 0, 0)
	} else {
		pdf.SetAlpha(1, "Normal")
	}
	pdf.EndLayer()

	if stats.encodingErrors > 0 && stats.encodingErrors > stats.words/10 {
		return stats, fmt.Errorf("character encoding issues in %d of %d words", stats.encodingErrors, stats.words)
	}
	return stats, pdf.Error()
}

// drawWord stretches the word to the width of its box. It reports false when the text
// had characters outside Latin-1, which are replaced.
func drawWord(pdf *fpdf.Fpdf, word hocr.Word, scale float64, cfg Config) bool {
	x, y := word.BBox.X1*scale, word.BBox.Y1*scale
	width, height := word.BBox.Width()*scale, word.BBox.Height()*scale

	latin1, encoded := toLatin1(word.Text)
	if w := pdf.GetStringWidth(latin1); w > 0 {
		pdf.SetFontSize(cfg.Font.Size * width / w)
	}
	size, _ := pdf.GetFontSize()
	pdf.Text(x, y+size*cfg.Font.AscentRatio, latin1)
	pdf.SetFontSize(cfg.Font.Size)

	if cfg.Debug {
		pdf.Rect(x, y, width, height, "D")
	}
	return encoded
}

// toLatin1 encodes s for the core fonts, replacing what Latin-1 cannot hold with '?'.
func toLatin1(s string) (string, bool) {
	if out, err := charmap.ISO8859_1.NewEncoder().String(s); err == nil {
		return out, true
	}
	buf := make([]byte, 0, len(s))
	for _, r := range s {
		if b, ok := charmap.ISO8859_1.EncodeRune(r); ok {
			buf = append(buf, b)
		} else {
			buf = append(buf, '?')
		}
	}
	return string(buf), false
}
