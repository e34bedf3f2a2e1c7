// Package hocr reads and writes hOCR, the HTML based format tesseract and other OCR
// engines use to report recognized text with its layout.
//
// The object model mirrors the hOCR hierarchy: Document → Pages → Areas → Paragraphs →
// Lines → Words. Elements may also appear directly under a coarser parent, for example
// lines directly under a page, and the model keeps them where they were found.
//
// Parse turns engine output into the model, Generate renders the model back to HTML and
// FromResult builds a model from pipeline output so it can be served as hOCR or laid
// over page images as a searchable PDF.
package hocr

import (
	"fmt"
	"strings"
)

// Document is a parsed hOCR document.
type Document struct {
	Title    string            // Contents of <title>
	Language string            // Document language, from <html lang> or dc.language
	Metadata map[string]string // ocr-system, ocr-capabilities, ocr-langs, ocr-number-of-pages
	Pages    []Page
}

// Page is an element with class ocr_page.
type Page struct {
	ID         string
	Number     int    // ppageno, zero based as tesseract writes it
	Image      string // Source image named in the title
	Lang       string
	BBox       BBox
	Areas      []Area
	Paragraphs []Paragraph // Paragraphs outside any area
	Lines      []Line      // Lines outside any area or paragraph
}

// Area is an element with class ocr_carea.
type Area struct {
	ID         string
	Lang       string
	BBox       BBox
	Paragraphs []Paragraph
	Lines      []Line
	Words      []Word
}

// Paragraph is an element with class ocr_par.
type Paragraph struct {
	ID    string
	Lang  string
	BBox  BBox
	Lines []Line
	Words []Word
}

// Line is an element with class ocr_line or one of tesseract's line variants
// (ocr_header, ocr_caption, ocr_textfloat).
type Line struct {
	ID         string
	Lang       string
	BBox       BBox
	Baseline   string
	Words      []Word
	Properties map[string]string // Remaining title properties, x_size, x_source, ...
}

// Word is an element with class ocrx_word.
type Word struct {
	ID            string
	Text          string
	Lang          string
	BBox          BBox
	Confidence    float64 // x_wconf, 0-100
	HasConfidence bool    // Whether the title carried x_wconf
}

// BBox is the value of an hOCR bbox property in image pixels.
type BBox struct {
	X1, Y1, X2, Y2 float64
}

// Width returns the horizontal extent of b.
func (b BBox) Width() float64 { return b.X2 - b.X1 }

// Height returns the vertical extent of b.
func (b BBox) Height() float64 { return b.Y2 - b.Y1 }

// Empty reports whether b has no area.
func (b BBox) Empty() bool { return b.X2 <= b.X1 || b.Y2 <= b.Y1 }

func (b BBox) String() string {
	return fmt.Sprintf("bbox %d %d %d %d", round(b.X1), round(b.Y1), round(b.X2), round(b.Y2))
}

// Text joins the line's words with single spaces.
func (l Line) Text() string {
	words := make([]string, 0, len(l.Words))
	for _, w := range l.Words {
		if w.Text != "" {
			words = append(words, w.Text)
		}
	}
	return strings.Join(words, " ")
}

// AllLines returns every line on the page in document order: lines inside areas first,
// then lines of loose paragraphs, then loose lines. Words that sit outside any line are
// grouped into one synthetic line per parent.
func (p Page) AllLines() []Line {
	var out []Line
	fromParagraph := func(par Paragraph) {
		out = append(out, par.Lines...)
		if len(par.Words) > 0 {
			out = append(out, Line{ID: par.ID, Lang: par.Lang, BBox: par.BBox, Words: par.Words})
		}
	}
	for _, area := range p.Areas {
		for _, par := range area.Paragraphs {
			fromParagraph(par)
		}
		out = append(out, area.Lines...)
		if len(area.Words) > 0 {
			out = append(out, Line{ID: area.ID, Lang: area.Lang, BBox: area.BBox, Words: area.Words})
		}
	}
	for _, par := range p.Paragraphs {
		fromParagraph(par)
	}
	return append(out, p.Lines...)
}

func round(v float64) int {
	if v < 0 {
		return int(v - 0.5)
	}
	return int(v + 0.5)
}
