package hocr

import (
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/gardar/ocrmux/pkg/result"
)

// FromResult builds an hOCR document from pipeline output. Each region becomes an
// ocr_line carrying its provenance in an x_source property. Word boxes are estimated by
// splitting the line box in proportion to word length.
func FromResult(doc *result.DocumentResult, lang string) *Document {
	out := &Document{
		Title:    "OCR output",
		Language: lang,
		Metadata: map[string]string{
			"ocr-system":          "ocrmux",
			"ocr-capabilities":    "ocr_page ocr_line ocrx_word",
			"ocr-number-of-pages": strconv.Itoa(len(doc.Pages)),
		},
	}
	if lang != "" {
		out.Metadata["ocr-langs"] = lang
	}

	for _, mp := range doc.Pages {
		page := Page{
			ID:     fmt.Sprintf("page_%d", mp.Index+1),
			Number: mp.Index,
			BBox:   BBox{X2: float64(mp.Width), Y2: float64(mp.Height)},
		}
		for i, r := range mp.Regions {
			b := r.Polygon.Bounds()
			line := Line{
				ID:   fmt.Sprintf("line_%d_%d", mp.Index+1, i+1),
				BBox: BBox{X1: b.X1, Y1: b.Y1, X2: b.X2, Y2: b.Y2},
			}
			if r.Provenance != "" {
				line.Properties = map[string]string{"x_source": string(r.Provenance)}
			}
			line.Words = splitWords(r, line.BBox, line.ID)
			page.Lines = append(page.Lines, line)
		}
		out.Pages = append(out.Pages, page)
	}
	return out
}

func splitWords(r result.TextRegion, box BBox, lineID string) []Word {
	fields := strings.Fields(r.Text)
	if len(fields) == 0 {
		return nil
	}

	// Every word owns its runes plus one separator, except the last.
	total := -1
	for _, f := range fields {
		total += utf8.RuneCountInString(f) + 1
	}
	perRune := box.Width() / float64(max(total, 1))

	words := make([]Word, len(fields))
	x := box.X1
	for i, f := range fields {
		n := float64(utf8.RuneCountInString(f))
		words[i] = Word{
			ID:   fmt.Sprintf("%s_%d", strings.Replace(lineID, "line", "word", 1), i+1),
			Text: f,
			BBox: BBox{X1: x, Y1: box.Y1, X2: x + n*perRune, Y2: box.Y2},
		}
		if r.Confidence.Known {
			words[i].Confidence = r.Confidence.Value * 100
			words[i].HasConfidence = true
		}
		x += (n + 1) * perRune
	}
	return words
}
