package hocr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmux/pkg/result"
)

const tesseractSample = `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html PUBLIC "-//W3C//DTD XHTML 1.0 Transitional//EN"
    "http://www.w3.org/TR/xhtml1/DTD/xhtml1-transitional.dtd">
<html xmlns="http://www.w3.org/1999/xhtml" xml:lang="en" lang="en">
 <head>
  <title></title>
  <meta http-equiv="Content-Type" content="text/html;charset=utf-8"/>
  <meta name='ocr-system' content='tesseract 5.3.0' />
  <meta name='ocr-capabilities' content='ocr_page ocr_carea ocr_par ocr_line ocrx_word ocrp_wconf'/>
 </head>
 <body>
  <div class='ocr_page' id='page_1' title='image "unknown"; bbox 0 0 600 400; ppageno 0; scan_res 150 150'>
   <div class='ocr_carea' id='block_1_1' title="bbox 36 40 520 120">
    <p class='ocr_par' id='par_1_1' lang='eng' title="bbox 36 40 520 120">
     <span class='ocr_line' id='line_1_1' title="bbox 36 40 520 70; baseline 0 -6; x_size 30; x_descenders 6; x_ascenders 7">
      <span class='ocrx_word' id='word_1_1' title='bbox 36 40 140 70; x_wconf 96'>Invoice</span>
      <span class='ocrx_word' id='word_1_2' title='bbox 150 40 260 70; x_wconf 90'><strong>2024-01</strong></span>
     </span>
     <span class='ocr_header' id='line_1_2' title="bbox 36 90 300 120; baseline 0 -5; x_size 28">
      <span class='ocrx_word' id='word_1_3' title='bbox 36 90 300 120'>Total</span>
     </span>
     <span class='ocr_line' id='line_1_3' title="bbox 36 130 40 140">
     </span>
    </p>
   </div>
  </div>
 </body>
</html>`

func TestParseTesseractOutput(t *testing.T) {
	doc, err := Parse([]byte(tesseractSample))
	require.NoError(t, err)

	assert.Equal(t, "en", doc.Language)
	assert.Equal(t, "tesseract 5.3.0", doc.Metadata["ocr-system"])
	require.Len(t, doc.Pages, 1)

	page := doc.Pages[0]
	assert.Equal(t, "unknown", page.Image)
	assert.Equal(t, BBox{0, 0, 600, 400}, page.BBox)

	lines := page.AllLines()
	require.Len(t, lines, 3)

	assert.Equal(t, "Invoice 2024-01", lines[0].Text())
	assert.Equal(t, "0 -6", lines[0].Baseline)
	assert.Equal(t, "30", lines[0].Properties["x_size"])
	assert.True(t, lines[0].Words[0].HasConfidence)
	assert.Equal(t, 96.0, lines[0].Words[0].Confidence)

	assert.Equal(t, "Total", lines[1].Text(), "ocr_header counts as a line")
	assert.False(t, lines[1].Words[0].HasConfidence)

	assert.Empty(t, lines[2].Words)
}

func TestParseLatin1(t *testing.T) {
	data := []byte("<html><head><meta http-equiv='Content-Type' content='text/html; charset=iso-8859-1'></head>" +
		"<body><div class='ocr_page' title='bbox 0 0 10 10'><span class='ocr_line' title='bbox 0 0 10 10'>" +
		"<span class='ocrx_word' title='bbox 0 0 10 10'>Gar\xf0ar</span></span></div></body></html>")
	doc, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "Garðar", doc.Pages[0].AllLines()[0].Text())
}

func TestParseWithoutPages(t *testing.T) {
	_, err := Parse([]byte("<html><body><p>nothing</p></body></html>"))
	assert.ErrorIs(t, err, ErrNoPages)
}

func TestParseTitle(t *testing.T) {
	props := ParseTitle("bbox 1 2 3 4; x_wconf 95;  ")
	assert.Equal(t, []string{"1", "2", "3", "4"}, props["bbox"])
	assert.Equal(t, []string{"95"}, props["x_wconf"])

	b, ok := ParseBBox("x_wconf 1")
	assert.False(t, ok)
	assert.True(t, b.Empty())
}

func TestFromResultRendersParseableHOCR(t *testing.T) {
	doc := &result.DocumentResult{
		Status: result.DocumentSuccess,
		Pages: []result.MergedPage{{
			Index: 0, Width: 200, Height: 100, Status: result.PageOK,
			Regions: []result.TextRegion{
				{
					Text:       "fish & chips",
					Confidence: result.Score(0.42),
					Polygon:    result.RectPolygon(10, 10, 130, 30),
					Provenance: result.ProvenanceClassicalOverride,
				},
				{Text: "unknown", Polygon: result.RectPolygon(10, 50, 80, 70), Provenance: result.ProvenanceNeural},
			},
		}},
	}

	h := FromResult(doc, "eng")
	out, err := Generate(h)
	require.NoError(t, err)
	assert.Contains(t, string(out), ">&amp;</span>")

	back, err := Parse(out)
	require.NoError(t, err)
	require.Len(t, back.Pages, 1)
	assert.Equal(t, BBox{0, 0, 200, 100}, back.Pages[0].BBox)

	lines := back.Pages[0].AllLines()
	require.Len(t, lines, 2)
	assert.Equal(t, "fish & chips", lines[0].Text())
	assert.Equal(t, "classical-override", lines[0].Properties["x_source"])
	assert.Equal(t, 42.0, lines[0].Words[0].Confidence)
	assert.False(t, lines[1].Words[0].HasConfidence)

	// Word boxes tile the line from left to right.
	words := lines[0].Words
	require.Len(t, words, 3)
	assert.Equal(t, 10.0, words[0].BBox.X1)
	assert.Equal(t, 130.0, words[2].BBox.X2)
	assert.Less(t, words[0].BBox.X2, words[1].BBox.X1)
}
