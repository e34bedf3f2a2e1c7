package raster

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os/exec"
	"testing"

	"codeberg.org/go-pdf/fpdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/ocrerr"
	"github.com/gardar/ocrmux/pkg/result"
)

type fakeRenderer struct {
	pages    int
	countErr error
	render   func(i int) (image.Image, error)
	rendered bool
}

func (f *fakeRenderer) PageCount(ctx context.Context, _ []byte) (int, error) {
	return f.pages, f.countErr
}

func (f *fakeRenderer) Render(ctx context.Context, _ []byte, dpi, pages int) ([]image.Image, error) {
	f.rendered = true
	var out []image.Image
	for i := 0; i < pages; i++ {
		img, err := f.render(i)
		if err != nil {
			return nil, err
		}
		out = append(out, img)
	}
	return out, nil
}

func blank(w, h int) image.Image {
	img := image.NewGray(image.Rect(0, 0, w, h))
	for i := range img.Pix {
		img.Pix[i] = 0xff
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

var fakePDF = []byte("%PDF-1.7\n%fake\n")

func TestRasterizeImage(t *testing.T) {
	r := New(Options{Logger: log.Nop})
	pages, err := r.Rasterize(context.Background(), result.Document{
		Data:      pngBytes(t, blank(40, 20)),
		MediaType: "image/png",
	})
	require.NoError(t, err)
	require.Len(t, pages, 1)
	assert.Equal(t, 0, pages[0].Index)
	assert.Equal(t, 40, pages[0].Width)
	assert.Equal(t, 20, pages[0].Height)
	assert.Equal(t, DefaultDPI, pages[0].DPI)
}

func TestRasterizeSniffsGenericType(t *testing.T) {
	r := New(Options{Logger: log.Nop})
	pages, err := r.Rasterize(context.Background(), result.Document{
		Data:      pngBytes(t, blank(8, 8)),
		MediaType: "application/octet-stream",
	})
	require.NoError(t, err)
	assert.Len(t, pages, 1)
}

func TestRasterizeUnsupported(t *testing.T) {
	r := New(Options{Logger: log.Nop})
	_, err := r.Rasterize(context.Background(), result.Document{
		Data:      []byte("PK\x03\x04 not a document"),
		MediaType: "application/zip",
	})
	assert.Equal(t, ocrerr.UnsupportedFormat, ocrerr.CodeOf(err))
}

func TestRasterizeCorruptImage(t *testing.T) {
	r := New(Options{Logger: log.Nop})
	data := append([]byte("\x89PNG\r\n\x1a\n"), []byte("garbage")...)
	_, err := r.Rasterize(context.Background(), result.Document{Data: data, MediaType: "image/png"})
	assert.Equal(t, ocrerr.CorruptDocument, ocrerr.CodeOf(err))
	assert.Equal(t, 0, ocrerr.PageOf(err))
}

func TestRasterizePDF(t *testing.T) {
	fr := &fakeRenderer{pages: 3, render: func(i int) (image.Image, error) { return blank(10+i, 10), nil }}
	r := New(Options{DPI: 300, Renderer: fr, Logger: log.Nop})

	pages, err := r.Rasterize(context.Background(), result.Document{Data: fakePDF, MediaType: MediaPDF})
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i, p.Index)
		assert.Equal(t, 10+i, p.Width)
		assert.Equal(t, 300, p.DPI)
	}
}

func TestRasterizePDFCorruptPageReturnsNoPages(t *testing.T) {
	fr := &fakeRenderer{pages: 3, render: func(i int) (image.Image, error) {
		if i == 1 {
			return nil, errors.New("bad xref")
		}
		return blank(10, 10), nil
	}}
	r := New(Options{Renderer: fr, Logger: log.Nop})

	pages, err := r.Rasterize(context.Background(), result.Document{Data: fakePDF, MediaType: MediaPDF})
	assert.Nil(t, pages)
	assert.Equal(t, ocrerr.CorruptDocument, ocrerr.CodeOf(err))
}

func TestRasterizePDFTooManyPages(t *testing.T) {
	fr := &fakeRenderer{pages: 5, render: func(int) (image.Image, error) { return blank(1, 1), nil }}
	r := New(Options{MaxPages: 4, Renderer: fr, Logger: log.Nop})

	_, err := r.Rasterize(context.Background(), result.Document{Data: fakePDF, MediaType: MediaPDF})
	assert.Equal(t, ocrerr.UnsupportedFormat, ocrerr.CodeOf(err))
	assert.False(t, fr.rendered)
}

func TestRasterizeMissingRenderer(t *testing.T) {
	fr := &fakeRenderer{countErr: ErrRendererMissing}
	r := New(Options{Renderer: fr, Logger: log.Nop})
	_, err := r.Rasterize(context.Background(), result.Document{Data: fakePDF})
	assert.Equal(t, ocrerr.UnsupportedFormat, ocrerr.CodeOf(err))
}

func TestRasterizeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	fr := &fakeRenderer{countErr: errors.New("killed")}
	r := New(Options{Renderer: fr, Logger: log.Nop})

	_, err := r.Rasterize(ctx, result.Document{Data: fakePDF})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, ocrerr.CodeOf(err))
}

func TestClampDPI(t *testing.T) {
	assert.Equal(t, DefaultDPI, ClampDPI(0))
	assert.Equal(t, MinDPI, ClampDPI(10))
	assert.Equal(t, MaxDPI, ClampDPI(1200))
	assert.Equal(t, 200, ClampDPI(200))
}

func TestResolve(t *testing.T) {
	pngData := pngBytes(t, blank(2, 2))
	tests := []struct {
		name     string
		declared string
		data     []byte
		want     string
	}{
		{"declared png", "image/png", pngData, MediaPNG},
		{"alias", "image/x-png", pngData, MediaPNG},
		{"parameters", "Image/PNG; charset=binary", pngData, MediaPNG},
		{"mismatch favours bytes", "image/jpeg", pngData, MediaPNG},
		{"generic sniffed", "", fakePDF, MediaPDF},
		{"generic unknown", "application/octet-stream", []byte("hello"), ""},
		{"unsupported declared", "text/plain", fakePDF, ""},
		{"pdf header after junk", "", append([]byte("junk\n"), fakePDF...), MediaPDF},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Resolve(tt.declared, tt.data))
		})
	}
}

func TestParsePageCount(t *testing.T) {
	n, err := parsePageCount([]byte("Producer: x\nPages:          12\nEncrypted: no\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	_, err = parsePageCount([]byte("Producer: x\n"))
	assert.Error(t, err)
}

func TestRenderErrors(t *testing.T) {
	stderr := []byte("Syntax Warning: May not be a PDF file (continuing anyway)\n" +
		"Syntax Error (412): Unknown operator 'zq'\n" +
		"Config Error: No display font for 'Symbol'\n" +
		"I/O Error: Couldn't open file 'x.pdf'\n" +
		"Error: PDF file is damaged\n")
	assert.Equal(t, []string{
		"Syntax Error (412): Unknown operator 'zq'",
		"I/O Error: Couldn't open file 'x.pdf'",
		"Error: PDF file is damaged",
	}, renderErrors(stderr))
	assert.Empty(t, renderErrors(nil))
}

func requirePoppler(t *testing.T) {
	t.Helper()
	for _, tool := range []string{"pdfinfo", "pdftoppm"} {
		if _, err := exec.LookPath(tool); err != nil {
			t.Skipf("%s not installed", tool)
		}
	}
}

// boxesPDF builds an uncompressed PDF with one filled box per page. The box of page i
// is drawn at x = 100+i.
func boxesPDF(t *testing.T, pages int) []byte {
	t.Helper()
	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetCompression(false)
	for i := 0; i < pages; i++ {
		pdf.AddPage()
		pdf.SetFillColor(0, 0, 0)
		pdf.Rect(float64(100+i), 50, 100, 20, "F")
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))
	return buf.Bytes()
}

func TestPopplerRendererDamagedPage(t *testing.T) {
	requirePoppler(t)
	data := boxesPDF(t, 3)

	// Turn the "re" operator of page 2's box into an unknown one, keeping every byte
	// offset of the file intact.
	at := bytes.Index(data, []byte("101.00 "))
	require.Positive(t, at)
	op := bytes.Index(data[at:], []byte(" re "))
	require.Positive(t, op)
	copy(data[at+op:], " zq ")

	r := New(Options{DPI: 72, Logger: log.Nop})
	pages, err := r.Rasterize(context.Background(), result.Document{Data: data, MediaType: MediaPDF})
	assert.Nil(t, pages)
	require.Error(t, err)
	assert.Equal(t, ocrerr.CorruptDocument, ocrerr.CodeOf(err))
	assert.Equal(t, 1, ocrerr.PageOf(err))
}

func TestPopplerRenderer(t *testing.T) {
	requirePoppler(t)

	pdf := fpdf.New("P", "pt", "A4", "")
	pdf.SetFont("Helvetica", "", 24)
	for i := 0; i < 2; i++ {
		pdf.AddPage()
		pdf.SetFillColor(0, 0, 0)
		pdf.Rect(50, 50, 100, 20, "F")
	}
	var buf bytes.Buffer
	require.NoError(t, pdf.Output(&buf))

	r := New(Options{DPI: 72, Logger: log.Nop})
	pages, err := r.Rasterize(context.Background(), result.Document{Data: buf.Bytes(), MediaType: MediaPDF})
	require.NoError(t, err)
	require.Len(t, pages, 2)

	// A4 at 72 dpi is 595x842 points, pdftoppm rounds up.
	assert.InDelta(t, 595, pages[0].Width, 2)
	assert.InDelta(t, 842, pages[0].Height, 2)
	c := color.GrayModel.Convert(pages[1].Image.At(60, 55)).(color.Gray)
	assert.Less(t, c.Y, uint8(64))
}
