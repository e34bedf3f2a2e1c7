package raster

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gardar/ocrmux/pkg/ocrerr"
)

// PDFRenderer turns PDF bytes into page images.
type PDFRenderer interface {
	// PageCount returns the number of pages without rendering them.
	PageCount(ctx context.Context, data []byte) (int, error)
	// Render returns one image for each of the pages counted by PageCount, in physical
	// page order. A page that cannot be rendered cleanly fails the whole call.
	Render(ctx context.Context, data []byte, dpi, pages int) ([]image.Image, error)
}

// ErrRendererMissing is returned when the renderer's external tool cannot be found.
var ErrRendererMissing = errors.New("pdf renderer not installed")

// PopplerRenderer renders PDFs with poppler's pdfinfo and pdftoppm tools.
type PopplerRenderer struct {
	PdfinfoPath  string        // Defaults to "pdfinfo"
	PdftoppmPath string        // Defaults to "pdftoppm"
	Timeout      time.Duration // Per tool invocation, zero means no timeout
	TempDir      string        // Parent for scratch directories, "" uses os.TempDir
}

func (p *PopplerRenderer) tool(path, def string) (string, error) {
	if path == "" {
		path = def
	}
	resolved, err := exec.LookPath(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s: %v", ErrRendererMissing, path, err)
	}
	return resolved, nil
}

// run executes a poppler tool. stderr is returned on success too, poppler reports
// damaged content there while still exiting 0.
func (p *PopplerRenderer) run(ctx context.Context, name string, args ...string) (stdout, stderr []byte, err error) {
	if p.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.Timeout)
		defer cancel()
	}
	var out, errOut bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &out
	cmd.Stderr = &errOut
	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, nil, fmt.Errorf("%s: %w", filepath.Base(name), ctxErr)
		}
		return nil, nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, strings.TrimSpace(errOut.String()))
	}
	return out.Bytes(), errOut.Bytes(), nil
}

// popplerErrors are the stderr prefixes of poppler's error categories that mean the
// document is damaged. Warnings and config errors are ignored.
var popplerErrors = []string{"Syntax Error", "I/O Error", "Internal Error", "Permission Error", "Error"}

// renderErrors returns the error lines of poppler's stderr output.
func renderErrors(stderr []byte) []string {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(stderr))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		for _, prefix := range popplerErrors {
			if strings.HasPrefix(line, prefix) {
				lines = append(lines, line)
				break
			}
		}
	}
	return lines
}

// withInput writes data into a fresh scratch directory and calls fn with the directory
// and the input path. The directory is removed afterwards.
func (p *PopplerRenderer) withInput(data []byte, fn func(dir, input string) error) error {
	dir, err := os.MkdirTemp(p.TempDir, "ocrmux-pdf-")
	if err != nil {
		return fmt.Errorf("failed to create scratch directory: %w", err)
	}
	defer os.RemoveAll(dir)

	input := filepath.Join(dir, "input.pdf")
	if err := os.WriteFile(input, data, 0o600); err != nil {
		return fmt.Errorf("failed to write PDF: %w", err)
	}
	return fn(dir, input)
}

// PageCount runs pdfinfo and reads its "Pages:" line.
func (p *PopplerRenderer) PageCount(ctx context.Context, data []byte) (int, error) {
	pdfinfo, err := p.tool(p.PdfinfoPath, "pdfinfo")
	if err != nil {
		return 0, err
	}
	var pages int
	err = p.withInput(data, func(_, input string) error {
		out, _, err := p.run(ctx, pdfinfo, input)
		if err != nil {
			return err
		}
		pages, err = parsePageCount(out)
		return err
	})
	return pages, err
}

func parsePageCount(out []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(out))
	for sc.Scan() {
		line := sc.Text()
		if !strings.HasPrefix(line, "Pages:") {
			continue
		}
		n, err := strconv.Atoi(strings.TrimSpace(strings.TrimPrefix(line, "Pages:")))
		if err != nil {
			return 0, fmt.Errorf("invalid page count %q: %w", line, err)
		}
		return n, nil
	}
	return 0, errors.New("pdfinfo reported no page count")
}

// Render runs pdftoppm once for the whole document and decodes the produced PNGs. The
// number of produced pages must match pages. When pdftoppm reports errors the pages are
// rendered one by one to find the first damaged page, and the document fails with
// CorruptDocument at that page.
func (p *PopplerRenderer) Render(ctx context.Context, data []byte, dpi, pages int) ([]image.Image, error) {
	pdftoppm, err := p.tool(p.PdftoppmPath, "pdftoppm")
	if err != nil {
		return nil, err
	}

	var images []image.Image
	err = p.withInput(data, func(dir, input string) error {
		prefix := filepath.Join(dir, "page")
		_, stderr, err := p.run(ctx, pdftoppm, "-r", strconv.Itoa(dpi), "-png", input, prefix)
		if err != nil {
			return err
		}
		if lines := renderErrors(stderr); len(lines) > 0 {
			return p.damagedPage(ctx, pdftoppm, dir, input, pages, lines)
		}
		files, err := pageFiles(dir, "page")
		if err != nil {
			return err
		}
		if len(files) != pages {
			return fmt.Errorf("rendered %d of %d pages", len(files), pages)
		}
		for i, f := range files {
			img, err := decodeFile(f)
			if err != nil {
				return ocrerr.Wrap(ocrerr.CorruptDocument, err, "failed to decode rendered page").AtPage(i)
			}
			images = append(images, img)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return images, nil
}

// damagedPage renders each page on its own at a low resolution and returns a
// CorruptDocument error for the first one poppler complains about. lines are the errors
// of the whole-document run, reported without a page when no single page reproduces them.
func (p *PopplerRenderer) damagedPage(ctx context.Context, pdftoppm, dir, input string, pages int, lines []string) error {
	for i := 0; i < pages; i++ {
		page := strconv.Itoa(i + 1)
		_, stderr, err := p.run(ctx, pdftoppm, "-r", "10", "-f", page, "-l", page, "-png", input, filepath.Join(dir, "check"))
		if err != nil {
			return ocrerr.Wrap(ocrerr.CorruptDocument, err, "failed to render page").AtPage(i)
		}
		if pageLines := renderErrors(stderr); len(pageLines) > 0 {
			return ocrerr.New(ocrerr.CorruptDocument, "damaged page: %s", pageLines[0]).AtPage(i)
		}
	}
	return ocrerr.New(ocrerr.CorruptDocument, "damaged PDF: %s", lines[0])
}

// pageFiles lists pdftoppm output ("page-1.png", "page-01.png", ...) in page order.
func pageFiles(dir, prefix string) ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, prefix+"-*.png"))
	if err != nil {
		return nil, err
	}
	type numbered struct {
		n    int
		path string
	}
	var files []numbered
	for _, m := range matches {
		base := strings.TrimSuffix(strings.TrimPrefix(filepath.Base(m), prefix+"-"), ".png")
		n, err := strconv.Atoi(base)
		if err != nil {
			continue
		}
		files = append(files, numbered{n, m})
	}
	sort.Slice(files, func(i, j int) bool { return files[i].n < files[j].n })

	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.path
	}
	return out, nil
}

func decodeFile(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	img, _, err := image.Decode(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("failed to decode %s: %w", filepath.Base(path), err)
	}
	return img, nil
}
