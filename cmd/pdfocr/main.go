// pdfocr is a command-line tool for creating searchable PDFs from hOCR.
//
// It either lays an OCR text layer over the pages of an existing PDF or builds a new PDF
// from page images. Each word of the hOCR file is drawn invisibly at the position it was
// recognized at.
//
// Usage:
//
//	pdfocr -hocr document.hocr -output out.pdf (-pdf in.pdf | -image-dir pages/) [options]
//
// Options:
//
//	-start-page int   First PDF page the hOCR pages are laid over (default 1)
//	-dpi int          Resolution of the hOCR coordinates, 0 treats pixels as points
//	-layer string     Name of the text layer (default "OCR Text")
//	-debug            Draw the text in red with its word boxes
//	-force            Reapply OCR even when the PDF already has an OCR layer
//	-overwrite        Overwrite the output file
//	-debug-pdf        Log the structure of the input PDF
//	-log-level string Log level (default "info")
//
// Examples:
//
//	pdfocr -hocr document.hocr -pdf document.pdf -output document_searchable.pdf
//	pdfocr -hocr document.hocr -image-dir ./page_images -dpi 300 -output document_searchable.pdf
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/gardar/ocrmux/pkg/hocr"
	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/pdfocr"
)

func main() {
	hocrPath := flag.String("hocr", "", "Path to a multi-page hOCR file (required)")
	imageDirPath := flag.String("image-dir", "", "Directory containing page images")
	pdfPath := flag.String("pdf", "", "Path to an existing PDF to add the OCR layer to")
	outputPath := flag.String("output", "", "Output PDF path (required)")
	startPage := flag.Int("start-page", 1, "First page to apply OCR to (1-based)")
	dpi := flag.Int("dpi", 0, "Resolution of the hOCR coordinates, 0 treats pixels as points")
	layer := flag.String("layer", "OCR Text", "Name of the OCR text layer")
	debug := flag.Bool("debug", false, "Draw the OCR text and word boxes visibly")
	force := flag.Bool("force", false, "Reapply OCR even if an OCR layer is already detected")
	overwrite := flag.Bool("overwrite", false, "Overwrite the output PDF if it already exists")
	dumpPDF := flag.Bool("debug-pdf", false, "Dump PDF structure for debugging")
	logLevel := flag.String("log-level", log.LevelInfo, "Log level: debug, info, warn or error")
	flag.Parse()
	log.SetLevel(*logLevel)

	if *hocrPath == "" || *outputPath == "" {
		fail("-hocr and -output are required")
	}
	if (*imageDirPath == "") == (*pdfPath == "") {
		fail("exactly one of -image-dir and -pdf is required")
	}
	if _, err := os.Stat(*outputPath); err == nil && !*overwrite {
		fail("output file %s already exists, use -overwrite to replace it", *outputPath)
	}
	if *imageDirPath != "" && *force {
		log.Default.Warnw("-force only applies with -pdf, ignoring it")
	}

	cfg := pdfocr.DefaultConfig()
	cfg.Debug = *debug
	cfg.Force = *force
	cfg.DumpPDF = *dumpPDF
	cfg.StartPage = *startPage
	cfg.DPI = *dpi
	cfg.LayerName = *layer

	data, err := os.ReadFile(*hocrPath)
	if err != nil {
		fail("failed to read hOCR file: %v", err)
	}
	doc, err := hocr.Parse(data)
	if err != nil {
		fail("failed to parse hOCR file: %v", err)
	}

	var out []byte
	if *imageDirPath != "" {
		images, err := readImages(*imageDirPath)
		if err != nil {
			fail("%v", err)
		}
		log.Default.Infow("building PDF from images", "images", len(images), "pages", len(doc.Pages))
		if out, err = pdfocr.AssembleWithOCR(doc, images, cfg); err != nil {
			fail("failed to create PDF from images: %v", err)
		}
	} else {
		input, err := os.ReadFile(*pdfPath)
		if err != nil {
			fail("failed to read input PDF: %v", err)
		}
		if out, err = pdfocr.ApplyOCR(input, doc, cfg); err != nil {
			fail("failed to apply OCR to %s: %v", *pdfPath, err)
		}
	}

	if err := os.WriteFile(*outputPath, out, 0o644); err != nil {
		fail("failed to write output PDF: %v", err)
	}
	fmt.Println("OCR-enhanced PDF created:", *outputPath)
}

// readImages reads every file of dir in name order.
func readImages(dir string) ([][]byte, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*"))
	if err != nil {
		return nil, fmt.Errorf("cannot list image directory: %w", err)
	}
	sort.Strings(paths)

	var images [][]byte
	for _, p := range paths {
		if info, err := os.Stat(p); err != nil || info.IsDir() {
			continue
		}
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read image %s: %w", p, err)
		}
		images = append(images, data)
	}
	if len(images) == 0 {
		return nil, fmt.Errorf("no images in %s", dir)
	}
	return images, nil
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
