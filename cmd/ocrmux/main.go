// ocrmux runs the OCR pipeline on a local document.
//
// The document is processed exactly as the server would process it: the same
// configuration, engines and merge policy.
//
// Usage:
//
//	ocrmux -input document.pdf [-config config.yml] [outputs]
//
// Output options (at least one required):
//
//	-json string     Path to save the DocumentResult as JSON
//	-text string     Path to save the recognized text
//	-hocr string     Path to save hOCR
//	-output string   Path to save a searchable PDF
//	-images string   Directory to save the rasterized pages as PNG
//
// Other options:
//
//	-media-type string  Declared media type, sniffed from the content when empty
//	-log-level string   Overrides the configured log level
//
// Example:
//
//	ocrmux -input scan.pdf -text scan.txt -output scan_searchable.pdf
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"image/png"
	"os"
	"path/filepath"

	"github.com/gardar/ocrmux/pkg/config"
	"github.com/gardar/ocrmux/pkg/hocr"
	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/pdfocr"
	"github.com/gardar/ocrmux/pkg/result"
)

func main() {
	configPath := flag.String("config", "", "Path to the config YAML file")
	inputPath := flag.String("input", "", "Path to the input image or PDF (required)")
	mediaType := flag.String("media-type", "", "Declared media type of the input")
	logLevel := flag.String("log-level", "", "Log level: debug, info, warn or error")

	jsonPath := flag.String("json", "", "Path to save the result as JSON")
	textPath := flag.String("text", "", "Path to save the recognized text")
	hocrPath := flag.String("hocr", "", "Path to save hOCR output")
	pdfPath := flag.String("output", "", "Path to save a searchable PDF")
	imagesDir := flag.String("images", "", "Directory to save the rasterized pages")
	flag.Parse()

	if *inputPath == "" {
		usage("-input flag is required")
	}
	if *jsonPath == "" && *textPath == "" && *hocrPath == "" && *pdfPath == "" && *imagesDir == "" {
		usage("at least one output flag must be provided (-json, -text, -hocr, -output or -images)")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fail("invalid configuration: %v", err)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	log.SetLevel(cfg.LogLevel)

	data, err := os.ReadFile(*inputPath)
	if err != nil {
		fail("failed to read input: %v", err)
	}
	doc := result.Document{Data: data, MediaType: *mediaType}

	ctx := context.Background()
	svc, err := cfg.Build(ctx, log.Default)
	if err != nil {
		fail("%v", err)
	}
	defer svc.Close(0)

	if *imagesDir != "" {
		if err := savePages(ctx, svc, doc, *imagesDir); err != nil {
			fail("%v", err)
		}
	}
	if *jsonPath == "" && *textPath == "" && *hocrPath == "" && *pdfPath == "" {
		return
	}

	fmt.Println("Processing", *inputPath)
	res, err := svc.Pipeline.Process(ctx, doc.Data, doc.MediaType)
	if err != nil {
		fail("error processing document: %v", err)
	}
	if failed := res.FailedPages(); len(failed) > 0 {
		fmt.Printf("Warning: no engine could read pages %v\n", failed)
	}

	if *jsonPath != "" {
		out, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			fail("failed to encode JSON: %v", err)
		}
		write(*jsonPath, out)
	}
	if *textPath != "" {
		write(*textPath, []byte(res.Text()))
	}
	if *hocrPath != "" {
		out, err := hocr.Generate(hocr.FromResult(res, cfg.Classical.Language))
		if err != nil {
			fail("%v", err)
		}
		write(*hocrPath, out)
	}
	if *pdfPath != "" {
		out, err := pdfocr.Searchable(res, doc, svc.Rasterizer.DPI(), cfg.Classical.Language, pdfocr.DefaultConfig())
		if err != nil {
			fail("failed to build searchable PDF: %v", err)
		}
		write(*pdfPath, out)
	}
}

// savePages writes each rasterized page of doc to dir as page-NNN.png.
func savePages(ctx context.Context, svc *config.Service, doc result.Document, dir string) error {
	pages, err := svc.Rasterizer.Rasterize(ctx, doc)
	if err != nil {
		return fmt.Errorf("failed to rasterize: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create images directory: %w", err)
	}
	for _, p := range pages {
		path := filepath.Join(dir, fmt.Sprintf("page-%03d.png", p.Index+1))
		f, err := os.Create(path)
		if err != nil {
			return err
		}
		if err := png.Encode(f, p.Image); err != nil {
			f.Close()
			return fmt.Errorf("failed to encode %s: %w", path, err)
		}
		if err := f.Close(); err != nil {
			return err
		}
	}
	fmt.Printf("Saved %d page images to %s\n", len(pages), dir)
	return nil
}

func write(path string, data []byte) {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		fail("failed to write %s: %v", path, err)
	}
	fmt.Println("Wrote", path)
}

func usage(msg string) {
	fmt.Fprintln(os.Stderr, "Error:", msg)
	fmt.Fprintln(os.Stderr, "Usage:")
	flag.PrintDefaults()
	os.Exit(1)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
