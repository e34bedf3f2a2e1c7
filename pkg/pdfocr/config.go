package pdfocr

import "github.com/gardar/ocrmux/pkg/log"

// Config holds the options for building a searchable PDF.
type Config struct {
	Debug     bool   // Draw the text in red with word boxes instead of invisibly
	Force     bool   // Overlay even when the input already has an OCR layer
	DumpPDF   bool   // Log the head of the input PDF and its layer definitions
	LayerName string // Base layer name, " (Page N)" is appended
	StartPage int    // First input page the hOCR pages are laid over, 1-based
	DPI       int    // Resolution of the hOCR coordinates, 0 means one pixel per point
	Font      FontConfig
	Logger    log.Logger
}

// DefaultConfig returns the configuration used by the service.
func DefaultConfig() Config {
	return Config{
		LayerName: "OCR Text",
		StartPage: 1,
		Font:      DefaultFont,
		Logger:    log.Default,
	}
}

func (c Config) logger() log.Logger {
	if c.Logger == nil {
		return log.Default
	}
	return c.Logger
}

// scale converts hOCR pixels to PDF points.
func (c Config) scale() float64 {
	if c.DPI <= 0 {
		return 1
	}
	return 72 / float64(c.DPI)
}

// FontConfig sets the font of the text layer.
type FontConfig struct {
	Name        string  // Core font name
	Style       string  // "", "B", "I" or "BI"
	Size        float64 // Base size in points, rescaled per word to fit its box
	AscentRatio float64 // Baseline offset from the top of the box, as a fraction of the size
}

// DefaultFont is Helvetica, whose metrics every PDF reader ships.
var DefaultFont = FontConfig{
	Name:        "Helvetica",
	Size:        10,
	AscentRatio: 0.718,
}
