// Package gosseract runs tesseract in-process through libtesseract.
//
// It is an alternative to classical.CLIRunner for deployments that link against
// libtesseract instead of shipping the tesseract executable. The cgo binding is only
// compiled in with the gosseract build tag:
//
//	go build -tags gosseract ./cmd/ocrserver
//
// Without it every call fails with ErrNotEnabled.
package gosseract

import (
	"errors"

	"github.com/gardar/ocrmux/pkg/engine/classical"
)

// ErrNotEnabled is returned by binaries built without the gosseract tag.
var ErrNotEnabled = errors.New("gosseract support not enabled, rebuild with -tags gosseract")

// Runner implements classical.Runner with one gosseract client per call.
// Clients are not shared, so concurrent calls are safe.
type Runner struct {
	PageSegMode    int    // 0 keeps tesseract's default
	TessdataPrefix string // Overrides TESSDATA_PREFIX when set
}

var _ classical.Runner = (*Runner)(nil)
