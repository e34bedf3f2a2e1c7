//go:build !gosseract

package gosseract

import (
	"context"

	"github.com/gardar/ocrmux/pkg/engine/classical"
)

// Enabled reports whether libtesseract support is compiled in.
const Enabled = false

// HOCR implements classical.Runner and always fails with ErrNotEnabled.
func (r *Runner) HOCR(context.Context, classical.Request) ([]byte, error) {
	return nil, ErrNotEnabled
}
