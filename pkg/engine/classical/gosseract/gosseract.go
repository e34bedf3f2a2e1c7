//go:build gosseract

package gosseract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/gardar/ocrmux/pkg/engine/classical"
)

// Enabled reports whether libtesseract support is compiled in.
const Enabled = true

type output struct {
	hocr []byte
	err  error
}

// HOCR implements classical.Runner. libtesseract cannot be interrupted, so a cancelled
// call returns immediately and the recognition finishes in the background.
func (r *Runner) HOCR(ctx context.Context, req classical.Request) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	done := make(chan output, 1)
	go func() {
		out, err := r.recognize(req)
		done <- output{out, err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case o := <-done:
		return o.hocr, o.err
	}
}

func (r *Runner) recognize(req classical.Request) ([]byte, error) {
	client := gosseract.NewClient()
	defer client.Close()

	if r.TessdataPrefix != "" {
		if err := client.SetTessdataPrefix(r.TessdataPrefix); err != nil {
			return nil, fmt.Errorf("set tessdata prefix: %w", err)
		}
	}
	lang := req.Language
	if lang == "" {
		lang = classical.DefaultLanguage
	}
	if err := client.SetLanguage(strings.Split(lang, "+")...); err != nil {
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if r.PageSegMode > 0 {
		if err := client.SetPageSegMode(gosseract.PageSegMode(r.PageSegMode)); err != nil {
			return nil, fmt.Errorf("set page segmentation mode %d: %w", r.PageSegMode, err)
		}
	}
	if req.DPI > 0 {
		if err := client.SetVariable(gosseract.SettableVariable("user_defined_dpi"), strconv.Itoa(req.DPI)); err != nil {
			return nil, fmt.Errorf("set dpi: %w", err)
		}
	}
	if err := client.SetImageFromBytes(req.PNG); err != nil {
		return nil, fmt.Errorf("set image: %w", err)
	}

	out, err := client.HOCRText()
	if err != nil {
		return nil, fmt.Errorf("hocr: %w", err)
	}
	return []byte(out), nil
}
