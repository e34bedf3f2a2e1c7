package classical

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

// CLIRunner runs the tesseract executable, feeding the image on stdin and reading hOCR
// from stdout. The process is killed when the context ends.
type CLIRunner struct {
	Path        string   // Defaults to "tesseract"
	PageSegMode int      // --psm value, 0 keeps tesseract's default
	ExtraArgs   []string // Inserted before the hocr config name
}

// HOCR implements Runner.
func (r *CLIRunner) HOCR(ctx context.Context, req Request) ([]byte, error) {
	path := r.Path
	if path == "" {
		path = "tesseract"
	}
	bin, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotInstalled, err)
	}

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, r.args(req)...)
	cmd.Stdin = bytes.NewReader(req.PNG)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.WaitDelay = 2 * time.Second

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("tesseract failed: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return stdout.Bytes(), nil
}

func (r *CLIRunner) args(req Request) []string {
	lang := req.Language
	if lang == "" {
		lang = DefaultLanguage
	}
	args := []string{"stdin", "stdout", "-l", lang}
	if req.DPI > 0 {
		args = append(args, "--dpi", strconv.Itoa(req.DPI))
	}
	if r.PageSegMode > 0 {
		args = append(args, "--psm", strconv.Itoa(r.PageSegMode))
	}
	args = append(args, r.ExtraArgs...)
	return append(args, "hocr")
}
