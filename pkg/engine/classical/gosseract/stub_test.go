//go:build !gosseract

package gosseract

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/gardar/ocrmux/pkg/engine/classical"
)

func TestStubRunner(t *testing.T) {
	assert.False(t, Enabled)
	_, err := (&Runner{}).HOCR(context.Background(), classical.Request{PNG: []byte{1}})
	assert.ErrorIs(t, err, ErrNotEnabled)
}
