package ocrerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorMessage(t *testing.T) {
	err := Wrap(EngineUnavailable, errors.New("exit status 1"), "tesseract failed").
		ForEngine("tesseract").AtPage(2)

	assert.Equal(t, "EngineUnavailable [engine tesseract] [page 2]: tesseract failed: exit status 1", err.Error())
	assert.Equal(t, "UnsupportedFormat: no renderer for text/plain",
		New(UnsupportedFormat, "no renderer for %s", "text/plain").Error())
}

func TestCodeOfThroughWrapping(t *testing.T) {
	base := New(CorruptDocument, "truncated xref").AtPage(1)
	wrapped := fmt.Errorf("rasterize: %w", base)

	assert.Equal(t, CorruptDocument, CodeOf(wrapped))
	assert.Equal(t, 1, PageOf(wrapped))
	assert.True(t, Is(wrapped, CorruptDocument))
	assert.False(t, Is(wrapped, DocumentFailed))
	assert.Equal(t, Code(""), CodeOf(errors.New("plain")))
	assert.Equal(t, NoPage, PageOf(errors.New("plain")))
	assert.False(t, Is(nil, CorruptDocument))
}

func TestCopiesDoNotAlias(t *testing.T) {
	base := New(EngineUnavailable, "timeout")
	a := base.AtPage(3)

	assert.Equal(t, NoPage, base.Page)
	assert.Equal(t, 3, a.Page)
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap(MissingWeights, cause, "detector.onnx")
	assert.ErrorIs(t, err, cause)
}
