package raster

import (
	"bytes"
	"mime"
	"strings"
)

// Supported media types.
const (
	MediaPDF  = "application/pdf"
	MediaPNG  = "image/png"
	MediaJPEG = "image/jpeg"
	MediaGIF  = "image/gif"
	MediaTIFF = "image/tiff"
	MediaBMP  = "image/bmp"
	MediaWebP = "image/webp"
)

var aliases = map[string]string{
	"image/jpg":         MediaJPEG,
	"image/pjpeg":       MediaJPEG,
	"image/x-png":       MediaPNG,
	"image/x-ms-bmp":    MediaBMP,
	"image/x-bmp":       MediaBMP,
	"image/tif":         MediaTIFF,
	"application/x-pdf": MediaPDF,
}

// generic types carry no format information, so the payload is sniffed instead.
var generic = map[string]bool{
	"":                         true,
	"application/octet-stream": true,
	"binary/octet-stream":      true,
}

// IsSupported reports whether mediaType has a renderer.
func IsSupported(mediaType string) bool {
	switch mediaType {
	case MediaPDF, MediaPNG, MediaJPEG, MediaGIF, MediaTIFF, MediaBMP, MediaWebP:
		return true
	}
	return false
}

// IsImage reports whether mediaType is a supported single-page image type.
func IsImage(mediaType string) bool {
	return IsSupported(mediaType) && mediaType != MediaPDF
}

// NormalizeMediaType lowercases mediaType, drops parameters and resolves aliases.
func NormalizeMediaType(mediaType string) string {
	mt := strings.ToLower(strings.TrimSpace(mediaType))
	if parsed, _, err := mime.ParseMediaType(mt); err == nil {
		mt = parsed
	}
	if alias, ok := aliases[mt]; ok {
		return alias
	}
	return mt
}

// Sniff determines the media type from magic bytes. It returns "" when the payload
// matches no supported format.
func Sniff(data []byte) string {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return MediaPNG
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return MediaJPEG
	case bytes.HasPrefix(data, []byte("GIF87a")), bytes.HasPrefix(data, []byte("GIF89a")):
		return MediaGIF
	case bytes.HasPrefix(data, []byte("II*\x00")), bytes.HasPrefix(data, []byte("MM\x00*")):
		return MediaTIFF
	case bytes.HasPrefix(data, []byte("BM")) && len(data) > 14:
		return MediaBMP
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return MediaWebP
	}

	// PDF readers accept the header anywhere in the first 1024 bytes.
	head := data
	if len(head) > 1024 {
		head = head[:1024]
	}
	if bytes.Contains(head, []byte("%PDF-")) {
		return MediaPDF
	}
	return ""
}

// Resolve picks the media type used to render data.
//
// A supported declared type is trusted unless the payload sniffs as a different supported
// type. Generic or empty declarations defer to sniffing. Any other declared type has no
// renderer and yields "".
func Resolve(declared string, data []byte) string {
	declared = NormalizeMediaType(declared)
	sniffed := Sniff(data)

	switch {
	case IsSupported(declared):
		if sniffed != "" {
			return sniffed
		}
		return declared
	case generic[declared]:
		return sniffed
	default:
		return ""
	}
}
