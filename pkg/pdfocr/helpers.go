package pdfocr

import (
	"bytes"
	"strings"

	"golang.org/x/text/encoding/unicode"

	"github.com/gardar/ocrmux/pkg/log"
)

var pdfEscapes = strings.NewReplacer(`\(`, "(", `\)`, ")", `\\`, `\`, `\n`, "\n", `\r`, "\r", `\t`, "\t")

// decodePDFString unescapes the body of a literal string and decodes it as UTF-16BE
// when it starts with a byte order mark.
func decodePDFString(raw []byte) string {
	s := pdfEscapes.Replace(string(raw))
	if strings.HasPrefix(s, "\xfe\xff") {
		dec := unicode.UTF16(unicode.BigEndian, unicode.ExpectBOM).NewDecoder()
		if out, err := dec.String(s); err == nil {
			return out
		}
	}
	return s
}

// dumpPDFStructure logs the first byteCount bytes of pdfData and the context of its
// first layer definition.
func dumpPDFStructure(pdfData []byte, byteCount int, logger log.Logger) {
	byteCount = min(byteCount, len(pdfData))
	logger.Debugw("PDF structure", "bytes", byteCount, "head", string(pdfData[:byteCount]))

	if i := bytes.Index(pdfData, []byte("/OCG")); i >= 0 {
		start, end := max(i-20, 0), min(i+100, len(pdfData))
		logger.Debugw("PDF layer definition", "offset", i, "context", string(pdfData[start:end]))
	}
}
