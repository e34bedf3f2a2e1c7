package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/gardar/ocrmux/pkg/hocr"
	"github.com/gardar/ocrmux/pkg/log"
	"github.com/gardar/ocrmux/pkg/pdfocr"
	"github.com/gardar/ocrmux/pkg/result"
)

// Output formats accepted in the format query parameter.
const (
	FormatJSON = "json"
	FormatText = "text"
	FormatHOCR = "hocr"
	FormatPDF  = "pdf"
)

// FormField is the multipart field holding the document.
const FormField = "file"

func (s *Server) handleOCR(w http.ResponseWriter, r *http.Request) {
	id := RequestID(r.Context())
	format := strings.ToLower(r.URL.Query().Get("format"))
	switch format {
	case "":
		format = FormatJSON
	case FormatJSON, FormatText, FormatHOCR, FormatPDF:
	default:
		s.writeError(w, r, badRequest(fmt.Sprintf("unknown format %q (want json, text, hocr or pdf)", format)))
		return
	}

	doc, err := s.readDocument(w, r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Infow("document received", "request_id", id, "bytes", len(doc.Data), "media_type", doc.MediaType, "format", format)

	start := time.Now()
	res, err := s.proc.Process(r.Context(), doc.Data, doc.MediaType)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.logger.Infow("document processed",
		"request_id", id,
		"pages", len(res.Pages),
		"status", res.Status,
		"duration", time.Since(start),
		"text", log.Preview(res.Text(), 200),
	)

	s.render(w, r, format, res, doc)
}

// readDocument takes the document from the multipart field FormField, or from the body
// when the request is not multipart.
func (s *Server) readDocument(w http.ResponseWriter, r *http.Request) (result.Document, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxUploadBytes)
	contentType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var doc result.Document
	if contentType == "multipart/form-data" {
		file, header, err := r.FormFile(FormField)
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				return doc, badRequest(fmt.Sprintf("missing form field %q", FormField))
			}
			return doc, uploadError(err)
		}
		defer file.Close()
		data, err := io.ReadAll(file)
		if err != nil {
			return doc, uploadError(err)
		}
		doc = result.Document{Data: data, MediaType: header.Header.Get("Content-Type")}
	} else {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return doc, uploadError(err)
		}
		doc = result.Document{Data: data, MediaType: r.Header.Get("Content-Type")}
	}
	if len(doc.Data) == 0 {
		return doc, badRequest("empty document")
	}
	return doc, nil
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, format string, res *result.DocumentResult, doc result.Document) {
	var (
		body        []byte
		contentType string
		err         error
	)
	switch format {
	case FormatText:
		body, contentType = []byte(res.Text()), "text/plain; charset=utf-8"
	case FormatHOCR:
		body, err = hocr.Generate(hocr.FromResult(res, s.opts.Language))
		contentType = "text/html; charset=utf-8"
	case FormatPDF:
		body, err = pdfocr.Searchable(res, doc, s.opts.DPI, s.opts.Language, s.opts.PDF)
		contentType = "application/pdf"
	default:
		var buf bytes.Buffer
		err = json.NewEncoder(&buf).Encode(res)
		body, contentType = buf.Bytes(), "application/json"
	}
	if err != nil {
		s.writeError(w, r, fmt.Errorf("failed to render %s: %w", format, err))
		return
	}
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warnw("failed to write response", "request_id", RequestID(r.Context()), "error", err)
	}
}
