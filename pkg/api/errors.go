package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gardar/ocrmux/pkg/ocrerr"
)

// StatusClientClosedRequest is reported when the client went away before the answer.
const StatusClientClosedRequest = 499

// Codes of errors raised by the HTTP layer itself.
const (
	CodeBadRequest      = "BadRequest"
	CodePayloadTooLarge = "PayloadTooLarge"
	CodeCancelled       = "Cancelled"
	CodeInternal        = "Internal"
)

// requestError is a failure of the request itself, before the pipeline runs.
type requestError struct {
	status int
	code   string
	msg    string
}

func (e *requestError) Error() string { return e.msg }

func badRequest(msg string) error {
	return &requestError{status: http.StatusBadRequest, code: CodeBadRequest, msg: msg}
}

func uploadError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return &requestError{status: http.StatusRequestEntityTooLarge, code: CodePayloadTooLarge, msg: err.Error()}
	}
	return &requestError{status: http.StatusBadRequest, code: CodeBadRequest, msg: "cannot read upload: " + err.Error()}
}

// ErrorBody is the JSON body of a failed request.
type ErrorBody struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail describes a failure. Page is set for failures tied to one page.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Page    *int   `json:"page,omitempty"`
}

// Status maps err to an HTTP status and error code.
func Status(err error) (int, string) {
	var re *requestError
	if errors.As(err, &re) {
		return re.status, re.code
	}
	if errors.Is(err, context.Canceled) {
		return StatusClientClosedRequest, CodeCancelled
	}
	switch code := ocrerr.CodeOf(err); code {
	case ocrerr.UnsupportedFormat:
		return http.StatusUnsupportedMediaType, string(code)
	case ocrerr.CorruptDocument, ocrerr.DocumentFailed:
		return http.StatusUnprocessableEntity, string(code)
	case ocrerr.EngineUnavailable:
		return http.StatusBadGateway, string(code)
	case ocrerr.MissingWeights:
		return http.StatusServiceUnavailable, string(code)
	}
	return http.StatusInternalServerError, CodeInternal
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := Status(err)
	body := ErrorBody{Error: ErrorDetail{Code: code, Message: err.Error()}}
	if page := ocrerr.PageOf(err); page != ocrerr.NoPage {
		body.Error.Page = &page
	}

	id := RequestID(r.Context())
	if status >= http.StatusInternalServerError {
		s.logger.Errorw("request failed", "request_id", id, "status", status, "error", err)
	} else {
		s.logger.Warnw("request rejected", "request_id", id, "status", status, "error", err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warnw("failed to write error response", "request_id", id, "error", err)
	}
}
