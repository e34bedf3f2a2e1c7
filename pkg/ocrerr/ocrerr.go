// Package ocrerr defines the error taxonomy shared by every stage of the OCR pipeline.
//
// Each failure surfaced to a caller carries a Code so transports can map it to a
// user-facing status without inspecting error strings:
//
// - UnsupportedFormat: the payload's media type has no renderer (user error)
// - CorruptDocument: the payload could not be parsed or rendered (user error)
// - EngineUnavailable: one engine failed or timed out for one page (recoverable)
// - MissingWeights: a required model weight file is absent (startup fatal)
// - DocumentFailed: no page could be processed at all
package ocrerr

import (
	"errors"
	"fmt"
)

// Code classifies a pipeline failure.
type Code string

const (
	UnsupportedFormat Code = "UnsupportedFormat"
	CorruptDocument   Code = "CorruptDocument"
	EngineUnavailable Code = "EngineUnavailable"
	MissingWeights    Code = "MissingWeights"
	DocumentFailed    Code = "DocumentFailed"
)

// NoPage marks errors that are not tied to a page index.
const NoPage = -1

// Error is a classified pipeline error.
type Error struct {
	Code   Code   // Taxonomy code
	Page   int    // Failing page index, NoPage when not applicable
	Engine string // Engine name for EngineUnavailable
	Msg    string // Human readable context
	Err    error  // Underlying cause, may be nil
}

func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Engine != "" {
		msg += fmt.Sprintf(" [engine %s]", e.Engine)
	}
	if e.Page != NoPage {
		msg += fmt.Sprintf(" [page %d]", e.Page)
	}
	if e.Msg != "" {
		msg += ": " + e.Msg
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New creates an error with no page and no cause.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Page: NoPage, Msg: fmt.Sprintf(format, args...)}
}

// Wrap classifies err under code.
func Wrap(code Code, err error, format string, args ...any) *Error {
	return &Error{Code: code, Page: NoPage, Msg: fmt.Sprintf(format, args...), Err: err}
}

// AtPage returns a copy of e bound to the given page index.
func (e *Error) AtPage(page int) *Error {
	c := *e
	c.Page = page
	return &c
}

// ForEngine returns a copy of e bound to the given engine name.
func (e *Error) ForEngine(name string) *Error {
	c := *e
	c.Engine = name
	return &c
}

// CodeOf returns the code of the first *Error in err's chain, or "" if there is none.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// PageOf returns the page index of the first *Error in err's chain, or NoPage.
func PageOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Page
	}
	return NoPage
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}
