// Package errors provides the coded domain errors used across the re-dub
// pipeline, so callers can branch on error kind instead of parsing messages.
//
//	if errors.Is(err, errors.ErrCountMismatch) { ... }
//
//	var derr *errors.Error
//	if errors.As(err, &derr) && derr.Code == errors.CodeNetwork { ... }
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	Join   = errors.Join
	New    = errors.New
)

// Code represents a machine-readable error code.
type Code string

const (
	// CodeFormat: malformed timed-subtitle input.
	CodeFormat Code = "FORMAT"
	// CodeCountMismatch: the old and new alignments have different segment
	// counts. Always fatal; correspondence cannot be inferred.
	CodeCountMismatch Code = "COUNT_MISMATCH"
	// CodeExternalProcess: the transcoder exited non-zero or produced no output.
	CodeExternalProcess Code = "EXTERNAL_PROCESS"
	// CodeNetwork: a remote collaborator was unreachable or returned non-2xx
	// after the bounded retries were exhausted.
	CodeNetwork Code = "NETWORK"
	// CodeOutputMissing: an expected intermediate artifact is absent after a
	// call that reported success.
	CodeOutputMissing Code = "OUTPUT_MISSING"
	// CodeValidation: rejected request or configuration input.
	CodeValidation Code = "VALIDATION"
	// CodeInternal: everything else.
	CodeInternal Code = "INTERNAL"
)

// HTTPStatus returns the appropriate HTTP status code for an error code.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeFormat, CodeCountMismatch, CodeValidation:
		return http.StatusBadRequest
	case CodeNetwork:
		return http.StatusBadGateway
	case CodeExternalProcess, CodeOutputMissing:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a domain error with a code, a message, and an optional cause.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.cause)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.cause }

// Is reports whether target matches this error. Two *Error values match when
// their codes are equal, so sentinel comparisons work through wrapping.
func (e *Error) Is(target error) bool {
	var t *Error
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// HTTPStatus returns the HTTP status code for this error.
func (e *Error) HTTPStatus() int { return e.Code.HTTPStatus() }

// WithCause wraps an underlying error.
func (e *Error) WithCause(err error) *Error {
	return &Error{Code: e.Code, Message: e.Message, cause: err}
}

// Sentinel errors for use with errors.Is().
var (
	ErrFormat          = &Error{Code: CodeFormat, Message: "malformed subtitle input"}
	ErrCountMismatch   = &Error{Code: CodeCountMismatch, Message: "segment count mismatch"}
	ErrExternalProcess = &Error{Code: CodeExternalProcess, Message: "external process failed"}
	ErrNetwork         = &Error{Code: CodeNetwork, Message: "network failure"}
	ErrOutputMissing   = &Error{Code: CodeOutputMissing, Message: "expected output missing"}
	ErrValidation      = &Error{Code: CodeValidation, Message: "validation error"}
	ErrInternal        = &Error{Code: CodeInternal, Message: "internal error"}
)

// Constructor functions for creating errors with custom messages.

func Format(format string, args ...any) *Error {
	return &Error{Code: CodeFormat, Message: fmt.Sprintf(format, args...)}
}

func CountMismatch(format string, args ...any) *Error {
	return &Error{Code: CodeCountMismatch, Message: fmt.Sprintf(format, args...)}
}

func ExternalProcess(format string, args ...any) *Error {
	return &Error{Code: CodeExternalProcess, Message: fmt.Sprintf(format, args...)}
}

func Network(format string, args ...any) *Error {
	return &Error{Code: CodeNetwork, Message: fmt.Sprintf(format, args...)}
}

func OutputMissing(format string, args ...any) *Error {
	return &Error{Code: CodeOutputMissing, Message: fmt.Sprintf(format, args...)}
}

func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

func Internal(format string, args ...any) *Error {
	return &Error{Code: CodeInternal, Message: fmt.Sprintf(format, args...)}
}
