// Package errors provides structured error types for mdbook-diagrams.
//
// Every failure the preprocessor reports to the build carries a machine-readable
// [Code] so that callers (the mdbook pipeline, the process command, the caching
// proxy) can decide how to surface it without string matching.
//
// # Error Codes
//
//   - INVALID_*: configuration and input validation failures
//   - RENDER_*: failures of the remote (or local) diagram renderer
//   - CACHE_IO: artifact store read/write failures
//   - EXTRACTION_ERROR / REASSEMBLY_ERROR: markdown scanning and splicing
//
// # Usage
//
//	err := errors.New(errors.ErrCodeInvalidConfig, "invalid output_format: %q", f)
//	if errors.Is(err, errors.ErrCodeInvalidConfig) {
//	    // Handle validation error
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeCacheIO, origErr, "write %s", path)
package errors

import (
	"errors"
	"fmt"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput  Code = "INVALID_INPUT"
	ErrCodeInvalidConfig Code = "INVALID_CONFIG"
	ErrCodeInvalidFormat Code = "INVALID_FORMAT"
	ErrCodeInvalidPath   Code = "INVALID_PATH"

	// Markdown processing errors
	ErrCodeExtraction Code = "EXTRACTION_ERROR"
	ErrCodeReassembly Code = "REASSEMBLY_ERROR"

	// Rendering errors
	ErrCodeRenderTimeout   Code = "RENDER_TIMEOUT"
	ErrCodeRenderTransport Code = "RENDER_TRANSPORT"
	ErrCodeRenderService   Code = "RENDER_SERVICE"
	ErrCodeRenderFailed    Code = "RENDER_FAILED"

	// Storage errors
	ErrCodeCacheIO Code = "CACHE_IO"

	// Host protocol errors
	ErrCodeProtocol Code = "PROTOCOL_ERROR"

	// Internal errors
	ErrCodeInternal    Code = "INTERNAL_ERROR"
	ErrCodeUnsupported Code = "UNSUPPORTED"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code   // Machine-readable error code
	Message string // Human-readable message
	Cause   error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As compatibility.
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap creates a new Error wrapping an existing error.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Is reports whether err has the given error code.
// It unwraps the error chain looking for an *Error with a matching code.
func Is(err error, code Code) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// GetCode extracts the error code from an error, if available.
// Returns empty string if the error is not an *Error.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns a user-friendly message for the error.
// For *Error types, returns the message without the code prefix.
// For other errors, returns the error string as-is.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return err.Error()
}
