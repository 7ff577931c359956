// Package errors provides structured error types for latexify.
//
// This package defines error codes and types that enable:
//   - Consistent error handling across the CLI, the HTTP API and the converter
//   - Machine-readable error codes for programmatic handling
//   - User-friendly error messages
//   - Error wrapping with context preservation
//
// # Error Codes
//
// Codes name the failure category rather than the component that raised it:
//   - PRECONDITION: the selection does not allow the requested transition
//   - TEMPLATE_*: the LaTeX template could not be read or rendered
//   - EXTERNAL_PROCESS, TOOL_NOT_FOUND: pdflatex or pdf2svg failed
//   - METADATA_MISSING: a rendered layer lacks its reconstruction settings
//
// # Usage
//
//	err := errors.New(errors.ErrCodePrecondition, "select exactly one layer")
//	if errors.Is(err, errors.ErrCodePrecondition) {
//	    // Show the message, nothing was mutated
//	}
//
//	// Wrap existing errors
//	err := errors.Wrap(errors.ErrCodeTemplateRead, origErr, "read template %s", path)
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Code represents a machine-readable error code.
type Code string

// Error codes for different error categories.
const (
	// Input validation errors
	ErrCodeInvalidInput Code = "INVALID_INPUT"
	ErrCodeInvalidPath  Code = "INVALID_PATH"

	// Conversion errors
	ErrCodePrecondition    Code = "PRECONDITION"
	ErrCodeMetadataMissing Code = "METADATA_MISSING"

	// Compilation errors
	ErrCodeTemplateRead    Code = "TEMPLATE_READ"
	ErrCodeTemplateInvalid Code = "TEMPLATE_INVALID"
	ErrCodeExternalProcess Code = "EXTERNAL_PROCESS"
	ErrCodeToolNotFound    Code = "TOOL_NOT_FOUND"

	// Resource not found errors
	ErrCodeNotFound Code = "NOT_FOUND"

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

// ProcessError describes a failed external tool invocation.
// The captured output is kept so the failure can be inspected even though
// users only see a generic compilation message.
type ProcessError struct {
	Stage    string   // Pipeline stage, "compile" or "convert"
	Command  string   // Executable name
	Args     []string // Arguments passed to the executable
	ExitCode int      // Exit status, -1 when the process did not start or was killed
	Output   string   // Tail of combined stdout and stderr
	Err      error    // Error returned by the process layer
}

// Error implements the error interface.
func (e *ProcessError) Error() string {
	msg := fmt.Sprintf("%s: %s exited with status %d", e.Stage, e.Command, e.ExitCode)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + lastLines(out, 5)
	}
	return msg
}

// Unwrap returns the process-layer error.
func (e *ProcessError) Unwrap() error { return e.Err }

// Code returns the error code for this error type.
func (e *ProcessError) Code() Code {
	return ErrCodeExternalProcess
}

// AsProcessError returns the *ProcessError in err's chain, if any.
func AsProcessError(err error) (*ProcessError, bool) {
	var pe *ProcessError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

func lastLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}
