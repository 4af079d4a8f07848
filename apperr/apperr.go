// Package apperr provides the structured error type shared by the editor.
//
// Errors carry a machine-readable Code and a human-readable Message. The
// HTTP layer maps codes to status codes and shows Message to the user;
// the underlying Cause is only logged.
//
//	err := apperr.New(apperr.CodeMissingAPIKey, "missing API key")
//	if apperr.Is(err, apperr.CodeMissingAPIKey) {
//	    // prompt for a key
//	}
package apperr

import (
	"errors"
	"fmt"
)

// Code is a machine-readable error category.
type Code string

const (
	// User input errors
	CodeInvalidInput    Code = "INVALID_INPUT"
	CodeMissingImage    Code = "MISSING_IMAGE"
	CodeMissingAPIKey   Code = "MISSING_API_KEY"
	CodeMissingTemplate Code = "MISSING_TEMPLATE"

	// Rendering
	CodeNothingToRender Code = "NOTHING_TO_RENDER"
	CodeDecode          Code = "DECODE"

	// Remote collaborator errors
	CodeRemote      Code = "REMOTE"
	CodeRateLimited Code = "RATE_LIMITED"

	// The session moved on while a slow operation was running
	CodeConflict Code = "CONFLICT"

	CodeNotFound Code = "NOT_FOUND"
	CodeInternal Code = "INTERNAL"
)

// Error is a structured error with a code and optional cause.
type Error struct {
	Code    Code
	Message string
	Cause   error
}

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

// New creates an Error with the given code and formatted message.
func New(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates an Error wrapping cause.
func Wrap(code Code, cause error, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...), Cause: cause}
}

// Is reports whether any *Error in err's chain has the given code.
func Is(err error, code Code) bool {
	return GetCode(err) == code
}

// GetCode extracts the code of the first *Error in err's chain, or "".
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return ""
}

// UserMessage returns the message suitable for showing to a user.
// Errors that are not *Error are reported with a generic message so
// internal details never leak into the UI.
func UserMessage(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Message
	}
	return "something went wrong, please try again"
}
