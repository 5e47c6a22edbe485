package fault

import (
	"errors"
	"fmt"
	"net/http"
)

// Code classifies an error for callers and for HTTP mapping.
type Code string

const (
	Validation       Code = "VALIDATION"
	NotFound         Code = "NOT_FOUND"
	DuplicateAgent   Code = "DUPLICATE_AGENT"
	CapacityExceeded Code = "CAPACITY_EXCEEDED"
	AgentExecution   Code = "AGENT_EXECUTION"
	UnsupportedTask  Code = "UNSUPPORTED_TASK"
	Internal         Code = "INTERNAL"
)

// Error is a coded error carried across the orchestrator and HTTP layers.
type Error struct {
	Code    Code   `json:"code"`
	Message string `json:"message"`
	Cause   error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// New creates a coded error.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf creates a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap creates a coded error around a cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// CodeOf extracts the code from an error chain, or Internal if untyped.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return Internal
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}

// HTTPStatus maps an error to a response status.
// Untyped errors fall through to 500.
func HTTPStatus(err error) int {
	switch CodeOf(err) {
	case Validation, UnsupportedTask:
		return http.StatusBadRequest
	case NotFound:
		return http.StatusNotFound
	case DuplicateAgent:
		return http.StatusConflict
	case CapacityExceeded:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
