package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Status  int    `json:"status"`
	Err     error  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is matches errors sharing the same code so clones and wraps of a predefined
// error still satisfy errors.Is against it.
func (e *Error) Is(target error) bool {
	var t *Error
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrNotFound         = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden        = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrValidation       = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal         = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrMalformedCatalog = New("MALFORMED_CATALOG", http.StatusInternalServerError, "catalog is malformed")
	ErrRemoteFetch      = New("REMOTE_FETCH_ERROR", http.StatusBadGateway, "remote course api request failed")
	ErrInvalidSelection = New("INVALID_SELECTION", http.StatusUnprocessableEntity, "invalid selection")
	ErrNoSelection      = New("NO_SELECTION", http.StatusConflict, "no batch selected")
	ErrExportFailed     = New("EXPORT_FAILED", http.StatusBadGateway, "batch export failed")
	ErrSessionMiss      = New("SESSION_MISS", http.StatusNotFound, "session not found")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// RemoteFetchError describes a failed call against one remote course endpoint.
type RemoteFetchError struct {
	Endpoint string
	ID       string
	Status   int
	Err      error
}

func (e *RemoteFetchError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("fetch %s %s: %v", e.Endpoint, e.ID, e.Err)
	case e.Status != 0:
		return fmt.Sprintf("fetch %s %s: unexpected status %d", e.Endpoint, e.ID, e.Status)
	default:
		return fmt.Sprintf("fetch %s %s failed", e.Endpoint, e.ID)
	}
}

// Unwrap exposes both the sentinel and the cause to errors.Is / errors.As.
func (e *RemoteFetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrRemoteFetch}
	}
	return []error{ErrRemoteFetch, e.Err}
}
