package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code        string `json:"code"`
	Message     string `json:"message"`
	Status      int    `json:"status"`
	Remediation string `json:"remediation,omitempty"`
	Err         error  `json:"-"`
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
	ErrNotFound            = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrConflict            = New("CONFLICT", http.StatusConflict, "conflict")
	ErrPreconditionFailed  = New("PRECONDITION_FAILED", http.StatusPreconditionFailed, "precondition failed")
	ErrValidation          = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal            = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrInvalidFormat       = New("INVALID_FORMAT", http.StatusUnprocessableEntity, "unrecognised data format")
	ErrSaveFailed          = New("SAVE_FAILED", http.StatusInsufficientStorage, "could not save changes")
	ErrStorageUnavailable  = New("STORAGE_UNAVAILABLE", http.StatusServiceUnavailable, "local storage unavailable")
	ErrExportTooLarge      = New("EXPORT_TOO_LARGE", http.StatusRequestEntityTooLarge, "lesson too large to share as a link")
	ErrSnapshotUnavailable = New("SNAPSHOT_UNAVAILABLE", http.StatusBadGateway, "classroom data unavailable")
	ErrSuperseded          = New("SUPERSEDED", http.StatusConflict, "load superseded by a newer request")
	ErrPINRejected         = New("PIN_REJECTED", http.StatusForbidden, "incorrect PIN")
	ErrAnnotationFailed    = New("ANNOTATION_FAILED", http.StatusBadGateway, "annotation service failed")
	ErrCacheMiss           = New("CACHE_MISS", http.StatusNotFound, "cache miss")
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

// WithRemediation returns a copy carrying user-facing recovery instructions.
func WithRemediation(err *Error, remediation string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Remediation = remediation
	return &clone
}

// HasCode reports whether err (or anything it wraps) is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	for err != nil {
		if !errors.As(err, &e) {
			return false
		}
		if e.Code == code {
			return true
		}
		err = e.Err
	}
	return false
}
