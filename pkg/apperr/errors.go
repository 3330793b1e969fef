// Package apperr is the error taxonomy shared by services and handlers.
package apperr

import (
	"errors"
	"fmt"
	"net/http"

	"gorm.io/gorm"
)

// Kind classifies an error for callers and for HTTP mapping.
type Kind string

const (
	KindNotFound      Kind = "NOT_FOUND"
	KindValidation    Kind = "VALIDATION"
	KindInvalidStatus Kind = "INVALID_STATUS"
	KindConflict      Kind = "CONFLICT"
	KindTransaction   Kind = "TRANSACTION_FAILED"
	KindInternal      Kind = "INTERNAL"
)

// Error is a domain error carrying a kind, a stable code and an optional cause.
type Error struct {
	Kind    Kind
	Code    string
	Message string
	Fields  map[string][]string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, code, msg string) *Error {
	return &Error{Kind: kind, Code: code, Message: msg}
}

// NotFound reports a missing entity, e.g. NotFound("lead", 7).
func NotFound(entity string, id any) *Error {
	return newError(KindNotFound, "NOT_FOUND", fmt.Sprintf("%s %v not found", entity, id))
}

func Validation(msg string) *Error {
	return newError(KindValidation, "VALIDATION_FAILED", msg)
}

// ValidationFields carries per-field messages for form re-display.
func ValidationFields(fields map[string][]string) *Error {
	e := newError(KindValidation, "VALIDATION_FAILED", "Validation failed")
	e.Fields = fields
	return e
}

func InvalidStatus(status string) *Error {
	return newError(KindInvalidStatus, "INVALID_STATUS", fmt.Sprintf("invalid status %q", status))
}

func Conflict(code, msg string) *Error {
	return newError(KindConflict, code, msg)
}

// Transaction wraps the cause of a rolled-back compound operation.
func Transaction(op string, err error) *Error {
	e := newError(KindTransaction, "TRANSACTION_FAILED", op+" failed and was rolled back")
	e.Err = err
	return e
}

func Internal(err error) *Error {
	e := newError(KindInternal, "INTERNAL_SERVER_ERROR", "internal error")
	e.Err = err
	return e
}

// FromGorm turns gorm.ErrRecordNotFound into NotFound and passes other errors through.
func FromGorm(err error, entity string, id any) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return NotFound(entity, id)
	}
	return err
}

// KindOf returns the kind of err, or KindInternal for foreign errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

func Is(err error, kind Kind) bool { return err != nil && KindOf(err) == kind }

// CodeOf returns the stable code of err.
func CodeOf(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return "INTERNAL_SERVER_ERROR"
}

// HTTPStatus maps a kind to the status code the API answers with.
func HTTPStatus(kind Kind) int {
	switch kind {
	case KindNotFound:
		return http.StatusNotFound
	case KindValidation, KindInvalidStatus:
		return http.StatusBadRequest
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
