// Package apierr defines the structured errors returned across the Groundwork API.
//
// Every error that reaches a handler boundary is normalised into an *Error carrying a
// machine-readable Code. Handlers render it with httputil.WriteAPIError.
package apierr

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/lib/pq"
)

// Code is a machine-readable error category
type Code string

const (
	CodeUnauthorized Code = "UNAUTHORIZED"
	CodeForbidden    Code = "FORBIDDEN"
	CodeNotFound     Code = "NOT_FOUND"
	CodeBadRequest   Code = "BAD_REQUEST"
	CodeConflict     Code = "CONFLICT"
	CodeInternal     Code = "INTERNAL_SERVER_ERROR"
)

// HTTPStatus returns the HTTP status code for the error category
func (c Code) HTTPStatus() int {
	switch c {
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound:
		return http.StatusNotFound
	case CodeBadRequest:
		return http.StatusBadRequest
	case CodeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// Error is a categorised API error
type Error struct {
	Code    Code
	Message string
	// Fields holds per-field validation messages for BAD_REQUEST errors
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches any *Error with the same code
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Code == e.Code && (t.Message == "" || t.Message == e.Message)
}

// Unauthorized reports a missing or invalid caller identity
func Unauthorized(message string) *Error {
	return &Error{Code: CodeUnauthorized, Message: message}
}

// Forbidden reports an authorization failure
func Forbidden(message string) *Error {
	return &Error{Code: CodeForbidden, Message: message}
}

// Forbiddenf is Forbidden with formatting
func Forbiddenf(format string, args ...interface{}) *Error {
	return Forbidden(fmt.Sprintf(format, args...))
}

// NotFound reports a missing entity
func NotFound(entity string) *Error {
	return &Error{Code: CodeNotFound, Message: entity + " not found"}
}

// BadRequest reports invalid input
func BadRequest(message string) *Error {
	return &Error{Code: CodeBadRequest, Message: message}
}

// Validation reports invalid input with field-level detail
func Validation(fields map[string]string) *Error {
	return &Error{Code: CodeBadRequest, Message: "validation failed", Fields: fields}
}

// Conflict reports a uniqueness or state conflict
func Conflict(message string) *Error {
	return &Error{Code: CodeConflict, Message: message}
}

// Internal wraps an unexpected error
func Internal(message string, err error) *Error {
	return &Error{Code: CodeInternal, Message: message, Err: err}
}

// From normalises any error into an *Error. Unknown errors become INTERNAL_SERVER_ERROR.
func From(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return Internal("internal server error", err)
}

// CodeOf returns the code of err, or "" for nil
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	return From(err).Code
}

// IsUniqueViolation reports whether err is a PostgreSQL unique constraint violation
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
