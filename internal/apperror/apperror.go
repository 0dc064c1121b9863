// Package apperror defines the application's error kinds.
//
// Every failure that reaches a user is an *AppError: a sentinel kind (for
// errors.Is and HTTP status mapping) plus a human-readable Message that is
// safe to show in the UI as-is.
package apperror

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrValidation   = errors.New("validation error")
	ErrUpstream     = errors.New("upstream failure")
	ErrNetwork      = errors.New("network or parsing failure")
	ErrUnauthorized = errors.New("unauthorized")
	ErrUnknown      = errors.New("unknown error")
)

type AppError struct {
	Err     error  // kind sentinel
	Message string // Human-readable error message
	Field   string // Optional: field causing the error
	Cause   error  // Optional: the underlying error, for logs
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

// NotFoundMessage is NotFound with a caller-chosen message.
func NotFoundMessage(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// Upstream reports a non-success status from an external API.
func Upstream(message string, cause error) *AppError {
	return &AppError{
		Err:     ErrUpstream,
		Message: message,
		Cause:   cause,
	}
}

// Network reports a request that failed before a status was received, or a
// response body that could not be decoded. The message is the cause's own
// text; an empty one falls back to Unknown's.
func Network(cause error) *AppError {
	if cause == nil || cause.Error() == "" {
		return Unknown(cause)
	}
	return &AppError{
		Err:     ErrNetwork,
		Message: cause.Error(),
		Cause:   cause,
	}
}

func Unauthorized(message string) *AppError {
	return &AppError{
		Err:     ErrUnauthorized,
		Message: message,
	}
}

// Unknown is the fallback when nothing better describes the failure.
func Unknown(cause error) *AppError {
	return &AppError{
		Err:     ErrUnknown,
		Message: "Something went wrong",
		Cause:   cause,
	}
}
