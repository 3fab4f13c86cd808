// Package errors defines the structured error taxonomy shared by the summarizer services.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// ErrorCode represents a category of application error.
type ErrorCode string

const (
	// ErrCodeValidation indicates malformed caller input; nothing was persisted or scheduled.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeNotFound indicates no job record exists for the requested id.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeConflict indicates the write would violate record uniqueness or the write-once terminal state.
	ErrCodeConflict ErrorCode = "conflict"
	// ErrCodeUnavailable indicates the shared store could not be reached.
	ErrCodeUnavailable ErrorCode = "unavailable"
	// ErrCodeBusy indicates the worker pool has no free capacity for another job.
	ErrCodeBusy ErrorCode = "busy"
	// ErrCodeTimeout indicates a bounded operation ran out of time.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
	// ErrCodeInternal indicates an unexpected failure.
	ErrCodeInternal ErrorCode = "internal"
)

// AppError represents a structured application error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific input field that caused the error (optional, for validation errors)
	Field string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

func newError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return newError(ErrCodeNotFound, message)
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return newError(ErrCodeNotFound, fmt.Sprintf(format, args...))
}

// Conflict creates a new Conflict error.
func Conflict(message string) *AppError {
	return newError(ErrCodeConflict, message)
}

// Conflictf creates a new Conflict error with formatted message.
func Conflictf(format string, args ...any) *AppError {
	return newError(ErrCodeConflict, fmt.Sprintf(format, args...))
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return newError(ErrCodeValidation, message)
}

// ValidationField creates a new Validation error for a specific input field.
func ValidationField(field, message string) *AppError {
	e := newError(ErrCodeValidation, message)
	e.Field = field
	return e
}

// Busy creates a new Busy error.
func Busy(message string) *AppError {
	return newError(ErrCodeBusy, message)
}

// Unavailable wraps a transport failure of the shared store.
func Unavailable(err error, message string) *AppError {
	return Wrap(err, ErrCodeUnavailable, message)
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// FromContext maps context deadline and cancellation errors onto Timeout and Canceled codes.
// Any other error is returned unchanged.
func FromContext(err error, message string) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.DeadlineExceeded):
		return Wrap(err, ErrCodeTimeout, message)
	case errors.Is(err, context.Canceled):
		return Wrap(err, ErrCodeCanceled, message)
	default:
		return err
	}
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// IsConflict checks if an error is a Conflict error.
func IsConflict(err error) bool {
	return isCode(err, ErrCodeConflict)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsUnavailable checks if an error is an Unavailable error.
func IsUnavailable(err error) bool {
	return isCode(err, ErrCodeUnavailable)
}

// IsBusy checks if an error is a Busy error.
func IsBusy(err error) bool {
	return isCode(err, ErrCodeBusy)
}

// IsTimeout checks if an error is a Timeout error.
func IsTimeout(err error) bool {
	return isCode(err, ErrCodeTimeout)
}

// IsCanceled checks if an error is a Canceled error.
func IsCanceled(err error) bool {
	return isCode(err, ErrCodeCanceled)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// GetField returns the Field from an error, or empty string if not an AppError or no field set.
func GetField(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Field
	}
	return ""
}
