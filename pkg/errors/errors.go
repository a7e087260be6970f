// Package errors carries the application error taxonomy:
// validation, not-found, recoverable-external, cancellation, and
// internal failures all map onto one AppError with a stable Code the
// HTTP boundary translates to a status.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies an AppError for the boundary that must decide
// how to surface it (HTTP status, WS close code, or log-only).
type ErrorCode string

const (
	CodeInvalidInput   ErrorCode = "INVALID_INPUT"
	CodeNotFound       ErrorCode = "NOT_FOUND"
	CodeInternal       ErrorCode = "INTERNAL_ERROR"
	CodeServiceUnavail ErrorCode = "SERVICE_UNAVAILABLE"
	CodeCancelled      ErrorCode = "CANCELLED"
)

// AppError is the one error type every layer above the CRDT engine
// returns.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NewInvalidInputError builds a CodeInvalidInput error for a request
// rejected at the boundary.
func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:    CodeInvalidInput,
		Message: message,
	}
}

// NewNotFoundError builds a CodeNotFound error.
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Code:    CodeNotFound,
		Message: message,
	}
}

// NewInternalError builds a CodeInternal error with no wrapped cause.
func NewInternalError(message string) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: message,
	}
}

// NewServiceUnavailError builds a CodeServiceUnavail error for a
// recoverable external failure.
func NewServiceUnavailError(message string, cause error) *AppError {
	return &AppError{
		Code:    CodeServiceUnavail,
		Message: message,
		Err:     cause,
	}
}

// NewCancelledError builds a CodeCancelled error for the orchestrator's
// "aborted" path.
func NewCancelledError(message string) *AppError {
	return &AppError{
		Code:    CodeCancelled,
		Message: message,
	}
}

func hasCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// IsInvalidInput reports whether err is an AppError with CodeInvalidInput.
func IsInvalidInput(err error) bool { return hasCode(err, CodeInvalidInput) }

// IsNotFound reports whether err is an AppError with CodeNotFound.
func IsNotFound(err error) bool { return hasCode(err, CodeNotFound) }

// IsServiceUnavail reports whether err is an AppError with CodeServiceUnavail.
func IsServiceUnavail(err error) bool { return hasCode(err, CodeServiceUnavail) }

// IsCancelled reports whether err is an AppError with CodeCancelled.
func IsCancelled(err error) bool { return hasCode(err, CodeCancelled) }
