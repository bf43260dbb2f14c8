package common

import (
	"errors"
	"net/http"
)

// Canonical error codes surfaced by the API.
const (
	CodeValidation        = "VALIDATION"
	CodeNotFound          = "NOT_FOUND"
	CodeConflict          = "CONFLICT"
	CodeInsufficientStock = "INSUFFICIENT_STOCK"
	CodeRetryable         = "RETRYABLE"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeInternal          = "INTERNAL"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// NotFoundError flags a missing referenced entity; settlement aborts with no writes.
func NotFoundError(message string, err error) *AppError {
	return NewAppError(CodeNotFound, message, http.StatusNotFound, err)
}

// ConflictError flags a resource conflict such as an oversell attempt.
func ConflictError(code, message string, err error, details any) *AppError {
	e := NewAppError(code, message, http.StatusConflict, err)
	e.Details = details
	return e
}

// RetryableError marks a failure the client may resolve by resubmitting.
func RetryableError(message string, err error) *AppError {
	return NewAppError(CodeRetryable, message, http.StatusServiceUnavailable, err)
}

// ValidationError flags malformed caller input before it reaches the core.
func ValidationError(message string, details any) *AppError {
	e := NewAppError(CodeValidation, message, http.StatusBadRequest, nil)
	e.Details = details
	return e
}

// UnauthorizedError flags a missing or invalid access token.
func UnauthorizedError(message string, err error) *AppError {
	return NewAppError(CodeUnauthorized, message, http.StatusUnauthorized, err)
}

// IsAppError checks whether the error is an AppError.
func IsAppError(err error) bool {
	var target *AppError
	return errors.As(err, &target)
}
