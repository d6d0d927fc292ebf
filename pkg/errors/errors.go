package errors

import (
	"fmt"
	"net/http"
)

// ErrorCode represents application error codes
type ErrorCode string

const (
	// Business errors
	ErrCodeNotFound         ErrorCode = "NOT_FOUND"
	ErrCodeConflict         ErrorCode = "CONFLICT"
	ErrCodeInvalidInput     ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidOperation ErrorCode = "INVALID_OPERATION"

	// Authentication/Authorization errors
	ErrCodeUnauthenticated ErrorCode = "UNAUTHENTICATED"
	ErrCodeForbidden       ErrorCode = "FORBIDDEN"

	// System errors
	ErrCodeInternal ErrorCode = "INTERNAL_ERROR"
	ErrCodeExternal ErrorCode = "EXTERNAL_ERROR"
)

// AppError represents application error with context
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    map[string]interface{} `json:"details,omitempty"`
	HTTPStatus int                    `json:"-"`
	Cause      error                  `json:"-"`
}

// Error implements error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Code:       ErrCodeNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]interface{}{"resource": resource},
	}
}

// NewConflictError creates a new conflict error.
// Uniqueness violations are reported as 400, matching the public API
// contract, not 409.
func NewConflictError(message string) *AppError {
	return &AppError{
		Code:       ErrCodeConflict,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewUnauthenticatedError creates a new unauthenticated error
func NewUnauthenticatedError(message string) *AppError {
	return &AppError{
		Code:       ErrCodeUnauthenticated,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Code:       ErrCodeForbidden,
		Message:    message,
		HTTPStatus: http.StatusForbidden,
	}
}

// NewInvalidInputError creates a new invalid input error
func NewInvalidInputError(message string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidInput,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInvalidOperationError creates a new invalid operation error
func NewInvalidOperationError(message string) *AppError {
	return &AppError{
		Code:       ErrCodeInvalidOperation,
		Message:    message,
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewInternalError creates a new internal error
func NewInternalError(message string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeInternal,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
		Cause:      cause,
	}
}

// NewExternalError creates a new external service error
func NewExternalError(service, message string, cause error) *AppError {
	return &AppError{
		Code:       ErrCodeExternal,
		Message:    fmt.Sprintf("%s error: %s", service, message),
		HTTPStatus: http.StatusBadGateway,
		Cause:      cause,
		Details:    map[string]interface{}{"service": service},
	}
}

// IsErrorCode checks if error matches specific error code
func IsErrorCode(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// GetErrorCode extracts error code from error
func GetErrorCode(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
