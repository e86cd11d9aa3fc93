// Package errors defines common error types for the verification engine.
package errors

import (
	"errors"
	"fmt"
)

// Error codes for the application.
const (
	CodeUnknown            = "UNKNOWN_ERROR"
	CodeInsufficientMemory = "INSUFFICIENT_MEMORY"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeVerifyError        = "VERIFY_ERROR"
	CodeCacheError         = "CACHE_ERROR"
	CodeStorageError       = "STORAGE_ERROR"
	CodeConfigError        = "CONFIG_ERROR"
	CodeInvalidInput       = "INVALID_INPUT"
	CodeNotFound           = "NOT_FOUND"
)

// AppError represents an application error with a code and message.
type AppError struct {
	Code    string
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// Is checks if the error matches the target.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// New creates a new AppError.
func New(code string, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError.
func Wrap(code string, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Common error instances.
var (
	ErrInsufficientMemory = New(CodeInsufficientMemory, "insufficient memory")
	ErrInternalError      = New(CodeInternalError, "internal error")
	ErrVerifyError        = New(CodeVerifyError, "class relationship verification failed")
	ErrCacheError         = New(CodeCacheError, "shared cache error")
	ErrStorageError       = New(CodeStorageError, "storage error")
	ErrConfigError        = New(CodeConfigError, "configuration error")
	ErrInvalidInput       = New(CodeInvalidInput, "invalid input")
	ErrNotFound           = New(CodeNotFound, "resource not found")
)

// IsInsufficientMemory checks if the error is an allocation-limit error.
func IsInsufficientMemory(err error) bool {
	return errors.Is(err, ErrInsufficientMemory)
}

// IsInternalError checks if the error is an internal error.
func IsInternalError(err error) bool {
	return errors.Is(err, ErrInternalError)
}

// IsVerifyError checks if the error is a verification failure.
func IsVerifyError(err error) bool {
	return errors.Is(err, ErrVerifyError)
}

// IsCacheError checks if the error is a shared cache error.
func IsCacheError(err error) bool {
	return errors.Is(err, ErrCacheError)
}

// GetErrorCode extracts the error code from an error.
func GetErrorCode(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeUnknown
}

// GetErrorMessage extracts the error message from an error.
func GetErrorMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	if err != nil {
		return err.Error()
	}
	return ""
}
