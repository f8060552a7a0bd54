package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Input errors, rejected before any I/O
	ErrorTypeValidation ErrorType = "VALIDATION"

	// Record errors
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeDuplicateKey ErrorType = "DUPLICATE_KEY"
	ErrorTypeConflict     ErrorType = "CONFLICT"

	// Dual-write errors
	ErrorTypeUploadFailure      ErrorType = "UPLOAD_FAILURE"
	ErrorTypeCleanupFailure     ErrorType = "CLEANUP_FAILURE"
	ErrorTypeTransactionFailure ErrorType = "TRANSACTION_FAILURE"
	ErrorTypeObjectStore        ErrorType = "OBJECT_STORE"

	ErrorTypeRateLimited ErrorType = "RATE_LIMITED"
	ErrorTypeInternal    ErrorType = "INTERNAL"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Retryable  bool                   `json:"retryable"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetail adds a single error detail
func (e *AppError) WithDetail(key string, value interface{}) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// captureStackTrace captures the current stack trace
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	stack := ""
	for {
		frame, more := frames.Next()
		stack += fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return stack
}

func newError(errType ErrorType, code, message string, status int) *AppError {
	return &AppError{
		Type:       errType,
		Code:       code,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// Constructor functions for each error kind

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, "INVALID_INPUT", message, http.StatusBadRequest)
}

// NewNotFoundError creates a not found error for a memory title
func NewNotFoundError(title string) *AppError {
	return newError(ErrorTypeNotFound, "MEMORY_NOT_FOUND", "Memory not found", http.StatusNotFound).
		WithDetail("title", title)
}

// NewDuplicateKeyError creates an error for an already used title
func NewDuplicateKeyError(title string) *AppError {
	return newError(ErrorTypeDuplicateKey, "TITLE_ALREADY_EXISTS", "Title already exists", http.StatusBadRequest).
		WithDetail("title", title)
}

// NewConflictError creates an error for a record modified by a concurrent writer
func NewConflictError(title string) *AppError {
	err := newError(ErrorTypeConflict, "CONCURRENT_MODIFICATION", "The memory was modified by another request", http.StatusConflict).
		WithDetail("title", title)
	err.Retryable = true
	return err
}

// NewUploadError creates an error for a failed object store write
func NewUploadError(err error) *AppError {
	appErr := newError(ErrorTypeUploadFailure, "UPLOAD_FAILED", "Failed to upload files", http.StatusInternalServerError).
		WithCause(err)
	appErr.Retryable = true
	return appErr
}

// NewCleanupError creates an error for a failed object store delete. The
// record is retained so a later delete can finish the cleanup.
func NewCleanupError(title string, err error) *AppError {
	appErr := newError(ErrorTypeCleanupFailure, "CLEANUP_FAILED", "Failed to delete files from storage", http.StatusBadRequest).
		WithDetail("title", title).
		WithCause(err)
	appErr.Retryable = true
	return appErr
}

// NewTransactionError creates a database transaction error
func NewTransactionError(operation string, err error) *AppError {
	return newError(ErrorTypeTransactionFailure, "TRANSACTION_FAILED",
		fmt.Sprintf("database operation '%s' failed", operation), http.StatusInternalServerError).
		WithCause(err)
}

// NewTransactionOutcomeUnknownError reports a commit that may or may not
// have been applied
func NewTransactionOutcomeUnknownError(operation string, err error) *AppError {
	return newError(ErrorTypeTransactionFailure, "TRANSACTION_OUTCOME_UNKNOWN",
		fmt.Sprintf("outcome of database operation '%s' is unknown", operation), http.StatusInternalServerError).
		WithCause(err)
}

// NewObjectStoreError creates an error for a failed download link request
func NewObjectStoreError(key string, err error) *AppError {
	return newError(ErrorTypeObjectStore, "DOWNLOAD_URL_FAILED", "Failed to generate download link", http.StatusBadGateway).
		WithDetail("key", key).
		WithCause(err)
}

// NewRateLimitError creates an error for a client over its write budget
func NewRateLimitError(key string) *AppError {
	appErr := newError(ErrorTypeRateLimited, "TOO_MANY_REQUESTS", "Too many requests", http.StatusTooManyRequests).
		WithDetail("client", key)
	appErr.Retryable = true
	return appErr
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, "INTERNAL_ERROR", message, http.StatusInternalServerError)
}

// Helper functions

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// TypeOf returns the error kind, INTERNAL for errors outside the taxonomy
func TypeOf(err error) ErrorType {
	if appErr := GetAppError(err); appErr != nil {
		return appErr.Type
	}
	return ErrorTypeInternal
}

// IsNotFound checks if an error is a not found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsDuplicateKey checks if an error is a title collision
func IsDuplicateKey(err error) bool {
	return IsType(err, ErrorTypeDuplicateKey)
}

// IsConflict checks if an error is a concurrent modification error
func IsConflict(err error) bool {
	return IsType(err, ErrorTypeConflict)
}

// IsOutcomeUnknown reports whether a failed commit may still have been applied
func IsOutcomeUnknown(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Code == "TRANSACTION_OUTCOME_UNKNOWN"
}

// IsRetryable reports whether the caller may retry the whole operation
func IsRetryable(err error) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Retryable
}
