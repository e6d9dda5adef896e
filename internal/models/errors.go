package models

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorCode represents standardized error codes across the engine and
// its admin surface.
type ErrorCode string

const (
	// Core evaluation failure taxonomy
	ErrorCodeCacheDegraded     ErrorCode = "CACHE_DEGRADED"
	ErrorCodeRateLimitTimeout  ErrorCode = "RATE_LIMIT_TIMEOUT"
	ErrorCodeTransportFailure  ErrorCode = "TRANSPORT_FAILURE"
	ErrorCodeDeadlineExceeded  ErrorCode = "DEADLINE_EXCEEDED"
	ErrorCodeRepositoryFailure ErrorCode = "REPOSITORY_FAILURE"

	// Admin API errors
	ErrorCodeInvalidRequest ErrorCode = "INVALID_REQUEST"
	ErrorCodeMalformedJSON  ErrorCode = "MALFORMED_JSON"
	ErrorCodeAlertNotFound  ErrorCode = "ALERT_NOT_FOUND"
	ErrorCodeInternalError  ErrorCode = "INTERNAL_ERROR"
)

// HTTPStatusCode returns the appropriate HTTP status code for each error type
func (e ErrorCode) HTTPStatusCode() int {
	switch e {
	case ErrorCodeInvalidRequest, ErrorCodeMalformedJSON:
		return http.StatusBadRequest
	case ErrorCodeAlertNotFound:
		return http.StatusNotFound
	case ErrorCodeTransportFailure:
		return http.StatusBadGateway
	case ErrorCodeRateLimitTimeout:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// ErrorDetail represents detailed error information
type ErrorDetail struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

// ErrorResponse represents the standardized error response format
type ErrorResponse struct {
	Error     ErrorDetail `json:"error"`
	Timestamp time.Time   `json:"timestamp"`
}

// AppError represents an application error with a code and an optional cause.
type AppError struct {
	Code    ErrorCode
	Message string
	Details string
	Cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// NewAppErrorWithCause creates a new application error with underlying cause
func NewAppErrorWithCause(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Cause: cause}
}

// NewAppErrorWithDetails creates a new application error with details
func NewAppErrorWithDetails(code ErrorCode, message, details string) *AppError {
	return &AppError{Code: code, Message: message, Details: details}
}

// HandleError converts an error into the standard JSON error response.
func HandleError(c *gin.Context, err error) {
	appErr, ok := err.(*AppError)
	if !ok {
		appErr = NewAppErrorWithCause(ErrorCodeInternalError, "Internal server error", err)
	}

	c.JSON(appErr.Code.HTTPStatusCode(), &ErrorResponse{
		Error: ErrorDetail{
			Code:    appErr.Code,
			Message: appErr.Message,
			Details: appErr.Details,
		},
		Timestamp: time.Now().UTC(),
	})
}
