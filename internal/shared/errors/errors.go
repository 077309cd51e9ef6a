package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types.
var (
	ErrNotFound      = errors.New("resource not found")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrBadRequest    = errors.New("bad request")
	ErrConflict      = errors.New("resource conflict")
	ErrInternal      = errors.New("internal error")
	ErrRateLimited   = errors.New("rate limited")
	ErrConfiguration = errors.New("configuration error")
	ErrValidation    = errors.New("validation error")
	ErrCredential    = errors.New("credential error")
	ErrProvider      = errors.New("provider error")
)

// AppError represents an application error with HTTP status and error code.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Err        error  `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// ErrorResponse represents the JSON error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewAppError creates a new application error.
func NewAppError(code string, message string, statusCode int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		StatusCode: statusCode,
		Err:        err,
	}
}

// ConfigurationError reports an unknown model or a similar setup problem.
func ConfigurationError(message string) *AppError {
	return NewAppError("CONFIGURATION_ERROR", message, http.StatusNotFound, ErrConfiguration)
}

// ValidationError reports parameters a model rejects.
func ValidationError(message string) *AppError {
	return NewAppError("VALIDATION_ERROR", message, http.StatusUnprocessableEntity, ErrValidation)
}

// CredentialError reports a provider without an API key.
func CredentialError(message string) *AppError {
	return NewAppError("CREDENTIAL_ERROR", message, http.StatusPreconditionFailed, ErrCredential)
}

// ProviderError carries an upstream provider message verbatim.
func ProviderError(message string) *AppError {
	return NewAppError("PROVIDER_ERROR", message, http.StatusBadGateway, ErrProvider)
}

// NotFound creates a not found error.
func NotFound(resource string) *AppError {
	return NewAppError("NOT_FOUND", fmt.Sprintf("%s not found", resource), http.StatusNotFound, ErrNotFound)
}

// Unauthorized creates an unauthorized error.
func Unauthorized(message string) *AppError {
	if message == "" {
		message = "authentication required"
	}
	return NewAppError("UNAUTHORIZED", message, http.StatusUnauthorized, ErrUnauthorized)
}

// BadRequest creates a bad request error.
func BadRequest(message string) *AppError {
	return NewAppError("BAD_REQUEST", message, http.StatusBadRequest, ErrBadRequest)
}

// Conflict creates a conflict error.
func Conflict(message string) *AppError {
	return NewAppError("CONFLICT", message, http.StatusConflict, ErrConflict)
}

// Internal creates an internal error.
func Internal(message string, err error) *AppError {
	if message == "" {
		message = "internal server error"
	}
	return NewAppError("INTERNAL_ERROR", message, http.StatusInternalServerError, err)
}

// RateLimited creates a rate limited error.
func RateLimited(message string) *AppError {
	if message == "" {
		message = "too many requests"
	}
	return NewAppError("RATE_LIMITED", message, http.StatusTooManyRequests, ErrRateLimited)
}

// ToResponse converts an AppError to ErrorResponse.
func (e *AppError) ToResponse() ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetail{
			Code:    e.Code,
			Message: e.Message,
		},
	}
}

// GetStatusCode returns the appropriate HTTP status code for an error.
func GetStatusCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.StatusCode
	}

	switch {
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrConfiguration):
		return http.StatusNotFound
	case errors.Is(err, ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, ErrBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, ErrCredential):
		return http.StatusPreconditionFailed
	case errors.Is(err, ErrConflict):
		return http.StatusConflict
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests
	case errors.Is(err, ErrProvider):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
