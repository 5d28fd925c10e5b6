package errors

import (
	"fmt"
	"net/http"

	"github.com/bookbonus/bonus-backend/logger"
)

type ErrorType string

const (
	ValidationError          ErrorType = "VALIDATION_ERROR"
	TypeMismatchError        ErrorType = "TYPE_MISMATCH"
	TooLargeError            ErrorType = "TOO_LARGE"
	DuplicateError           ErrorType = "DUPLICATE"
	StorageError             ErrorType = "STORAGE_ERROR"
	RateLimitedError         ErrorType = "RATE_LIMITED"
	NotFoundError            ErrorType = "NOT_FOUND"
	DatabaseError            ErrorType = "DATABASE_ERROR"
	ServerError              ErrorType = "SERVER_ERROR"
	InvalidTransitionError   ErrorType = "INVALID_STATUS_TRANSITION"
	AuthError                ErrorType = "AUTHENTICATION_ERROR"
	ForbiddenError           ErrorType = "FORBIDDEN"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType `json:"type"`
	Code       string    `json:"code"`
	Message    string    `json:"message"`
	Detail     string    `json:"detail,omitempty"`
	HTTPStatus int       `json:"-"`
	Raw        error     `json:"-"`
}

func (e *AppError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Type, e.Message, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap exposes the wrapped raw error for errors.Is/As chains.
func (e *AppError) Unwrap() error {
	return e.Raw
}

// New creates a new AppError
func New(errType ErrorType, message string, detail string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     detail,
		HTTPStatus: getHTTPStatus(errType),
	}
}

// Wrap wraps a raw error with AppError context
func Wrap(err error, errType ErrorType, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Type:       errType,
		Message:    message,
		Detail:     err.Error(),
		HTTPStatus: getHTTPStatus(errType),
		Raw:        err,
	}
}

// Helper constructors for common errors

func NotFound(entity string, id interface{}) *AppError {
	return &AppError{
		Type:       NotFoundError,
		Message:    fmt.Sprintf("%s not found", entity),
		Detail:     fmt.Sprintf("ID: %v", id),
		HTTPStatus: http.StatusNotFound,
	}
}

func ValidationFailed(code string, details string) *AppError {
	return &AppError{
		Type:       ValidationError,
		Code:       code,
		Message:    "Validation failed",
		Detail:     details,
		HTTPStatus: http.StatusBadRequest,
	}
}

// TypeMismatch reports a declared MIME type that does not match the content
// detected from the payload's magic bytes.
func TypeMismatch(declared, detected string) *AppError {
	return &AppError{
		Type:       TypeMismatchError,
		Code:       "type_mismatch",
		Message:    "Declared content type does not match file content",
		Detail:     fmt.Sprintf("declared %s, detected %s", declared, detected),
		HTTPStatus: http.StatusBadRequest,
	}
}

// TooLarge reports a payload over the configured size ceiling.
func TooLarge(size, limit int64) *AppError {
	return &AppError{
		Type:       TooLargeError,
		Code:       "file_too_large",
		Message:    "File exceeds maximum allowed size",
		Detail:     fmt.Sprintf("size %d exceeds maximum of %d bytes", size, limit),
		HTTPStatus: http.StatusRequestEntityTooLarge,
	}
}

// Duplicate reports a fingerprint collision with a previously submitted receipt.
// Only the conflicting receipt's ID is exposed, never the owning user's data.
func Duplicate(receiptID string) *AppError {
	return &AppError{
		Type:       DuplicateError,
		Code:       "duplicate_receipt",
		Message:    "This receipt has already been submitted",
		Detail:     fmt.Sprintf("conflicts with receipt %s", receiptID),
		HTTPStatus: http.StatusConflict,
	}
}

// NewStorageError wraps a blob storage failure. Storage failures abort the
// submission, so the message is user-facing.
func NewStorageError(err error) *AppError {
	logger.GetLogger().Errorw("Storage error", "error", err)
	return &AppError{
		Type:       StorageError,
		Code:       "storage_failed",
		Message:    "Failed to store uploaded file",
		Detail:     "Please try again later",
		HTTPStatus: http.StatusBadGateway,
		Raw:        err,
	}
}

// RateLimitExceeded reports a rejected submission due to rate limiting.
func RateLimitExceeded(message string, retryAfterSeconds int) *AppError {
	return &AppError{
		Type:       RateLimitedError,
		Code:       "rate_limited",
		Message:    message,
		Detail:     fmt.Sprintf("retry after %d seconds", retryAfterSeconds),
		HTTPStatus: http.StatusTooManyRequests,
	}
}

func NewDatabaseError(err error) *AppError {
	// Log original error but return sanitized message
	logger.GetLogger().Errorw("Database error", "error", err)
	return &AppError{
		Type:       DatabaseError,
		Message:    "Database operation failed",
		Detail:     "Please try again later",
		HTTPStatus: http.StatusInternalServerError,
		Raw:        err,
	}
}

func InternalServerError(message string) *AppError {
	return &AppError{
		Type:       ServerError,
		Message:    message,
		HTTPStatus: http.StatusInternalServerError,
	}
}

func Forbidden(message string, details string) *AppError {
	return &AppError{
		Type:       ForbiddenError,
		Message:    message,
		Detail:     details,
		HTTPStatus: http.StatusForbidden,
	}
}

func Unauthorized(code, message string) *AppError {
	return &AppError{
		Type:       AuthError,
		Code:       code,
		Message:    message,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// InvalidStatusTransition reports an attempted transition out of a terminal
// receipt or claim state.
func InvalidStatusTransition(current, next string) *AppError {
	return &AppError{
		Type:       InvalidTransitionError,
		Message:    "Invalid status transition",
		Detail:     fmt.Sprintf("Cannot transition from %s to %s", current, next),
		HTTPStatus: http.StatusConflict,
	}
}

func getHTTPStatus(errType ErrorType) int {
	switch errType {
	case ValidationError, TypeMismatchError:
		return http.StatusBadRequest
	case TooLargeError:
		return http.StatusRequestEntityTooLarge
	case DuplicateError, InvalidTransitionError:
		return http.StatusConflict
	case RateLimitedError:
		return http.StatusTooManyRequests
	case NotFoundError:
		return http.StatusNotFound
	case AuthError:
		return http.StatusUnauthorized
	case ForbiddenError:
		return http.StatusForbidden
	case StorageError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
