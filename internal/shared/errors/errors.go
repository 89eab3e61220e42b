package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Common error types
var (
	ErrNotFound       = errors.New("resource not found")
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("conflict")
	ErrValidation     = errors.New("validation error")
	ErrInfrastructure = errors.New("infrastructure error")
)

// AppError represents an application error with a machine-readable code and a
// bilingual (English/Arabic) human-readable message.
type AppError struct {
	Err        error             `json:"-"`
	Message    string            `json:"message"`
	MessageAr  string            `json:"message_ar,omitempty"`
	Code       string            `json:"code"`
	HTTPStatus int               `json:"-"`
	Retryable  bool              `json:"retryable,omitempty"`
	Details    map[string]string `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// NotFound creates a not found error
func NotFound(resource string, id string) *AppError {
	return &AppError{
		Err:        ErrNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		MessageAr:  fmt.Sprintf("%s غير موجود", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
		Details:    map[string]string{"resource": resource, "id": id},
	}
}

// Unauthorized creates an unauthorized error
func Unauthorized(message string) *AppError {
	return &AppError{
		Err:        ErrUnauthorized,
		Message:    message,
		MessageAr:  "غير مصرح",
		Code:       "UNAUTHORIZED",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a forbidden error
func Forbidden(message string) *AppError {
	return &AppError{
		Err:        ErrForbidden,
		Message:    message,
		MessageAr:  "ممنوع",
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

// BadRequest creates a bad request error
func BadRequest(message string) *AppError {
	return &AppError{
		Err:        ErrBadRequest,
		Message:    message,
		MessageAr:  "طلب غير صالح",
		Code:       "BAD_REQUEST",
		HTTPStatus: http.StatusBadRequest,
	}
}

// Validation creates a validation error with field details. Business-rule
// violations inside the pipeline are returned as data, not errors; this is
// for requests that are malformed before reaching the rule checks.
func Validation(message string, details map[string]string) *AppError {
	return &AppError{
		Err:        ErrValidation,
		Message:    message,
		MessageAr:  "فشل التحقق من الطلب",
		Code:       "VALIDATION_ERROR",
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// Conflict creates a conflict error with a bilingual message.
func Conflict(message, messageAr string) *AppError {
	return &AppError{
		Err:        ErrConflict,
		Message:    message,
		MessageAr:  messageAr,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusConflict,
	}
}

// Infrastructure creates a fatal store/connectivity error. Infrastructure
// errors are retryable by an external policy and abort any open transaction
// scope.
func Infrastructure(err error, message string) *AppError {
	return &AppError{
		Err:        err,
		Message:    message,
		MessageAr:  "خلل في البنية التحتية",
		Code:       "INFRASTRUCTURE_ERROR",
		HTTPStatus: http.StatusServiceUnavailable,
		Retryable:  true,
	}
}

// Internal creates an internal error
func Internal(err error) *AppError {
	return &AppError{
		Err:        err,
		Message:    "internal server error",
		MessageAr:  "خطأ داخلي في الخادم",
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// Wrap wraps an error with additional context
func Wrap(err error, message string) *AppError {
	if appErr, ok := err.(*AppError); ok {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}
	return &AppError{
		Err:        err,
		Message:    message,
		Code:       "INTERNAL_ERROR",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// IsNotFound reports whether err represents a missing resource.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsConflict reports whether err represents a state conflict.
func IsConflict(err error) bool {
	return errors.Is(err, ErrConflict)
}

// IsRetryable reports whether err is an infrastructure failure that an
// external retry/backoff policy may replay.
func IsRetryable(err error) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Retryable
	}
	return false
}
