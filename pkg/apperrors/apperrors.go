package apperrors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is a typed domain error that carries enough information for the
// HTTP boundary to translate it into a response without inspecting message
// strings.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}
	return e.Message
}

// Unwrap exposes the internal error for errors.Is / errors.As.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches two AppErrors by code, so sentinel values below work with
// errors.Is even after WithMessage / WithInternal copies.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of the error with a more specific message.
func (e *AppError) WithMessage(format string, args ...any) *AppError {
	cpy := *e
	cpy.Message = fmt.Sprintf(format, args...)
	return &cpy
}

// WithInternal returns a copy of the error with an attached cause.
func (e *AppError) WithInternal(err error) *AppError {
	cpy := *e
	cpy.Internal = err
	return &cpy
}

// The error taxonomy of the consent core. Every domain failure is one of
// these kinds; the boundary layer maps kind to status exactly once.
var (
	ErrValidation = &AppError{
		Code:       "VALIDATION",
		Message:    "invalid request",
		StatusCode: http.StatusBadRequest,
	}
	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "resource not found",
		StatusCode: http.StatusNotFound,
	}
	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "permission denied",
		StatusCode: http.StatusForbidden,
	}
	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "concurrent modification, retry the request",
		StatusCode: http.StatusConflict,
	}
	ErrServiceUnavailable = &AppError{
		Code:       "SERVICE_UNAVAILABLE",
		Message:    "audit log unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}
)

// FromError converts any error to an AppError, defaulting to a 500.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return &AppError{
		Code:       "INTERNAL",
		Message:    "internal server error",
		StatusCode: http.StatusInternalServerError,
		Internal:   err,
	}
}
