package http

import (
	"fmt"
	"net/http"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code   string                 `json:"code"`
	Detail string                 `json:"detail"`
	Field  string                 `json:"field,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`
	Status int                    `json:"-"`
	Err    error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Detail, e.Err)
	}
	return e.Detail
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, detail string, status int) *AppError {
	return &AppError{
		Code:   code,
		Detail: detail,
		Field:  field,
		Status: status,
	}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error. It is never rendered to the client.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// BadRequestError creates a 400 error.
func BadRequestError(code, detail string) *AppError {
	return NewAppError(code, "", detail, http.StatusBadRequest)
}

// ConflictError creates a 409 error.
func ConflictError(code, detail string) *AppError {
	return NewAppError(code, "", detail, http.StatusConflict)
}

// TooManyRequestsError creates a 429 error.
func TooManyRequestsError(detail string) *AppError {
	return NewAppError("ERR_RATE_LIMITED", "", detail, http.StatusTooManyRequests)
}

// ServiceUnavailableError creates a 503 error.
func ServiceUnavailableError(code, detail string) *AppError {
	return NewAppError(code, "", detail, http.StatusServiceUnavailable)
}

// InternalError creates a 500 error.
func InternalError(detail string) *AppError {
	return NewAppError("ERR_INTERNAL", "", detail, http.StatusInternalServerError)
}
