package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// ValidationError represents validation error detail.
type ValidationError struct {
	Code    string                 `json:"code,omitempty"`
	Field   string                 `json:"field,omitempty"`
	Message string                 `json:"message,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
}

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Detail string                 `json:"detail"`
	Code   string                 `json:"code"`
	Field  string                 `json:"field,omitempty"`
	Params map[string]interface{} `json:"params,omitempty"`
	Errors []ValidationError      `json:"errors,omitempty"`
}

// JSONResponse writes data as the response body without an envelope.
func JSONResponse(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, data)
}

// SuccessResponse writes a 200 response.
func SuccessResponse(c echo.Context, data interface{}) error {
	return JSONResponse(c, http.StatusOK, data)
}

// ValidationErrorResponse writes a 400 listing every failed field.
func ValidationErrorResponse(c echo.Context, errs []ValidationError) error {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return JSONResponse(c, http.StatusBadRequest, ErrorBody{
		Detail: strings.Join(msgs, "; "),
		Code:   "ERR_VALIDATION",
		Errors: errs,
	})
}

// InternalServerErrorResponse writes a redacted 500.
func InternalServerErrorResponse(c echo.Context) error {
	return JSONResponse(c, http.StatusInternalServerError, ErrorBody{
		Detail: "Internal server error",
		Code:   "ERR_INTERNAL",
	})
}

// AppErrorResponse writes application error response. Anything that is not
// an *AppError is reported as a generic 500.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if !errors.As(err, &appErr) || (appErr.Status >= http.StatusInternalServerError && appErr.Status != http.StatusServiceUnavailable) {
		return InternalServerErrorResponse(c)
	}
	return JSONResponse(c, appErr.Status, ErrorBody{
		Detail: appErr.Detail,
		Code:   appErr.Code,
		Field:  appErr.Field,
		Params: appErr.Params,
	})
}
