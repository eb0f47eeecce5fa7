package http

import (
	"fmt"
	"net/http"
	"strconv"
)

// AppError is an error that carries its own HTTP status and a stable
// machine-readable code. Handlers may return it directly; the server's
// error handler renders it in the envelope.
type AppError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
	Status  int    `json:"-"`
	Err     error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

// HTTPStatus lets middleware read the status without importing this package.
func (e *AppError) HTTPStatus() int { return e.Status }

func (e *AppError) Unwrap() error { return e.Err }

// Wrap records the underlying cause. It is logged, never rendered.
func (e *AppError) Wrap(err error) *AppError {
	e.Err = err
	return e
}

// NewAppError creates an error with an explicit code and field.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, Field: field, Status: status}
}

var statusCodes = map[int]string{
	http.StatusBadRequest:          "ERR_BAD_REQUEST",
	http.StatusNotFound:            "ERR_NOT_FOUND",
	http.StatusTooManyRequests:     "ERR_RATE_LIMITED",
	http.StatusInternalServerError: "ERR_INTERNAL",
	http.StatusServiceUnavailable:  "ERR_UNAVAILABLE",
	http.StatusGatewayTimeout:      "ERR_TIMEOUT",
}

// StatusError creates an error whose code follows from status.
func StatusError(status int, format string, args ...interface{}) *AppError {
	code, ok := statusCodes[status]
	if !ok {
		code = "ERR_" + strconv.Itoa(status)
	}
	return NewAppError(code, "", fmt.Sprintf(format, args...), status)
}
