package http

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/labstack/echo/v4"
)

// Respond writes data in the APIResponse envelope.
func Respond(c echo.Context, status int, data interface{}) error {
	return c.JSON(status, APIResponse{
		Status:  status,
		Message: http.StatusText(status),
		Data:    data,
	})
}

// OK writes a 200 envelope.
func OK(c echo.Context, data interface{}) error {
	return Respond(c, http.StatusOK, data)
}

// Invalid writes a 400 envelope listing every validation failure.
func Invalid(c echo.Context, errs []ValidationError) error {
	return Respond(c, http.StatusBadRequest, errs)
}

// Fail renders err. AppErrors keep their status and code, Echo errors keep
// their status, and anything else becomes an opaque 500. It reports whether
// err was unexpected so callers can decide to log it.
func Fail(c echo.Context, err error) (unexpected bool, werr error) {
	var (
		appErr *AppError
		he     *echo.HTTPError
	)
	switch {
	case errors.As(err, &appErr):
		return appErr.Status >= http.StatusInternalServerError, Respond(c, appErr.Status, []*AppError{appErr})
	case errors.As(err, &he):
		return false, Respond(c, he.Code, fmt.Sprint(he.Message))
	default:
		return true, Respond(c, http.StatusInternalServerError, "Something went wrong")
	}
}
