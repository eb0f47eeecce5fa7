package middleware

import (
	"time"

	"github.com/labstack/echo/v4"

	"ChainPulse/pkg/logger"
)

// RequestLogging logs every request. 5xx responses log at error level and
// requests slower than slow log at warn.
func RequestLogging(l *logger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()

			err := next(c)

			took := time.Since(start)
			code := statusOf(c, err)
			fields := []logger.Field{
				logger.String("method", c.Request().Method),
				logger.String("route", c.Path()),
				logger.String("uri", c.Request().RequestURI),
				logger.String("remote_ip", c.RealIP()),
				logger.Int("status", code),
				logger.Int64("bytes", c.Response().Size),
				logger.Duration("latency", took),
			}
			if id := c.Response().Header().Get(echo.HeaderXRequestID); id != "" {
				fields = append(fields, logger.String("request_id", id))
			}
			switch {
			case code >= 500:
				if err != nil {
					fields = append(fields, logger.Error(err))
				}
				l.Error("http request failed", fields...)
			case slow > 0 && took >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Info("http request", fields...)
			}
			return err
		}
	}
}
