package middleware

import (
	"time"

	applogger "PairFlow/pkg/logger"

	"github.com/labstack/echo/v4"
)

// RequestLogging logs every request at debug level, slow ones as warnings and
// 5xx responses as errors. A zero slow threshold disables the warning.
func RequestLogging(l *applogger.Logger, slow time.Duration) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if isUpgrade(c.Request()) {
				return err
			}
			latency := time.Since(start)
			status := statusOf(c, err)

			fields := []applogger.Field{
				applogger.String("method", c.Request().Method),
				applogger.String("route", routeOf(c)),
				applogger.String("uri", c.Request().RequestURI),
				applogger.String("remote", c.RealIP()),
				applogger.Int("status", status),
				applogger.Int64("bytes", c.Response().Size),
				applogger.Duration("latency_ms", latency),
			}
			if err != nil {
				fields = append(fields, applogger.Error(err))
			}

			switch {
			case status >= 500:
				l.Error("http request failed", fields...)
			case slow > 0 && latency >= slow:
				l.Warn("http request slow", fields...)
			default:
				l.Debug("http request", fields...)
			}
			return err
		}
	}
}
