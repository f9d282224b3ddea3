package ratelimit

import (
	"net/http"

	xhttp "PairFlow/pkg/http"

	"github.com/labstack/echo/v4"
)

// Middleware limits each route and client IP pair to capacity requests,
// refilled at refillPerSec. Rejected requests get 429.
func Middleware(l *Limiter, capacity, refillPerSec float64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.Path() + "|" + c.RealIP()
			if !l.Allow(key, capacity, refillPerSec) {
				return xhttp.AppErrorResponse(c, xhttp.NewAppError(xhttp.CodeRateLimited, "",
					"Rate limit exceeded", http.StatusTooManyRequests).WithParam("capacity", capacity))
			}
			return next(c)
		}
	}
}
