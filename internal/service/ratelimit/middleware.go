package ratelimit

import (
	"net/http"

	xhttp "StockCast/pkg/http"

	"github.com/labstack/echo/v4"
)

// Middleware rejects requests with 429 once the client's bucket is empty.
// Clients are keyed by real IP.
func Middleware(l *Limiter, capacity int, refillPerSec float64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP(), float64(capacity), refillPerSec) {
				return xhttp.DataResponse(c, http.StatusTooManyRequests, "rate limit exceeded")
			}
			return next(c)
		}
	}
}
