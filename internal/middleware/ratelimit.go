package middleware

import (
	"TradeCore/internal/service/ratelimit"
	xhttp "TradeCore/pkg/http"

	"github.com/labstack/echo/v4"
)

// RateLimit rejects requests over the per-client token bucket with 429.
// Clients are keyed by the real IP Echo resolves.
func RateLimit(l *ratelimit.Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if l != nil && !l.Allow(c.RealIP()) {
				return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("rate limit exceeded"))
			}
			return next(c)
		}
	}
}
