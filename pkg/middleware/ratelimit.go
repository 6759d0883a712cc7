package middleware

import (
	"context"
	"fmt"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/appcontext"
	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/redis"
)

// Limiter checks whether the given key may perform another request.
type Limiter interface {
	Allow(ctx context.Context, key string) (redis.RateLimitResult, error)
}

// RateLimit rejects requests with 429 once the caller exceeds the limiter's
// window. Keys are per user so one heavy importer cannot starve the rest.
// Limiter failures let the request through; the limiter is protection, not a
// dependency.
func RateLimit(logger ectologger.Logger, limiter Limiter) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()

			key := appcontext.GetUserID(ctx)
			if key == "" {
				key = c.RealIP()
			}

			result, err := limiter.Allow(ctx, key)
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("rate limiter check failed, allowing request")
				return next(c)
			}

			if !result.Allowed {
				metrics.RateLimitHits.WithLabelValues(c.Path()).Inc()
				c.Response().Header().Set("Retry-After", fmt.Sprintf("%d", int(result.RetryIn.Seconds())))
				return echo.NewHTTPError(http.StatusTooManyRequests, "Zu viele Anfragen. Bitte versuchen Sie es später erneut.")
			}

			return next(c)
		}
	}
}
