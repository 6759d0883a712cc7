package middleware

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// HeaderUserID identifies the caller when token auth is disabled.
const HeaderUserID = "X-User-ID"

// UserByIDLoader resolves a user by primary key for header auth.
type UserByIDLoader interface {
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// HeaderAuthentication is the local-development substitute for token auth:
// the caller names a user ID and the row's role applies. Only wired when
// AUTH_ENABLED=false.
func HeaderAuthentication(logger ectologger.Logger, users UserByIDLoader) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ctx, span := tracing.StartSpan(ctx, "middleware.HeaderAuthentication")
			defer span.End()

			userID := c.Request().Header.Get(HeaderUserID)
			if userID == "" {
				return echo.NewHTTPError(http.StatusUnauthorized, "Nicht autorisiert")
			}

			user, err := users.GetByID(ctx, userID)
			if err != nil {
				logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Warn("header auth user lookup failed")
				return echo.NewHTTPError(http.StatusUnauthorized, "Nicht autorisiert")
			}

			attachUser(c, ctx, user)
			return next(c)
		}
	}
}
