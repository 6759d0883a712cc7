package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/appcontext"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// UserContextKey is the echo context key carrying the authenticated user.
// Exported so handler tests can seed a caller without the middleware chain.
const UserContextKey = "authenticated-user"

type UserClaims struct {
	Sub   string `json:"sub"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// UserLoader resolves the token's subject to an application user. Role
// always comes from the user row, never from the token or request input.
type UserLoader interface {
	GetByEmail(ctx context.Context, email string) (*models.User, error)
}

// Authentication verifies the bearer token against the OIDC issuer and
// attaches the matching application user to the request.
func Authentication(logger ectologger.Logger, issuer, clientID string, users UserLoader) (echo.MiddlewareFunc, error) {
	provider, err := oidc.NewProvider(context.Background(), issuer)
	if err != nil {
		return nil, err
	}

	verifier := provider.Verifier(&oidc.Config{
		ClientID: clientID,
	})

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ctx := c.Request().Context()
			ctx, span := tracing.StartSpan(ctx, "middleware.Authentication")
			defer span.End()

			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				logger.WithContext(ctx).Warn("request is missing bearer token")
				return echo.NewHTTPError(http.StatusUnauthorized, "Nicht autorisiert")
			}

			raw := strings.TrimPrefix(auth, "Bearer ")
			verifyCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			idToken, err := verifier.Verify(verifyCtx, raw)
			if err != nil {
				logger.WithContext(ctx).WithError(err).Warn("token is invalid")
				return echo.NewHTTPError(http.StatusUnauthorized, "Nicht autorisiert")
			}

			var claims UserClaims
			if err := idToken.Claims(&claims); err != nil {
				logger.WithContext(ctx).WithError(err).Warn("failed to parse claims")
				return echo.NewHTTPError(http.StatusUnauthorized, "Nicht autorisiert")
			}

			user, err := users.GetByEmail(ctx, claims.Email)
			if err != nil {
				return err
			}
			if user == nil {
				logger.WithContext(ctx).WithFields(map[string]any{"email": claims.Email}).Warn("token subject has no user account")
				return echo.NewHTTPError(http.StatusUnauthorized, "Nicht autorisiert")
			}

			attachUser(c, ctx, user)
			return next(c)
		}
	}, nil
}

// CurrentUser returns the authenticated user attached by the auth
// middleware. Handlers behind the middleware can rely on ok being true.
func CurrentUser(c echo.Context) (models.User, bool) {
	user, ok := c.Get(UserContextKey).(models.User)
	return user, ok
}

func attachUser(c echo.Context, ctx context.Context, user *models.User) {
	ctx = appcontext.SetUserID(ctx, user.ID)
	ctx = appcontext.SetUserName(ctx, user.Name)
	ctx = appcontext.SetRole(ctx, string(user.Role))
	c.SetRequest(c.Request().WithContext(ctx))
	c.Set(UserContextKey, *user)
}
