package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// AssignableUserStore lists the users a caller may target with assignments.
type AssignableUserStore interface {
	ListAssignable(ctx context.Context, caller models.User) ([]models.AssignableUser, error)
}

// UserHandler serves non-admin user lookups.
type UserHandler struct {
	users  AssignableUserStore
	logger ectologger.Logger
}

func NewUserHandler(users AssignableUserStore, logger ectologger.Logger) *UserHandler {
	return &UserHandler{users: users, logger: logger}
}

// RegisterRoutes registers user routes
func (h *UserHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/users/assignable", h.Assignable)
}

// Assignable returns the users the caller may assign work to: admins see
// everyone, teamleads themselves plus their members, agents only themselves.
func (h *UserHandler) Assignable(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.UserHandler.Assignable")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	users, err := h.users.ListAssignable(ctx, user)
	if err != nil {
		return err
	}
	return SuccessResponse(c, users)
}
