package handlers

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
	"github.com/Ramsey-B/dahlia/pkg/utils"
)

// UserAdminStore is the user-administration persistence surface.
type UserAdminStore interface {
	List(ctx context.Context) ([]models.User, error)
	UpdateRole(ctx context.Context, id string, role models.Role) error
	Delete(ctx context.Context, id string) error
}

// UserAdminHandler handles user and role administration.
type UserAdminHandler struct {
	users  UserAdminStore
	logger ectologger.Logger
}

func NewUserAdminHandler(users UserAdminStore, logger ectologger.Logger) *UserAdminHandler {
	return &UserAdminHandler{users: users, logger: logger}
}

// RegisterRoutes registers user administration routes
func (h *UserAdminHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/admin/users", h.List)
	g.PATCH("/admin/users/:id", h.UpdateRole)
	g.DELETE("/admin/users/:id", h.Delete)
}

// List returns all user accounts. Admins and teamleads only.
func (h *UserAdminHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.UserAdminHandler.List")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}
	if user.Role != models.RoleAdmin && user.Role != models.RoleTeamlead {
		return Forbidden("Verboten: Nur Admins und Teamleads dürfen Benutzer einsehen.")
	}

	users, err := h.users.List(ctx)
	if err != nil {
		return err
	}
	return SuccessResponse(c, users)
}

// UpdateRole changes a user's role. Admin only; changing one's own role is
// rejected so an admin cannot lock themselves out unnoticed.
func (h *UserAdminHandler) UpdateRole(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.UserAdminHandler.UpdateRole")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}
	if user.Role != models.RoleAdmin {
		return Forbidden("Verboten: Nur Admins dürfen Rollen ändern.")
	}

	id := c.Param("id")
	if id == user.ID {
		return Forbidden("Verboten: Die eigene Rolle kann nicht geändert werden.")
	}

	req, err := utils.BindRequest[models.UpdateUserRoleRequest](c)
	if err != nil {
		return err
	}
	role, ok := models.ParseRole(req.Role)
	if !ok {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid role")
	}

	if err := h.users.UpdateRole(ctx, id, role); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{"user_id": id, "role": role}).Info("User role updated")
	return SuccessResponse(c, map[string]any{"id": id, "role": role})
}

// Delete removes a user account. Admin only; self-deletion is rejected.
func (h *UserAdminHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.UserAdminHandler.Delete")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}
	if user.Role != models.RoleAdmin {
		return Forbidden("Verboten: Nur Admins dürfen Benutzer löschen.")
	}

	id := c.Param("id")
	if id == user.ID {
		return Forbidden("Verboten: Das eigene Konto kann nicht gelöscht werden.")
	}

	if err := h.users.Delete(ctx, id); err != nil {
		return err
	}
	return NoContentResponse(c)
}
