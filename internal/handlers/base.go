// Package handlers exposes the JSON-over-HTTP surface. Every handler struct
// gets its dependencies through its constructor and registers its own routes.
package handlers

import (
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/middleware"
	"github.com/Ramsey-B/dahlia/pkg/models"
)

// ParseID parses an integer ID from a path parameter
func ParseID(c echo.Context, param string) (int64, error) {
	idStr := c.Param(param)
	if idStr == "" {
		return 0, httperror.NewHTTPError(http.StatusBadRequest, "missing "+param)
	}

	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil || id <= 0 {
		return 0, httperror.NewHTTPErrorf(http.StatusBadRequest, "invalid %s: must be a positive integer", param)
	}

	return id, nil
}

// RequireUser extracts the authenticated user attached by the auth
// middleware.
func RequireUser(c echo.Context) (models.User, error) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return models.User{}, httperror.NewHTTPError(http.StatusUnauthorized, "Nicht autorisiert")
	}
	return user, nil
}

// QueryInt reads an integer query parameter, falling back when absent or
// malformed.
func QueryInt(c echo.Context, name string, fallback int) int {
	raw := c.QueryParam(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

// SuccessResponse returns a 200 OK with data
func SuccessResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusOK, data)
}

// CreatedResponse returns a 201 Created with data
func CreatedResponse(c echo.Context, data any) error {
	return c.JSON(http.StatusCreated, data)
}

// NoContentResponse returns a 204 No Content
func NoContentResponse(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

// Forbidden returns a 403 Forbidden error
func Forbidden(message string) error {
	return httperror.NewHTTPError(http.StatusForbidden, message)
}

func strVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
