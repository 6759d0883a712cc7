package handlers

import (
	"context"

	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// TeamStore is the team persistence surface.
type TeamStore interface {
	ListWithMembers(ctx context.Context) ([]models.Team, map[int64][]models.TeamMemberInfo, error)
	TeamIDsLedBy(ctx context.Context, userID string) ([]int64, error)
}

// UserNameResolver bulk-resolves display names.
type UserNameResolver interface {
	NamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

// TeamHandler serves the team listing. Admins see every team, teamleads the
// teams they lead, agents none.
type TeamHandler struct {
	teams  TeamStore
	users  UserNameResolver
	logger ectologger.Logger
}

func NewTeamHandler(teams TeamStore, users UserNameResolver, logger ectologger.Logger) *TeamHandler {
	return &TeamHandler{teams: teams, users: users, logger: logger}
}

// RegisterRoutes registers team routes
func (h *TeamHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/teams", h.List)
}

// List returns the caller's visible teams with lead and member details.
func (h *TeamHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.TeamHandler.List")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAgent {
		return SuccessResponse(c, []models.TeamResponse{})
	}

	teams, members, err := h.teams.ListWithMembers(ctx)
	if err != nil {
		return err
	}

	if user.Role == models.RoleTeamlead {
		led, err := h.teams.TeamIDsLedBy(ctx, user.ID)
		if err != nil {
			return err
		}
		visible := teams[:0]
		for _, t := range teams {
			if ectolinq.Contains(led, t.ID) {
				visible = append(visible, t)
			}
		}
		teams = visible
	}

	leadIDs := make([]string, 0, len(teams))
	for _, t := range teams {
		if t.TeamleadID != nil {
			leadIDs = append(leadIDs, *t.TeamleadID)
		}
	}
	leadNames, err := h.users.NamesByIDs(ctx, leadIDs)
	if err != nil {
		return err
	}

	out := make([]models.TeamResponse, len(teams))
	for i, t := range teams {
		resp := models.TeamResponse{
			ID:         t.ID,
			Name:       t.Name,
			TeamleadID: t.TeamleadID,
			Members:    members[t.ID],
		}
		if resp.Members == nil {
			resp.Members = []models.TeamMemberInfo{}
		}
		if t.TeamleadID != nil {
			if name, ok := leadNames[*t.TeamleadID]; ok {
				resp.TeamleadName = &name
			}
		}
		out[i] = resp
	}
	return SuccessResponse(c, out)
}
