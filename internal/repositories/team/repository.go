// Package team persists teams and membership, and answers the leadership
// questions the visibility resolver asks.
package team

import (
	"context"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// Repository handles team persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// List returns all teams ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.Team, error) {
	ctx, span := tracing.StartSpan(ctx, "team.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "name", "teamlead_id")
	sb.From("teams")
	sb.OrderBy("name ASC")

	q, args := sb.Build()
	var teams []models.Team
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &teams, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list teams")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list teams: %v", err)
	}
	return teams, nil
}

// TeamIDsLedBy returns the teams the user leads.
func (r *Repository) TeamIDsLedBy(ctx context.Context, userID string) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "team.Repository.TeamIDsLedBy")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id")
	sb.From("teams")
	sb.Where(sb.Equal("teamlead_id", userID))

	q, args := sb.Build()
	var ids []int64
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &ids, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to resolve led teams")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve led teams: %v", err)
	}
	return ids, nil
}

// MemberIDs returns the union of user IDs belonging to the given teams.
func (r *Repository) MemberIDs(ctx context.Context, teamIDs []int64) ([]string, error) {
	ctx, span := tracing.StartSpan(ctx, "team.Repository.MemberIDs")
	defer span.End()

	if len(teamIDs) == 0 {
		return nil, nil
	}

	var out []string
	for _, chunk := range database.ChunkIDs(teamIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("DISTINCT user_id")
		sb.From("team_members")
		sb.Where(sb.In("team_id", sqlbuilder.Flatten(chunk)...))

		q, args := sb.Build()
		var ids []string
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &ids, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to resolve team members")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve team members: %v", err)
		}
		out = append(out, ids...)
	}
	return out, nil
}

// ListWithMembers returns all teams with their member rows, for the teams
// endpoint.
func (r *Repository) ListWithMembers(ctx context.Context) ([]models.Team, map[int64][]models.TeamMemberInfo, error) {
	ctx, span := tracing.StartSpan(ctx, "team.Repository.ListWithMembers")
	defer span.End()

	teams, err := r.List(ctx)
	if err != nil {
		return nil, nil, err
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("tm.team_id", "tm.user_id", "u.name", "u.email", "u.role")
	sb.From("team_members tm")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "users u", "u.id = tm.user_id")
	sb.OrderBy("u.name ASC")

	q, args := sb.Build()
	var members []models.TeamMemberInfo
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &members, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list team members")
		return nil, nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list team members: %v", err)
	}

	byTeam := make(map[int64][]models.TeamMemberInfo, len(teams))
	for _, m := range members {
		byTeam[m.TeamID] = append(byTeam[m.TeamID], m)
	}
	return teams, byTeam, nil
}
