// Package assignment persists the append-only assignment history. Rows are
// never updated or overwritten; the newest row per company wins.
package assignment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// Repository handles assignment persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Insert appends an assignment row.
func (r *Repository) Insert(ctx context.Context, assignment *models.Assignment) error {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.Insert")
	defer span.End()

	if assignment.AssignedAt.IsZero() {
		assignment.AssignedAt = time.Now()
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("assignments")
	ib.Cols("company_id", "team_id", "agent_id", "status", "assigned_at", "assigned_by", "import_log_id")
	ib.Values(assignment.CompanyID, assignment.TeamID, assignment.AgentID,
		assignment.Status, assignment.AssignedAt, assignment.AssignedBy, assignment.ImportLogID)
	ib.Returning("id")

	q, args := ib.Build()
	row := database.FromContext(ctx, r.db).QueryRowxContext(ctx, q, args...)
	if err := row.Scan(&assignment.ID); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": assignment.CompanyID}).Error("Failed to insert assignment")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert assignment: %v", err)
	}
	return nil
}

// HasAgentAssignment reports whether any assignment row links the agent to
// the company.
func (r *Repository) HasAgentAssignment(ctx context.Context, companyID int64, agentID string) (bool, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.HasAgentAssignment")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("COUNT(*)")
	sb.From("assignments")
	sb.Where(sb.Equal("company_id", companyID))
	sb.Where(sb.Equal("agent_id", agentID))

	q, args := sb.Build()
	var count int
	if err := database.FromContext(ctx, r.db).GetContext(ctx, &count, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID, "agent_id": agentID}).Error("Failed to check agent assignment")
		return false, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to check assignment: %v", err)
	}
	return count > 0, nil
}

// CompanyIDsForAgents returns the companies whose newest assignment routes
// to one of the given agents. Feeds the visibility resolver.
func (r *Repository) CompanyIDsForAgents(ctx context.Context, agentIDs []string) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.CompanyIDsForAgents")
	defer span.End()

	if len(agentIDs) == 0 {
		return nil, nil
	}

	var out []int64
	for _, chunk := range database.ChunkIDs(agentIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("a.company_id")
		sb.From("assignments a")
		sb.Where(sb.In("a.agent_id", sqlbuilder.Flatten(chunk)...))
		sb.Where("a.assigned_at = (SELECT MAX(a2.assigned_at) FROM assignments a2 WHERE a2.company_id = a.company_id)")
		sb.GroupBy("a.company_id")

		q, args := sb.Build()
		var ids []int64
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &ids, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to resolve companies for agents")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve agent scope: %v", err)
		}
		out = append(out, ids...)
	}
	return out, nil
}

// CompanyIDsForTeams returns the companies whose newest assignment routes to
// one of the given teams.
func (r *Repository) CompanyIDsForTeams(ctx context.Context, teamIDs []int64) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.CompanyIDsForTeams")
	defer span.End()

	if len(teamIDs) == 0 {
		return nil, nil
	}

	var out []int64
	for _, chunk := range database.ChunkIDs(teamIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("a.company_id")
		sb.From("assignments a")
		sb.Where(sb.In("a.team_id", sqlbuilder.Flatten(chunk)...))
		sb.Where("a.assigned_at = (SELECT MAX(a2.assigned_at) FROM assignments a2 WHERE a2.company_id = a.company_id)")
		sb.GroupBy("a.company_id")

		q, args := sb.Build()
		var ids []int64
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &ids, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to resolve companies for teams")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve team scope: %v", err)
		}
		out = append(out, ids...)
	}
	return out, nil
}

// LatestByCompanyIDs bulk-fetches the newest assignment per company joined
// with the agent's display name.
func (r *Repository) LatestByCompanyIDs(ctx context.Context, companyIDs []int64) (map[int64]models.LatestAssignment, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.LatestByCompanyIDs")
	defer span.End()

	out := make(map[int64]models.LatestAssignment, len(companyIDs))
	for _, chunk := range database.ChunkIDs(companyIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("a.company_id", "a.team_id", "a.agent_id", "u.name AS agent_name", "a.status")
		sb.From("assignments a")
		sb.JoinWithOption(sqlbuilder.LeftJoin, "users u", "u.id = a.agent_id")
		sb.Where(sb.In("a.company_id", sqlbuilder.Flatten(chunk)...))
		sb.Where("a.assigned_at = (SELECT MAX(a2.assigned_at) FROM assignments a2 WHERE a2.company_id = a.company_id)")

		q, args := sb.Build()
		var rows []models.LatestAssignment
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to bulk get latest assignments")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get assignments: %v", err)
		}
		for _, row := range rows {
			out[row.CompanyID] = row
		}
	}
	return out, nil
}

// CountByAgents tallies assignment rows per agent, chunked. Feeds the
// analyse listing.
func (r *Repository) CountByAgents(ctx context.Context, agentIDs []string) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.CountByAgents")
	defer span.End()

	out := make(map[string]int, len(agentIDs))
	for _, chunk := range database.ChunkIDs(agentIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("agent_id", "COUNT(*) AS assignment_count")
		sb.From("assignments")
		sb.Where(sb.In("agent_id", sqlbuilder.Flatten(chunk)...))
		sb.GroupBy("agent_id")

		q, args := sb.Build()
		var rows []struct {
			AgentID string `db:"agent_id"`
			Count   int    `db:"assignment_count"`
		}
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to count assignments by agent")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count assignments: %v", err)
		}
		for _, row := range rows {
			out[row.AgentID] = row.Count
		}
	}
	return out, nil
}

// FirstAssignedAtForAgent returns, per company, when the agent first got the
// company. Feeds the reaction-time KPI.
func (r *Repository) FirstAssignedAtForAgent(ctx context.Context, agentID string) (map[int64]time.Time, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.FirstAssignedAtForAgent")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("company_id", "MIN(assigned_at) AS assigned_at")
	sb.From("assignments")
	sb.Where(sb.Equal("agent_id", agentID))
	sb.GroupBy("company_id")

	q, args := sb.Build()
	var rows []struct {
		CompanyID  int64     `db:"company_id"`
		AssignedAt time.Time `db:"assigned_at"`
	}
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"agent_id": agentID}).Error("Failed to get first assignment times")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get assignment times: %v", err)
	}

	out := make(map[int64]time.Time, len(rows))
	for _, row := range rows {
		out[row.CompanyID] = row.AssignedAt
	}
	return out, nil
}

// CompanyIDsForImportLog returns the companies whose first assignment row
// came from the given import run. Feeds import-log cascade deletion.
func (r *Repository) CompanyIDsForImportLog(ctx context.Context, importLogID int64) ([]int64, error) {
	ctx, span := tracing.StartSpan(ctx, "assignment.Repository.CompanyIDsForImportLog")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("a.company_id")
	sb.From("assignments a")
	sb.Where(sb.Equal("a.import_log_id", importLogID))
	// Only companies created by this run: their earliest assignment belongs
	// to it. Pre-existing companies merely reassigned by the run are spared.
	sb.Where(fmt.Sprintf(
		"NOT EXISTS (SELECT 1 FROM assignments a2 WHERE a2.company_id = a.company_id AND (a2.import_log_id IS NULL OR a2.import_log_id <> %s) AND a2.assigned_at < a.assigned_at)",
		sb.Var(importLogID),
	))
	sb.GroupBy("a.company_id")

	q, args := sb.Build()
	var ids []int64
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &ids, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"import_log_id": importLogID}).Error("Failed to resolve companies for import log")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve import companies: %v", err)
	}
	return ids, nil
}
