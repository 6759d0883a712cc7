// Package importlog persists bulk-import summary rows.
package importlog

import (
	"context"
	"database/sql"
	"errors"
	"net/http"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// Repository handles import log persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Insert creates the summary row up front and backfills its ID.
func (r *Repository) Insert(ctx context.Context, log *models.ImportLog) error {
	ctx, span := tracing.StartSpan(ctx, "importlog.Repository.Insert")
	defer span.End()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("import_logs")
	ib.Cols("file_name", "project_name", "imported_by", "target_team_id", "target_agent_id",
		"total_rows", "success_count", "failed_count", "created_count", "updated_count", "assigned_count")
	ib.Values(log.FileName, log.ProjectName, log.ImportedBy, log.TargetTeamID, log.TargetAgentID,
		log.TotalRows, log.SuccessCount, log.FailedCount, log.CreatedCount, log.UpdatedCount, log.AssignedCount)
	ib.Returning("id", "created_at")

	q, args := ib.Build()
	row := database.FromContext(ctx, r.db).QueryRowxContext(ctx, q, args...)
	if err := row.Scan(&log.ID, &log.CreatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to insert import log")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert import log: %v", err)
	}
	return nil
}

// UpdateTallies writes the final counts after the batch completed.
func (r *Repository) UpdateTallies(ctx context.Context, id int64, result models.ImportResult) error {
	ctx, span := tracing.StartSpan(ctx, "importlog.Repository.UpdateTallies")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("import_logs")
	ub.Set(
		ub.Assign("success_count", result.Success),
		ub.Assign("failed_count", result.Failed),
		ub.Assign("created_count", result.Created),
		ub.Assign("updated_count", result.Updated),
		ub.Assign("assigned_count", result.Assigned),
	)
	ub.Where(ub.Equal("id", id))

	q, args := ub.Build()
	if _, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"import_log_id": id}).Error("Failed to update import log tallies")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update import log: %v", err)
	}
	return nil
}

// GetByID returns the log or a 404.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.ImportLog, error) {
	ctx, span := tracing.StartSpan(ctx, "importlog.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "file_name", "project_name", "imported_by", "target_team_id", "target_agent_id",
		"total_rows", "success_count", "failed_count", "created_count", "updated_count", "assigned_count", "created_at")
	sb.From("import_logs")
	sb.Where(sb.Equal("id", id))

	q, args := sb.Build()
	var log models.ImportLog
	if err := database.FromContext(ctx, r.db).GetContext(ctx, &log, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "import log %d not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"import_log_id": id}).Error("Failed to get import log")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get import log: %v", err)
	}
	return &log, nil
}

// List returns all logs newest-first joined with the importer's name.
func (r *Repository) List(ctx context.Context) ([]models.ImportLogResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "importlog.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"l.id", "l.file_name", "l.project_name", "l.imported_by",
		"u.name AS importer_name", "l.target_team_id", "l.target_agent_id",
		"l.total_rows", "l.success_count", "l.failed_count",
		"l.created_count", "l.updated_count", "l.assigned_count", "l.created_at",
	)
	sb.From("import_logs l")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "users u", "u.id = l.imported_by")
	sb.OrderBy("l.created_at DESC")

	q, args := sb.Build()
	var rows []importLogRow
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list import logs")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list import logs: %v", err)
	}

	out := make([]models.ImportLogResponse, len(rows))
	for i, row := range rows {
		out[i] = models.ImportLogResponse{
			ID:            row.ID,
			FileName:      row.FileName,
			ProjectName:   row.ProjectName,
			ImportedBy:    row.ImportedBy,
			ImporterName:  row.ImporterName,
			TargetTeamID:  row.TargetTeamID,
			TargetAgentID: row.TargetAgentID,
			TotalRows:     row.TotalRows,
			SuccessCount:  row.SuccessCount,
			FailedCount:   row.FailedCount,
			CreatedCount:  row.CreatedCount,
			UpdatedCount:  row.UpdatedCount,
			AssignedCount: row.AssignedCount,
			CreatedAt:     row.CreatedAt,
		}
	}
	return out, nil
}

// UpdateProjectName renames the project on the log row.
func (r *Repository) UpdateProjectName(ctx context.Context, id int64, projectName string) error {
	ctx, span := tracing.StartSpan(ctx, "importlog.Repository.UpdateProjectName")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("import_logs")
	ub.Set(ub.Assign("project_name", projectName))
	ub.Where(ub.Equal("id", id))

	q, args := ub.Build()
	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"import_log_id": id}).Error("Failed to rename import log project")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to rename import log: %v", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "import log %d not found", id)
	}
	return nil
}

// Delete removes the log row itself. The companies created by the run are
// deleted separately before this.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "importlog.Repository.Delete")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("import_logs")
	db.Where(db.Equal("id", id))

	q, args := db.Build()
	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"import_log_id": id}).Error("Failed to delete import log")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete import log: %v", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "import log %d not found", id)
	}
	return nil
}

type importLogRow struct {
	models.ImportLog
	ImporterName *string `db:"importer_name"`
}
