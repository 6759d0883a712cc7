// Package changelogstore persists the append-only company change log.
package changelogstore

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

// Repository handles change log persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Insert appends one entry.
func (r *Repository) Insert(ctx context.Context, entry models.ChangeLogEntry) error {
	ctx, span := tracing.StartSpan(ctx, "changelogstore.Repository.Insert")
	defer span.End()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("company_change_log")
	ib.Cols("company_id", "entity_type", "entity_id", "action", "label", "old_value", "new_value", "user_id")
	ib.Values(entry.CompanyID, entry.EntityType, entry.EntityID, entry.Action,
		entry.Label, entry.OldValue, entry.NewValue, entry.UserID)

	q, args := ib.Build()
	if _, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert change log entry: %v", err)
	}
	return nil
}

// ListByCompany returns the company's entries newest-first, joined with the
// actor's display name.
func (r *Repository) ListByCompany(ctx context.Context, companyID int64, limit int) ([]models.ChangeLogResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "changelogstore.Repository.ListByCompany")
	defer span.End()

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"l.id", "l.entity_type", "l.entity_id", "l.action", "l.label",
		"l.old_value", "l.new_value", "l.user_id", "u.name AS user_name", "l.created_at",
	)
	sb.From("company_change_log l")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "users u", "u.id = l.user_id")
	sb.Where(sb.Equal("l.company_id", companyID))
	sb.OrderBy("l.created_at DESC", "l.id DESC")
	sb.Limit(limit)

	q, args := sb.Build()
	var rows []changeLogRow
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID}).Error("Failed to list change log")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list change log: %v", err)
	}

	out := make([]models.ChangeLogResponse, len(rows))
	for i, row := range rows {
		out[i] = models.ChangeLogResponse{
			ID:         row.ID,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Action:     row.Action,
			Label:      row.Label,
			OldValue:   row.OldValue,
			NewValue:   row.NewValue,
			UserID:     row.UserID,
			UserName:   row.UserName,
			CreatedAt:  row.CreatedAt,
		}
	}
	return out, nil
}

// ListByUser returns the entries authored by the user newest-first. Feeds
// the per-agent audit view.
func (r *Repository) ListByUser(ctx context.Context, userID string, limit int) ([]models.ChangeLogResponse, error) {
	ctx, span := tracing.StartSpan(ctx, "changelogstore.Repository.ListByUser")
	defer span.End()

	if limit <= 0 || limit > 500 {
		limit = 100
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"l.id", "l.company_id", "l.entity_type", "l.entity_id", "l.action", "l.label",
		"l.old_value", "l.new_value", "l.user_id", "u.name AS user_name", "l.created_at",
	)
	sb.From("company_change_log l")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "users u", "u.id = l.user_id")
	sb.Where(sb.Equal("l.user_id", userID))
	sb.OrderBy("l.created_at DESC", "l.id DESC")
	sb.Limit(limit)

	q, args := sb.Build()
	var rows []changeLogRow
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": userID}).Error("Failed to list change log by user")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list change log: %v", err)
	}

	out := make([]models.ChangeLogResponse, len(rows))
	for i, row := range rows {
		out[i] = models.ChangeLogResponse{
			ID:         row.ID,
			CompanyID:  row.CompanyID,
			EntityType: row.EntityType,
			EntityID:   row.EntityID,
			Action:     row.Action,
			Label:      row.Label,
			OldValue:   row.OldValue,
			NewValue:   row.NewValue,
			UserID:     row.UserID,
			UserName:   row.UserName,
			CreatedAt:  row.CreatedAt,
		}
	}
	return out, nil
}

type changeLogRow struct {
	models.ChangeLogEntry
	UserName *string `db:"user_name"`
}
