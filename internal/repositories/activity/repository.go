// Package activity persists agent touch points used by the analytics KPIs.
package activity

import (
	"context"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// Repository handles activity persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// Insert logs one activity.
func (r *Repository) Insert(ctx context.Context, activity *models.Activity) error {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.Insert")
	defer span.End()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("activities")
	ib.Cols("company_id", "contact_id", "user_id", "type", "subject", "content", "started_at", "ended_at")
	ib.Values(activity.CompanyID, activity.ContactID, activity.UserID, activity.Type,
		activity.Subject, activity.Content, activity.StartedAt, activity.EndedAt)
	ib.Returning("id", "created_at")

	q, args := ib.Build()
	row := database.FromContext(ctx, r.db).QueryRowxContext(ctx, q, args...)
	if err := row.Scan(&activity.ID, &activity.CreatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": activity.CompanyID}).Error("Failed to insert activity")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert activity: %v", err)
	}
	return nil
}

// ListByCompany returns the company's activities newest-first.
func (r *Repository) ListByCompany(ctx context.Context, companyID int64) ([]models.Activity, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.ListByCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "company_id", "contact_id", "user_id", "type", "subject",
		"content", "started_at", "ended_at", "created_at")
	sb.From("activities")
	sb.Where(sb.Equal("company_id", companyID))
	sb.OrderBy("created_at DESC")

	q, args := sb.Build()
	var activities []models.Activity
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &activities, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID}).Error("Failed to list activities")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list activities: %v", err)
	}
	return activities, nil
}

// CountByUserSince tallies activities per user since the cutoff, restricted
// to the given users (chunked). Feeds the analytics KPIs.
func (r *Repository) CountByUserSince(ctx context.Context, userIDs []string, since time.Time) (map[string]int, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.CountByUserSince")
	defer span.End()

	out := make(map[string]int, len(userIDs))
	for _, chunk := range database.ChunkIDs(userIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("user_id", "COUNT(*) AS activity_count")
		sb.From("activities")
		sb.Where(sb.In("user_id", sqlbuilder.Flatten(chunk)...))
		sb.Where(sb.GreaterEqualThan("created_at", since))
		sb.GroupBy("user_id")

		q, args := sb.Build()
		var rows []struct {
			UserID string `db:"user_id"`
			Count  int    `db:"activity_count"`
		}
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to count activities")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count activities: %v", err)
		}
		for _, row := range rows {
			out[row.UserID] = row.Count
		}
	}
	return out, nil
}

// FirstActivityAfterAssignment returns, per company, the earliest activity
// timestamp for companies in the given set (chunked). Feeds the
// reaction-time KPI.
func (r *Repository) FirstActivityByCompany(ctx context.Context, companyIDs []int64) (map[int64]time.Time, error) {
	ctx, span := tracing.StartSpan(ctx, "activity.Repository.FirstActivityByCompany")
	defer span.End()

	out := make(map[int64]time.Time, len(companyIDs))
	for _, chunk := range database.ChunkIDs(companyIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("company_id", "MIN(created_at) AS first_at")
		sb.From("activities")
		sb.Where(sb.In("company_id", sqlbuilder.Flatten(chunk)...))
		sb.GroupBy("company_id")

		q, args := sb.Build()
		var rows []struct {
			CompanyID int64     `db:"company_id"`
			FirstAt   time.Time `db:"first_at"`
		}
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to resolve first activities")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve first activities: %v", err)
		}
		for _, row := range rows {
			out[row.CompanyID] = row.FirstAt
		}
	}
	return out, nil
}
