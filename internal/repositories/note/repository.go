// Package note persists the one-to-one conversation note per company.
package note

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

// Repository handles conversation note persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// GetByCompany returns the company's note or nil when none exists.
func (r *Repository) GetByCompany(ctx context.Context, companyID int64) (*models.ConversationNote, error) {
	ctx, span := tracing.StartSpan(ctx, "note.Repository.GetByCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("id", "company_id", "conversation_hook", "research_result", "updated_by", "updated_at")
	sb.From("conversation_notes")
	sb.Where(sb.Equal("company_id", companyID))

	q, args := sb.Build()
	var note models.ConversationNote
	err := database.FromContext(ctx, r.db).GetContext(ctx, &note, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID}).Error("Failed to get conversation note")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get note: %v", err)
	}
	return &note, nil
}

// GetByCompanyIDs bulk-fetches notes for the listing endpoint.
func (r *Repository) GetByCompanyIDs(ctx context.Context, companyIDs []int64) (map[int64]models.ConversationNote, error) {
	ctx, span := tracing.StartSpan(ctx, "note.Repository.GetByCompanyIDs")
	defer span.End()

	out := make(map[int64]models.ConversationNote, len(companyIDs))
	for _, chunk := range database.ChunkIDs(companyIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("id", "company_id", "conversation_hook", "research_result", "updated_by", "updated_at")
		sb.From("conversation_notes")
		sb.Where(sb.In("company_id", sqlbuilder.Flatten(chunk)...))

		q, args := sb.Build()
		var notes []models.ConversationNote
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &notes, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to bulk get conversation notes")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get notes: %v", err)
		}
		for _, n := range notes {
			out[n.CompanyID] = n
		}
	}
	return out, nil
}

// Upsert writes both note fields for the company, creating the row when
// missing. company_id is unique so concurrent upserts collapse to one row.
func (r *Repository) Upsert(ctx context.Context, companyID int64, hook, research string, updatedBy *string) error {
	ctx, span := tracing.StartSpan(ctx, "note.Repository.Upsert")
	defer span.End()

	ib := database.NewUpsert("conversation_notes")
	ib.Cols("company_id", "conversation_hook", "research_result", "updated_by", "updated_at")
	ib.Values(companyID, hook, research, updatedBy, sqlbuilder.Raw("NOW()"))
	ub := ib.OnConflictUpdate("company_id")
	ub.Set(
		ub.Assign("conversation_hook", database.Excluded("conversation_hook")),
		ub.Assign("research_result", database.Excluded("research_result")),
		ub.Assign("updated_by", database.Excluded("updated_by")),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)

	q, args := ib.Build()
	if _, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID}).Error("Failed to upsert conversation note")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to upsert note: %v", err)
	}
	return nil
}

// EnsureExists creates an empty note when the company has none yet.
func (r *Repository) EnsureExists(ctx context.Context, companyID int64) error {
	ctx, span := tracing.StartSpan(ctx, "note.Repository.EnsureExists")
	defer span.End()

	ib := database.NewUpsert("conversation_notes")
	ib.Cols("company_id", "conversation_hook", "research_result")
	ib.Values(companyID, "", "")
	ib.OnConflictDoNothing()

	q, args := ib.Build()
	if _, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID}).Error("Failed to ensure conversation note")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to ensure note: %v", err)
	}
	return nil
}
