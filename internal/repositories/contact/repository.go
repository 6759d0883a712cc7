// Package contact persists company contacts, including the replace-set
// write path and the single-primary invariant.
package contact

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

var columns = []string{
	"id", "company_id", "first_name", "last_name", "email", "phone",
	"is_primary", "position", "birth_date", "linkedin", "xing", "facebook",
	"notes", "created_at",
}

// Repository handles contact persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// ListByCompany returns the company's contacts, primary first.
func (r *Repository) ListByCompany(ctx context.Context, companyID int64) ([]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.ListByCompany")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("contacts")
	sb.Where(sb.Equal("company_id", companyID))
	sb.OrderBy("is_primary DESC", "id ASC")

	q, args := sb.Build()
	var contacts []models.Contact
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &contacts, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID}).Error("Failed to list contacts")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list contacts: %v", err)
	}
	return contacts, nil
}

// ListByCompanyIDs bulk-fetches contacts for the listing endpoint, chunked
// to respect the parameter limit.
func (r *Repository) ListByCompanyIDs(ctx context.Context, companyIDs []int64) (map[int64][]models.Contact, error) {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.ListByCompanyIDs")
	defer span.End()

	out := make(map[int64][]models.Contact, len(companyIDs))
	for _, chunk := range database.ChunkIDs(companyIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select(columns...)
		sb.From("contacts")
		sb.Where(sb.In("company_id", sqlbuilder.Flatten(chunk)...))
		sb.OrderBy("is_primary DESC", "id ASC")

		q, args := sb.Build()
		var contacts []models.Contact
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &contacts, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to bulk list contacts")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list contacts: %v", err)
		}
		for _, c := range contacts {
			out[c.CompanyID] = append(out[c.CompanyID], c)
		}
	}
	return out, nil
}

// Insert creates the contact. When the contact is primary, siblings are
// demoted first so at most one primary exists per company.
func (r *Repository) Insert(ctx context.Context, contact *models.Contact) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Insert")
	defer span.End()

	if contact.IsPrimary {
		if err := r.demoteSiblings(ctx, contact.CompanyID, 0); err != nil {
			return err
		}
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("contacts")
	ib.Cols("company_id", "first_name", "last_name", "email", "phone",
		"is_primary", "position", "birth_date", "linkedin", "xing", "facebook", "notes")
	ib.Values(contact.CompanyID, contact.FirstName, contact.LastName, contact.Email,
		contact.Phone, contact.IsPrimary, contact.Position, contact.BirthDate,
		contact.LinkedIn, contact.Xing, contact.Facebook, contact.Notes)
	ib.Returning("id", "created_at")

	q, args := ib.Build()
	row := database.FromContext(ctx, r.db).QueryRowxContext(ctx, q, args...)
	if err := row.Scan(&contact.ID, &contact.CreatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": contact.CompanyID}).Error("Failed to insert contact")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert contact: %v", err)
	}
	return nil
}

// Update overwrites the contact's fields. A contact promoted to primary
// demotes its siblings.
func (r *Repository) Update(ctx context.Context, contact *models.Contact) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.Update")
	defer span.End()

	if contact.IsPrimary {
		if err := r.demoteSiblings(ctx, contact.CompanyID, contact.ID); err != nil {
			return err
		}
	}

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("contacts")
	ub.Set(
		ub.Assign("first_name", contact.FirstName),
		ub.Assign("last_name", contact.LastName),
		ub.Assign("email", contact.Email),
		ub.Assign("phone", contact.Phone),
		ub.Assign("is_primary", contact.IsPrimary),
		ub.Assign("position", contact.Position),
		ub.Assign("birth_date", contact.BirthDate),
		ub.Assign("linkedin", contact.LinkedIn),
		ub.Assign("xing", contact.Xing),
		ub.Assign("facebook", contact.Facebook),
		ub.Assign("notes", contact.Notes),
	)
	ub.Where(ub.Equal("id", contact.ID))
	ub.Where(ub.Equal("company_id", contact.CompanyID))

	q, args := ub.Build()
	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"contact_id": contact.ID}).Error("Failed to update contact")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update contact: %v", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "contact %d not found", contact.ID)
	}
	return nil
}

// DeleteMissing removes the company's contacts whose IDs are not in keep.
// An empty keep list removes all of them.
func (r *Repository) DeleteMissing(ctx context.Context, companyID int64, keep []int64) error {
	ctx, span := tracing.StartSpan(ctx, "contact.Repository.DeleteMissing")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("contacts")
	db.Where(db.Equal("company_id", companyID))
	if len(keep) > 0 {
		db.Where(db.NotIn("id", sqlbuilder.Flatten(keep)...))
	}

	q, args := db.Build()
	if _, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID}).Error("Failed to delete contacts")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete contacts: %v", err)
	}
	return nil
}

func (r *Repository) demoteSiblings(ctx context.Context, companyID, exceptID int64) error {
	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("contacts")
	ub.Set(ub.Assign("is_primary", false))
	ub.Where(ub.Equal("company_id", companyID))
	ub.Where(ub.Equal("is_primary", true))
	if exceptID != 0 {
		ub.Where(ub.NotEqual("id", exceptID))
	}

	q, args := ub.Build()
	if _, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": companyID}).Error("Failed to demote primary contacts")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to demote primary contacts: %v", err)
	}
	return nil
}
