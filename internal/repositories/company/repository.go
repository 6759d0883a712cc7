// Package company persists companies and serves the role-scoped listing.
package company

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/query"
	"github.com/Ramsey-B/dahlia/pkg/scope"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

var columns = []string{
	"id", "name", "project", "legal_form", "industry", "employee_count",
	"website", "phone", "email", "street", "postal_code", "city", "state",
	"founding_date", "description", "opening_hours", "revenue_size",
	"created_at", "updated_at",
}

// Repository handles company persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// GetByID returns the company or a 404.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("companies")
	sb.Where(sb.Equal("id", id))

	q, args := sb.Build()
	var company models.Company
	if err := database.FromContext(ctx, r.db).GetContext(ctx, &company, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "company %d not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": id}).Error("Failed to get company")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get company: %v", err)
	}
	return &company, nil
}

// FindByName matches case- and whitespace-insensitively on the exact name.
// Returns nil, nil when no company matches.
func (r *Repository) FindByName(ctx context.Context, name string) (*models.Company, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.FindByName")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("companies")
	sb.Where(fmt.Sprintf("LOWER(TRIM(name)) = LOWER(TRIM(%s))", sb.Var(name)))
	sb.Limit(1)

	q, args := sb.Build()
	var company models.Company
	err := database.FromContext(ctx, r.db).GetContext(ctx, &company, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name": name}).Error("Failed to find company by name")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to find company: %v", err)
	}
	return &company, nil
}

// List returns the page of companies visible through s that match the
// filters, plus the total count. Callers must short-circuit on empty scope;
// List refuses to run one.
func (r *Repository) List(ctx context.Context, s scope.Scope, filters query.CompanyFilters, page, limit int) ([]models.Company, int, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.List")
	defer span.End()

	count := sqlbuilder.PostgreSQL.NewSelectBuilder()
	count.Select("COUNT(*)")
	count.From("companies c")
	query.ApplyScope(count, "c.id", s)
	query.ApplyCompanyFilters(count, "c.id", filters, time.Now())

	q, args := count.Build()
	var total int
	if err := database.FromContext(ctx, r.db).GetContext(ctx, &total, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count companies")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count companies: %v", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	cols := make([]string, len(columns))
	for i, c := range columns {
		cols[i] = "c." + c
	}
	sb.Select(cols...)
	sb.From("companies c")
	query.ApplyScope(sb, "c.id", s)
	query.ApplyCompanyFilters(sb, "c.id", filters, time.Now())
	sb.OrderBy("c.created_at DESC")
	query.Paginate(sb, page, limit)

	q, args = sb.Build()
	var companies []models.Company
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &companies, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list companies")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list companies: %v", err)
	}
	return companies, total, nil
}

// Insert creates the company and backfills its generated ID.
func (r *Repository) Insert(ctx context.Context, company *models.Company) error {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.Insert")
	defer span.End()

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("companies")
	ib.Cols("name", "project", "legal_form", "industry", "employee_count",
		"website", "phone", "email", "street", "postal_code", "city", "state",
		"founding_date", "description", "opening_hours", "revenue_size")
	ib.Values(company.Name, company.Project, company.LegalForm, company.Industry,
		company.EmployeeCount, company.Website, company.Phone, company.Email,
		company.Street, company.PostalCode, company.City, company.State,
		company.FoundingDate, company.Description, company.OpeningHours, company.RevenueSize)
	ib.Returning("id", "created_at")

	q, args := ib.Build()
	row := database.FromContext(ctx, r.db).QueryRowxContext(ctx, q, args...)
	if err := row.Scan(&company.ID, &company.CreatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"name": company.Name}).Error("Failed to insert company")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert company: %v", err)
	}
	return nil
}

// Update overwrites all mutable fields, last-write-wins.
func (r *Repository) Update(ctx context.Context, company *models.Company) error {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.Update")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("companies")
	ub.Set(
		ub.Assign("name", company.Name),
		ub.Assign("project", company.Project),
		ub.Assign("legal_form", company.LegalForm),
		ub.Assign("industry", company.Industry),
		ub.Assign("employee_count", company.EmployeeCount),
		ub.Assign("website", company.Website),
		ub.Assign("phone", company.Phone),
		ub.Assign("email", company.Email),
		ub.Assign("street", company.Street),
		ub.Assign("postal_code", company.PostalCode),
		ub.Assign("city", company.City),
		ub.Assign("state", company.State),
		ub.Assign("founding_date", company.FoundingDate),
		ub.Assign("description", company.Description),
		ub.Assign("opening_hours", company.OpeningHours),
		ub.Assign("revenue_size", company.RevenueSize),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ub.Where(ub.Equal("id", company.ID))

	q, args := ub.Build()
	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": company.ID}).Error("Failed to update company")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update company: %v", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "company %d not found", company.ID)
	}
	return nil
}

// Delete removes the company. Contacts, notes, assignments, tasks,
// activities and change-log entries cascade at the schema level.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.Delete")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("companies")
	db.Where(db.Equal("id", id))

	q, args := db.Build()
	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": id}).Error("Failed to delete company")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete company: %v", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "company %d not found", id)
	}
	return nil
}

// UpdateProjectByIDs sets the project label on companies in bulk, chunked.
// Used when an import log is renamed.
func (r *Repository) UpdateProjectByIDs(ctx context.Context, ids []int64, project string) error {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.UpdateProjectByIDs")
	defer span.End()

	for _, chunk := range database.ChunkIDs(ids, database.MaxQueryParams) {
		ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
		ub.Update("companies")
		ub.Set(
			ub.Assign("project", project),
			ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
		)
		ub.Where(ub.In("id", sqlbuilder.Flatten(chunk)...))

		q, args := ub.Build()
		if _, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to bulk update company project")
			return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update companies: %v", err)
		}
	}
	return nil
}

// DeleteByIDs removes companies in bulk, chunked to respect the parameter
// limit. Used by import-log deletion.
func (r *Repository) DeleteByIDs(ctx context.Context, ids []int64) (int64, error) {
	ctx, span := tracing.StartSpan(ctx, "company.Repository.DeleteByIDs")
	defer span.End()

	var deleted int64
	for _, chunk := range database.ChunkIDs(ids, database.MaxQueryParams) {
		db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
		db.DeleteFrom("companies")
		db.Where(db.In("id", sqlbuilder.Flatten(chunk)...))

		q, args := db.Build()
		result, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...)
		if err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to bulk delete companies")
			return deleted, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete companies: %v", err)
		}
		if rows, err := result.RowsAffected(); err == nil {
			deleted += rows
		}
	}
	return deleted, nil
}
