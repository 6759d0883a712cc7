// Package user persists user accounts and role administration.
package user

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

var columns = []string{"id", "email", "name", "role", "avatar", "created_at", "updated_at"}

// Repository handles user persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// GetByID returns the user or a 404.
func (r *Repository) GetByID(ctx context.Context, id string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("users")
	sb.Where(sb.Equal("id", id))

	q, args := sb.Build()
	var user models.User
	if err := database.FromContext(ctx, r.db).GetContext(ctx, &user, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "user %s not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": id}).Error("Failed to get user")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get user: %v", err)
	}
	return &user, nil
}

// GetByEmail returns the user matching the email, nil when absent.
func (r *Repository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.GetByEmail")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("users")
	sb.Where("LOWER(email) = LOWER(" + sb.Var(email) + ")")
	sb.Limit(1)

	q, args := sb.Build()
	var user models.User
	err := database.FromContext(ctx, r.db).GetContext(ctx, &user, q, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to get user by email")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get user: %v", err)
	}
	return &user, nil
}

// List returns all users ordered by name.
func (r *Repository) List(ctx context.Context) ([]models.User, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.List")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("users")
	sb.OrderBy("name ASC")

	q, args := sb.Build()
	var users []models.User
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &users, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list users")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list users: %v", err)
	}
	return users, nil
}

// ListAssignable returns users an import or reassignment may target for the
// given caller: admins see everyone, teamleads see themselves and the
// members of teams they lead.
func (r *Repository) ListAssignable(ctx context.Context, caller models.User) ([]models.AssignableUser, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.ListAssignable")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select("u.id", "u.name", "u.email", "u.role")
	sb.From("users u")
	if caller.Role != models.RoleAdmin {
		sb.Where(sb.Or(
			sb.Equal("u.id", caller.ID),
			"EXISTS (SELECT 1 FROM team_members tm JOIN teams tme ON tme.id = tm.team_id"+
				" WHERE tm.user_id = u.id AND tme.teamlead_id = "+sb.Var(caller.ID)+")",
		))
	}
	sb.OrderBy("u.name ASC")

	q, args := sb.Build()
	var users []models.AssignableUser
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &users, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list assignable users")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list assignable users: %v", err)
	}
	return users, nil
}

// UpdateRole sets the user's role.
func (r *Repository) UpdateRole(ctx context.Context, id string, role models.Role) error {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.UpdateRole")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("users")
	ub.Set(
		ub.Assign("role", string(role)),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ub.Where(ub.Equal("id", id))

	q, args := ub.Build()
	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": id, "role": role}).Error("Failed to update user role")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update role: %v", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "user %s not found", id)
	}
	return nil
}

// Delete removes the user account. Team memberships cascade; assignments and
// tasks keep their rows with the user reference nulled by the schema.
func (r *Repository) Delete(ctx context.Context, id string) error {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.Delete")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("users")
	db.Where(db.Equal("id", id))

	q, args := db.Build()
	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"user_id": id}).Error("Failed to delete user")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete user: %v", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "user %s not found", id)
	}
	return nil
}

// NamesByIDs bulk-resolves display names, chunked.
func (r *Repository) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	ctx, span := tracing.StartSpan(ctx, "user.Repository.NamesByIDs")
	defer span.End()

	out := make(map[string]string, len(ids))
	for _, chunk := range database.ChunkIDs(ids, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select("id", "name")
		sb.From("users")
		sb.Where(sb.In("id", sqlbuilder.Flatten(chunk)...))

		q, args := sb.Build()
		var rows []struct {
			ID   string `db:"id"`
			Name string `db:"name"`
		}
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to resolve user names")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to resolve user names: %v", err)
		}
		for _, row := range rows {
			out[row.ID] = row.Name
		}
	}
	return out, nil
}
