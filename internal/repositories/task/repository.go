// Package task persists tasks and serves the scoped task listing.
package task

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/huandu/go-sqlbuilder"
	"github.com/lib/pq"

	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/query"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

var columns = []string{
	"id", "company_id", "title", "status", "priority", "due_date",
	"follow_up_date", "assigned_by", "assigned_to", "description",
	"completed_at", "created_at", "updated_at",
}

// Repository handles task persistence
type Repository struct {
	db     database.DB
	logger ectologger.Logger
}

func New(db database.DB, logger ectologger.Logger) *Repository {
	return &Repository{db: db, logger: logger}
}

// GetByID returns the task or a 404.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.Task, error) {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.GetByID")
	defer span.End()

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(columns...)
	sb.From("tasks")
	sb.Where(sb.Equal("id", id))

	q, args := sb.Build()
	var task models.Task
	if err := database.FromContext(ctx, r.db).GetContext(ctx, &task, q, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, httperror.NewHTTPErrorf(http.StatusNotFound, "task %d not found", id)
		}
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"task_id": id}).Error("Failed to get task")
		return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to get task: %v", err)
	}
	return &task, nil
}

// List returns the page of tasks whose assignee lies within assigneeIDs
// (nil means no assignee restriction, i.e. admin) matching the filters,
// joined with company and user display names, plus the total count.
func (r *Repository) List(ctx context.Context, assigneeIDs []string, filters query.TaskFilters, page, limit int) ([]models.TaskResponse, int, error) {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.List")
	defer span.End()

	build := func(sb *sqlbuilder.SelectBuilder) {
		sb.From("tasks t")
		sb.JoinWithOption(sqlbuilder.LeftJoin, "companies c", "c.id = t.company_id")
		if assigneeIDs != nil {
			sb.Where("t.assigned_to = ANY(" + sb.Var(pq.Array(assigneeIDs)) + ")")
		}
		query.ApplyTaskFilters(sb, filters, time.Now())
	}

	count := sqlbuilder.PostgreSQL.NewSelectBuilder()
	count.Select("COUNT(*)")
	build(count)

	q, args := count.Build()
	var total int
	if err := database.FromContext(ctx, r.db).GetContext(ctx, &total, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to count tasks")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count tasks: %v", err)
	}
	if total == 0 {
		return nil, 0, nil
	}

	sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
	sb.Select(
		"t.id", "t.company_id", "COALESCE(c.name, '') AS company_name",
		"t.title", "t.status", "t.priority", "t.due_date", "t.follow_up_date",
		"t.assigned_to", "ua.name AS assigned_to_name",
		"t.assigned_by", "ub.name AS assigned_by_name",
		"COALESCE(t.description, '') AS description", "t.completed_at", "t.created_at",
	)
	build(sb)
	sb.JoinWithOption(sqlbuilder.LeftJoin, "users ua", "ua.id = t.assigned_to")
	sb.JoinWithOption(sqlbuilder.LeftJoin, "users ub", "ub.id = t.assigned_by")
	sb.OrderBy("t.created_at DESC")
	query.Paginate(sb, page, limit)

	q, args = sb.Build()
	var rows []taskRow
	if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to list tasks")
		return nil, 0, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list tasks: %v", err)
	}

	out := make([]models.TaskResponse, len(rows))
	for i, row := range rows {
		out[i] = row.toResponse()
	}
	return out, total, nil
}

// OpenByCompanyIDs bulk-fetches non-done tasks for the customer listing.
func (r *Repository) OpenByCompanyIDs(ctx context.Context, companyIDs []int64) (map[int64][]models.Task, error) {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.OpenByCompanyIDs")
	defer span.End()

	out := make(map[int64][]models.Task, len(companyIDs))
	for _, chunk := range database.ChunkIDs(companyIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select(columns...)
		sb.From("tasks")
		sb.Where(sb.In("company_id", sqlbuilder.Flatten(chunk)...))
		sb.Where(sb.NotEqual("status", models.TaskStatusDone))
		sb.OrderBy("created_at DESC")

		q, args := sb.Build()
		var tasks []models.Task
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &tasks, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to bulk list open tasks")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to list tasks: %v", err)
		}
		for _, t := range tasks {
			out[t.CompanyID] = append(out[t.CompanyID], t)
		}
	}
	return out, nil
}

// CountByAssignees returns per-assignee task tallies, total and completed.
// Feeds the analyse KPIs.
func (r *Repository) CountByAssignees(ctx context.Context, assigneeIDs []string) (map[string]models.TaskTally, error) {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.CountByAssignees")
	defer span.End()

	out := make(map[string]models.TaskTally, len(assigneeIDs))
	for _, chunk := range database.ChunkIDs(assigneeIDs, database.MaxQueryParams) {
		sb := sqlbuilder.PostgreSQL.NewSelectBuilder()
		sb.Select(
			"assigned_to",
			"COUNT(*) AS total",
			"COUNT(*) FILTER (WHERE status = "+sb.Var(models.TaskStatusDone)+") AS completed",
		)
		sb.From("tasks")
		sb.Where(sb.In("assigned_to", sqlbuilder.Flatten(chunk)...))
		sb.GroupBy("assigned_to")

		q, args := sb.Build()
		var rows []struct {
			AssignedTo string `db:"assigned_to"`
			Total      int    `db:"total"`
			Completed  int    `db:"completed"`
		}
		if err := database.FromContext(ctx, r.db).SelectContext(ctx, &rows, q, args...); err != nil {
			r.logger.WithContext(ctx).WithError(err).Error("Failed to count tasks by assignee")
			return nil, httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to count tasks: %v", err)
		}
		for _, row := range rows {
			out[row.AssignedTo] = models.TaskTally{Total: row.Total, Completed: row.Completed}
		}
	}
	return out, nil
}

// Insert creates the task. completed_at is stamped when the task arrives
// already done.
func (r *Repository) Insert(ctx context.Context, task *models.Task) error {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.Insert")
	defer span.End()

	if task.Status == models.TaskStatusDone && task.CompletedAt == nil {
		now := time.Now()
		task.CompletedAt = &now
	}

	ib := sqlbuilder.PostgreSQL.NewInsertBuilder()
	ib.InsertInto("tasks")
	ib.Cols("company_id", "title", "status", "priority", "due_date",
		"follow_up_date", "assigned_by", "assigned_to", "description", "completed_at")
	ib.Values(task.CompanyID, task.Title, task.Status, task.Priority, task.DueDate,
		task.FollowUpDate, task.AssignedBy, task.AssignedTo, task.Description, task.CompletedAt)
	ib.Returning("id", "created_at")

	q, args := ib.Build()
	row := database.FromContext(ctx, r.db).QueryRowxContext(ctx, q, args...)
	if err := row.Scan(&task.ID, &task.CreatedAt); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"company_id": task.CompanyID}).Error("Failed to insert task")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to insert task: %v", err)
	}
	return nil
}

// Update overwrites the task's mutable fields.
func (r *Repository) Update(ctx context.Context, task *models.Task) error {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.Update")
	defer span.End()

	ub := sqlbuilder.PostgreSQL.NewUpdateBuilder()
	ub.Update("tasks")
	ub.Set(
		ub.Assign("title", task.Title),
		ub.Assign("company_id", task.CompanyID),
		ub.Assign("status", task.Status),
		ub.Assign("priority", task.Priority),
		ub.Assign("due_date", task.DueDate),
		ub.Assign("follow_up_date", task.FollowUpDate),
		ub.Assign("assigned_to", task.AssignedTo),
		ub.Assign("description", task.Description),
		ub.Assign("completed_at", task.CompletedAt),
		ub.Assign("updated_at", sqlbuilder.Raw("NOW()")),
	)
	ub.Where(ub.Equal("id", task.ID))

	q, args := ub.Build()
	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"task_id": task.ID}).Error("Failed to update task")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to update task: %v", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "task %d not found", task.ID)
	}
	return nil
}

// Delete hard-deletes the task.
func (r *Repository) Delete(ctx context.Context, id int64) error {
	ctx, span := tracing.StartSpan(ctx, "task.Repository.Delete")
	defer span.End()

	db := sqlbuilder.PostgreSQL.NewDeleteBuilder()
	db.DeleteFrom("tasks")
	db.Where(db.Equal("id", id))

	q, args := db.Build()
	result, err := database.FromContext(ctx, r.db).ExecContext(ctx, q, args...)
	if err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{"task_id": id}).Error("Failed to delete task")
		return httperror.NewHTTPErrorf(http.StatusInternalServerError, "failed to delete task: %v", err)
	}
	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		return httperror.NewHTTPErrorf(http.StatusNotFound, "task %d not found", id)
	}
	return nil
}

// taskRow is the joined listing row.
type taskRow struct {
	ID             int64      `db:"id"`
	CompanyID      int64      `db:"company_id"`
	CompanyName    string     `db:"company_name"`
	Title          string     `db:"title"`
	Status         string     `db:"status"`
	Priority       string     `db:"priority"`
	DueDate        *time.Time `db:"due_date"`
	FollowUpDate   *time.Time `db:"follow_up_date"`
	AssignedTo     *string    `db:"assigned_to"`
	AssignedToName *string    `db:"assigned_to_name"`
	AssignedBy     *string    `db:"assigned_by"`
	AssignedByName *string    `db:"assigned_by_name"`
	Description    string     `db:"description"`
	CompletedAt    *time.Time `db:"completed_at"`
	CreatedAt      time.Time  `db:"created_at"`
}

func (row taskRow) toResponse() models.TaskResponse {
	return models.TaskResponse{
		ID:             row.ID,
		CompanyID:      row.CompanyID,
		CompanyName:    row.CompanyName,
		Title:          row.Title,
		Status:         row.Status,
		Priority:       row.Priority,
		DueDate:        row.DueDate,
		FollowUpDate:   row.FollowUpDate,
		AssignedToID:   row.AssignedTo,
		AssignedToName: row.AssignedToName,
		AssignedByID:   row.AssignedBy,
		AssignedByName: row.AssignedByName,
		Description:    row.Description,
		CompletedAt:    row.CompletedAt,
		CreatedAt:      row.CreatedAt,
	}
}
