package handlers

import (
	"context"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/changelog"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/query"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
	"github.com/Ramsey-B/dahlia/pkg/utils"
)

// TaskAssigneeResolver computes whose tasks the caller may see.
type TaskAssigneeResolver interface {
	TaskAssignees(ctx context.Context, user models.User) ([]string, error)
}

// TaskStore is the task persistence surface.
type TaskStore interface {
	GetByID(ctx context.Context, id int64) (*models.Task, error)
	List(ctx context.Context, assigneeIDs []string, filters query.TaskFilters, page, limit int) ([]models.TaskResponse, int, error)
	Insert(ctx context.Context, task *models.Task) error
	Update(ctx context.Context, task *models.Task) error
	Delete(ctx context.Context, id int64) error
}

// CompanyReader looks companies up for task creation.
type CompanyReader interface {
	GetByID(ctx context.Context, id int64) (*models.Company, error)
}

// TaskHandler handles task CRUD.
type TaskHandler struct {
	resolver  TaskAssigneeResolver
	tasks     TaskStore
	companies CompanyReader
	recorder  *changelog.Recorder
	logger    ectologger.Logger
}

func NewTaskHandler(
	resolver TaskAssigneeResolver,
	tasks TaskStore,
	companies CompanyReader,
	recorder *changelog.Recorder,
	logger ectologger.Logger,
) *TaskHandler {
	return &TaskHandler{
		resolver:  resolver,
		tasks:     tasks,
		companies: companies,
		recorder:  recorder,
		logger:    logger,
	}
}

// RegisterRoutes registers task routes
func (h *TaskHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/tasks", h.List)
	g.POST("/tasks", h.Create)
	g.PUT("/tasks/:id", h.Update)
	g.DELETE("/tasks/:id", h.Delete)
}

// List returns the role-scoped, filtered, paginated task listing.
func (h *TaskHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.TaskHandler.List")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	assignees, err := h.resolver.TaskAssignees(ctx, user)
	if err != nil {
		return err
	}

	filters := query.TaskFilters{
		Search:   c.QueryParam("search"),
		Status:   c.QueryParam("status"),
		Priority: c.QueryParam("priority"),
		DueDate:  c.QueryParam("dueDate"),
		Agent:    c.QueryParam("agent"),
	}
	page, limit := query.Clamp(QueryInt(c, "page", 1), QueryInt(c, "limit", 20))

	data, total, err := h.tasks.List(ctx, assignees, filters, page, limit)
	if err != nil {
		return err
	}
	if data == nil {
		data = []models.TaskResponse{}
	}

	return SuccessResponse(c, models.TaskListResponse{
		Data:       data,
		Pagination: models.NewPagination(total, page, limit),
	})
}

// Create inserts a task. Unrecognized status/priority values fall back to
// the defaults; assignedBy is always the authenticated caller.
func (h *TaskHandler) Create(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.TaskHandler.Create")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.CreateTaskRequest](c)
	if err != nil {
		return err
	}

	if _, err := h.companies.GetByID(ctx, req.CompanyID); err != nil {
		return err
	}

	status := req.Status
	if !models.ValidTaskStatus(status) {
		status = models.TaskStatusUntouched
	}
	priority := req.Priority
	if !models.ValidTaskPriority(priority) {
		priority = models.TaskPriorityMedium
	}

	task := &models.Task{
		CompanyID:    req.CompanyID,
		Title:        req.Title,
		Status:       status,
		Priority:     priority,
		DueDate:      parseDate(req.DueDate),
		FollowUpDate: parseDate(req.FollowUpDate),
		AssignedBy:   &user.ID,
		AssignedTo:   req.AssignedTo,
		Description:  req.Description,
	}
	if err := h.tasks.Insert(ctx, task); err != nil {
		return err
	}

	h.recorder.RecordAction(ctx, task.CompanyID, models.ChangeEntityTask, &task.ID, &user.ID, models.ChangeActionCreated, "Aufgabe erstellt: "+task.Title)

	return CreatedResponse(c, task)
}

// Update overwrites the task. Entering the done status stamps completedAt,
// leaving it clears the stamp; invalid status/priority values keep the
// stored ones.
func (h *TaskHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.TaskHandler.Update")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.UpdateTaskRequest](c)
	if err != nil {
		return err
	}

	existing, err := h.tasks.GetByID(ctx, id)
	if err != nil {
		return err
	}

	status := req.Status
	if !models.ValidTaskStatus(status) {
		status = existing.Status
	}
	priority := req.Priority
	if !models.ValidTaskPriority(priority) {
		priority = existing.Priority
	}

	completedAt := existing.CompletedAt
	if status == models.TaskStatusDone {
		if completedAt == nil {
			now := time.Now()
			completedAt = &now
		}
	} else {
		completedAt = nil
	}

	task := &models.Task{
		ID:           id,
		CompanyID:    req.CompanyID,
		Title:        req.Title,
		Status:       status,
		Priority:     priority,
		DueDate:      parseDate(req.DueDate),
		FollowUpDate: parseDate(req.FollowUpDate),
		AssignedBy:   existing.AssignedBy,
		AssignedTo:   req.AssignedTo,
		Description:  req.Description,
		CompletedAt:  completedAt,
		CreatedAt:    existing.CreatedAt,
	}
	if err := h.tasks.Update(ctx, task); err != nil {
		return err
	}

	h.recorder.RecordStatusChange(ctx, task.CompanyID, task.ID, &user.ID, existing.Status, status)

	return SuccessResponse(c, task)
}

// Delete hard-deletes the task.
func (h *TaskHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.TaskHandler.Delete")
	defer span.End()

	if _, err := RequireUser(c); err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	if err := h.tasks.Delete(ctx, id); err != nil {
		return err
	}
	return NoContentResponse(c)
}

// parseDate accepts RFC 3339 timestamps and bare dates; anything else is
// treated as absent.
func parseDate(raw *string) *time.Time {
	if raw == nil || *raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, *raw); err == nil {
		return &t
	}
	if t, err := time.Parse("2006-01-02", *raw); err == nil {
		return &t
	}
	return nil
}
