package handlers

import (
	"context"

	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
	"github.com/Ramsey-B/dahlia/pkg/utils"
)

// ImportLogStore is the import-log persistence surface.
type ImportLogStore interface {
	List(ctx context.Context) ([]models.ImportLogResponse, error)
	GetByID(ctx context.Context, id int64) (*models.ImportLog, error)
	UpdateProjectName(ctx context.Context, id int64, projectName string) error
	Delete(ctx context.Context, id int64) error
}

// ImportedCompanyResolver walks the import_log_id foreign key to the
// companies an import run created.
type ImportedCompanyResolver interface {
	CompanyIDsForImportLog(ctx context.Context, importLogID int64) ([]int64, error)
}

// CompanyBulkStore is the bulk company surface used by the cascade paths.
type CompanyBulkStore interface {
	UpdateProjectByIDs(ctx context.Context, ids []int64, project string) error
	DeleteByIDs(ctx context.Context, ids []int64) (int64, error)
}

// RenameImportLogRequest renames an import run's project label.
type RenameImportLogRequest struct {
	ProjectName string `json:"projectName" validate:"required"`
}

// ImportLogHandler handles import-log administration. Admin only.
type ImportLogHandler struct {
	logs        ImportLogStore
	assignments ImportedCompanyResolver
	companies   CompanyBulkStore
	logger      ectologger.Logger
}

func NewImportLogHandler(
	logs ImportLogStore,
	assignments ImportedCompanyResolver,
	companies CompanyBulkStore,
	logger ectologger.Logger,
) *ImportLogHandler {
	return &ImportLogHandler{
		logs:        logs,
		assignments: assignments,
		companies:   companies,
		logger:      logger,
	}
}

// RegisterRoutes registers import-log routes
func (h *ImportLogHandler) RegisterRoutes(g *echo.Group) {
	g.GET("/admin/import-logs", h.List)
	g.PUT("/admin/import-logs/:id", h.Rename)
	g.DELETE("/admin/import-logs/:id", h.Delete)
}

func requireAdmin(c echo.Context) (models.User, error) {
	user, err := RequireUser(c)
	if err != nil {
		return models.User{}, err
	}
	if user.Role != models.RoleAdmin {
		return models.User{}, Forbidden("Verboten: Nur Admins dürfen Import-Protokolle verwalten.")
	}
	return user, nil
}

// List returns all import runs newest-first.
func (h *ImportLogHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.ImportLogHandler.List")
	defer span.End()

	if _, err := requireAdmin(c); err != nil {
		return err
	}

	logs, err := h.logs.List(ctx)
	if err != nil {
		return err
	}
	return SuccessResponse(c, logs)
}

// Rename updates the run's project label and propagates it to the companies
// the run created.
func (h *ImportLogHandler) Rename(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.ImportLogHandler.Rename")
	defer span.End()

	if _, err := requireAdmin(c); err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[RenameImportLogRequest](c)
	if err != nil {
		return err
	}

	if _, err := h.logs.GetByID(ctx, id); err != nil {
		return err
	}

	if err := h.logs.UpdateProjectName(ctx, id, req.ProjectName); err != nil {
		return err
	}

	companyIDs, err := h.assignments.CompanyIDsForImportLog(ctx, id)
	if err != nil {
		return err
	}
	if len(companyIDs) > 0 {
		if err := h.companies.UpdateProjectByIDs(ctx, companyIDs, req.ProjectName); err != nil {
			return err
		}
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"import_log_id": id,
		"project_name":  req.ProjectName,
		"companies":     len(companyIDs),
	}).Info("Import log renamed")

	return SuccessResponse(c, map[string]any{"id": id, "projectName": req.ProjectName, "companies": len(companyIDs)})
}

// Delete removes the run and cascade-deletes the companies it created.
// Companies that existed before the run and were merely reassigned are kept.
func (h *ImportLogHandler) Delete(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.ImportLogHandler.Delete")
	defer span.End()

	if _, err := requireAdmin(c); err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.logs.GetByID(ctx, id); err != nil {
		return err
	}

	companyIDs, err := h.assignments.CompanyIDsForImportLog(ctx, id)
	if err != nil {
		return err
	}

	var deleted int64
	if len(companyIDs) > 0 {
		deleted, err = h.companies.DeleteByIDs(ctx, companyIDs)
		if err != nil {
			return err
		}
	}

	if err := h.logs.Delete(ctx, id); err != nil {
		return err
	}

	h.logger.WithContext(ctx).WithFields(map[string]any{
		"import_log_id":     id,
		"deleted_companies": deleted,
	}).Info("Import log deleted")

	return SuccessResponse(c, map[string]any{"id": id, "deletedCompanies": deleted})
}
