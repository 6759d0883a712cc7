package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"

	"github.com/Ramsey-B/dahlia/pkg/changelog"
	"github.com/Ramsey-B/dahlia/pkg/importer"
	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/query"
	"github.com/Ramsey-B/dahlia/pkg/scope"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
	"github.com/Ramsey-B/dahlia/pkg/utils"
)

// ScopeResolver computes the caller's company visibility.
type ScopeResolver interface {
	Resolve(ctx context.Context, user models.User) (scope.Scope, error)
}

// CompanyStore is the company persistence surface the customer endpoints use.
type CompanyStore interface {
	GetByID(ctx context.Context, id int64) (*models.Company, error)
	List(ctx context.Context, s scope.Scope, filters query.CompanyFilters, page, limit int) ([]models.Company, int, error)
	Update(ctx context.Context, company *models.Company) error
}

// ContactStore is the contact persistence surface.
type ContactStore interface {
	ListByCompany(ctx context.Context, companyID int64) ([]models.Contact, error)
	ListByCompanyIDs(ctx context.Context, companyIDs []int64) (map[int64][]models.Contact, error)
	Insert(ctx context.Context, contact *models.Contact) error
	Update(ctx context.Context, contact *models.Contact) error
	DeleteMissing(ctx context.Context, companyID int64, keep []int64) error
}

// NoteStore is the conversation-note persistence surface.
type NoteStore interface {
	GetByCompany(ctx context.Context, companyID int64) (*models.ConversationNote, error)
	GetByCompanyIDs(ctx context.Context, companyIDs []int64) (map[int64]models.ConversationNote, error)
	Upsert(ctx context.Context, companyID int64, hook, research string, updatedBy *string) error
}

// AssignmentReader serves the latest-assignment lookups.
type AssignmentReader interface {
	LatestByCompanyIDs(ctx context.Context, companyIDs []int64) (map[int64]models.LatestAssignment, error)
}

// TaskReader serves the open-task lookups for the customer listing.
type TaskReader interface {
	OpenByCompanyIDs(ctx context.Context, companyIDs []int64) (map[int64][]models.Task, error)
}

// ActivityStore persists the touch points behind the reaction-time KPI.
type ActivityStore interface {
	Insert(ctx context.Context, activity *models.Activity) error
	ListByCompany(ctx context.Context, companyID int64) ([]models.Activity, error)
}

// ChangeLogReader serves the audit retrieval endpoints.
type ChangeLogReader interface {
	ListByCompany(ctx context.Context, companyID int64, limit int) ([]models.ChangeLogResponse, error)
}

// ImportRunner runs the bulk-import reconciliation.
type ImportRunner interface {
	Reconcile(ctx context.Context, req models.ImportRequest, actor models.User) (models.ImportResult, error)
}

// CustomerEvents publishes customer lifecycle events.
type CustomerEvents interface {
	CompanyUpdated(ctx context.Context, companyID int64, userID string)
}

// CustomerHandler handles the customer endpoints.
type CustomerHandler struct {
	resolver    ScopeResolver
	companies   CompanyStore
	contacts    ContactStore
	notes       NoteStore
	assignments AssignmentReader
	tasks       TaskReader
	activities  ActivityStore
	changeLog   ChangeLogReader
	recorder    *changelog.Recorder
	reconciler  ImportRunner
	events      CustomerEvents
	logger      ectologger.Logger
}

func NewCustomerHandler(
	resolver ScopeResolver,
	companies CompanyStore,
	contacts ContactStore,
	notes NoteStore,
	assignments AssignmentReader,
	tasks TaskReader,
	activities ActivityStore,
	changeLog ChangeLogReader,
	recorder *changelog.Recorder,
	reconciler ImportRunner,
	events CustomerEvents,
	logger ectologger.Logger,
) *CustomerHandler {
	return &CustomerHandler{
		resolver:    resolver,
		companies:   companies,
		contacts:    contacts,
		notes:       notes,
		assignments: assignments,
		tasks:       tasks,
		activities:  activities,
		changeLog:   changeLog,
		recorder:    recorder,
		reconciler:  reconciler,
		events:      events,
		logger:      logger,
	}
}

// RegisterRoutes registers customer routes. importMiddleware (rate limiting)
// may be nil.
func (h *CustomerHandler) RegisterRoutes(g *echo.Group, importMiddleware ...echo.MiddlewareFunc) {
	g.GET("/customers", h.List)
	g.PUT("/customers/:id", h.Update)
	g.PUT("/customers/:id/contacts", h.ReplaceContacts)
	g.PUT("/customers/:id/notes", h.UpsertNotes)
	g.GET("/customers/:id/activities", h.Activities)
	g.POST("/customers/:id/activities", h.LogActivity)
	g.GET("/customers/:id/change-log", h.ChangeLog)
	g.POST("/customers/import", h.Import, importMiddleware...)
}

// List returns the role-scoped, filtered, paginated customer listing with
// nested contacts, notes, latest assignment and open tasks.
func (h *CustomerHandler) List(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.CustomerHandler.List")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	s, err := h.resolver.Resolve(ctx, user)
	if err != nil {
		return err
	}
	metrics.RecordScopeResolution(string(user.Role), !s.IsAll() && s.IsEmpty())

	page, limit := query.Clamp(QueryInt(c, "page", 1), QueryInt(c, "limit", 20))

	// Empty non-admin scope never reaches the database.
	if !s.IsAll() && s.IsEmpty() {
		return SuccessResponse(c, models.CustomerListResponse{
			Data:       []models.CustomerResponse{},
			Pagination: models.NewPagination(0, page, limit),
		})
	}

	filters := query.CompanyFilters{
		Search:       c.QueryParam("search"),
		Agent:        c.QueryParam("agent"),
		Project:      c.QueryParam("project"),
		Date:         c.QueryParam("date"),
		AssignedDate: c.QueryParam("assignedDate"),
		Status:       c.QueryParam("status"),
	}
	if raw := c.QueryParam("team"); raw != "" {
		if teamID, err := strconv.ParseInt(raw, 10, 64); err == nil {
			filters.Team = &teamID
		}
	}

	companies, total, err := h.companies.List(ctx, s, filters, page, limit)
	if err != nil {
		return err
	}

	data, err := h.assemble(ctx, companies)
	if err != nil {
		return err
	}

	return SuccessResponse(c, models.CustomerListResponse{
		Data:       data,
		Pagination: models.NewPagination(total, page, limit),
	})
}

// Update overwrites the company's fields and records one change-log entry per
// changed tracked field.
func (h *CustomerHandler) Update(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.CustomerHandler.Update")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.UpdateCompanyRequest](c)
	if err != nil {
		return err
	}

	existing, err := h.companies.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := h.guardScope(ctx, user, id); err != nil {
		return err
	}

	updated := &models.Company{
		ID:            existing.ID,
		Name:          req.CompanyName,
		Project:       existing.Project,
		LegalForm:     strPtr(req.CompanyForm),
		Industry:      strPtr(req.Industry),
		EmployeeCount: importer.EmployeeCount(req.EmployeeCount),
		Website:       strPtr(req.Website),
		Phone:         strPtr(req.PhoneNumber),
		Email:         strPtr(req.Email),
		Street:        strPtr(req.StreetAddress),
		PostalCode:    strPtr(req.PostalCode),
		City:          strPtr(req.City),
		State:         strPtr(req.State),
		FoundingDate:  strPtr(req.FoundingDate),
		Description:   strPtr(req.Description),
		OpeningHours:  strPtr(req.OpeningHours),
		RevenueSize:   strPtr(req.RevenueSize),
		CreatedAt:     existing.CreatedAt,
	}

	if err := h.companies.Update(ctx, updated); err != nil {
		return err
	}

	// Audit only once the write went through.
	h.recorder.RecordIfChanged(ctx, existing.ID, models.ChangeEntityCompany, nil, &user.ID, []changelog.Field{
		{Label: "Firmenname geändert", Old: existing.Name, New: updated.Name},
		{Label: "Rechtsform geändert", Old: existing.LegalForm, New: updated.LegalForm},
		{Label: "Branche geändert", Old: existing.Industry, New: updated.Industry},
		{Label: "Mitarbeiterzahl geändert", Old: existing.EmployeeCount, New: updated.EmployeeCount},
		{Label: "Webseite geändert", Old: existing.Website, New: updated.Website},
		{Label: "Telefon geändert", Old: existing.Phone, New: updated.Phone},
		{Label: "Email geändert", Old: existing.Email, New: updated.Email},
		{Label: "Öffnungszeiten geändert", Old: existing.OpeningHours, New: updated.OpeningHours},
		{Label: "Umsatz geändert", Old: existing.RevenueSize, New: updated.RevenueSize},
		{Label: "Adresse geändert", Old: existing.Street, New: updated.Street},
		{Label: "PLZ geändert", Old: existing.PostalCode, New: updated.PostalCode},
		{Label: "Stadt geändert", Old: existing.City, New: updated.City},
		{Label: "Bundesland geändert", Old: existing.State, New: updated.State},
		{Label: "Gründungsdatum geändert", Old: existing.FoundingDate, New: updated.FoundingDate},
		{Label: "Beschreibung geändert", Old: existing.Description, New: updated.Description},
	})

	if h.events != nil {
		h.events.CompanyUpdated(ctx, updated.ID, user.ID)
	}

	return SuccessResponse(c, updated)
}

// ReplaceContacts replaces the company's contact set: submitted contacts with
// a known ID are updated, zero-ID contacts are inserted, everything else is
// deleted.
func (h *CustomerHandler) ReplaceContacts(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.CustomerHandler.ReplaceContacts")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	var payloads []models.ContactPayload
	if err := c.Bind(&payloads); err != nil {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid contact payload")
	}
	for i := range payloads {
		if _, err := utils.Validate(payloads[i]); err != nil {
			return httperror.NewHTTPError(http.StatusBadRequest, err.Error())
		}
	}

	if _, err := h.companies.GetByID(ctx, id); err != nil {
		return err
	}
	if err := h.guardScope(ctx, user, id); err != nil {
		return err
	}

	keep := make([]int64, 0, len(payloads))
	for _, p := range payloads {
		if p.ID != 0 {
			keep = append(keep, p.ID)
		}
	}
	if err := h.contacts.DeleteMissing(ctx, id, keep); err != nil {
		return err
	}

	for _, p := range payloads {
		contact := contactFromPayload(id, p)
		if p.ID != 0 {
			if err := h.contacts.Update(ctx, contact); err != nil {
				return err
			}
			continue
		}
		if err := h.contacts.Insert(ctx, contact); err != nil {
			return err
		}
	}

	h.recorder.RecordAction(ctx, id, models.ChangeEntityContact, nil, &user.ID, models.ChangeActionUpdated, "Kontakte aktualisiert")

	current, err := h.contacts.ListByCompany(ctx, id)
	if err != nil {
		return err
	}
	out := make([]models.ContactResponse, len(current))
	for i, ct := range current {
		out[i] = contactToResponse(ct)
	}
	return SuccessResponse(c, out)
}

// UpsertNotes replaces the company's conversation note and records one
// created/updated audit entry when something actually changed.
func (h *CustomerHandler) UpsertNotes(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.CustomerHandler.UpsertNotes")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.UpsertNotesRequest](c)
	if err != nil {
		return err
	}

	if _, err := h.companies.GetByID(ctx, id); err != nil {
		return err
	}
	if err := h.guardScope(ctx, user, id); err != nil {
		return err
	}

	prior, err := h.notes.GetByCompany(ctx, id)
	if err != nil {
		return err
	}

	if err := h.notes.Upsert(ctx, id, req.ConversationHook, req.ResearchResult, &user.ID); err != nil {
		return err
	}

	switch {
	case prior == nil:
		h.recorder.RecordAction(ctx, id, models.ChangeEntityNote, nil, &user.ID, models.ChangeActionCreated, "Notizen erstellt")
	case strVal(prior.ConversationHook) != req.ConversationHook || strVal(prior.ResearchResult) != req.ResearchResult:
		h.recorder.RecordAction(ctx, id, models.ChangeEntityNote, nil, &user.ID, models.ChangeActionUpdated, "Notizen aktualisiert")
	}

	return SuccessResponse(c, models.UpsertNotesRequest{
		ConversationHook: req.ConversationHook,
		ResearchResult:   req.ResearchResult,
	})
}

// Activities returns the company's touch points newest-first.
func (h *CustomerHandler) Activities(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.CustomerHandler.Activities")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.companies.GetByID(ctx, id); err != nil {
		return err
	}
	if err := h.guardScope(ctx, user, id); err != nil {
		return err
	}

	activities, err := h.activities.ListByCompany(ctx, id)
	if err != nil {
		return err
	}
	if activities == nil {
		activities = []models.Activity{}
	}
	return SuccessResponse(c, activities)
}

// LogActivity records one touch point (call, email, meeting, note). The
// earliest activity per company drives the reaction-time KPI.
func (h *CustomerHandler) LogActivity(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.CustomerHandler.LogActivity")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.CreateActivityRequest](c)
	if err != nil {
		return err
	}
	if !models.ValidActivityType(req.Type) {
		return httperror.NewHTTPError(http.StatusBadRequest, "invalid activity type")
	}

	if _, err := h.companies.GetByID(ctx, id); err != nil {
		return err
	}
	if err := h.guardScope(ctx, user, id); err != nil {
		return err
	}

	activity := &models.Activity{
		CompanyID: id,
		ContactID: req.ContactID,
		UserID:    user.ID,
		Type:      req.Type,
		Subject:   req.Subject,
		Content:   req.Content,
		StartedAt: req.StartedAt,
		EndedAt:   req.EndedAt,
	}
	if err := h.activities.Insert(ctx, activity); err != nil {
		return err
	}
	return CreatedResponse(c, activity)
}

// ChangeLog returns the company's audit entries newest-first.
func (h *CustomerHandler) ChangeLog(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.CustomerHandler.ChangeLog")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	id, err := ParseID(c, "id")
	if err != nil {
		return err
	}

	if _, err := h.companies.GetByID(ctx, id); err != nil {
		return err
	}
	if err := h.guardScope(ctx, user, id); err != nil {
		return err
	}

	entries, err := h.changeLog.ListByCompany(ctx, id, QueryInt(c, "limit", 100))
	if err != nil {
		return err
	}
	return SuccessResponse(c, entries)
}

// Import runs the bulk-import reconciliation.
func (h *CustomerHandler) Import(c echo.Context) error {
	ctx := c.Request().Context()
	ctx, span := tracing.StartSpan(ctx, "handlers.CustomerHandler.Import")
	defer span.End()

	user, err := RequireUser(c)
	if err != nil {
		return err
	}

	req, err := utils.BindRequest[models.ImportRequest](c)
	if err != nil {
		return err
	}

	result, err := h.reconciler.Reconcile(ctx, req, user)
	if err != nil {
		return err
	}
	return SuccessResponse(c, result)
}

func (h *CustomerHandler) guardScope(ctx context.Context, user models.User, companyID int64) error {
	s, err := h.resolver.Resolve(ctx, user)
	if err != nil {
		return err
	}
	if s.IsAll() || s.Contains(companyID) {
		return nil
	}
	return Forbidden("Kein Zugriff auf diesen Kunden")
}

// assemble bulk-fetches the nested children for a page of companies.
func (h *CustomerHandler) assemble(ctx context.Context, companies []models.Company) ([]models.CustomerResponse, error) {
	out := make([]models.CustomerResponse, 0, len(companies))
	if len(companies) == 0 {
		return out, nil
	}

	ids := make([]int64, len(companies))
	for i, company := range companies {
		ids[i] = company.ID
	}

	contactsByCompany, err := h.contacts.ListByCompanyIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	notesByCompany, err := h.notes.GetByCompanyIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	latestByCompany, err := h.assignments.LatestByCompanyIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	tasksByCompany, err := h.tasks.OpenByCompanyIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	for _, company := range companies {
		resp := models.CustomerResponse{
			ID:            company.ID,
			CompanyName:   company.Name,
			Project:       strVal(company.Project),
			Status:        models.AssignmentStatusAdded,
			CompanyForm:   strVal(company.LegalForm),
			Industry:      strVal(company.Industry),
			EmployeeCount: strconv.Itoa(company.EmployeeCount),
			Website:       strVal(company.Website),
			PhoneNumber:   strVal(company.Phone),
			Email:         strVal(company.Email),
			OpeningHours:  strVal(company.OpeningHours),
			RevenueSize:   strVal(company.RevenueSize),
			StreetAddress: strVal(company.Street),
			PostalCode:    strVal(company.PostalCode),
			City:          strVal(company.City),
			State:         strVal(company.State),
			FoundingDate:  strVal(company.FoundingDate),
			Description:   strVal(company.Description),
			Contacts:      []models.ContactResponse{},
			Tasks:         []models.TaskResponse{},
		}

		if latest, ok := latestByCompany[company.ID]; ok {
			resp.AssignedAgentID = latest.AgentID
			resp.AssignedAgentName = latest.AgentName
			resp.AssignedTeamID = latest.TeamID
			if latest.Status != nil {
				resp.Status = *latest.Status
			}
		}
		if note, ok := notesByCompany[company.ID]; ok {
			resp.ConversationHook = strVal(note.ConversationHook)
			resp.ResearchResult = strVal(note.ResearchResult)
		}
		for _, ct := range contactsByCompany[company.ID] {
			resp.Contacts = append(resp.Contacts, contactToResponse(ct))
		}
		for _, t := range tasksByCompany[company.ID] {
			resp.Tasks = append(resp.Tasks, taskToResponse(t, company.Name))
		}

		out = append(out, resp)
	}
	return out, nil
}

func contactFromPayload(companyID int64, p models.ContactPayload) *models.Contact {
	return &models.Contact{
		ID:        p.ID,
		CompanyID: companyID,
		FirstName: p.FirstName,
		LastName:  strPtr(p.LastName),
		Email:     strPtr(p.Email),
		Phone:     strPtr(p.PhoneNumber),
		IsPrimary: p.IsPrimary,
		Position:  strPtr(p.Position),
		BirthDate: strPtr(p.BirthDate),
		LinkedIn:  strPtr(p.Social.LinkedIn),
		Xing:      strPtr(p.Social.Xing),
		Facebook:  strPtr(p.Social.Facebook),
		Notes:     strPtr(p.Notes),
	}
}

func contactToResponse(ct models.Contact) models.ContactResponse {
	return models.ContactResponse{
		ID:          ct.ID,
		IsPrimary:   ct.IsPrimary,
		FirstName:   ct.FirstName,
		LastName:    strVal(ct.LastName),
		Email:       strVal(ct.Email),
		PhoneNumber: strVal(ct.Phone),
		Position:    strVal(ct.Position),
		BirthDate:   strVal(ct.BirthDate),
		Social: models.ContactSocial{
			LinkedIn: strVal(ct.LinkedIn),
			Xing:     strVal(ct.Xing),
			Facebook: strVal(ct.Facebook),
		},
		Notes: strVal(ct.Notes),
	}
}

func taskToResponse(t models.Task, companyName string) models.TaskResponse {
	return models.TaskResponse{
		ID:           t.ID,
		CompanyID:    t.CompanyID,
		CompanyName:  companyName,
		Title:        t.Title,
		Status:       t.Status,
		Priority:     t.Priority,
		DueDate:      t.DueDate,
		FollowUpDate: t.FollowUpDate,
		AssignedToID: t.AssignedTo,
		AssignedByID: t.AssignedBy,
		Description:  strVal(t.Description),
		CompletedAt:  t.CompletedAt,
		CreatedAt:    t.CreatedAt,
	}
}
