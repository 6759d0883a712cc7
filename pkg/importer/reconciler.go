// Package importer reconciles bulk customer imports against existing data.
// Rows are grouped per company, each group is written in its own
// transaction, and a failure in one group never aborts the others.
package importer

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectolinq"
	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/dahlia/pkg/changelog"
	"github.com/Ramsey-B/dahlia/pkg/database"
	"github.com/Ramsey-B/dahlia/pkg/metrics"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/normalizers"
	"github.com/Ramsey-B/dahlia/pkg/scope"
	"github.com/Ramsey-B/dahlia/pkg/tracing"
)

// CompanyStore is the company persistence surface the reconciler needs.
type CompanyStore interface {
	// FindByName matches case- and whitespace-insensitively on the exact
	// name. Returns nil when no company matches.
	FindByName(ctx context.Context, name string) (*models.Company, error)
	Insert(ctx context.Context, company *models.Company) error
	Update(ctx context.Context, company *models.Company) error
}

type ContactStore interface {
	ListByCompany(ctx context.Context, companyID int64) ([]models.Contact, error)
	Insert(ctx context.Context, contact *models.Contact) error
}

type NoteStore interface {
	// EnsureExists creates the company's empty conversation note when none
	// exists yet.
	EnsureExists(ctx context.Context, companyID int64) error
}

type AssignmentStore interface {
	HasAgentAssignment(ctx context.Context, companyID int64, agentID string) (bool, error)
	Insert(ctx context.Context, assignment *models.Assignment) error
}

type TaskStore interface {
	Insert(ctx context.Context, task *models.Task) error
}

type ImportLogStore interface {
	Insert(ctx context.Context, log *models.ImportLog) error
	UpdateTallies(ctx context.Context, id int64, result models.ImportResult) error
}

// Events receives the post-import notification. Implementations must not
// fail the import.
type Events interface {
	CustomersImported(ctx context.Context, result models.ImportResult)
}

// Reconciler runs the import pipeline: authorize, group by normalized
// company name, create-or-update per group, tally.
type Reconciler struct {
	tx          database.TxRunner
	logger      ectologger.Logger
	companies   CompanyStore
	contacts    ContactStore
	notes       NoteStore
	assignments AssignmentStore
	tasks       TaskStore
	importLogs  ImportLogStore
	teams       scope.TeamSource
	recorder    *changelog.Recorder
	events      Events
	maxRows     int
}

func NewReconciler(
	tx database.TxRunner,
	logger ectologger.Logger,
	companies CompanyStore,
	contacts ContactStore,
	notes NoteStore,
	assignments AssignmentStore,
	tasks TaskStore,
	importLogs ImportLogStore,
	teams scope.TeamSource,
	recorder *changelog.Recorder,
	events Events,
	maxRows int,
) *Reconciler {
	return &Reconciler{
		tx:          tx,
		logger:      logger,
		companies:   companies,
		contacts:    contacts,
		notes:       notes,
		assignments: assignments,
		tasks:       tasks,
		importLogs:  importLogs,
		teams:       teams,
		recorder:    recorder,
		events:      events,
		maxRows:     maxRows,
	}
}

type indexedRow struct {
	index int // 1-based spreadsheet position
	row   models.RawRow
}

// Reconcile processes the batch. Authorization violations fail the whole
// batch before any row is touched; per-group failures are reported in the
// result and do not abort the rest.
func (r *Reconciler) Reconcile(ctx context.Context, req models.ImportRequest, actor models.User) (models.ImportResult, error) {
	ctx, span := tracing.StartSpan(ctx, "importer.Reconciler.Reconcile")
	defer span.End()

	start := time.Now()
	result := models.ImportResult{Total: len(req.Customers)}

	if err := r.authorize(ctx, req, actor); err != nil {
		return result, err
	}
	if r.maxRows > 0 && len(req.Customers) > r.maxRows {
		return result, httperror.NewHTTPErrorf(http.StatusBadRequest, "import exceeds the maximum of %d rows", r.maxRows)
	}

	importLogID := r.openLog(ctx, req, actor)
	result.ImportLogID = importLogID

	groups, order := r.groupRows(req.Customers, &result)

	for _, key := range order {
		rows := groups[key]
		tally, err := r.reconcileGroup(ctx, rows, req, actor, importLogID)
		if err != nil {
			result.Failed += len(rows)
			result.Errors = append(result.Errors, models.ImportRowError{
				Row:     rows[0].index,
				Message: fmt.Sprintf("%s: %v", companyName(rows[0].row), err),
			})
			for range rows {
				metrics.RecordImportRow("failed")
			}
			r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
				"company": companyName(rows[0].row),
			}).Error("Import group failed")
			continue
		}

		result.Success += len(rows)
		result.Created += tally.created
		result.Updated += tally.updated
		result.Assigned += tally.assigned
		result.Details = append(result.Details, tally.detail)
		for range rows {
			metrics.RecordImportRow("success")
		}
	}

	r.closeLog(ctx, importLogID, result)
	if r.events != nil {
		r.events.CustomersImported(ctx, result)
	}
	metrics.ImportDuration.Observe(time.Since(start).Seconds())

	return result, nil
}

// authorize enforces targeting rules: agents never import; teamleads may
// only target a team they lead, a member of a led team, or themselves.
func (r *Reconciler) authorize(ctx context.Context, req models.ImportRequest, actor models.User) error {
	if !actor.Role.CanImport() {
		return httperror.NewHTTPError(http.StatusForbidden, "Verboten: Agenten können keine Kunden importieren.")
	}
	if actor.Role == models.RoleAdmin {
		return nil
	}

	ledTeams, err := r.teams.TeamIDsLedBy(ctx, actor.ID)
	if err != nil {
		return err
	}

	if req.TargetTeamID != nil && !ectolinq.Contains(ledTeams, *req.TargetTeamID) {
		return httperror.NewHTTPError(http.StatusForbidden, "Verboten: Sie können nur Ihrem eigenen Team zuweisen.")
	}

	if req.TargetAgentID != nil && *req.TargetAgentID != actor.ID {
		members, err := r.teams.MemberIDs(ctx, ledTeams)
		if err != nil {
			return err
		}
		if !ectolinq.Contains(members, *req.TargetAgentID) {
			return httperror.NewHTTPError(http.StatusForbidden, "Verboten: Der Agent gehört nicht zu Ihrem Team.")
		}
	}

	return nil
}

// groupRows buckets rows by normalized company name, preserving first-seen
// order. Rows without a company name are tallied as failed up front.
func (r *Reconciler) groupRows(rows []models.RawRow, result *models.ImportResult) (map[string][]indexedRow, []string) {
	groups := make(map[string][]indexedRow)
	var order []string

	for i, row := range rows {
		name := companyName(row)
		if name == "" {
			result.Failed++
			result.Errors = append(result.Errors, models.ImportRowError{
				Row:     i + 1,
				Message: "Firmenname fehlt",
			})
			metrics.RecordImportRow("failed")
			continue
		}
		key := normalizers.CompanyName(name)
		if _, seen := groups[key]; !seen {
			order = append(order, key)
		}
		groups[key] = append(groups[key], indexedRow{index: i + 1, row: row})
	}

	return groups, order
}

type groupTally struct {
	created  int
	updated  int
	assigned int
	detail   string
}

func (r *Reconciler) reconcileGroup(ctx context.Context, rows []indexedRow, req models.ImportRequest, actor models.User, importLogID *int64) (groupTally, error) {
	var tally groupTally

	err := r.tx.RunInTx(ctx, func(ctx context.Context) error {
		fields := parseCompany(rows[0].row)
		if fields.Project == "" {
			fields.Project = req.ProjectName
		}

		existing, err := r.companies.FindByName(ctx, fields.Name)
		if err != nil {
			return err
		}

		if existing == nil {
			return r.createCompany(ctx, rows, fields, req, actor, importLogID, &tally)
		}
		return r.updateCompany(ctx, existing, rows, fields, req, actor, importLogID, &tally)
	})
	return tally, err
}

func (r *Reconciler) createCompany(ctx context.Context, rows []indexedRow, fields companyFields, req models.ImportRequest, actor models.User, importLogID *int64, tally *groupTally) error {
	company := companyFromFields(fields)
	if err := r.companies.Insert(ctx, company); err != nil {
		return err
	}

	inserted := 0
	for _, ir := range rows {
		cf := parseContact(ir.row)
		if cf == nil {
			continue
		}
		contact := contactFromFields(company.ID, cf)
		contact.IsPrimary = inserted == 0
		if err := r.contacts.Insert(ctx, contact); err != nil {
			return err
		}
		inserted++
	}

	if err := r.notes.EnsureExists(ctx, company.ID); err != nil {
		return err
	}

	status := models.AssignmentStatusImported
	if err := r.assignments.Insert(ctx, &models.Assignment{
		CompanyID:   company.ID,
		TeamID:      req.TargetTeamID,
		AgentID:     req.TargetAgentID,
		Status:      &status,
		AssignedAt:  time.Now(),
		AssignedBy:  &actor.ID,
		ImportLogID: importLogID,
	}); err != nil {
		return err
	}

	if req.TargetAgentID != nil {
		if err := r.insertAutoTask(ctx, company, *req.TargetAgentID, actor.ID); err != nil {
			return err
		}
	}

	r.recorder.RecordAction(ctx, company.ID, models.ChangeEntityCompany, nil, &actor.ID, models.ChangeActionCreated, "Durch Import erstellt")

	tally.created++
	tally.detail = fmt.Sprintf("%s: neu angelegt (%d Kontakte)", company.Name, inserted)
	return nil
}

func (r *Reconciler) updateCompany(ctx context.Context, existing *models.Company, rows []indexedRow, fields companyFields, req models.ImportRequest, actor models.User, importLogID *int64, tally *groupTally) error {
	updated := companyFromFields(fields)
	updated.ID = existing.ID
	updated.CreatedAt = existing.CreatedAt

	r.recorder.RecordIfChanged(ctx, existing.ID, models.ChangeEntityCompany, nil, &actor.ID, []changelog.Field{
		{Label: "Firmenname geändert", Old: existing.Name, New: updated.Name},
		{Label: "Branche geändert", Old: existing.Industry, New: updated.Industry},
		{Label: "Telefon geändert", Old: existing.Phone, New: updated.Phone},
		{Label: "Email geändert", Old: existing.Email, New: updated.Email},
		{Label: "Webseite geändert", Old: existing.Website, New: updated.Website},
		{Label: "Adresse geändert", Old: existing.Street, New: updated.Street},
		{Label: "Stadt geändert", Old: existing.City, New: updated.City},
		{Label: "Umsatz geändert", Old: existing.RevenueSize, New: updated.RevenueSize},
		{Label: "Projekt geändert", Old: existing.Project, New: updated.Project},
	})

	if err := r.companies.Update(ctx, updated); err != nil {
		return err
	}

	current, err := r.contacts.ListByCompany(ctx, existing.ID)
	if err != nil {
		return err
	}
	hadContacts := len(current) > 0

	inserted := 0
	for _, ir := range rows {
		cf := parseContact(ir.row)
		if cf == nil || contactExists(current, cf) {
			continue
		}
		contact := contactFromFields(existing.ID, cf)
		contact.IsPrimary = !hadContacts && inserted == 0
		if err := r.contacts.Insert(ctx, contact); err != nil {
			return err
		}
		inserted++
	}

	reassigned := false
	status := models.AssignmentStatusReimported
	if req.TargetAgentID != nil {
		has, err := r.assignments.HasAgentAssignment(ctx, existing.ID, *req.TargetAgentID)
		if err != nil {
			return err
		}
		if !has {
			reassigned = true
			status = models.AssignmentStatusImported
		}
	}

	if err := r.assignments.Insert(ctx, &models.Assignment{
		CompanyID:   existing.ID,
		TeamID:      req.TargetTeamID,
		AgentID:     req.TargetAgentID,
		Status:      &status,
		AssignedAt:  time.Now(),
		AssignedBy:  &actor.ID,
		ImportLogID: importLogID,
	}); err != nil {
		return err
	}

	if req.TargetAgentID != nil {
		if err := r.insertAutoTask(ctx, updated, *req.TargetAgentID, actor.ID); err != nil {
			return err
		}
	}

	if reassigned {
		tally.assigned++
		tally.detail = fmt.Sprintf("%s: neu zugewiesen", updated.Name)
	} else {
		tally.updated++
		tally.detail = fmt.Sprintf("%s: aktualisiert", updated.Name)
	}
	return nil
}

func (r *Reconciler) insertAutoTask(ctx context.Context, company *models.Company, assignedTo, assignedBy string) error {
	description := "Automatisch erstellt bei Kundenzuweisung"
	return r.tasks.Insert(ctx, &models.Task{
		CompanyID:   company.ID,
		Title:       fmt.Sprintf("Erstkontakt: %s", company.Name),
		Status:      models.TaskStatusUntouched,
		Priority:    models.TaskPriorityMedium,
		AssignedTo:  &assignedTo,
		AssignedBy:  &assignedBy,
		Description: &description,
	})
}

// openLog inserts the summary row up front so assignments can reference it.
// Failure is logged and swallowed; the import proceeds unreferenced.
func (r *Reconciler) openLog(ctx context.Context, req models.ImportRequest, actor models.User) *int64 {
	log := &models.ImportLog{
		ImportedBy:    &actor.ID,
		TotalRows:     len(req.Customers),
		TargetTeamID:  req.TargetTeamID,
		TargetAgentID: req.TargetAgentID,
	}
	if req.FileName != "" {
		log.FileName = &req.FileName
	}
	if req.ProjectName != "" {
		log.ProjectName = &req.ProjectName
	}

	if err := r.importLogs.Insert(ctx, log); err != nil {
		r.logger.WithContext(ctx).WithError(err).Error("Failed to create import log")
		return nil
	}
	return &log.ID
}

func (r *Reconciler) closeLog(ctx context.Context, importLogID *int64, result models.ImportResult) {
	if importLogID == nil {
		return
	}
	if err := r.importLogs.UpdateTallies(ctx, *importLogID, result); err != nil {
		r.logger.WithContext(ctx).WithError(err).WithFields(map[string]any{
			"import_log_id": *importLogID,
		}).Error("Failed to update import log tallies")
	}
}

// contactExists reports whether cf already matches an existing contact by
// email, phone or full name.
func contactExists(current []models.Contact, cf *contactFields) bool {
	email := normalizers.Email(cf.Email)
	phone := normalizers.Phone(cf.Phone)
	name := normalizers.PersonName(cf.FirstName + " " + cf.LastName)

	for _, c := range current {
		if email != "" && c.Email != nil && normalizers.Email(*c.Email) == email {
			return true
		}
		if phone != "" && c.Phone != nil && normalizers.Phone(*c.Phone) == phone {
			return true
		}
		last := ""
		if c.LastName != nil {
			last = *c.LastName
		}
		if name != "" && normalizers.PersonName(c.FirstName+" "+last) == name {
			return true
		}
	}
	return false
}

func companyFromFields(f companyFields) *models.Company {
	return &models.Company{
		Name:          f.Name,
		Project:       optional(f.Project),
		LegalForm:     optional(f.LegalForm),
		Industry:      optional(f.Industry),
		EmployeeCount: f.EmployeeCount,
		Website:       optional(f.Website),
		Phone:         optional(f.Phone),
		Email:         optional(f.Email),
		Street:        optional(f.Street),
		PostalCode:    optional(f.PostalCode),
		City:          optional(f.City),
		State:         optional(f.State),
		FoundingDate:  optional(f.FoundingDate),
		Description:   optional(f.Description),
		OpeningHours:  optional(f.OpeningHours),
		RevenueSize:   optional(f.RevenueSize),
	}
}

func contactFromFields(companyID int64, cf *contactFields) *models.Contact {
	return &models.Contact{
		CompanyID: companyID,
		FirstName: cf.FirstName,
		LastName:  optional(cf.LastName),
		Email:     optional(cf.Email),
		Phone:     optional(cf.Phone),
		Position:  optional(cf.Position),
		BirthDate: optional(cf.BirthDate),
		LinkedIn:  optional(cf.LinkedIn),
		Xing:      optional(cf.Xing),
		Facebook:  optional(cf.Facebook),
	}
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
