package importer

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/dahlia/pkg/changelog"
	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fakeTx struct{}

func (fakeTx) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type fakeCompanies struct {
	nextID    int64
	companies []*models.Company
	insertErr map[string]error
}

func (f *fakeCompanies) FindByName(_ context.Context, name string) (*models.Company, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	for _, c := range f.companies {
		if strings.ToLower(strings.TrimSpace(c.Name)) == key {
			copied := *c
			return &copied, nil
		}
	}
	return nil, nil
}

func (f *fakeCompanies) Insert(_ context.Context, c *models.Company) error {
	if err := f.insertErr[c.Name]; err != nil {
		return err
	}
	f.nextID++
	c.ID = f.nextID
	stored := *c
	f.companies = append(f.companies, &stored)
	return nil
}

func (f *fakeCompanies) Update(_ context.Context, c *models.Company) error {
	for i, existing := range f.companies {
		if existing.ID == c.ID {
			stored := *c
			f.companies[i] = &stored
			return nil
		}
	}
	return errors.New("not found")
}

type fakeContacts struct {
	byCompany map[int64][]models.Contact
}

func (f *fakeContacts) ListByCompany(_ context.Context, companyID int64) ([]models.Contact, error) {
	return f.byCompany[companyID], nil
}

func (f *fakeContacts) Insert(_ context.Context, c *models.Contact) error {
	if f.byCompany == nil {
		f.byCompany = make(map[int64][]models.Contact)
	}
	c.ID = int64(len(f.byCompany[c.CompanyID]) + 1)
	f.byCompany[c.CompanyID] = append(f.byCompany[c.CompanyID], *c)
	return nil
}

type fakeNotes struct {
	ensured []int64
}

func (f *fakeNotes) EnsureExists(_ context.Context, companyID int64) error {
	f.ensured = append(f.ensured, companyID)
	return nil
}

type fakeAssignments struct {
	rows []models.Assignment
}

func (f *fakeAssignments) HasAgentAssignment(_ context.Context, companyID int64, agentID string) (bool, error) {
	for _, a := range f.rows {
		if a.CompanyID == companyID && a.AgentID != nil && *a.AgentID == agentID {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeAssignments) Insert(_ context.Context, a *models.Assignment) error {
	f.rows = append(f.rows, *a)
	return nil
}

type fakeTasks struct {
	rows []models.Task
}

func (f *fakeTasks) Insert(_ context.Context, t *models.Task) error {
	f.rows = append(f.rows, *t)
	return nil
}

type fakeImportLogs struct {
	nextID    int64
	logs      []models.ImportLog
	insertErr error
	tallies   models.ImportResult
}

func (f *fakeImportLogs) Insert(_ context.Context, log *models.ImportLog) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.nextID++
	log.ID = f.nextID
	f.logs = append(f.logs, *log)
	return nil
}

func (f *fakeImportLogs) UpdateTallies(_ context.Context, _ int64, result models.ImportResult) error {
	f.tallies = result
	return nil
}

type fakeTeams struct {
	ledBy   map[string][]int64
	members map[int64][]string
}

func (f *fakeTeams) TeamIDsLedBy(_ context.Context, userID string) ([]int64, error) {
	return f.ledBy[userID], nil
}

func (f *fakeTeams) MemberIDs(_ context.Context, teamIDs []int64) ([]string, error) {
	var out []string
	for _, id := range teamIDs {
		out = append(out, f.members[id]...)
	}
	return out, nil
}

type fakeChangeLog struct {
	entries []models.ChangeLogEntry
}

func (f *fakeChangeLog) Insert(_ context.Context, e models.ChangeLogEntry) error {
	f.entries = append(f.entries, e)
	return nil
}

type fixture struct {
	reconciler  *Reconciler
	companies   *fakeCompanies
	contacts    *fakeContacts
	notes       *fakeNotes
	assignments *fakeAssignments
	tasks       *fakeTasks
	importLogs  *fakeImportLogs
	audit       *fakeChangeLog
}

func newFixture() *fixture {
	logger := ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
	f := &fixture{
		companies:   &fakeCompanies{insertErr: map[string]error{}},
		contacts:    &fakeContacts{},
		notes:       &fakeNotes{},
		assignments: &fakeAssignments{},
		tasks:       &fakeTasks{},
		importLogs:  &fakeImportLogs{},
		audit:       &fakeChangeLog{},
	}
	teams := &fakeTeams{
		ledBy: map[string][]int64{
			"lead-1": {10},
		},
		members: map[int64][]string{
			10: {"lead-1", "agent-1"},
		},
	}
	f.reconciler = NewReconciler(
		fakeTx{},
		logger,
		f.companies,
		f.contacts,
		f.notes,
		f.assignments,
		f.tasks,
		f.importLogs,
		teams,
		changelog.NewRecorder(f.audit, logger),
		nil,
		1000,
	)
	return f
}

var admin = models.User{ID: "admin-1", Role: models.RoleAdmin}

func TestReconcile_AgentForbidden(t *testing.T) {
	f := newFixture()
	_, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
		Customers: []models.RawRow{{"Firma": "Acme"}},
	}, models.User{ID: "agent-1", Role: models.RoleAgent})

	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Empty(t, f.companies.companies)
}

func TestReconcile_TeamleadTargeting(t *testing.T) {
	lead := models.User{ID: "lead-1", Role: models.RoleTeamlead}
	otherTeam := int64(99)
	ownTeam := int64(10)
	outsider := "outsider-1"
	member := "agent-1"

	t.Run("foreign team rejected", func(t *testing.T) {
		f := newFixture()
		_, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
			Customers:    []models.RawRow{{"Firma": "Acme"}},
			TargetTeamID: &otherTeam,
		}, lead)
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	})

	t.Run("foreign agent rejected", func(t *testing.T) {
		f := newFixture()
		_, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
			Customers:     []models.RawRow{{"Firma": "Acme"}},
			TargetAgentID: &outsider,
		}, lead)
		require.Error(t, err)
		assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	})

	t.Run("own team and member allowed", func(t *testing.T) {
		f := newFixture()
		result, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
			Customers:     []models.RawRow{{"Firma": "Acme"}},
			TargetTeamID:  &ownTeam,
			TargetAgentID: &member,
		}, lead)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Created)
	})

	t.Run("self allowed", func(t *testing.T) {
		f := newFixture()
		self := lead.ID
		_, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
			Customers:     []models.RawRow{{"Firma": "Acme"}},
			TargetAgentID: &self,
		}, lead)
		require.NoError(t, err)
	})
}

func TestReconcile_CreatesCompanyWithContactsNoteAssignment(t *testing.T) {
	f := newFixture()
	agent := "agent-1"

	result, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
		Customers: []models.RawRow{
			{"Firma": "Müller GmbH", "Vorname": "Max", "Nachname": "Mustermann", "Branche": "Handwerk"},
			{"Firma": "müller gmbh", "Vorname": "Erika", "Nachname": "Beispiel"},
		},
		TargetAgentID: &agent,
	}, admin)
	require.NoError(t, err)

	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 1, result.Created)
	assert.Equal(t, 0, result.Failed)

	// One company despite two rows (case-insensitive grouping).
	require.Len(t, f.companies.companies, 1)
	company := f.companies.companies[0]
	assert.Equal(t, "Müller GmbH", company.Name)

	contacts := f.contacts.byCompany[company.ID]
	require.Len(t, contacts, 2)
	assert.True(t, contacts[0].IsPrimary)
	assert.False(t, contacts[1].IsPrimary)

	assert.Equal(t, []int64{company.ID}, f.notes.ensured)

	require.Len(t, f.assignments.rows, 1)
	a := f.assignments.rows[0]
	assert.Equal(t, models.AssignmentStatusImported, *a.Status)
	require.NotNil(t, a.ImportLogID)
	assert.Equal(t, f.importLogs.logs[0].ID, *a.ImportLogID)

	require.Len(t, f.tasks.rows, 1)
	task := f.tasks.rows[0]
	assert.Equal(t, "Erstkontakt: Müller GmbH", task.Title)
	assert.Equal(t, models.TaskStatusUntouched, task.Status)
	assert.Equal(t, models.TaskPriorityMedium, task.Priority)
	assert.Equal(t, "agent-1", *task.AssignedTo)
	assert.Equal(t, admin.ID, *task.AssignedBy)
}

func TestReconcile_NoAgentMeansNoAutoTask(t *testing.T) {
	f := newFixture()
	result, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
		Customers: []models.RawRow{{"Firma": "Acme"}},
	}, admin)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, f.tasks.rows)

	require.Len(t, f.assignments.rows, 1)
	assert.Nil(t, f.assignments.rows[0].AgentID)
}

func TestReconcile_UpdateVsReassign(t *testing.T) {
	agent := "agent-1"

	t.Run("existing assignment classifies as update", func(t *testing.T) {
		f := newFixture()
		f.companies.companies = []*models.Company{{ID: 1, Name: "Acme"}}
		f.companies.nextID = 1
		f.assignments.rows = []models.Assignment{{CompanyID: 1, AgentID: &agent}}

		result, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
			Customers:     []models.RawRow{{"Firma": "acme", "Branche": "IT"}},
			TargetAgentID: &agent,
		}, admin)
		require.NoError(t, err)

		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 0, result.Assigned)
		assert.Equal(t, 0, result.Created)

		// Always appends, never overwrites.
		require.Len(t, f.assignments.rows, 2)
		assert.Equal(t, models.AssignmentStatusReimported, *f.assignments.rows[1].Status)

		// Fields overwritten last-write-wins.
		assert.Equal(t, "IT", *f.companies.companies[0].Industry)
	})

	t.Run("new agent classifies as reassignment", func(t *testing.T) {
		f := newFixture()
		f.companies.companies = []*models.Company{{ID: 1, Name: "Acme"}}
		f.companies.nextID = 1

		result, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
			Customers:     []models.RawRow{{"Firma": "Acme"}},
			TargetAgentID: &agent,
		}, admin)
		require.NoError(t, err)

		assert.Equal(t, 0, result.Updated)
		assert.Equal(t, 1, result.Assigned)
		require.Len(t, f.assignments.rows, 1)
		assert.Equal(t, models.AssignmentStatusImported, *f.assignments.rows[0].Status)
	})
}

func TestReconcile_ContactDedupOnUpdate(t *testing.T) {
	f := newFixture()
	email := "max@acme.de"
	f.companies.companies = []*models.Company{{ID: 1, Name: "Acme"}}
	f.companies.nextID = 1
	f.contacts.byCompany = map[int64][]models.Contact{
		1: {{ID: 1, CompanyID: 1, FirstName: "Max", Email: &email, IsPrimary: true}},
	}

	_, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
		Customers: []models.RawRow{
			{"Firma": "Acme", "Vorname": "Max", "KontaktEmail": "MAX@acme.de"},
			{"Firma": "Acme", "Vorname": "Erika", "KontaktEmail": "erika@acme.de"},
		},
	}, admin)
	require.NoError(t, err)

	contacts := f.contacts.byCompany[1]
	require.Len(t, contacts, 2)
	assert.Equal(t, "Erika", contacts[1].FirstName)
	// Company already had a primary, so the new contact is not one.
	assert.False(t, contacts[1].IsPrimary)
}

func TestReconcile_MissingNameFailsRowOnly(t *testing.T) {
	f := newFixture()
	result, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
		Customers: []models.RawRow{
			{"Branche": "IT"},
			{"Firma": "Acme"},
		},
	}, admin)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Success)
	require.Len(t, result.Errors, 1)
	assert.Equal(t, 1, result.Errors[0].Row)
	assert.Contains(t, result.Errors[0].Message, "Firmenname fehlt")
}

func TestReconcile_GroupFailureIsolated(t *testing.T) {
	f := newFixture()
	f.companies.insertErr["Broken"] = errors.New("constraint violation")

	result, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
		Customers: []models.RawRow{
			{"Firma": "Broken"},
			{"Firma": "Fine"},
		},
	}, admin)
	require.NoError(t, err)

	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, 1, result.Success)
	assert.Equal(t, 1, result.Created)
	require.Len(t, f.companies.companies, 1)
	assert.Equal(t, "Fine", f.companies.companies[0].Name)
}

func TestReconcile_LogTalliesAndBestEffort(t *testing.T) {
	t.Run("tallies written", func(t *testing.T) {
		f := newFixture()
		agent := "agent-1"
		result, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
			Customers:     []models.RawRow{{"Firma": "Acme"}, {"Branche": "IT"}},
			FileName:      "kunden.xlsx",
			TargetAgentID: &agent,
		}, admin)
		require.NoError(t, err)
		require.NotNil(t, result.ImportLogID)
		assert.Equal(t, 1, f.importLogs.tallies.Success)
		assert.Equal(t, 1, f.importLogs.tallies.Failed)
		assert.Equal(t, 1, f.importLogs.tallies.Created)
		assert.Equal(t, 0, f.importLogs.tallies.Updated)
		assert.Equal(t, 0, f.importLogs.tallies.Assigned)
		assert.Equal(t, "kunden.xlsx", *f.importLogs.logs[0].FileName)
		require.NotNil(t, f.importLogs.logs[0].TargetAgentID)
		assert.Equal(t, agent, *f.importLogs.logs[0].TargetAgentID)
	})

	t.Run("log failure does not abort import", func(t *testing.T) {
		f := newFixture()
		f.importLogs.insertErr = errors.New("table missing")
		result, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{
			Customers: []models.RawRow{{"Firma": "Acme"}},
		}, admin)
		require.NoError(t, err)
		assert.Nil(t, result.ImportLogID)
		assert.Equal(t, 1, result.Created)
		require.Len(t, f.assignments.rows, 1)
		assert.Nil(t, f.assignments.rows[0].ImportLogID)
	})
}

func TestReconcile_RowLimit(t *testing.T) {
	f := newFixture()
	rows := make([]models.RawRow, 1001)
	for i := range rows {
		rows[i] = models.RawRow{"Firma": "Acme"}
	}
	_, err := f.reconciler.Reconcile(context.Background(), models.ImportRequest{Customers: rows}, admin)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
}
