package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/Gobusters/ectologger"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/dahlia/pkg/changelog"
	"github.com/Ramsey-B/dahlia/pkg/middleware"
	"github.com/Ramsey-B/dahlia/pkg/models"
	"github.com/Ramsey-B/dahlia/pkg/query"
	"github.com/Ramsey-B/dahlia/pkg/scope"
)

func testLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

func jsonRequest(method, target string, body any) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return req
}

func newTestContext(req *http.Request, user models.User) (echo.Context, *httptest.ResponseRecorder) {
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	c.Set(middleware.UserContextKey, user)
	return c, rec
}

type fakeScopeResolver struct {
	s scope.Scope
}

func (f *fakeScopeResolver) Resolve(context.Context, models.User) (scope.Scope, error) {
	return f.s, nil
}

type fakeCompanyStore struct {
	byID       map[int64]*models.Company
	listResult []models.Company
	listTotal  int
	listCalled bool
	updated    *models.Company
	updateErr  error
}

func (f *fakeCompanyStore) GetByID(_ context.Context, id int64) (*models.Company, error) {
	company, ok := f.byID[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "company not found")
	}
	cp := *company
	return &cp, nil
}

func (f *fakeCompanyStore) List(_ context.Context, _ scope.Scope, _ query.CompanyFilters, _, _ int) ([]models.Company, int, error) {
	f.listCalled = true
	return f.listResult, f.listTotal, nil
}

func (f *fakeCompanyStore) Update(_ context.Context, company *models.Company) error {
	if f.updateErr != nil {
		return f.updateErr
	}
	f.updated = company
	return nil
}

type fakeContactStore struct {
	byCompany map[int64][]models.Contact
	inserted  []*models.Contact
	updatedCt []*models.Contact
	keep      []int64
}

func (f *fakeContactStore) ListByCompany(_ context.Context, companyID int64) ([]models.Contact, error) {
	return f.byCompany[companyID], nil
}

func (f *fakeContactStore) ListByCompanyIDs(_ context.Context, companyIDs []int64) (map[int64][]models.Contact, error) {
	out := map[int64][]models.Contact{}
	for _, id := range companyIDs {
		if contacts, ok := f.byCompany[id]; ok {
			out[id] = contacts
		}
	}
	return out, nil
}

func (f *fakeContactStore) Insert(_ context.Context, contact *models.Contact) error {
	f.inserted = append(f.inserted, contact)
	return nil
}

func (f *fakeContactStore) Update(_ context.Context, contact *models.Contact) error {
	f.updatedCt = append(f.updatedCt, contact)
	return nil
}

func (f *fakeContactStore) DeleteMissing(_ context.Context, _ int64, keep []int64) error {
	f.keep = keep
	return nil
}

type fakeNoteStore struct {
	byCompany map[int64]models.ConversationNote
	upserts   int
}

func (f *fakeNoteStore) GetByCompany(_ context.Context, companyID int64) (*models.ConversationNote, error) {
	note, ok := f.byCompany[companyID]
	if !ok {
		return nil, nil
	}
	return &note, nil
}

func (f *fakeNoteStore) GetByCompanyIDs(_ context.Context, companyIDs []int64) (map[int64]models.ConversationNote, error) {
	out := map[int64]models.ConversationNote{}
	for _, id := range companyIDs {
		if note, ok := f.byCompany[id]; ok {
			out[id] = note
		}
	}
	return out, nil
}

func (f *fakeNoteStore) Upsert(_ context.Context, companyID int64, hook, research string, _ *string) error {
	if f.byCompany == nil {
		f.byCompany = map[int64]models.ConversationNote{}
	}
	f.upserts++
	f.byCompany[companyID] = models.ConversationNote{
		CompanyID:        companyID,
		ConversationHook: &hook,
		ResearchResult:   &research,
	}
	return nil
}

type fakeAssignmentReader struct {
	latest map[int64]models.LatestAssignment
}

func (f *fakeAssignmentReader) LatestByCompanyIDs(context.Context, []int64) (map[int64]models.LatestAssignment, error) {
	return f.latest, nil
}

type fakeTaskReader struct {
	open map[int64][]models.Task
}

func (f *fakeTaskReader) OpenByCompanyIDs(context.Context, []int64) (map[int64][]models.Task, error) {
	return f.open, nil
}

type fakeActivityStore struct {
	byCompany map[int64][]models.Activity
	inserted  []*models.Activity
}

func (f *fakeActivityStore) Insert(_ context.Context, activity *models.Activity) error {
	activity.ID = int64(len(f.inserted) + 1)
	f.inserted = append(f.inserted, activity)
	return nil
}

func (f *fakeActivityStore) ListByCompany(_ context.Context, companyID int64) ([]models.Activity, error) {
	return f.byCompany[companyID], nil
}

type fakeChangeLogReader struct {
	entries []models.ChangeLogResponse
}

func (f *fakeChangeLogReader) ListByCompany(context.Context, int64, int) ([]models.ChangeLogResponse, error) {
	return f.entries, nil
}

type fakeLogStore struct {
	entries []models.ChangeLogEntry
}

func (f *fakeLogStore) Insert(_ context.Context, entry models.ChangeLogEntry) error {
	f.entries = append(f.entries, entry)
	return nil
}

func (f *fakeLogStore) labels() []string {
	out := make([]string, len(f.entries))
	for i, e := range f.entries {
		out[i] = e.Label
	}
	return out
}

type fakeImportRunner struct {
	req    models.ImportRequest
	actor  models.User
	result models.ImportResult
}

func (f *fakeImportRunner) Reconcile(_ context.Context, req models.ImportRequest, actor models.User) (models.ImportResult, error) {
	f.req = req
	f.actor = actor
	return f.result, nil
}

type fakeCustomerEvents struct {
	updated []int64
}

func (f *fakeCustomerEvents) CompanyUpdated(_ context.Context, companyID int64, _ string) {
	f.updated = append(f.updated, companyID)
}

type customerFixture struct {
	handler    *CustomerHandler
	resolver   *fakeScopeResolver
	companies  *fakeCompanyStore
	contacts   *fakeContactStore
	notes      *fakeNoteStore
	activities *fakeActivityStore
	logStore   *fakeLogStore
	events     *fakeCustomerEvents
	reconciler *fakeImportRunner
}

func newCustomerFixture(s scope.Scope) *customerFixture {
	f := &customerFixture{
		resolver:   &fakeScopeResolver{s: s},
		companies:  &fakeCompanyStore{byID: map[int64]*models.Company{}},
		contacts:   &fakeContactStore{byCompany: map[int64][]models.Contact{}},
		notes:      &fakeNoteStore{byCompany: map[int64]models.ConversationNote{}},
		activities: &fakeActivityStore{byCompany: map[int64][]models.Activity{}},
		logStore:   &fakeLogStore{},
		events:     &fakeCustomerEvents{},
		reconciler: &fakeImportRunner{},
	}
	logger := testLogger()
	f.handler = NewCustomerHandler(
		f.resolver,
		f.companies,
		f.contacts,
		f.notes,
		&fakeAssignmentReader{latest: map[int64]models.LatestAssignment{}},
		&fakeTaskReader{open: map[int64][]models.Task{}},
		f.activities,
		&fakeChangeLogReader{},
		changelog.NewRecorder(f.logStore, logger),
		f.reconciler,
		f.events,
		logger,
	)
	return f
}

func agentUser() models.User {
	return models.User{ID: "agent-1", Name: "Anna Agent", Role: models.RoleAgent}
}

func adminUser() models.User {
	return models.User{ID: "admin-1", Name: "Otto Admin", Role: models.RoleAdmin}
}

func TestCustomerList_EmptyScopeNeverQueries(t *testing.T) {
	f := newCustomerFixture(scope.Of(nil))

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/customers", nil), agentUser())
	require.NoError(t, f.handler.List(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.companies.listCalled, "empty scope must short-circuit before the database")

	var resp models.CustomerListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp.Data)
	assert.Equal(t, 0, resp.Pagination.Total)
}

func TestCustomerList_AssemblesNestedChildren(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	hook := "Golf"
	status := models.AssignmentStatusInProgress
	agentID := "agent-1"

	f.companies.listResult = []models.Company{
		{ID: 1, Name: "Muster GmbH", EmployeeCount: 12},
		{ID: 2, Name: "Beispiel AG"},
	}
	f.companies.listTotal = 2
	f.contacts.byCompany[1] = []models.Contact{{ID: 7, CompanyID: 1, FirstName: "Max", IsPrimary: true}}
	f.notes.byCompany[1] = models.ConversationNote{CompanyID: 1, ConversationHook: &hook}
	f.handler.assignments = &fakeAssignmentReader{latest: map[int64]models.LatestAssignment{
		1: {CompanyID: 1, AgentID: &agentID, Status: &status},
	}}
	f.handler.tasks = &fakeTaskReader{open: map[int64][]models.Task{
		1: {{ID: 3, CompanyID: 1, Title: "Anrufen", Status: models.TaskStatusUntouched, Priority: models.TaskPriorityHigh}},
	}}

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/customers", nil), adminUser())
	require.NoError(t, f.handler.List(c))

	var resp models.CustomerListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)

	first := resp.Data[0]
	assert.Equal(t, "Muster GmbH", first.CompanyName)
	assert.Equal(t, "12", first.EmployeeCount)
	assert.Equal(t, models.AssignmentStatusInProgress, first.Status)
	assert.Equal(t, &agentID, first.AssignedAgentID)
	assert.Equal(t, "Golf", first.ConversationHook)
	require.Len(t, first.Contacts, 1)
	assert.Equal(t, "Max", first.Contacts[0].FirstName)
	require.Len(t, first.Tasks, 1)
	assert.Equal(t, "Muster GmbH", first.Tasks[0].CompanyName)

	// No assignment history means the default status.
	second := resp.Data[1]
	assert.Equal(t, models.AssignmentStatusAdded, second.Status)
	assert.Empty(t, second.Contacts)
	assert.Empty(t, second.Tasks)
}

func TestCustomerUpdate_OutsideScopeForbidden(t *testing.T) {
	f := newCustomerFixture(scope.Of([]int64{999}))
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Muster GmbH"}

	body := models.UpdateCompanyRequest{CompanyName: "Muster GmbH"}
	c, _ := newTestContext(jsonRequest(http.MethodPut, "/api/customers/1", body), agentUser())
	c.SetParamNames("id")
	c.SetParamValues("1")

	err := f.handler.Update(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Nil(t, f.companies.updated)
}

func TestCustomerUpdate_RecordsChangedFieldsOnly(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	city := "Berlin"
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Alt GmbH", City: &city}

	body := models.UpdateCompanyRequest{CompanyName: "Neu GmbH", City: "Hamburg"}
	c, rec := newTestContext(jsonRequest(http.MethodPut, "/api/customers/1", body), adminUser())
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, f.handler.Update(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	labels := f.logStore.labels()
	assert.ElementsMatch(t, []string{"Firmenname geändert", "Stadt geändert"}, labels)
	for _, entry := range f.logStore.entries {
		require.NotNil(t, entry.UserID)
		assert.Equal(t, "admin-1", *entry.UserID)
	}

	require.NotNil(t, f.companies.updated)
	assert.Equal(t, "Neu GmbH", f.companies.updated.Name)
	assert.Equal(t, []int64{1}, f.events.updated)
}

func TestCustomerUpdate_FailedUpdateWritesNoAudit(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Alt GmbH"}
	f.companies.updateErr = httperror.NewHTTPError(http.StatusInternalServerError, "update failed")

	body := models.UpdateCompanyRequest{CompanyName: "Neu GmbH"}
	c, _ := newTestContext(jsonRequest(http.MethodPut, "/api/customers/1", body), adminUser())
	c.SetParamNames("id")
	c.SetParamValues("1")

	err := f.handler.Update(c)
	require.Error(t, err)
	assert.Empty(t, f.logStore.entries)
	assert.Empty(t, f.events.updated)
}

func TestCustomerUpdate_NoChangesNoAudit(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Muster GmbH"}

	body := models.UpdateCompanyRequest{CompanyName: "Muster GmbH"}
	c, _ := newTestContext(jsonRequest(http.MethodPut, "/api/customers/1", body), adminUser())
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, f.handler.Update(c))
	assert.Empty(t, f.logStore.entries)
}

func TestReplaceContacts_SplitsInsertUpdateDelete(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Muster GmbH"}

	payloads := []models.ContactPayload{
		{ID: 7, FirstName: "Max", IsPrimary: true},
		{FirstName: "Erika"},
	}
	c, rec := newTestContext(jsonRequest(http.MethodPut, "/api/customers/1/contacts", payloads), adminUser())
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, f.handler.ReplaceContacts(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, []int64{7}, f.contacts.keep)
	require.Len(t, f.contacts.updatedCt, 1)
	assert.Equal(t, int64(7), f.contacts.updatedCt[0].ID)
	require.Len(t, f.contacts.inserted, 1)
	assert.Equal(t, "Erika", f.contacts.inserted[0].FirstName)
	assert.Equal(t, []string{"Kontakte aktualisiert"}, f.logStore.labels())
}

func TestUpsertNotes_AuditCreatedThenUpdatedThenSilent(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Muster GmbH"}

	send := func(hook, research string) {
		body := models.UpsertNotesRequest{ConversationHook: hook, ResearchResult: research}
		c, _ := newTestContext(jsonRequest(http.MethodPut, "/api/customers/1/notes", body), adminUser())
		c.SetParamNames("id")
		c.SetParamValues("1")
		require.NoError(t, f.handler.UpsertNotes(c))
	}

	send("Golf", "")
	assert.Equal(t, []string{"Notizen erstellt"}, f.logStore.labels())

	send("Golf", "Sponsort Verein")
	assert.Equal(t, []string{"Notizen erstellt", "Notizen aktualisiert"}, f.logStore.labels())

	// Identical content writes no further entry.
	send("Golf", "Sponsort Verein")
	assert.Equal(t, []string{"Notizen erstellt", "Notizen aktualisiert"}, f.logStore.labels())
	assert.Equal(t, 3, f.notes.upserts)
}

func TestActivities_ListsForCompanyInScope(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Muster GmbH"}
	subject := "Erstkontakt"
	f.activities.byCompany[1] = []models.Activity{
		{ID: 9, CompanyID: 1, UserID: "agent-1", Type: models.ActivityTypeCall, Subject: &subject},
	}

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/customers/1/activities", nil), agentUser())
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, f.handler.Activities(c))
	assert.Equal(t, http.StatusOK, rec.Code)

	var resp []models.Activity
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, models.ActivityTypeCall, resp[0].Type)
}

func TestActivities_EmptySerializesAsArray(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Muster GmbH"}

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/customers/1/activities", nil), adminUser())
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, f.handler.Activities(c))
	assert.Equal(t, "[]\n", rec.Body.String())
}

func TestLogActivity_SetsCallerAsActor(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Muster GmbH"}

	body := models.CreateActivityRequest{Type: models.ActivityTypeEmail}
	c, rec := newTestContext(jsonRequest(http.MethodPost, "/api/customers/1/activities", body), agentUser())
	c.SetParamNames("id")
	c.SetParamValues("1")

	require.NoError(t, f.handler.LogActivity(c))
	assert.Equal(t, http.StatusCreated, rec.Code)

	require.Len(t, f.activities.inserted, 1)
	assert.Equal(t, int64(1), f.activities.inserted[0].CompanyID)
	assert.Equal(t, "agent-1", f.activities.inserted[0].UserID)
}

func TestLogActivity_RejectsUnknownType(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Muster GmbH"}

	body := models.CreateActivityRequest{Type: "FAX"}
	c, _ := newTestContext(jsonRequest(http.MethodPost, "/api/customers/1/activities", body), agentUser())
	c.SetParamNames("id")
	c.SetParamValues("1")

	err := f.handler.LogActivity(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, httperror.GetStatusCode(err))
	assert.Empty(t, f.activities.inserted)
}

func TestLogActivity_OutsideScopeForbidden(t *testing.T) {
	f := newCustomerFixture(scope.Of([]int64{999}))
	f.companies.byID[1] = &models.Company{ID: 1, Name: "Muster GmbH"}

	body := models.CreateActivityRequest{Type: models.ActivityTypeCall}
	c, _ := newTestContext(jsonRequest(http.MethodPost, "/api/customers/1/activities", body), agentUser())
	c.SetParamNames("id")
	c.SetParamValues("1")

	err := f.handler.LogActivity(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
	assert.Empty(t, f.activities.inserted)
}

func TestImport_DelegatesToReconciler(t *testing.T) {
	f := newCustomerFixture(scope.Everything())
	f.reconciler.result = models.ImportResult{Total: 2, Success: 2, Created: 1, Updated: 1}

	body := models.ImportRequest{
		Customers:   []models.RawRow{{"Firmenname": "Muster GmbH"}, {"Firmenname": "Beispiel AG"}},
		ProjectName: "Q3",
	}
	c, rec := newTestContext(jsonRequest(http.MethodPost, "/api/customers/import", body), adminUser())

	require.NoError(t, f.handler.Import(c))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin-1", f.reconciler.actor.ID)
	assert.Len(t, f.reconciler.req.Customers, 2)

	var result models.ImportResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.Success)
}
