package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/Gobusters/ectoerror/httperror"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fakeAnalyseUserStore struct {
	assignable []models.AssignableUser
	byID       map[string]*models.User
}

func (f *fakeAnalyseUserStore) ListAssignable(context.Context, models.User) ([]models.AssignableUser, error) {
	return f.assignable, nil
}

func (f *fakeAnalyseUserStore) GetByID(_ context.Context, id string) (*models.User, error) {
	user, ok := f.byID[id]
	if !ok {
		return nil, httperror.NewHTTPError(http.StatusNotFound, "user not found")
	}
	return user, nil
}

type fakeAnalyseAssignments struct {
	counts     map[string]int
	assignedAt map[int64]time.Time
}

func (f *fakeAnalyseAssignments) CountByAgents(context.Context, []string) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeAnalyseAssignments) FirstAssignedAtForAgent(context.Context, string) (map[int64]time.Time, error) {
	return f.assignedAt, nil
}

type fakeAnalyseTasks struct {
	tallies map[string]models.TaskTally
}

func (f *fakeAnalyseTasks) CountByAssignees(context.Context, []string) (map[string]models.TaskTally, error) {
	return f.tallies, nil
}

type fakeAnalyseActivities struct {
	counts        map[string]int
	firstActivity map[int64]time.Time
}

func (f *fakeAnalyseActivities) CountByUserSince(context.Context, []string, time.Time) (map[string]int, error) {
	return f.counts, nil
}

func (f *fakeAnalyseActivities) FirstActivityByCompany(context.Context, []int64) (map[int64]time.Time, error) {
	return f.firstActivity, nil
}

type fakeAgentChangeLog struct {
	entries []models.ChangeLogResponse
}

func (f *fakeAgentChangeLog) ListByUser(context.Context, string, int) ([]models.ChangeLogResponse, error) {
	return f.entries, nil
}

type analyseFixture struct {
	handler     *AnalyseHandler
	resolver    *fakeAssigneeResolver
	users       *fakeAnalyseUserStore
	assignments *fakeAnalyseAssignments
	activities  *fakeAnalyseActivities
}

func newAnalyseFixture() *analyseFixture {
	f := &analyseFixture{
		resolver: &fakeAssigneeResolver{},
		users:    &fakeAnalyseUserStore{byID: map[string]*models.User{}},
		assignments: &fakeAnalyseAssignments{
			counts:     map[string]int{},
			assignedAt: map[int64]time.Time{},
		},
		activities: &fakeAnalyseActivities{
			counts:        map[string]int{},
			firstActivity: map[int64]time.Time{},
		},
	}
	f.handler = NewAnalyseHandler(
		f.resolver,
		f.users,
		f.assignments,
		&fakeAnalyseTasks{tallies: map[string]models.TaskTally{}},
		f.activities,
		&fakeAgentChangeLog{},
		testLogger(),
	)
	return f
}

func TestAnalyseList_AgentForbidden(t *testing.T) {
	f := newAnalyseFixture()

	c, _ := newTestContext(jsonRequest(http.MethodGet, "/api/admin/analyse", nil), agentUser())
	err := f.handler.List(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestAnalyseList_AggregatesPerAgent(t *testing.T) {
	f := newAnalyseFixture()
	f.users.assignable = []models.AssignableUser{
		{ID: "agent-1", Name: "Anna Agent", Role: models.RoleAgent},
		{ID: "agent-2", Name: "Bernd Agent", Role: models.RoleAgent},
	}
	f.assignments.counts = map[string]int{"agent-1": 5}
	f.handler.tasks = &fakeAnalyseTasks{tallies: map[string]models.TaskTally{
		"agent-1": {Total: 4, Completed: 3},
	}}
	f.activities.counts = map[string]int{"agent-1": 7}

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/admin/analyse", nil), adminUser())
	require.NoError(t, f.handler.List(c))

	var resp models.AnalyseListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Data, 2)

	first := resp.Data[0]
	assert.Equal(t, "agent-1", first.AgentID)
	assert.Equal(t, 5, first.Statistics.TotalAssigned)
	assert.Equal(t, 4, first.Statistics.TotalTasks)
	assert.Equal(t, 3, first.Statistics.ErledigtCount)
	assert.Equal(t, 1, first.Statistics.OffenCount)
	assert.Equal(t, 7, first.Statistics.TotalActivities)
	assert.Nil(t, first.Statistics.AvgTimeToContact, "reaction time is a detail-view KPI")

	// Agents with no rows report zeroes, not gaps.
	second := resp.Data[1]
	assert.Equal(t, 0, second.Statistics.TotalAssigned)
	assert.Equal(t, 0, second.Statistics.TotalTasks)
}

func TestAnalyseGet_TeamleadOutsideTeamForbidden(t *testing.T) {
	f := newAnalyseFixture()
	f.resolver.assignees = []string{"lead-1", "agent-1"}

	c, _ := newTestContext(jsonRequest(http.MethodGet, "/api/admin/analyse/outsider", nil), teamleadUser())
	c.SetParamNames("agentId")
	c.SetParamValues("outsider")

	err := f.handler.Get(c)
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, httperror.GetStatusCode(err))
}

func TestAnalyseGet_ComputesReactionTime(t *testing.T) {
	f := newAnalyseFixture()
	f.users.byID["agent-1"] = &models.User{ID: "agent-1", Name: "Anna Agent", Role: models.RoleAgent}

	base := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)
	f.assignments.assignedAt = map[int64]time.Time{
		1: base,
		2: base,
		3: base, // no activity: excluded from the average
	}
	f.activities.firstActivity = map[int64]time.Time{
		1: base.Add(2 * time.Hour),
		2: base.Add(3 * time.Hour),
	}

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/admin/analyse/agent-1", nil), adminUser())
	c.SetParamNames("agentId")
	c.SetParamValues("agent-1")

	require.NoError(t, f.handler.Get(c))

	var kpi models.AgentKPI
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &kpi))
	assert.Equal(t, 3, kpi.Statistics.TotalAssigned)
	require.NotNil(t, kpi.Statistics.AvgTimeToContact)
	assert.InDelta(t, 2.5, *kpi.Statistics.AvgTimeToContact, 0.001)
}

func TestAvgReactionHours(t *testing.T) {
	base := time.Date(2026, 8, 1, 8, 0, 0, 0, time.UTC)

	t.Run("rounds to one decimal", func(t *testing.T) {
		avg := avgReactionHours(
			map[int64]time.Time{1: base},
			map[int64]time.Time{1: base.Add(100 * time.Minute)},
		)
		require.NotNil(t, avg)
		assert.Equal(t, 1.7, *avg)
	})

	t.Run("skips activity before assignment", func(t *testing.T) {
		avg := avgReactionHours(
			map[int64]time.Time{1: base},
			map[int64]time.Time{1: base.Add(-time.Hour)},
		)
		assert.Nil(t, avg)
	})

	t.Run("nil when no overlap", func(t *testing.T) {
		assert.Nil(t, avgReactionHours(map[int64]time.Time{1: base}, nil))
	})
}
