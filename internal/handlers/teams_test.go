package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fakeTeamStore struct {
	teams   []models.Team
	members map[int64][]models.TeamMemberInfo
	ledBy   map[string][]int64
}

func (f *fakeTeamStore) ListWithMembers(context.Context) ([]models.Team, map[int64][]models.TeamMemberInfo, error) {
	return f.teams, f.members, nil
}

func (f *fakeTeamStore) TeamIDsLedBy(_ context.Context, userID string) ([]int64, error) {
	return f.ledBy[userID], nil
}

type fakeNameResolver struct {
	names map[string]string
}

func (f *fakeNameResolver) NamesByIDs(context.Context, []string) (map[string]string, error) {
	return f.names, nil
}

func newTeamFixture() *TeamHandler {
	lead1 := "lead-1"
	lead2 := "lead-2"
	store := &fakeTeamStore{
		teams: []models.Team{
			{ID: 10, Name: "Nord", TeamleadID: &lead1},
			{ID: 20, Name: "Süd", TeamleadID: &lead2},
		},
		members: map[int64][]models.TeamMemberInfo{
			10: {{TeamID: 10, UserID: "agent-1"}},
		},
		ledBy: map[string][]int64{"lead-1": {10}},
	}
	names := &fakeNameResolver{names: map[string]string{"lead-1": "Lena Lead", "lead-2": "Sven Lead"}}
	return NewTeamHandler(store, names, testLogger())
}

func TestTeamList_AdminSeesAll(t *testing.T) {
	h := newTeamFixture()

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/teams", nil), adminUser())
	require.NoError(t, h.List(c))

	var resp []models.TeamResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 2)
	assert.Equal(t, "Nord", resp[0].Name)
	require.NotNil(t, resp[0].TeamleadName)
	assert.Equal(t, "Lena Lead", *resp[0].TeamleadName)
	assert.Len(t, resp[0].Members, 1)
	assert.NotNil(t, resp[1].Members, "missing member list serializes as an empty array")
	assert.Empty(t, resp[1].Members)
}

func TestTeamList_TeamleadSeesLedTeamsOnly(t *testing.T) {
	h := newTeamFixture()

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/teams", nil), teamleadUser())
	require.NoError(t, h.List(c))

	var resp []models.TeamResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, int64(10), resp[0].ID)
}

func TestTeamList_AgentSeesNone(t *testing.T) {
	h := newTeamFixture()

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/teams", nil), agentUser())
	require.NoError(t, h.List(c))

	var resp []models.TeamResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Empty(t, resp)
}

type fakeAssignableUsers struct {
	caller models.User
	users  []models.AssignableUser
}

func (f *fakeAssignableUsers) ListAssignable(_ context.Context, caller models.User) ([]models.AssignableUser, error) {
	f.caller = caller
	return f.users, nil
}

func TestAssignableUsers_PassesCaller(t *testing.T) {
	store := &fakeAssignableUsers{users: []models.AssignableUser{{ID: "agent-1", Name: "Anna Agent"}}}
	h := NewUserHandler(store, testLogger())

	c, rec := newTestContext(jsonRequest(http.MethodGet, "/api/users/assignable", nil), teamleadUser())
	require.NoError(t, h.Assignable(c))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lead-1", store.caller.ID)

	var resp []models.AssignableUser
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "agent-1", resp[0].ID)
}
