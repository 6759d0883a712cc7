package scope

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ramsey-B/dahlia/pkg/models"
)

type fakeAssignments struct {
	byAgent map[string][]int64
	byTeam  map[int64][]int64
}

func (f *fakeAssignments) CompanyIDsForAgents(_ context.Context, agentIDs []string) ([]int64, error) {
	var out []int64
	for _, id := range agentIDs {
		out = append(out, f.byAgent[id]...)
	}
	return out, nil
}

func (f *fakeAssignments) CompanyIDsForTeams(_ context.Context, teamIDs []int64) ([]int64, error) {
	var out []int64
	for _, id := range teamIDs {
		out = append(out, f.byTeam[id]...)
	}
	return out, nil
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

func newResolver() *Resolver {
	assignments := &fakeAssignments{
		byAgent: map[string][]int64{
			"lead-1":  {1},
			"agent-1": {2, 3},
			"agent-2": {4},
			"outside": {5},
		},
		byTeam: map[int64][]int64{
			10: {6},
			20: {7},
		},
	}
	teams := &fakeTeams{
		ledBy: map[string][]int64{
			"lead-1": {10},
		},
		members: map[int64][]string{
			10: {"lead-1", "agent-1", "agent-2"},
			20: {"outside"},
		},
	}
	return NewResolver(assignments, teams)
}

func TestResolve_Admin(t *testing.T) {
	r := newResolver()
	s, err := r.Resolve(context.Background(), models.User{ID: "any", Role: models.RoleAdmin})
	require.NoError(t, err)
	assert.True(t, s.IsAll())
	assert.True(t, s.Contains(999))
}

func TestResolve_Agent(t *testing.T) {
	r := newResolver()
	s, err := r.Resolve(context.Background(), models.User{ID: "agent-1", Role: models.RoleAgent})
	require.NoError(t, err)
	assert.False(t, s.IsAll())
	assert.ElementsMatch(t, []int64{2, 3}, s.IDs())
	assert.True(t, s.Contains(2))
	assert.False(t, s.Contains(4))
}

func TestResolve_AgentWithoutAssignments(t *testing.T) {
	r := newResolver()
	s, err := r.Resolve(context.Background(), models.User{ID: "nobody", Role: models.RoleAgent})
	require.NoError(t, err)
	assert.True(t, s.IsEmpty())
	assert.False(t, s.IsAll())
	assert.False(t, s.Contains(1))
}

func TestResolve_Teamlead(t *testing.T) {
	r := newResolver()
	s, err := r.Resolve(context.Background(), models.User{ID: "lead-1", Role: models.RoleTeamlead})
	require.NoError(t, err)
	// Own book (1), members' books (2,3,4), team-routed (6). Not team 20's.
	assert.ElementsMatch(t, []int64{1, 2, 3, 4, 6}, s.IDs())
	assert.False(t, s.Contains(5))
	assert.False(t, s.Contains(7))
}

func TestResolve_TeamleadWithoutTeam(t *testing.T) {
	// A teamlead leading no teams degrades to self-only visibility.
	r := newResolver()
	s, err := r.Resolve(context.Background(), models.User{ID: "agent-2", Role: models.RoleTeamlead})
	require.NoError(t, err)
	assert.ElementsMatch(t, []int64{4}, s.IDs())
}

func TestOf_Deduplicates(t *testing.T) {
	s := Of([]int64{1, 2, 2, 3, 1})
	assert.ElementsMatch(t, []int64{1, 2, 3}, s.IDs())
}
