package scope

import (
	"context"

	"github.com/Ramsey-B/dahlia/pkg/models"
)

// AssignmentSource answers "which companies does the latest assignment put
// with these agents/teams". Only the newest assignment row per company
// counts; superseded rows do not grant visibility.
type AssignmentSource interface {
	CompanyIDsForAgents(ctx context.Context, agentIDs []string) ([]int64, error)
	CompanyIDsForTeams(ctx context.Context, teamIDs []int64) ([]int64, error)
}

// TeamSource answers team leadership and membership questions.
type TeamSource interface {
	TeamIDsLedBy(ctx context.Context, userID string) ([]int64, error)
	MemberIDs(ctx context.Context, teamIDs []int64) ([]string, error)
}

// Resolver computes the visibility scope for a user by role:
// admins see everything, teamleads see their own book plus everything routed
// to the teams they lead (directly or via members), agents see only
// companies currently assigned to them.
type Resolver struct {
	assignments AssignmentSource
	teams       TeamSource
}

func NewResolver(assignments AssignmentSource, teams TeamSource) *Resolver {
	return &Resolver{assignments: assignments, teams: teams}
}

// Resolve returns the scope for the user. A user with no assignments and no
// led teams gets the empty scope, never the unrestricted one.
func (r *Resolver) Resolve(ctx context.Context, user models.User) (Scope, error) {
	switch user.Role {
	case models.RoleAdmin:
		return Everything(), nil
	case models.RoleTeamlead:
		return r.resolveTeamlead(ctx, user.ID)
	default:
		return r.resolveAgent(ctx, user.ID)
	}
}

// TaskAssignees returns the user IDs whose tasks the caller may see. A nil
// slice means unrestricted (admin); a non-nil slice restricts to those
// assignees.
func (r *Resolver) TaskAssignees(ctx context.Context, user models.User) ([]string, error) {
	switch user.Role {
	case models.RoleAdmin:
		return nil, nil
	case models.RoleTeamlead:
		ledTeams, err := r.teams.TeamIDsLedBy(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		assignees := []string{user.ID}
		if len(ledTeams) > 0 {
			members, err := r.teams.MemberIDs(ctx, ledTeams)
			if err != nil {
				return nil, err
			}
			for _, m := range members {
				if m != user.ID {
					assignees = append(assignees, m)
				}
			}
		}
		return assignees, nil
	default:
		return []string{user.ID}, nil
	}
}

func (r *Resolver) resolveAgent(ctx context.Context, userID string) (Scope, error) {
	ids, err := r.assignments.CompanyIDsForAgents(ctx, []string{userID})
	if err != nil {
		return Scope{}, err
	}
	return Of(ids), nil
}

func (r *Resolver) resolveTeamlead(ctx context.Context, userID string) (Scope, error) {
	ledTeams, err := r.teams.TeamIDsLedBy(ctx, userID)
	if err != nil {
		return Scope{}, err
	}

	agentIDs := []string{userID}
	if len(ledTeams) > 0 {
		members, err := r.teams.MemberIDs(ctx, ledTeams)
		if err != nil {
			return Scope{}, err
		}
		for _, m := range members {
			if m != userID {
				agentIDs = append(agentIDs, m)
			}
		}
	}

	ids, err := r.assignments.CompanyIDsForAgents(ctx, agentIDs)
	if err != nil {
		return Scope{}, err
	}

	if len(ledTeams) > 0 {
		teamIDs, err := r.assignments.CompanyIDsForTeams(ctx, ledTeams)
		if err != nil {
			return Scope{}, err
		}
		ids = append(ids, teamIDs...)
	}

	return Of(ids), nil
}
