package models

import "time"

// Team groups agents under one teamlead. TeamleadID is nullable because the
// lead may be deleted out from under the team.
type Team struct {
	ID         int64     `json:"id" db:"id"`
	Name       string    `json:"name" db:"name"`
	TeamleadID *string   `json:"teamlead_id" db:"teamlead_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// TeamMember is the many-to-many bridge between users and teams, unique on
// (team_id, user_id).
type TeamMember struct {
	ID        int64     `json:"id" db:"id"`
	TeamID    int64     `json:"team_id" db:"team_id"`
	UserID    string    `json:"user_id" db:"user_id"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// TeamMemberInfo is a member row joined with the user's display fields.
type TeamMemberInfo struct {
	TeamID int64   `json:"-" db:"team_id"`
	UserID string  `json:"id" db:"user_id"`
	Name   *string `json:"name" db:"name"`
	Email  *string `json:"email" db:"email"`
	Role   *string `json:"role" db:"role"`
}

// TeamResponse is the teams-endpoint shape: team plus lead and members.
type TeamResponse struct {
	ID           int64            `json:"id"`
	Name         string           `json:"name"`
	TeamleadID   *string          `json:"teamleadId"`
	TeamleadName *string          `json:"teamleadName"`
	Members      []TeamMemberInfo `json:"members"`
}
