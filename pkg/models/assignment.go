package models

import "time"

// Assignment statuses. The table is append-only history: every import or
// reassignment inserts a new row and the latest row by assigned_at is the
// company's current status/agent/team.
const (
	AssignmentStatusAdded      = "Hinzugefügt Am"
	AssignmentStatusImported   = "Neu Importiert"
	AssignmentStatusReimported = "Erneut Importiert"
	AssignmentStatusInProgress = "In Bearbeitung"
	AssignmentStatusNotReached = "Nicht erreicht"
)

// Assignment links a company to an agent and/or team at a point in time.
// ImportLogID is set when the row was produced by a bulk import, so log
// deletion can find its companies without timestamp guessing.
type Assignment struct {
	ID          int64     `json:"id" db:"id"`
	CompanyID   int64     `json:"company_id" db:"company_id"`
	TeamID      *int64    `json:"team_id" db:"team_id"`
	AgentID     *string   `json:"agent_id" db:"agent_id"`
	Status      *string   `json:"status" db:"status"`
	AssignedAt  time.Time `json:"assigned_at" db:"assigned_at"`
	AssignedBy  *string   `json:"assigned_by" db:"assigned_by"`
	ImportLogID *int64    `json:"import_log_id" db:"import_log_id"`
}

// LatestAssignment is the "current" assignment row for a company joined with
// the agent's display name.
type LatestAssignment struct {
	CompanyID int64   `db:"company_id"`
	TeamID    *int64  `db:"team_id"`
	AgentID   *string `db:"agent_id"`
	AgentName *string `db:"agent_name"`
	Status    *string `db:"status"`
}
