package models

import "time"

// ImportLog is the summary row written before a bulk import runs. Assignments
// created by the run reference it via import_log_id, which is what log
// deletion walks to find the imported companies.
type ImportLog struct {
	ID            int64     `json:"id" db:"id"`
	FileName      *string   `json:"file_name" db:"file_name"`
	ProjectName   *string   `json:"project_name" db:"project_name"`
	ImportedBy    *string   `json:"imported_by" db:"imported_by"`
	TargetTeamID  *int64    `json:"target_team_id" db:"target_team_id"`
	TargetAgentID *string   `json:"target_agent_id" db:"target_agent_id"`
	TotalRows     int       `json:"total_rows" db:"total_rows"`
	SuccessCount  int       `json:"success_count" db:"success_count"`
	FailedCount   int       `json:"failed_count" db:"failed_count"`
	CreatedCount  int       `json:"created_count" db:"created_count"`
	UpdatedCount  int       `json:"updated_count" db:"updated_count"`
	AssignedCount int       `json:"assigned_count" db:"assigned_count"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
}

// ImportLogResponse joins the log with the importer's display name.
type ImportLogResponse struct {
	ID            int64     `json:"id"`
	FileName      *string   `json:"fileName"`
	ProjectName   *string   `json:"projectName"`
	ImportedBy    *string   `json:"importedById"`
	ImporterName  *string   `json:"importedByName"`
	TargetTeamID  *int64    `json:"targetTeamId"`
	TargetAgentID *string   `json:"targetAgentId"`
	TotalRows     int       `json:"totalRows"`
	SuccessCount  int       `json:"successCount"`
	FailedCount   int       `json:"failedCount"`
	CreatedCount  int       `json:"createdCount"`
	UpdatedCount  int       `json:"updatedCount"`
	AssignedCount int       `json:"assignedCount"`
	CreatedAt     time.Time `json:"createdAt"`
}

// RawRow is one spreadsheet row as sent by the client: header -> cell value.
// Header names are matched case-insensitively against German and English
// aliases.
type RawRow map[string]string

// ImportRequest carries the parsed spreadsheet plus routing for the resulting
// assignments. Exactly the rows; parsing happened client-side.
type ImportRequest struct {
	Customers     []RawRow `json:"customers" validate:"required,min=1"`
	FileName      string   `json:"fileName"`
	ProjectName   string   `json:"projectName"`
	TargetTeamID  *int64   `json:"targetTeamId"`
	TargetAgentID *string  `json:"targetAgentId"`
}

// ImportRowError describes one rejected row.
type ImportRowError struct {
	Row     int    `json:"row"`
	Message string `json:"message"`
}

// ImportResult tallies one import run. Details carries one human-readable
// line per reconciled company.
type ImportResult struct {
	ImportLogID *int64           `json:"importLogId"`
	Total       int              `json:"total"`
	Success     int              `json:"success"`
	Failed      int              `json:"failed"`
	Created     int              `json:"created"`
	Updated     int              `json:"updated"`
	Assigned    int              `json:"assigned"`
	Errors      []ImportRowError `json:"errors,omitempty"`
	Details     []string         `json:"details,omitempty"`
}
