package models

import "time"

// Change-log entity types and actions.
const (
	ChangeEntityCompany = "company"
	ChangeEntityContact = "contact"
	ChangeEntityTask    = "task"
	ChangeEntityNote    = "note"

	ChangeActionCreated = "created"
	ChangeActionUpdated = "updated"
	ChangeActionDeleted = "deleted"
)

// ChangeLogEntry is one append-only audit row scoped to a company. Old and new
// values are stored as rendered strings so the log survives schema drift on
// the source entities.
type ChangeLogEntry struct {
	ID         int64     `json:"id" db:"id"`
	CompanyID  int64     `json:"company_id" db:"company_id"`
	EntityType string    `json:"entity_type" db:"entity_type"`
	EntityID   *int64    `json:"entity_id" db:"entity_id"`
	Action     string    `json:"action" db:"action"`
	Label      string    `json:"label" db:"label"`
	OldValue   *string   `json:"old_value" db:"old_value"`
	NewValue   *string   `json:"new_value" db:"new_value"`
	UserID     *string   `json:"user_id" db:"user_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// ChangeLogResponse is the entry joined with the actor's display name.
type ChangeLogResponse struct {
	ID         int64     `json:"id"`
	CompanyID  int64     `json:"companyId,omitempty"`
	EntityType string    `json:"entityType"`
	EntityID   *int64    `json:"entityId"`
	Action     string    `json:"action"`
	Label      string    `json:"label"`
	OldValue   *string   `json:"oldValue"`
	NewValue   *string   `json:"newValue"`
	UserID     *string   `json:"userId"`
	UserName   *string   `json:"userName"`
	CreatedAt  time.Time `json:"createdAt"`
}
