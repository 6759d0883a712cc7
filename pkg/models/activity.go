package models

import "time"

// Activity types.
const (
	ActivityTypeCall    = "CALL"
	ActivityTypeEmail   = "EMAIL"
	ActivityTypeMeeting = "MEETING"
	ActivityTypeNote    = "NOTE"
)

// Activity is a logged touch point (call, email, meeting, note) between an
// agent and a company. The analytics reaction-time KPI measures assignment
// to first activity.
// ValidActivityType reports whether the value is one of the known types.
func ValidActivityType(s string) bool {
	switch s {
	case ActivityTypeCall, ActivityTypeEmail, ActivityTypeMeeting, ActivityTypeNote:
		return true
	}
	return false
}

type Activity struct {
	ID        int64      `json:"id" db:"id"`
	CompanyID int64      `json:"company_id" db:"company_id"`
	ContactID *int64     `json:"contact_id" db:"contact_id"`
	UserID    string     `json:"user_id" db:"user_id"`
	Type      string     `json:"type" db:"type"`
	Subject   *string    `json:"subject" db:"subject"`
	Content   *string    `json:"content" db:"content"`
	StartedAt *time.Time `json:"started_at" db:"started_at"`
	EndedAt   *time.Time `json:"ended_at" db:"ended_at"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
}

// CreateActivityRequest logs one touch point against a company.
type CreateActivityRequest struct {
	Type      string     `json:"type" validate:"required"`
	ContactID *int64     `json:"contactId"`
	Subject   *string    `json:"subject"`
	Content   *string    `json:"content"`
	StartedAt *time.Time `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt"`
}
