package models

import "time"

// Task statuses and priorities are closed allow-lists. Unrecognized values
// degrade to the previous/default value at write time instead of being
// stored verbatim.
const (
	TaskStatusUntouched  = "Nicht angefasst"
	TaskStatusInProgress = "In Bearbeitung"
	TaskStatusDone       = "Erledigt"

	TaskPriorityLow    = "Niedrig"
	TaskPriorityMedium = "Mittel"
	TaskPriorityHigh   = "Hoch"
)

// ValidTaskStatus reports whether s is an allowed task status.
func ValidTaskStatus(s string) bool {
	switch s {
	case TaskStatusUntouched, TaskStatusInProgress, TaskStatusDone:
		return true
	}
	return false
}

// ValidTaskPriority reports whether p is an allowed task priority.
func ValidTaskPriority(p string) bool {
	switch p {
	case TaskPriorityLow, TaskPriorityMedium, TaskPriorityHigh:
		return true
	}
	return false
}

// Task is a unit of work against a company. CompletedAt is derived from the
// status at write time: entering Erledigt stamps it, leaving Erledigt clears
// it.
type Task struct {
	ID           int64      `json:"id" db:"id"`
	CompanyID    int64      `json:"company_id" db:"company_id"`
	Title        string     `json:"title" db:"title"`
	Status       string     `json:"status" db:"status"`
	Priority     string     `json:"priority" db:"priority"`
	DueDate      *time.Time `json:"due_date" db:"due_date"`
	FollowUpDate *time.Time `json:"follow_up_date" db:"follow_up_date"`
	AssignedBy   *string    `json:"assigned_by" db:"assigned_by"`
	AssignedTo   *string    `json:"assigned_to" db:"assigned_to"`
	Description  *string    `json:"description" db:"description"`
	CompletedAt  *time.Time `json:"completed_at" db:"completed_at"`
	CreatedAt    time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt    *time.Time `json:"updated_at" db:"updated_at"`
}

// TaskResponse is the task joined with company and user display names.
type TaskResponse struct {
	ID             int64      `json:"id"`
	CompanyID      int64      `json:"companyId"`
	CompanyName    string     `json:"companyName"`
	Title          string     `json:"title"`
	Status         string     `json:"status"`
	Priority       string     `json:"priority"`
	DueDate        *time.Time `json:"dueDate"`
	FollowUpDate   *time.Time `json:"followUpDate"`
	AssignedToID   *string    `json:"assignedToId"`
	AssignedToName *string    `json:"assignedToName"`
	AssignedByID   *string    `json:"assignedById"`
	AssignedByName *string    `json:"assignedByName"`
	Description    string     `json:"description"`
	CompletedAt    *time.Time `json:"completedAt"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// TaskListResponse pairs tasks with pagination metadata.
type TaskListResponse struct {
	Data       []TaskResponse `json:"data"`
	Pagination Pagination     `json:"pagination"`
}

// CreateTaskRequest creates a task. AssignedBy is always taken from the
// authenticated caller, never from the body.
type CreateTaskRequest struct {
	Title        string  `json:"title" validate:"required"`
	CompanyID    int64   `json:"companyId" validate:"required"`
	Status       string  `json:"status"`
	Priority     string  `json:"priority"`
	DueDate      *string `json:"dueDate"`
	FollowUpDate *string `json:"followUpDate"`
	AssignedTo   *string `json:"assignedTo"`
	Description  *string `json:"description"`
}

// UpdateTaskRequest is the full-field task update.
type UpdateTaskRequest struct {
	Title        string  `json:"title" validate:"required"`
	CompanyID    int64   `json:"companyId" validate:"required"`
	Status       string  `json:"status"`
	Priority     string  `json:"priority"`
	DueDate      *string `json:"dueDate"`
	FollowUpDate *string `json:"followUpDate"`
	AssignedTo   *string `json:"assignedTo"`
	Description  *string `json:"description"`
}
