package models

import "time"

// User mirrors the identity-provider user record. Rows are synced in by the
// provider; the only field this service ever mutates is the role, and only
// through the admin path.
type User struct {
	ID        string     `json:"id" db:"id"`
	Email     string     `json:"email" db:"email"`
	Name      string     `json:"name" db:"name"`
	Role      Role       `json:"role" db:"role"`
	Avatar    *string    `json:"avatar,omitempty" db:"avatar"`
	CreatedAt time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt *time.Time `json:"updated_at,omitempty" db:"updated_at"`
}

// AssignableUser is the reduced shape returned to assignment pickers.
type AssignableUser struct {
	ID    string `json:"id" db:"id"`
	Name  string `json:"name" db:"name"`
	Email string `json:"email" db:"email"`
	Role  Role   `json:"role" db:"role"`
}

// UpdateUserRoleRequest changes a user's role. Admin only; self-modification
// is rejected in the handler.
type UpdateUserRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=Admin Teamlead Agent"`
}
