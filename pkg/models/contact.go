package models

import "time"

// Contact belongs to exactly one company and cascade-deletes with it.
// At most one contact per company carries is_primary = true; the write paths
// demote siblings when a new primary arrives.
type Contact struct {
	ID        int64     `json:"id" db:"id"`
	CompanyID int64     `json:"company_id" db:"company_id"`
	FirstName string    `json:"first_name" db:"first_name"`
	LastName  *string   `json:"last_name" db:"last_name"`
	Email     *string   `json:"email" db:"email"`
	Phone     *string   `json:"phone" db:"phone"`
	IsPrimary bool      `json:"is_primary" db:"is_primary"`
	Position  *string   `json:"position" db:"position"`
	BirthDate *string   `json:"birth_date" db:"birth_date"`
	LinkedIn  *string   `json:"linkedin" db:"linkedin"`
	Xing      *string   `json:"xing" db:"xing"`
	Facebook  *string   `json:"facebook" db:"facebook"`
	Notes     *string   `json:"notes" db:"notes"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// ContactSocial groups the social links in the API shape.
type ContactSocial struct {
	LinkedIn string `json:"linkedin"`
	Xing     string `json:"xing"`
	Facebook string `json:"facebook"`
}

// ContactResponse is the client-facing contact shape.
type ContactResponse struct {
	ID          int64         `json:"id"`
	IsPrimary   bool          `json:"isPrimary"`
	FirstName   string        `json:"firstName"`
	LastName    string        `json:"lastName"`
	Email       string        `json:"email"`
	PhoneNumber string        `json:"phoneNumber"`
	Position    string        `json:"position"`
	BirthDate   string        `json:"birthDate"`
	Social      ContactSocial `json:"social"`
	Notes       string        `json:"notizen"`
}

// ContactPayload is one element of the contact-replace request. A zero ID
// means insert; a known ID means update in place.
type ContactPayload struct {
	ID          int64         `json:"id"`
	IsPrimary   bool          `json:"isPrimary"`
	FirstName   string        `json:"firstName" validate:"required"`
	LastName    string        `json:"lastName"`
	Email       string        `json:"email"`
	PhoneNumber string        `json:"phoneNumber"`
	Position    string        `json:"position"`
	BirthDate   string        `json:"birthDate"`
	Social      ContactSocial `json:"social"`
	Notes       string        `json:"notizen"`
}
