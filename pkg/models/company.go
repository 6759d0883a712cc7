package models

import "time"

// Company is the aggregate root of customer data.
type Company struct {
	ID            int64      `json:"id" db:"id"`
	Name          string     `json:"name" db:"name"`
	Project       *string    `json:"project" db:"project"`
	LegalForm     *string    `json:"legal_form" db:"legal_form"`
	Industry      *string    `json:"industry" db:"industry"`
	EmployeeCount int        `json:"employee_count" db:"employee_count"`
	Website       *string    `json:"website" db:"website"`
	Phone         *string    `json:"phone" db:"phone"`
	Email         *string    `json:"email" db:"email"`
	Street        *string    `json:"street" db:"street"`
	PostalCode    *string    `json:"postal_code" db:"postal_code"`
	City          *string    `json:"city" db:"city"`
	State         *string    `json:"state" db:"state"`
	FoundingDate  *string    `json:"founding_date" db:"founding_date"`
	Description   *string    `json:"description" db:"description"`
	OpeningHours  *string    `json:"opening_hours" db:"opening_hours"`
	RevenueSize   *string    `json:"revenue_size" db:"revenue_size"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     *time.Time `json:"updated_at" db:"updated_at"`
}

// UpdateCompanyRequest is the full-field company update. Field names follow
// the client vocabulary (companyName, phoneNumber, streetAddress).
type UpdateCompanyRequest struct {
	CompanyName   string `json:"companyName" validate:"required"`
	CompanyForm   string `json:"companyForm"`
	Industry      string `json:"industry"`
	EmployeeCount string `json:"employeeCount"`
	Website       string `json:"website"`
	PhoneNumber   string `json:"phoneNumber"`
	Email         string `json:"email"`
	OpeningHours  string `json:"openingHours"`
	RevenueSize   string `json:"revenueSize"`
	StreetAddress string `json:"streetAddress"`
	PostalCode    string `json:"postalCode"`
	City          string `json:"city"`
	State         string `json:"state"`
	FoundingDate  string `json:"foundingDate"`
	Description   string `json:"description"`
}

// CustomerResponse is the nested listing shape: company fields plus the
// latest assignment, contacts ordered primary-first, the conversation note
// and open tasks.
type CustomerResponse struct {
	ID                int64   `json:"id"`
	CompanyName       string  `json:"companyName"`
	Project           string  `json:"project"`
	Status            string  `json:"status"`
	AssignedAgentID   *string `json:"assignedAgentId"`
	AssignedAgentName *string `json:"assignedAgentName"`
	AssignedTeamID    *int64  `json:"assignedTeamId"`

	CompanyForm   string `json:"companyForm"`
	Industry      string `json:"industry"`
	EmployeeCount string `json:"employeeCount"`
	Website       string `json:"website"`
	PhoneNumber   string `json:"phoneNumber"`
	Email         string `json:"email"`
	OpeningHours  string `json:"openingHours"`
	RevenueSize   string `json:"revenueSize"`
	StreetAddress string `json:"streetAddress"`
	PostalCode    string `json:"postalCode"`
	City          string `json:"city"`
	State         string `json:"state"`
	FoundingDate  string `json:"foundingDate"`
	Description   string `json:"description"`

	ConversationHook string `json:"conversationHook"`
	ResearchResult   string `json:"researchResult"`

	Contacts []ContactResponse `json:"contacts"`
	Tasks    []TaskResponse    `json:"tasks"`
}

// CustomerListResponse pairs the page of customers with pagination metadata.
type CustomerListResponse struct {
	Data       []CustomerResponse `json:"data"`
	Pagination Pagination         `json:"pagination"`
}
