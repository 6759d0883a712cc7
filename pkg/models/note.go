package models

import "time"

// ConversationNote is one-to-one with a company (company_id unique).
// Upserted, never duplicated.
type ConversationNote struct {
	ID               int64     `json:"id" db:"id"`
	CompanyID        int64     `json:"company_id" db:"company_id"`
	ConversationHook *string   `json:"conversation_hook" db:"conversation_hook"`
	ResearchResult   *string   `json:"research_result" db:"research_result"`
	UpdatedBy        *string   `json:"updated_by" db:"updated_by"`
	UpdatedAt        time.Time `json:"updated_at" db:"updated_at"`
}

// UpsertNotesRequest replaces both note fields for a company.
type UpsertNotesRequest struct {
	ConversationHook string `json:"conversationHook"`
	ResearchResult   string `json:"researchResult"`
}
