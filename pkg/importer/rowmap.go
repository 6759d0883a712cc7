package importer

import (
	"strings"

	"github.com/Ramsey-B/dahlia/pkg/models"
)

// companyFields is the company payload extracted from one spreadsheet row.
type companyFields struct {
	Name          string
	Industry      string
	Website       string
	Phone         string
	Email         string
	Street        string
	PostalCode    string
	City          string
	State         string
	EmployeeCount int
	RevenueSize   string
	LegalForm     string
	Description   string
	FoundingDate  string
	Project       string
	OpeningHours  string
}

// contactFields is the contact payload extracted from one spreadsheet row.
// A row without a contact name yields no contact.
type contactFields struct {
	FirstName string
	LastName  string
	Email     string
	Phone     string
	Position  string
	BirthDate string
	LinkedIn  string
	Xing      string
	Facebook  string
}

// cell returns the first non-empty value among the given header aliases,
// matched case-insensitively, trimmed.
func cell(row models.RawRow, aliases ...string) string {
	for _, alias := range aliases {
		for key, value := range row {
			if strings.EqualFold(strings.TrimSpace(key), alias) {
				if v := strings.TrimSpace(value); v != "" {
					return v
				}
			}
		}
	}
	return ""
}

// companyName extracts the company name from a row, empty when missing.
func companyName(row models.RawRow) string {
	return cell(row, "Firma", "name", "companyName")
}

func parseCompany(row models.RawRow) companyFields {
	return companyFields{
		Name:          companyName(row),
		Industry:      cell(row, "Branche", "industry"),
		Website:       cell(row, "Webseite", "website"),
		Phone:         cell(row, "Telefon", "phone", "phoneNumber"),
		Email:         cell(row, "Email", "email"),
		Street:        cell(row, "Straße", "street", "streetAddress"),
		PostalCode:    cell(row, "PLZ", "postalCode"),
		City:          cell(row, "Stadt", "Ort", "city"),
		State:         cell(row, "Bundesland", "state"),
		EmployeeCount: EmployeeCount(cell(row, "Mitarbeiter", "employeeCount")),
		RevenueSize:   RevenueBand(cell(row, "Umsatz", "revenueSize")),
		LegalForm:     cell(row, "Rechtsform", "companyForm"),
		Description:   cell(row, "Beschreibung", "description"),
		FoundingDate:  cell(row, "Gründung", "foundingDate"),
		Project:       cell(row, "Projekt", "project"),
		OpeningHours:  cell(row, "Öffnungszeiten", "openingHours"),
	}
}

// parseContact extracts the row's contact, falling back to the company
// email/phone when no contact-specific ones exist. Returns nil when the row
// carries no contact name.
func parseContact(row models.RawRow) *contactFields {
	first := cell(row, "Vorname", "firstName", "Ansprechpartner")
	if first == "" {
		return nil
	}
	return &contactFields{
		FirstName: first,
		LastName:  cell(row, "Nachname", "lastName"),
		Email:     cell(row, "KontaktEmail", "contactEmail", "Email", "email"),
		Phone:     cell(row, "KontaktTelefon", "contactPhone", "Telefon", "phone"),
		Position:  cell(row, "Position", "position"),
		BirthDate: cell(row, "Geburtsdatum", "birthDate"),
		LinkedIn:  cell(row, "LinkedIn", "linkedin"),
		Xing:      cell(row, "Xing", "xing"),
		Facebook:  cell(row, "Facebook", "facebook"),
	}
}
