// Package normalizers provides field normalization functions for dedup keys
package normalizers

import (
	"regexp"
	"strings"
	"unicode"
)

var spaceRe = regexp.MustCompile(`\s+`)

// CompanyName normalizes a company name for dedup matching: lowercase, trim,
// collapse inner whitespace. "Müller GmbH" and " müller  gmbh " collide on
// purpose; "Müller GmbH" and "Müller AG" do not.
func CompanyName(s string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}

// Email normalizes an email address (lowercase, trim).
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Phone keeps only digits, dropping a leading 00 international prefix.
func Phone(s string) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if strings.HasPrefix(digits, "00") {
		digits = digits[2:]
	}
	return digits
}

// PersonName lowercases and collapses whitespace for contact comparison.
func PersonName(s string) string {
	return spaceRe.ReplaceAllString(strings.ToLower(strings.TrimSpace(s)), " ")
}
