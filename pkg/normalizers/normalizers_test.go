package normalizers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompanyName(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain name", "Müller", "müller"},
		{"lowercases", "MÜLLER GMBH", "müller gmbh"},
		{"trims", "  Müller GmbH ", "müller gmbh"},
		{"collapses whitespace", "Müller   Söhne  GmbH", "müller söhne gmbh"},
		{"empty", "", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, CompanyName(tc.input))
		})
	}
}

func TestCompanyName_Collisions(t *testing.T) {
	// Pairs that must land on the same key for import dedup.
	same := [][2]string{
		{"Müller GmbH", " müller  gmbh "},
		{"ACME AG", "Acme AG"},
	}
	for _, p := range same {
		assert.Equal(t, CompanyName(p[0]), CompanyName(p[1]), "%q vs %q", p[0], p[1])
	}

	// Different legal forms stay distinct companies.
	assert.NotEqual(t, CompanyName("Müller GmbH"), CompanyName("Müller AG"))
}

func TestEmail(t *testing.T) {
	assert.Equal(t, "max@example.com", Email("  Max@Example.COM "))
}

func TestPhone(t *testing.T) {
	assert.Equal(t, "4915112345678", Phone("+49 151 1234-5678"))
	assert.Equal(t, "4915112345678", Phone("0049 151 1234 5678"))
	assert.Equal(t, "", Phone("n/a"))
}

func TestPersonName(t *testing.T) {
	assert.Equal(t, "max mustermann", PersonName("  Max   Mustermann "))
}
