package importer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRevenueBand(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", ""},
		{"already banded passes through", "50.000 € - 100.000 €", "50.000 € - 100.000 €"},
		{"below first band", "30000", "< 50.000 €"},
		{"second band", "75000", "50.000 € - 100.000 €"},
		{"mid band", "300000", "250.000 € - 500.000 €"},
		{"million band", "2000000", "1 Mio. € - 5 Mio. €"},
		{"top band", "60000000", "> 50 Mio. €"},
		{"band boundary is exclusive", "50000", "50.000 € - 100.000 €"},
		{"currency symbols stripped", "75000 €", "50.000 € - 100.000 €"},
		{"non numeric passes through", "unbekannt", "unbekannt"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, RevenueBand(tc.input))
		})
	}
}

func TestEmployeeCount(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		expected int
	}{
		{"empty", "", 0},
		{"literal", "42", 42},
		{"band midpoint", "10 - 20", 15},
		{"band midpoint floors", "10 - 15", 12},
		{"band without spaces", "50-100", 75},
		{"garbage", "viele", 0},
		{"half garbage band", "10 - viele", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, EmployeeCount(tc.input))
		})
	}
}
