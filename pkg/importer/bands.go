package importer

import (
	"strconv"
	"strings"
)

// Revenue bands, smallest first. Literal amounts are mapped into one of
// these; already-banded strings pass through unchanged.
var revenueBands = []struct {
	below float64
	label string
}{
	{50_000, "< 50.000 €"},
	{100_000, "50.000 € - 100.000 €"},
	{250_000, "100.000 € - 250.000 €"},
	{500_000, "250.000 € - 500.000 €"},
	{1_000_000, "500.000 € - 1 Mio. €"},
	{5_000_000, "1 Mio. € - 5 Mio. €"},
	{10_000_000, "5 Mio. € - 10 Mio. €"},
	{50_000_000, "10 Mio. € - 50 Mio. €"},
}

const revenueBandTop = "> 50 Mio. €"

// RevenueBand maps a raw revenue cell to a band label. Strings containing a
// dash are treated as already banded. Unparseable values pass through as-is.
func RevenueBand(raw string) string {
	s := strings.TrimSpace(raw)
	if s == "" {
		return ""
	}
	if strings.Contains(s, "-") {
		return s
	}

	var b strings.Builder
	for _, r := range s {
		if (r >= '0' && r <= '9') || r == '.' {
			b.WriteRune(r)
		}
	}
	amount, err := strconv.ParseFloat(b.String(), 64)
	if err != nil {
		return s
	}

	for _, band := range revenueBands {
		if amount < band.below {
			return band.label
		}
	}
	return revenueBandTop
}

// EmployeeCount parses a raw employee cell: either a literal integer or a
// "min - max" banded string, resolved to the floor of the midpoint.
// Unparseable values resolve to 0.
func EmployeeCount(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	if lo, hi, ok := strings.Cut(s, "-"); ok {
		min, errLo := strconv.Atoi(strings.TrimSpace(lo))
		max, errHi := strconv.Atoi(strings.TrimSpace(hi))
		if errLo != nil || errHi != nil {
			return 0
		}
		return (min + max) / 2
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
