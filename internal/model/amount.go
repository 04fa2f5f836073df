package model

import (
	"strconv"
	"strings"
)

// NormalizeAmount parses a portal-rendered monetary cell into a float. The
// portal mixes "4697.73", "4.697,73 €" and stray currency or whitespace
// noise, so everything except digits, comma and period is stripped first.
// When both separators appear the period is the thousands separator and the
// comma the decimal mark. Unparseable input yields 0.0, never an error.
func NormalizeAmount(raw string) float64 {
	var b strings.Builder
	for _, r := range raw {
		if (r >= '0' && r <= '9') || r == ',' || r == '.' {
			b.WriteRune(r)
		}
	}
	s := b.String()
	if s == "" {
		return 0
	}

	switch {
	case strings.Contains(s, ","):
		// European format: drop thousands periods, comma becomes the
		// decimal point.
		s = strings.ReplaceAll(s, ".", "")
		s = strings.Replace(s, ",", ".", 1)
		// A second comma means garbage input.
		s = strings.ReplaceAll(s, ",", "")
	case strings.Count(s, ".") > 1:
		// Periods as thousands separators only: keep the last as decimal.
		last := strings.LastIndex(s, ".")
		s = strings.ReplaceAll(s[:last], ".", "") + s[last:]
	}

	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return v
}
