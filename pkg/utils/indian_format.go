// Package utils provides calendar and number-formatting helpers for fnopart.
package utils

import (
	"fmt"
	"math"
)

// FormatINR formats a number in Indian Rupee format (₹12,34,567.89).
// Uses the Indian numbering system: last 3 digits, then groups of 2.
func FormatINR(amount float64) string {
	negative := amount < 0
	amount = math.Abs(amount)

	cents := int64(math.Round(amount * 100))
	formatted := formatIndianNumber(cents/100) + fmt.Sprintf(".%02d", cents%100)

	if negative && cents != 0 {
		return "-₹" + formatted
	}
	return "₹" + formatted
}

// FormatCrores formats a value already expressed in crores, e.g. 1234.5 → "₹1,234.50 Cr".
func FormatCrores(crores float64) string {
	return FormatINR(crores) + " Cr"
}

// FormatContracts formats an open-interest count as a whole number with
// Indian digit grouping, e.g. -1234567 → "-12,34,567".
func FormatContracts(n float64) string {
	rounded := int64(math.Round(n))
	if rounded < 0 {
		return "-" + formatIndianNumber(-rounded)
	}
	return formatIndianNumber(rounded)
}

// FormatPct formats a percentage value with sign and suffix.
// e.g., 2.45 → "+2.45%", -1.23 → "-1.23%"
func FormatPct(pct float64) string {
	if pct >= 0 {
		return fmt.Sprintf("+%.2f%%", pct)
	}
	return fmt.Sprintf("%.2f%%", pct)
}

// formatIndianNumber formats an integer with Indian grouping (last 3, then 2s).
func formatIndianNumber(n int64) string {
	if n < 1000 {
		return fmt.Sprintf("%d", n)
	}

	s := fmt.Sprintf("%d", n)
	length := len(s)

	// Take the last 3 digits
	result := s[length-3:]
	remaining := s[:length-3]

	// Group remaining digits in pairs from right
	for len(remaining) > 0 {
		if len(remaining) > 2 {
			result = remaining[len(remaining)-2:] + "," + result
			remaining = remaining[:len(remaining)-2]
		} else {
			result = remaining + "," + result
			remaining = ""
		}
	}

	return result
}
