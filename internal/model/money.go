package model

import (
	"math"
	"strconv"
)

// ParseCents converts decimal string amounts (major units) to minor units (int64).
// Use for APIs that return amounts like "99.00" = 9900 cents.
// Handles edge cases: empty strings, missing decimals, large values.
// Examples: "99.00" → 9900, "1234.56" → 123456, "" → 0
func ParseCents(s string) int64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	// math.Round handles both positive and negative numbers correctly
	return int64(math.Round(f * 100))
}

// FormatCents renders minor units as a decimal string in major units,
// the format the commerce platform expects for line and shipping prices.
// Examples: 9900 → "99.00", 123456 → "1234.56", 0 → "0.00"
func FormatCents(cents int64) string {
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}

// FormatCentsF is FormatCents for fractional minor-unit amounts, as produced
// by the pricing allocator. Rounds to the nearest cent before formatting.
func FormatCentsF(cents float64) string {
	return strconv.FormatFloat(math.Round(cents)/100, 'f', 2, 64)
}

// MajorUnits converts minor units to whole major units, rounding to nearest.
// The payment gateway takes integral amounts in major currency units.
// Examples: 9900 → 99, 9950 → 100
func MajorUnits(cents int64) int64 {
	return int64(math.Round(float64(cents) / 100))
}
