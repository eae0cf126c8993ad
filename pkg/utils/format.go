package utils

import (
	"fmt"
	"math"
)

// FormatAbbrev formats a large number with a short magnitude suffix, the way
// market caps and volumes appear in the brief ("2.85T", "41.2B", "875.4M").
func FormatAbbrev(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1e12:
		return trimZero(v/1e12) + "T"
	case abs >= 1e9:
		return trimZero(v/1e9) + "B"
	case abs >= 1e6:
		return trimZero(v/1e6) + "M"
	case abs >= 1e3:
		return trimZero(v/1e3) + "K"
	default:
		return trimZero(v)
	}
}

// FormatPercent formats a percentage with sign and one decimal ("+5.0%").
func FormatPercent(v float64) string {
	return fmt.Sprintf("%+.1f%%", v)
}

// RoundTo rounds v to the given number of decimal places.
func RoundTo(v float64, places int) float64 {
	pow := math.Pow(10, float64(places))
	return math.Round(v*pow) / pow
}

func trimZero(v float64) string {
	s := fmt.Sprintf("%.1f", v)
	if len(s) > 2 && s[len(s)-2:] == ".0" {
		return s[:len(s)-2]
	}
	return s
}
