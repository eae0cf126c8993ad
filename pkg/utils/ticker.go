// Package utils provides small helpers shared across MarketBrief:
// ticker normalization, display formatting, and market-calendar time math.
package utils

import "strings"

// NormalizeTicker canonicalizes a user- or model-supplied ticker symbol:
// uppercase, trimmed, with exchange suffixes and $-prefixes stripped.
func NormalizeTicker(ticker string) string {
	t := strings.ToUpper(strings.TrimSpace(ticker))
	t = strings.TrimPrefix(t, "$")

	// Strip exchange suffixes models sometimes emit ("AAPL.US", "SHOP.TO").
	if i := strings.IndexByte(t, '.'); i > 0 {
		t = t[:i]
	}
	// Class shares use a dash on most US data APIs ("BRK.B" → "BRK-B" is
	// handled above; keep an existing dash as-is).
	return t
}

// ValidTicker reports whether the symbol looks like a plausible US equity
// ticker: 1-6 characters, letters with an optional single dash.
func ValidTicker(ticker string) bool {
	if len(ticker) == 0 || len(ticker) > 6 {
		return false
	}
	dashes := 0
	for i := 0; i < len(ticker); i++ {
		c := ticker[i]
		switch {
		case c >= 'A' && c <= 'Z':
		case c == '-' && i > 0 && i < len(ticker)-1:
			dashes++
			if dashes > 1 {
				return false
			}
		default:
			return false
		}
	}
	return true
}
