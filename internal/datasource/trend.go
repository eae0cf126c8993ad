package datasource

import "github.com/marketbrief/marketbrief/pkg/models"

// Trend direction symbols rendered in the brief.
const (
	TrendUp   = "▲"
	TrendDown = "▼"
	TrendFlat = "▶"
)

// trend moving average windows, in trading days.
const (
	trendShortWindow = 10
	trendLongWindow  = 30
)

// flatBand is the relative separation below which the trend reads as sideways.
const flatBand = 0.005

// TrendFromBars derives a direction symbol by comparing a short and a long
// simple moving average over the given daily bars. Bars must be in ascending
// date order. With too little history the trend reads flat.
func TrendFromBars(bars []models.PriceBar) string {
	if len(bars) < trendLongWindow {
		return TrendFlat
	}

	short := sma(bars, trendShortWindow)
	long := sma(bars, trendLongWindow)
	if long == 0 {
		return TrendFlat
	}

	sep := (short - long) / long
	switch {
	case sep > flatBand:
		return TrendUp
	case sep < -flatBand:
		return TrendDown
	default:
		return TrendFlat
	}
}

// sma returns the simple moving average of the last n closes.
func sma(bars []models.PriceBar, n int) float64 {
	if n <= 0 || len(bars) < n {
		return 0
	}
	sum := 0.0
	for _, bar := range bars[len(bars)-n:] {
		sum += bar.Close
	}
	return sum / float64(n)
}
