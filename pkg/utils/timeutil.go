package utils

import "time"

// Eastern is the US market time zone.
var Eastern *time.Location

func init() {
	var err error
	Eastern, err = time.LoadLocation("America/New_York")
	if err != nil {
		// Fallback when the tz database is unavailable.
		Eastern = time.FixedZone("ET", -5*60*60)
	}
}

// NowEastern returns the current time in US Eastern time.
func NowEastern() time.Time {
	return time.Now().In(Eastern)
}

// MarketDate truncates a time to its trading date (midnight Eastern).
func MarketDate(t time.Time) time.Time {
	e := t.In(Eastern)
	return time.Date(e.Year(), e.Month(), e.Day(), 0, 0, 0, 0, Eastern)
}

// CalendarDate drops the time-of-day and keeps the timestamp's own calendar
// date, as a UTC midnight. Unlike MarketDate it never shifts the date across
// a timezone boundary, so a bar stamped at midnight UTC stays on the day the
// provider assigned it. Use it when comparing day counts or equality between
// timestamps whose zones differ.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether the given date falls on a weekday. Exchange
// holidays are not modeled; a holiday simply yields no new bar upstream.
func IsTradingDay(t time.Time) bool {
	wd := t.In(Eastern).Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

// MarketOpen returns 9:30 AM Eastern for the given date.
func MarketOpen(date time.Time) time.Time {
	d := date.In(Eastern)
	return time.Date(d.Year(), d.Month(), d.Day(), 9, 30, 0, 0, Eastern)
}

// MarketClose returns 4:00 PM Eastern for the given date.
func MarketClose(date time.Time) time.Time {
	d := date.In(Eastern)
	return time.Date(d.Year(), d.Month(), d.Day(), 16, 0, 0, 0, Eastern)
}

// CalendarDaysBetween returns whole calendar days from a to b.
func CalendarDaysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
