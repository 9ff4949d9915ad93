package availability

import (
	"time"

	"staybook/models"
)

const msPerDay = 86_400_000

// Ordinal maps the calendar day t denotes (in its own location) to days since
// the Unix epoch. Time of day and zone offset never change the result.
func Ordinal(t time.Time) int64 {
	y, m, d := t.Date()
	ms := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).UnixMilli()
	ord := ms / msPerDay
	if ms%msPerDay < 0 {
		ord--
	}
	return ord
}

// FromOrdinal returns midnight UTC of the given day ordinal.
func FromOrdinal(ord int64) time.Time {
	return time.Unix(ord*86_400, 0).UTC()
}

// ParseDay parses a YYYY-MM-DD calendar day.
func ParseDay(s string) (time.Time, error) {
	return time.Parse(models.DayLayout, s)
}

// wellFormed rejects the zero time and anything outside four-digit years,
// which is where date arithmetic and formatting stop being meaningful.
func wellFormed(t time.Time) bool {
	if t.IsZero() {
		return false
	}
	y := t.Year()
	return y >= 1 && y <= 9999
}
