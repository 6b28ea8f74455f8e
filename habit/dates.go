package habit

import (
	"math"
	"time"
)

// =============================================================================
// DATE KEY - Canonical local calendar date ("YYYY-MM-DD")
// =============================================================================

// DateKey is a calendar date in the device's local time zone, formatted as
// YYYY-MM-DD. The format sorts lexicographically in chronological order,
// so string comparison is date comparison.
type DateKey string

const dateKeyLayout = "2006-01-02"

// DateOf returns the local date key for t.
func DateOf(t time.Time) DateKey {
	return DateKey(t.Format(dateKeyLayout))
}

// Today returns the date key for the current local date.
func Today() DateKey { return DateOf(time.Now()) }

// Comparison
func (d DateKey) Before(other DateKey) bool        { return d < other }
func (d DateKey) After(other DateKey) bool         { return d > other }
func (d DateKey) BeforeOrEqual(other DateKey) bool { return d <= other }
func (d DateKey) AfterOrEqual(other DateKey) bool  { return d >= other }

// Valid reports whether d parses as a YYYY-MM-DD calendar date.
func (d DateKey) Valid() bool {
	_, err := time.Parse(dateKeyLayout, string(d))
	return err == nil
}

// Time returns d at midnight local time. Zero time if d is malformed.
func (d DateKey) Time() time.Time {
	t, err := time.ParseInLocation(dateKeyLayout, string(d), time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// AddDays returns the date n days after d (n may be negative).
func (d DateKey) AddDays(n int) DateKey {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// Weekday returns the day of week for d.
func (d DateKey) Weekday() time.Weekday { return d.Time().Weekday() }

// DaysBetween returns the number of calendar days from one date to the
// other (to - from). Same day yields 0; negative if to precedes from.
// Rounded so DST transitions (23- or 25-hour days) don't skew the count.
func DaysBetween(from, to DateKey) int {
	return int(math.Round(to.Time().Sub(from.Time()).Hours() / 24))
}

// InclusiveDays returns the day count of the window [from, to], counting
// both endpoints. Same day yields 1.
func InclusiveDays(from, to DateKey) int { return DaysBetween(from, to) + 1 }

// =============================================================================
// HOUR KEY - Time-of-day tag ("HH:MM"), empty for hour-less occurrences
// =============================================================================

// HourKey is a time-of-day tag in 24-hour HH:MM form. The empty HourKey
// marks an hour-less occurrence (a habit due "sometime that day").
// Like DateKey, the format sorts lexicographically in time order.
type HourKey string

const hourKeyLayout = "15:04"

// HourOf returns the hour key for t's local wall-clock time.
func HourOf(t time.Time) HourKey {
	return HourKey(t.Format(hourKeyLayout))
}

// Valid reports whether h is empty or a well-formed HH:MM tag.
func (h HourKey) Valid() bool {
	if h == "" {
		return true
	}
	_, err := time.Parse(hourKeyLayout, string(h))
	return err == nil
}

// After reports whether h is strictly later in the day than other. An
// empty (hour-less) key is never after anything: an hour-less occurrence
// is due from the start of its day.
func (h HourKey) After(other HourKey) bool {
	if h == "" {
		return false
	}
	return h > other
}
