/*
schedule.go - Weekly schedule expansion into concrete occurrences

PURPOSE:
  Turns a habit's recurrence (repeat days + repeat hours) into the concrete
  (date, hour) occurrences falling inside an arbitrary historical window.
  Occurrences are derived values, never persisted - they exist only to be
  compared against the execution ledger.

EXPANSION RULES:
  For each date in [from, to] inclusive whose weekday is in RepeatDays,
  emit one occurrence per entry in RepeatHours. If RepeatHours is empty,
  emit a single hour-less occurrence for the date. A habit with no repeat
  days emits nothing.

LAZINESS:
  Occurrences returns an iter.Seq rather than a materialized slice.
  Long-lived habits can have multi-year windows; callers that only need
  to count or partition occurrences never hold them all at once. The
  sequence is a pure function of its inputs and is restartable.

VALIDATION:
  Malformed schedules (unknown weekday, bad hour tag, duplicates) are
  rejected with InvalidScheduleError rather than silently expanding to
  zero occurrences, so data corruption surfaces instead of masking itself.

SEE ALSO:
  - errors.go: InvalidScheduleError
  - ledger package: Effectiveness calculation and backfill consume this
*/
package habit

import (
	"iter"
	"time"
)

// =============================================================================
// OCCURRENCE - One due instance of a habit (derived, never persisted)
// =============================================================================

// Occurrence is a (date, hour) pair at which a habit is due, computed
// from its schedule.
type Occurrence struct {
	Date DateKey
	Hour HourKey
}

// Key returns the occurrence's composite identity for the owning habit.
func (o Occurrence) Key(habitID HabitID) string {
	return OccurrenceKey(habitID, o.Date, o.Hour)
}

// =============================================================================
// SCHEDULE VALIDATION
// =============================================================================

// ValidateSchedule checks the habit's recurrence data and returns an
// InvalidScheduleError describing the first problem found, or nil.
func (h *Habit) ValidateSchedule() error {
	seenDay := make(map[time.Weekday]bool, len(h.RepeatDays))
	for _, d := range h.RepeatDays {
		if d < time.Sunday || d > time.Saturday {
			return &InvalidScheduleError{HabitID: h.ID, Field: "repeat_days", Value: d.String()}
		}
		if seenDay[d] {
			return &InvalidScheduleError{HabitID: h.ID, Field: "repeat_days", Value: d.String(), Duplicate: true}
		}
		seenDay[d] = true
	}

	seenHour := make(map[HourKey]bool, len(h.RepeatHours))
	for _, hr := range h.RepeatHours {
		if hr == "" || !hr.Valid() {
			return &InvalidScheduleError{HabitID: h.ID, Field: "repeat_hours", Value: string(hr)}
		}
		if seenHour[hr] {
			return &InvalidScheduleError{HabitID: h.ID, Field: "repeat_hours", Value: string(hr), Duplicate: true}
		}
		seenHour[hr] = true
	}

	return nil
}

// DueOn reports whether the habit's schedule includes the given date's
// weekday.
func (h *Habit) DueOn(d DateKey) bool {
	wd := d.Weekday()
	for _, day := range h.RepeatDays {
		if day == wd {
			return true
		}
	}
	return false
}

// DueHours returns the hour tags due on a scheduled day. For hour-less
// habits it returns the single empty hour key.
func (h *Habit) DueHours() []HourKey {
	if len(h.RepeatHours) == 0 {
		return []HourKey{""}
	}
	return h.RepeatHours
}

// =============================================================================
// EXPANSION
// =============================================================================

// Occurrences expands the habit's schedule over [from, to] inclusive as a
// lazy, restartable sequence in chronological order. The caller is
// expected to have validated the schedule; a malformed window (to before
// from) yields nothing.
func (h *Habit) Occurrences(from, to DateKey) iter.Seq[Occurrence] {
	return func(yield func(Occurrence) bool) {
		if from.After(to) || len(h.RepeatDays) == 0 {
			return
		}
		for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
			if !h.DueOn(d) {
				continue
			}
			for _, hr := range h.DueHours() {
				if !yield(Occurrence{Date: d, Hour: hr}) {
					return
				}
			}
		}
	}
}

// ExpandSchedule materializes Occurrences into a slice. Convenience for
// tests and small windows.
func ExpandSchedule(h *Habit, from, to DateKey) []Occurrence {
	var out []Occurrence
	for o := range h.Occurrences(from, to) {
		out = append(out, o)
	}
	return out
}
