/*
Package habit defines the core data model for the habit execution engine.

PURPOSE:
  This package contains the domain types shared by every other package:
  habits with their recurrence schedules, execution records (the ledger
  entries), and the calendar-key primitives used to identify occurrences.

KEY CONCEPTS IN THIS FILE (types.go):
  - Habit: A recurring practice with a weekly day/hour schedule and
    denormalized result counters
  - Execution: A persisted record of what happened at one due occurrence
  - Status: The outcome recorded for an occurrence (good, bad, skip)
  - Habit/Execution IDs: Type-safe identifiers

DESIGN PRINCIPLES:
  1. Composite identity: An execution is uniquely keyed by
     (HabitID, Date, Hour) - at most one record per due occurrence
  2. Denormalization: Habit carries running good/bad/skip counters so the
     UI can render totals without replaying the ledger
  3. Type safety: DateKey/HourKey are distinct types, not bare strings

SEE ALSO:
  - dates.go: DateKey/HourKey calendar primitives
  - schedule.go: Schedule expansion into occurrences
  - ledger package: Mutation and query operations over these types
*/
package habit

import "time"

// =============================================================================
// IDENTIFIERS
// =============================================================================

type HabitID string
type ExecutionID string

// =============================================================================
// STATUS - Outcome recorded for a due occurrence
// =============================================================================

type Status string

const (
	StatusGood Status = "good" // Habit performed as intended
	StatusBad  Status = "bad"  // Habit missed or failed
	StatusSkip Status = "skip" // Deliberately skipped; excluded from effectiveness
)

// Valid reports whether s is one of the three recognized statuses.
func (s Status) Valid() bool {
	return s == StatusGood || s == StatusBad || s == StatusSkip
}

// =============================================================================
// HABIT - A recurring practice with schedule and counters
// =============================================================================

// Habit is a recurring practice. RepeatDays and RepeatHours together form
// the weekly schedule: on each listed weekday the habit is due once per
// listed hour. An empty RepeatHours means the habit is due once per due
// day with no particular hour.
//
// GoodCounter/BadCounter/SkipCounter are a running cache of ledger
// contents, maintained by delta alongside every ledger mutation. They are
// all-time totals and intentionally diverge from the windowed,
// skip-excluding effectiveness calculation.
type Habit struct {
	ID          HabitID
	Name        string
	Icon        string
	RepeatDays  []time.Weekday
	RepeatHours []HourKey
	GoodCounter int
	BadCounter  int
	SkipCounter int
	Available   bool // Soft-disable: unavailable habits accrue no backfill
	CreatedAt   time.Time
}

// =============================================================================
// EXECUTION - A persisted ledger entry
// =============================================================================

// Execution records what actually happened (or didn't) at one due
// occurrence. The triple (HabitID, Date, Hour) is unique: recording the
// same occurrence twice is a no-op, and history edits go through status
// updates rather than blind overwrites so counter deltas stay correct.
type Execution struct {
	ID        ExecutionID
	HabitID   HabitID
	Date      DateKey
	Hour      HourKey // Empty for hour-less habits
	Status    Status
	Timestamp time.Time // Wall-clock at write
}

// Key returns the composite identity string for this execution's
// occurrence. Used by stores for O(1) duplicate detection.
func (e Execution) Key() string {
	return OccurrenceKey(e.HabitID, e.Date, e.Hour)
}

// OccurrenceKey builds the composite identity string for an occurrence.
func OccurrenceKey(habitID HabitID, date DateKey, hour HourKey) string {
	return string(habitID) + "|" + string(date) + "|" + string(hour)
}
