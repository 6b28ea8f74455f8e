package habit

import (
	"errors"
	"fmt"
)

// ErrInvalidSchedule is returned when a habit's recurrence data is
// malformed. Malformed schedules are rejected rather than silently
// expanded to zero occurrences.
var ErrInvalidSchedule = errors.New("invalid schedule")

// InvalidScheduleError describes which part of a schedule is malformed.
type InvalidScheduleError struct {
	HabitID   HabitID
	Field     string // "repeat_days" or "repeat_hours"
	Value     string
	Duplicate bool
}

func (e *InvalidScheduleError) Error() string {
	if e.Duplicate {
		return fmt.Sprintf("invalid schedule for habit %s: duplicate %s entry %q", e.HabitID, e.Field, e.Value)
	}
	return fmt.Sprintf("invalid schedule for habit %s: bad %s entry %q", e.HabitID, e.Field, e.Value)
}

func (e *InvalidScheduleError) Unwrap() error { return ErrInvalidSchedule }
