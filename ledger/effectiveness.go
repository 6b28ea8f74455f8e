/*
effectiveness.go - Windowed, skip-aware effectiveness calculation

PURPOSE:
  Reconciles what the schedule expected against what the ledger recorded
  and produces the rolling effectiveness percentage the UI shows.

ALGORITHM:
  1. Window = [date of first-ever ledger entry, today]. No history means
     no effectiveness (nil, not zero) - a brand-new habit isn't failing.
  2. Expand the schedule over the window.
  3. Drop today's occurrences whose hour hasn't arrived yet AND that have
     no ledger entry. A habit due at 20:00 is not "missed" at 09:00, but
     an early recording counts even before its hour.
  4. Entries with status skip leave the denominator and are tallied
     separately. The rest of the expected occurrences form totalExpected.
  5. effectiveness = round-half-up(100 * good / totalExpected); nil when
     totalExpected is zero. Expected occurrences with no entry are
     implicitly missed - they stay in the denominator and count for
     nothing.

WHY NOT THE COUNTERS?
  The denormalized habit counters are all-time totals with no time window
  and no skip exclusion. The two numbers diverge by design; this
  calculation always reads the ledger fresh because the future-hour rule
  makes any cache stale by the next minute.

PRECISION:
  Division goes through decimal.Decimal so 1/3 -> 33 and 1/2 -> 50 come
  out of exact arithmetic, with round-half-up at the end.

SEE ALSO:
  - habit/schedule.go: Occurrence expansion
  - ledger.go: The entries being reconciled
*/
package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/habitloop/habit-engine/habit"
)

// =============================================================================
// RESULT
// =============================================================================

// Effectiveness is the outcome of one calculation. Effectiveness is nil
// when the habit has no history or everything expected was skipped.
type Effectiveness struct {
	Effectiveness *int
	GoodCount     int
	BadCount      int
	SkippedCount  int
	TotalExpected int
}

// =============================================================================
// CALCULATOR
// =============================================================================

// DefaultMaxWindowDays bounds the effectiveness window. The window is
// defined as "since first entry", which for long-lived habits could span
// years; histories older than the cap are truncated rather than expanded.
const DefaultMaxWindowDays = 730

// Calculator computes effectiveness on demand. Results are never cached:
// the future-hour exclusion depends on the current wall clock.
type Calculator struct {
	store Store

	Now           func() time.Time
	MaxWindowDays int
}

// NewCalculator creates a calculator over the given store.
func NewCalculator(store Store) *Calculator {
	return &Calculator{store: store, Now: time.Now, MaxWindowDays: DefaultMaxWindowDays}
}

// Calculate produces the effectiveness result for one habit. Returns
// ErrHabitNotFound for unknown habits and InvalidScheduleError for
// malformed schedules.
func (c *Calculator) Calculate(ctx context.Context, habitID habit.HabitID) (Effectiveness, error) {
	h, err := c.store.GetHabit(ctx, habitID)
	if err != nil {
		return Effectiveness{}, err
	}
	if h == nil {
		return Effectiveness{}, ErrHabitNotFound
	}
	if err := h.ValidateSchedule(); err != nil {
		return Effectiveness{}, err
	}

	first, ok, err := c.store.FirstExecutionDate(ctx, habitID)
	if err != nil {
		return Effectiveness{}, err
	}
	if !ok {
		// No history: no effectiveness, not zero effectiveness.
		return Effectiveness{}, nil
	}

	now := c.Now()
	today := habit.DateOf(now)
	nowHour := habit.HourOf(now)

	start := first
	if habit.DaysBetween(start, today) > c.MaxWindowDays {
		start = today.AddDays(-c.MaxWindowDays)
	}

	entries, err := c.store.ListExecutionsInRange(ctx, habitID, start, today)
	if err != nil {
		return Effectiveness{}, err
	}
	byKey := make(map[string]habit.Execution, len(entries))
	for _, e := range entries {
		byKey[e.Key()] = e
	}

	var result Effectiveness
	for o := range h.Occurrences(start, today) {
		e, recorded := byKey[o.Key(h.ID)]

		// Today's not-yet-due occurrences don't count unless the user
		// acted early. Past days always count regardless of hour.
		if o.Date == today && o.Hour.After(nowHour) && !recorded {
			continue
		}

		if recorded && e.Status == habit.StatusSkip {
			result.SkippedCount++
			continue
		}

		result.TotalExpected++
		if recorded {
			switch e.Status {
			case habit.StatusGood:
				result.GoodCount++
			case habit.StatusBad:
				result.BadCount++
			}
		}
	}

	if result.TotalExpected == 0 {
		return result, nil
	}

	pct := decimal.NewFromInt(int64(result.GoodCount) * 100).
		Div(decimal.NewFromInt(int64(result.TotalExpected))).
		Round(0)
	p := int(pct.IntPart())
	result.Effectiveness = &p
	return result, nil
}
