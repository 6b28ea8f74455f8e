/*
backfill.go - Synthetic bad entries for days the app never opened

PURPOSE:
  Runs once per app foreground/resume. A day the user never opened the
  app counts as failure, not silence: every due occurrence between the
  last known ledger entry and yesterday gets a synthetic bad entry.

BOUNDS:
  - Empty ledger: nothing to backfill against, no-op.
  - Last entry older than today - maxDaysBack: treated as a fresh start
    rather than flooding the ledger with weeks of synthetic history.
  - Today is never backfilled; the user still has the whole day.

ATOMICITY:
  The whole run - every habit, every day - executes inside one store
  transaction, both for all-or-nothing semantics and to avoid one fsync
  per synthetic entry. Inserts go through the same composite-key identity
  as user recording, so re-running backfill is harmless.

SEE ALSO:
  - ledger.go: Counter deltas applied per inserted entry
  - habit/schedule.go: Occurrence expansion per missed day
*/
package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/habitloop/habit-engine/habit"
)

// Backfiller inserts synthetic bad entries for missed occurrences.
type Backfiller struct {
	store TxStore

	Now func() time.Time
}

// NewBackfiller creates a backfiller over the given transactional store.
func NewBackfiller(store TxStore) *Backfiller {
	return &Backfiller{store: store, Now: time.Now}
}

// Backfill inserts a bad entry for every due occurrence strictly after
// the most recent ledger entry date (across all habits) through
// yesterday, bounded by maxDaysBack. Unavailable habits accrue nothing.
// Returns the number of entries inserted.
func (b *Backfiller) Backfill(ctx context.Context, maxDaysBack int) (inserted int, err error) {
	err = b.store.WithTx(ctx, func(s Store) error {
		last, ok, err := s.LatestExecutionDate(ctx)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		now := b.Now()
		today := habit.DateOf(now)
		if last.Before(today.AddDays(-maxDaysBack)) {
			// Fresh start after a long absence.
			return nil
		}

		from := last.AddDays(1)
		yesterday := today.AddDays(-1)
		if from.After(yesterday) {
			return nil
		}

		habits, err := s.ListHabits(ctx)
		if err != nil {
			return err
		}

		for i := range habits {
			h := &habits[i]
			if !h.Available {
				continue
			}
			if err := h.ValidateSchedule(); err != nil {
				return err
			}
			for o := range h.Occurrences(from, yesterday) {
				exists, err := s.ExecutionExists(ctx, h.ID, o.Date, o.Hour)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				e := habit.Execution{
					ID:        habit.ExecutionID(uuid.NewString()),
					HabitID:   h.ID,
					Date:      o.Date,
					Hour:      o.Hour,
					Status:    habit.StatusBad,
					Timestamp: now,
				}
				if err := s.InsertExecution(ctx, e); err != nil {
					return err
				}
				if err := s.AdjustCounters(ctx, h.ID, DeltaFor(habit.StatusBad, 1)); err != nil {
					return err
				}
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		inserted = 0
	}
	return inserted, err
}
