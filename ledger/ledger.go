/*
ledger.go - Execution ledger with transactional counter reconciliation

PURPOSE:
  The Ledger owns all execution records and is the only writer of a
  habit's denormalized counters. Every mutation pairs its ledger write
  with the matching counter delta inside a single store transaction.

CRITICAL INVARIANTS:
  1. IDEMPOTENT RECORDING: (habit, date, hour) is recorded at most once.
     A duplicate Record call is a silent no-op, not an error - the UI may
     retry the same user action across re-renders.
  2. COUNTER CONSISTENCY: At all times goodCounter equals the count of
     ledger entries with status good for that habit (same for bad/skip).
     Maintained by delta, never recomputed on read.
  3. ATOMICITY: Ledger row and counter delta commit together or not at
     all. Partial application is prevented structurally by the WithTx
     boundary, not by retries.

HISTORY EDITS:
  Past entries can change status or be deleted. Both retroactively adjust
  the aggregate counters by delta: an edit swaps one counter for another,
  a delete reverses the entry's contribution. Decrements clamp at zero.

EQUALIZE:
  An operator-invoked override that subtracts min(good, bad) from both
  counters. It adjusts counters directly and never touches the ledger.

SEE ALSO:
  - store.go: Persistence contract
  - effectiveness.go: Windowed, skip-aware calculation over this ledger
  - backfill.go: Synthetic entries for days the app never opened
*/
package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/habitloop/habit-engine/habit"
)

// =============================================================================
// LEDGER - Mutation and query operations over execution records
// =============================================================================

// Ledger performs all execution mutations. Now is the wall-clock source
// for entry timestamps; tests pin it to a fixed instant.
type Ledger struct {
	store TxStore

	Now func() time.Time
}

// New creates a ledger over the given transactional store.
func New(store TxStore) *Ledger {
	return &Ledger{store: store, Now: time.Now}
}

// =============================================================================
// CORE OPERATIONS
// =============================================================================

// Record creates an execution for the given occurrence. If the occurrence
// is already recorded, Record is a no-op and returns created=false with no
// error. On creation the matching status counter is incremented in the
// same transaction.
func (l *Ledger) Record(ctx context.Context, habitID habit.HabitID, date habit.DateKey, hour habit.HourKey, status habit.Status) (created bool, err error) {
	if !status.Valid() {
		return false, ErrInvalidStatus
	}

	err = l.store.WithTx(ctx, func(s Store) error {
		h, err := s.GetHabit(ctx, habitID)
		if err != nil {
			return err
		}
		if h == nil {
			return ErrHabitNotFound
		}

		exists, err := s.ExecutionExists(ctx, habitID, date, hour)
		if err != nil {
			return err
		}
		if exists {
			return nil
		}

		e := habit.Execution{
			ID:        habit.ExecutionID(uuid.NewString()),
			HabitID:   habitID,
			Date:      date,
			Hour:      hour,
			Status:    status,
			Timestamp: l.Now(),
		}
		if err := s.InsertExecution(ctx, e); err != nil {
			// Lost a race against another write for the same key: the
			// occurrence is recorded, which is all the caller asked for.
			if errors.Is(err, ErrDuplicateExecution) {
				return nil
			}
			return err
		}
		if err := s.AdjustCounters(ctx, habitID, DeltaFor(status, 1)); err != nil {
			return err
		}
		created = true
		return nil
	})
	return created, err
}

// UpdateStatus changes the status of an existing execution, swapping the
// old-status counter for the new one atomically. Returns
// ErrExecutionNotFound for unknown ids; a same-status update is a no-op.
func (l *Ledger) UpdateStatus(ctx context.Context, id habit.ExecutionID, newStatus habit.Status) error {
	if !newStatus.Valid() {
		return ErrInvalidStatus
	}

	return l.store.WithTx(ctx, func(s Store) error {
		e, err := s.GetExecution(ctx, id)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrExecutionNotFound
		}
		if e.Status == newStatus {
			return nil
		}

		if err := s.SetExecutionStatus(ctx, id, newStatus); err != nil {
			return err
		}
		delta := DeltaFor(e.Status, -1).Add(DeltaFor(newStatus, 1))
		return s.AdjustCounters(ctx, e.HabitID, delta)
	})
}

// Delete removes an execution and reverses its counter contribution.
// Returns ErrExecutionNotFound for unknown ids.
func (l *Ledger) Delete(ctx context.Context, id habit.ExecutionID) error {
	return l.store.WithTx(ctx, func(s Store) error {
		e, err := s.GetExecution(ctx, id)
		if err != nil {
			return err
		}
		if e == nil {
			return ErrExecutionNotFound
		}

		if err := s.DeleteExecution(ctx, id); err != nil {
			return err
		}
		return s.AdjustCounters(ctx, e.HabitID, DeltaFor(e.Status, -1))
	})
}

// ListByHabit returns a habit's executions, newest first.
func (l *Ledger) ListByHabit(ctx context.Context, habitID habit.HabitID) ([]habit.Execution, error) {
	return l.store.ListExecutions(ctx, habitID)
}

// Exists reports whether the occurrence is already recorded.
func (l *Ledger) Exists(ctx context.Context, habitID habit.HabitID, date habit.DateKey, hour habit.HourKey) (bool, error) {
	return l.store.ExecutionExists(ctx, habitID, date, hour)
}

// DeleteAllForHabit removes every execution for a habit in one
// transaction. Counters are left untouched: the only caller is the habit
// deletion cascade, where the habit row goes away in the same transaction.
func (l *Ledger) DeleteAllForHabit(ctx context.Context, habitID habit.HabitID) error {
	return l.store.WithTx(ctx, func(s Store) error {
		return s.DeleteExecutionsForHabit(ctx, habitID)
	})
}

// =============================================================================
// EQUALIZE - Operator override of the denormalized counters
// =============================================================================

// EqualizeCounters subtracts min(good, bad) from both counters, leaving
// the ledger untouched. Returns the habit with updated counters.
func (l *Ledger) EqualizeCounters(ctx context.Context, habitID habit.HabitID) (*habit.Habit, error) {
	var updated *habit.Habit
	err := l.store.WithTx(ctx, func(s Store) error {
		h, err := s.GetHabit(ctx, habitID)
		if err != nil {
			return err
		}
		if h == nil {
			return ErrHabitNotFound
		}

		m := min(h.GoodCounter, h.BadCounter)
		h.GoodCounter -= m
		h.BadCounter -= m
		if err := s.SetCounters(ctx, habitID, h.GoodCounter, h.BadCounter, h.SkipCounter); err != nil {
			return err
		}
		updated = h
		return nil
	})
	return updated, err
}
