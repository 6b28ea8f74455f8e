/*
store.go - Persistence interface for habits and execution records

PURPOSE:
  Defines the interface between the ledger engine and the database.
  Different implementations can use SQLite or in-memory storage; the
  engine only requires all-or-nothing transaction semantics per logical
  operation.

KEY INTERFACES:
  Store:   Habit and execution persistence primitives
  TxStore: Store plus a single atomic transaction boundary

COMPOSITE IDENTITY:
  Executions are uniquely keyed by (habit_id, date, hour). InsertExecution
  returns ErrDuplicateExecution on collision; implementations back this
  with a unique index so the invariant holds even if a caller skips the
  ExecutionExists pre-check.

COUNTER DELTAS:
  AdjustCounters applies signed deltas to a habit's denormalized counters,
  clamping at zero. It never recomputes from scratch - the ledger engine
  issues one delta per mutation inside the same transaction as the
  execution write, which is what keeps counters and ledger consistent.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite store
  - store/memory: In-memory store for testing/dev

SEE ALSO:
  - ledger.go: Engine operations built on this contract
*/
package ledger

import (
	"context"

	"github.com/habitloop/habit-engine/habit"
)

// =============================================================================
// COUNTER DELTA - Signed adjustment to a habit's denormalized counters
// =============================================================================

// CounterDelta is the per-mutation adjustment the reconciler applies to a
// habit's counters. Negative components clamp at zero when applied.
type CounterDelta struct {
	Good int
	Bad  int
	Skip int
}

// IsZero reports whether the delta changes nothing.
func (d CounterDelta) IsZero() bool { return d.Good == 0 && d.Bad == 0 && d.Skip == 0 }

// DeltaFor returns the delta that adds n entries of the given status.
func DeltaFor(status habit.Status, n int) CounterDelta {
	switch status {
	case habit.StatusGood:
		return CounterDelta{Good: n}
	case habit.StatusBad:
		return CounterDelta{Bad: n}
	case habit.StatusSkip:
		return CounterDelta{Skip: n}
	}
	return CounterDelta{}
}

// Add combines two deltas.
func (d CounterDelta) Add(other CounterDelta) CounterDelta {
	return CounterDelta{Good: d.Good + other.Good, Bad: d.Bad + other.Bad, Skip: d.Skip + other.Skip}
}

// =============================================================================
// STORE - Persistence primitives
// =============================================================================

// Store handles persistence of habits and execution records. All methods
// are snapshot reads or single-row writes; multi-write atomicity comes
// from TxStore.WithTx.
type Store interface {
	// Habits
	SaveHabit(ctx context.Context, h habit.Habit) error
	GetHabit(ctx context.Context, id habit.HabitID) (*habit.Habit, error)
	ListHabits(ctx context.Context) ([]habit.Habit, error)
	// DeleteHabit removes the habit row only. Callers cascade executions
	// explicitly via DeleteExecutionsForHabit in the same transaction.
	DeleteHabit(ctx context.Context, id habit.HabitID) error

	// AdjustCounters applies delta to the habit's counters, clamping each
	// counter at zero. Returns ErrHabitNotFound for unknown habits.
	AdjustCounters(ctx context.Context, id habit.HabitID, delta CounterDelta) error

	// SetCounters overwrites the habit's counters outright. Used only by
	// the operator-invoked equalize path, never by ledger mutations.
	SetCounters(ctx context.Context, id habit.HabitID, good, bad, skip int) error

	// Executions
	// InsertExecution returns ErrDuplicateExecution if the composite key
	// (habit_id, date, hour) already exists.
	InsertExecution(ctx context.Context, e habit.Execution) error
	GetExecution(ctx context.Context, id habit.ExecutionID) (*habit.Execution, error)
	SetExecutionStatus(ctx context.Context, id habit.ExecutionID, status habit.Status) error
	DeleteExecution(ctx context.Context, id habit.ExecutionID) error
	DeleteExecutionsForHabit(ctx context.Context, habitID habit.HabitID) error

	// ListExecutions returns a habit's executions, newest first
	// (date descending, then hour descending).
	ListExecutions(ctx context.Context, habitID habit.HabitID) ([]habit.Execution, error)
	// ListExecutionsInRange returns a habit's executions with date in
	// [from, to] inclusive.
	ListExecutionsInRange(ctx context.Context, habitID habit.HabitID, from, to habit.DateKey) ([]habit.Execution, error)

	// ExecutionExists is an O(1) lookup on the composite key.
	ExecutionExists(ctx context.Context, habitID habit.HabitID, date habit.DateKey, hour habit.HourKey) (bool, error)

	// FirstExecutionDate returns the earliest entry date for a habit.
	// ok is false when the habit has no history.
	FirstExecutionDate(ctx context.Context, habitID habit.HabitID) (date habit.DateKey, ok bool, err error)

	// LatestExecutionDate returns the most recent entry date across ALL
	// habits. ok is false when the ledger is empty.
	LatestExecutionDate(ctx context.Context) (date habit.DateKey, ok bool, err error)
}

// =============================================================================
// TRANSACTIONAL STORE - Atomic multi-write boundary
// =============================================================================

// TxStore wraps Store with transaction support. Every ledger mutation
// (record, update, delete, backfill, cascade) runs inside exactly one
// WithTx call so a crash cannot leave ledger and counters inconsistent.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}
