package sqlite_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitloop/habit-engine/habit"
	"github.com/habitloop/habit-engine/ledger"
	"github.com/habitloop/habit-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testHabit(id habit.HabitID) habit.Habit {
	return habit.Habit{
		ID:          id,
		Name:        string(id),
		Icon:        "🏃",
		RepeatDays:  []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		RepeatHours: []habit.HourKey{"08:00", "20:00"},
		Available:   true,
		CreatedAt:   time.Date(2025, time.January, 1, 12, 0, 0, 0, time.UTC),
	}
}

// =============================================================================
// HABIT PERSISTENCE TESTS
// =============================================================================

func TestSaveAndGetHabit_RoundTrip(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	h := testHabit("run")
	require.NoError(t, store.SaveHabit(ctx, h))

	got, err := store.GetHabit(ctx, "run")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, h.Name, got.Name)
	assert.Equal(t, h.Icon, got.Icon)
	assert.Equal(t, h.RepeatDays, got.RepeatDays)
	assert.Equal(t, h.RepeatHours, got.RepeatHours)
	assert.True(t, got.Available)
	assert.True(t, h.CreatedAt.Equal(got.CreatedAt))
}

func TestGetHabit_MissingReturnsNil(t *testing.T) {
	store := newTestStore(t)
	got, err := store.GetHabit(context.Background(), "ghost")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestSaveHabit_UpsertPreservesIdentity(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	h := testHabit("run")
	require.NoError(t, store.SaveHabit(ctx, h))

	h.Name = "Evening run"
	h.RepeatDays = []time.Weekday{time.Tuesday}
	h.GoodCounter = 3
	require.NoError(t, store.SaveHabit(ctx, h))

	got, err := store.GetHabit(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, "Evening run", got.Name)
	assert.Equal(t, []time.Weekday{time.Tuesday}, got.RepeatDays)
	assert.Equal(t, 3, got.GoodCounter)

	habits, err := store.ListHabits(ctx)
	require.NoError(t, err)
	assert.Len(t, habits, 1)
}

func TestSaveHabit_HourlessScheduleRoundTrips(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	h := testHabit("read")
	h.RepeatHours = nil
	require.NoError(t, store.SaveHabit(ctx, h))

	got, err := store.GetHabit(ctx, "read")
	require.NoError(t, err)
	assert.Nil(t, got.RepeatHours)
}

func TestDeleteHabit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveHabit(ctx, testHabit("run")))

	require.NoError(t, store.DeleteHabit(ctx, "run"))

	got, err := store.GetHabit(ctx, "run")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.ErrorIs(t, store.DeleteHabit(ctx, "run"), ledger.ErrHabitNotFound)
}

// =============================================================================
// COUNTER TESTS
// =============================================================================

func TestAdjustCounters_AppliesDeltaAndClamps(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveHabit(ctx, testHabit("run")))

	require.NoError(t, store.AdjustCounters(ctx, "run", ledger.CounterDelta{Good: 2, Bad: 1}))
	require.NoError(t, store.AdjustCounters(ctx, "run", ledger.CounterDelta{Good: -1, Bad: -5}))

	got, err := store.GetHabit(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 1, got.GoodCounter)
	assert.Equal(t, 0, got.BadCounter, "decrement clamps at zero")
}

func TestAdjustCounters_UnknownHabit(t *testing.T) {
	store := newTestStore(t)
	err := store.AdjustCounters(context.Background(), "ghost", ledger.CounterDelta{Good: 1})
	assert.ErrorIs(t, err, ledger.ErrHabitNotFound)
}

func TestSetCounters(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveHabit(ctx, testHabit("run")))

	require.NoError(t, store.SetCounters(ctx, "run", 4, 0, 2))

	got, err := store.GetHabit(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 4, got.GoodCounter)
	assert.Equal(t, 0, got.BadCounter)
	assert.Equal(t, 2, got.SkipCounter)
}

// =============================================================================
// EXECUTION TESTS
// =============================================================================

func TestInsertExecution_UniqueIndexEnforcesCompositeKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	e := habit.Execution{
		ID: "e1", HabitID: "run", Date: "2025-03-03", Hour: "08:00",
		Status: habit.StatusGood, Timestamp: time.Now(),
	}
	require.NoError(t, store.InsertExecution(ctx, e))

	dup := e
	dup.ID = "e2"
	dup.Status = habit.StatusBad
	assert.ErrorIs(t, store.InsertExecution(ctx, dup), ledger.ErrDuplicateExecution)

	// Hour-less entry for the same day is a distinct occurrence
	hourless := e
	hourless.ID = "e3"
	hourless.Hour = ""
	assert.NoError(t, store.InsertExecution(ctx, hourless))
}

func TestExecutionRoundTripAndStatusUpdate(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	at := time.Date(2025, time.March, 3, 9, 0, 0, 0, time.UTC)
	e := habit.Execution{
		ID: "e1", HabitID: "run", Date: "2025-03-03", Hour: "08:00",
		Status: habit.StatusGood, Timestamp: at,
	}
	require.NoError(t, store.InsertExecution(ctx, e))

	got, err := store.GetExecution(ctx, "e1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, e.Date, got.Date)
	assert.Equal(t, e.Hour, got.Hour)
	assert.True(t, at.Equal(got.Timestamp))

	require.NoError(t, store.SetExecutionStatus(ctx, "e1", habit.StatusSkip))
	got, err = store.GetExecution(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, habit.StatusSkip, got.Status)

	assert.ErrorIs(t, store.SetExecutionStatus(ctx, "ghost", habit.StatusGood), ledger.ErrExecutionNotFound)
}

func TestDeleteExecution_FreesOccurrenceKey(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	e := habit.Execution{ID: "e1", HabitID: "run", Date: "2025-03-03", Hour: "08:00", Status: habit.StatusGood, Timestamp: time.Now()}
	require.NoError(t, store.InsertExecution(ctx, e))
	require.NoError(t, store.DeleteExecution(ctx, "e1"))

	exists, err := store.ExecutionExists(ctx, "run", "2025-03-03", "08:00")
	require.NoError(t, err)
	assert.False(t, exists)

	e.ID = "e2"
	assert.NoError(t, store.InsertExecution(ctx, e), "key is free after delete")

	assert.ErrorIs(t, store.DeleteExecution(ctx, "ghost"), ledger.ErrExecutionNotFound)
}

func TestListExecutions_NewestFirstAndRange(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	entries := []habit.Execution{
		{ID: "e1", HabitID: "run", Date: "2025-03-03", Hour: "08:00", Status: habit.StatusGood, Timestamp: time.Now()},
		{ID: "e2", HabitID: "run", Date: "2025-03-05", Hour: "08:00", Status: habit.StatusBad, Timestamp: time.Now()},
		{ID: "e3", HabitID: "run", Date: "2025-03-05", Hour: "20:00", Status: habit.StatusGood, Timestamp: time.Now()},
		{ID: "e4", HabitID: "other", Date: "2025-03-07", Hour: "", Status: habit.StatusGood, Timestamp: time.Now()},
	}
	for _, e := range entries {
		require.NoError(t, store.InsertExecution(ctx, e))
	}

	got, err := store.ListExecutions(ctx, "run")
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, habit.ExecutionID("e3"), got[0].ID)
	assert.Equal(t, habit.ExecutionID("e2"), got[1].ID)
	assert.Equal(t, habit.ExecutionID("e1"), got[2].ID)

	ranged, err := store.ListExecutionsInRange(ctx, "run", "2025-03-04", "2025-03-06")
	require.NoError(t, err)
	assert.Len(t, ranged, 2)

	first, ok, err := store.FirstExecutionDate(ctx, "run")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, habit.DateKey("2025-03-03"), first)

	latest, ok, err := store.LatestExecutionDate(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, habit.DateKey("2025-03-07"), latest)
}

func TestDeleteExecutionsForHabit(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)

	require.NoError(t, store.InsertExecution(ctx, habit.Execution{ID: "e1", HabitID: "run", Date: "2025-03-03", Status: habit.StatusGood, Timestamp: time.Now()}))
	require.NoError(t, store.InsertExecution(ctx, habit.Execution{ID: "e2", HabitID: "other", Date: "2025-03-03", Status: habit.StatusGood, Timestamp: time.Now()}))

	require.NoError(t, store.DeleteExecutionsForHabit(ctx, "run"))

	got, err := store.ListExecutions(ctx, "run")
	require.NoError(t, err)
	assert.Empty(t, got)

	others, err := store.ListExecutions(ctx, "other")
	require.NoError(t, err)
	assert.Len(t, others, 1)
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestWithTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveHabit(ctx, testHabit("run")))
	boom := errors.New("boom")

	err := store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.InsertExecution(ctx, habit.Execution{
			ID: "e1", HabitID: "run", Date: "2025-03-03", Hour: "08:00",
			Status: habit.StatusGood, Timestamp: time.Now(),
		}); err != nil {
			return err
		}
		if err := s.AdjustCounters(ctx, "run", ledger.CounterDelta{Good: 1}); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	exists, err := store.ExecutionExists(ctx, "run", "2025-03-03", "08:00")
	require.NoError(t, err)
	assert.False(t, exists, "execution write rolled back")

	h, err := store.GetHabit(ctx, "run")
	require.NoError(t, err)
	assert.Zero(t, h.GoodCounter, "counter write rolled back")
}

func TestWithTx_CommitsAndSeesOwnWrites(t *testing.T) {
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveHabit(ctx, testHabit("run")))

	err := store.WithTx(ctx, func(s ledger.Store) error {
		if err := s.InsertExecution(ctx, habit.Execution{
			ID: "e1", HabitID: "run", Date: "2025-03-03", Hour: "08:00",
			Status: habit.StatusGood, Timestamp: time.Now(),
		}); err != nil {
			return err
		}
		exists, err := s.ExecutionExists(ctx, "run", "2025-03-03", "08:00")
		if err != nil {
			return err
		}
		require.True(t, exists, "transaction reads its own writes")
		return s.AdjustCounters(ctx, "run", ledger.CounterDelta{Good: 1})
	})
	require.NoError(t, err)

	h, err := store.GetHabit(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 1, h.GoodCounter)
}

// =============================================================================
// ENGINE-ON-SQLITE SMOKE TEST
// =============================================================================

func TestLedgerEngineOnSQLite(t *testing.T) {
	// The full record/update/delete cycle against the production store.
	ctx := context.Background()
	store := newTestStore(t)
	require.NoError(t, store.SaveHabit(ctx, testHabit("run")))

	l := ledger.New(store)

	created, err := l.Record(ctx, "run", "2025-03-03", "08:00", habit.StatusGood)
	require.NoError(t, err)
	require.True(t, created)

	created, err = l.Record(ctx, "run", "2025-03-03", "08:00", habit.StatusBad)
	require.NoError(t, err)
	assert.False(t, created, "duplicate occurrence is a no-op")

	entries, err := l.ListByHabit(ctx, "run")
	require.NoError(t, err)
	require.Len(t, entries, 1)

	require.NoError(t, l.UpdateStatus(ctx, entries[0].ID, habit.StatusSkip))
	require.NoError(t, l.Delete(ctx, entries[0].ID))

	h, err := store.GetHabit(ctx, "run")
	require.NoError(t, err)
	assert.Zero(t, h.GoodCounter)
	assert.Zero(t, h.SkipCounter)
}
