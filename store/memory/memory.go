// Package memory provides an in-memory ledger.TxStore for testing/dev.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/habitloop/habit-engine/habit"
	"github.com/habitloop/habit-engine/ledger"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Store struct {
	mu         sync.RWMutex
	habits     map[habit.HabitID]habit.Habit
	executions map[habit.ExecutionID]habit.Execution
	byKey      map[string]habit.ExecutionID // OccurrenceKey -> execution id
}

func New() *Store {
	return &Store{
		habits:     make(map[habit.HabitID]habit.Habit),
		executions: make(map[habit.ExecutionID]habit.Execution),
		byKey:      make(map[string]habit.ExecutionID),
	}
}

// =============================================================================
// HABITS
// =============================================================================

func (m *Store) SaveHabit(_ context.Context, h habit.Habit) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.saveHabitLocked(h)
	return nil
}

func (m *Store) saveHabitLocked(h habit.Habit) {
	// Defensive copies: callers may keep mutating their slices.
	h.RepeatDays = append([]time.Weekday(nil), h.RepeatDays...)
	h.RepeatHours = append([]habit.HourKey(nil), h.RepeatHours...)
	m.habits[h.ID] = h
}

func (m *Store) GetHabit(_ context.Context, id habit.HabitID) (*habit.Habit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getHabitLocked(id), nil
}

func (m *Store) getHabitLocked(id habit.HabitID) *habit.Habit {
	h, ok := m.habits[id]
	if !ok {
		return nil
	}
	return &h
}

func (m *Store) ListHabits(_ context.Context) ([]habit.Habit, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listHabitsLocked(), nil
}

func (m *Store) listHabitsLocked() []habit.Habit {
	out := make([]habit.Habit, 0, len(m.habits))
	for _, h := range m.habits {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (m *Store) DeleteHabit(_ context.Context, id habit.HabitID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteHabitLocked(id)
}

func (m *Store) deleteHabitLocked(id habit.HabitID) error {
	if _, ok := m.habits[id]; !ok {
		return ledger.ErrHabitNotFound
	}
	delete(m.habits, id)
	return nil
}

func (m *Store) AdjustCounters(_ context.Context, id habit.HabitID, delta ledger.CounterDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.adjustCountersLocked(id, delta)
}

func (m *Store) adjustCountersLocked(id habit.HabitID, delta ledger.CounterDelta) error {
	h, ok := m.habits[id]
	if !ok {
		return ledger.ErrHabitNotFound
	}
	h.GoodCounter = clamp(h.GoodCounter + delta.Good)
	h.BadCounter = clamp(h.BadCounter + delta.Bad)
	h.SkipCounter = clamp(h.SkipCounter + delta.Skip)
	m.habits[id] = h
	return nil
}

func (m *Store) SetCounters(_ context.Context, id habit.HabitID, good, bad, skip int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setCountersLocked(id, good, bad, skip)
}

func (m *Store) setCountersLocked(id habit.HabitID, good, bad, skip int) error {
	h, ok := m.habits[id]
	if !ok {
		return ledger.ErrHabitNotFound
	}
	h.GoodCounter, h.BadCounter, h.SkipCounter = clamp(good), clamp(bad), clamp(skip)
	m.habits[id] = h
	return nil
}

// =============================================================================
// EXECUTIONS
// =============================================================================

func (m *Store) InsertExecution(_ context.Context, e habit.Execution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.insertExecutionLocked(e)
}

func (m *Store) insertExecutionLocked(e habit.Execution) error {
	if _, exists := m.byKey[e.Key()]; exists {
		return ledger.ErrDuplicateExecution
	}
	m.executions[e.ID] = e
	m.byKey[e.Key()] = e.ID
	return nil
}

func (m *Store) GetExecution(_ context.Context, id habit.ExecutionID) (*habit.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.getExecutionLocked(id), nil
}

func (m *Store) getExecutionLocked(id habit.ExecutionID) *habit.Execution {
	e, ok := m.executions[id]
	if !ok {
		return nil
	}
	return &e
}

func (m *Store) SetExecutionStatus(_ context.Context, id habit.ExecutionID, status habit.Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setExecutionStatusLocked(id, status)
}

func (m *Store) setExecutionStatusLocked(id habit.ExecutionID, status habit.Status) error {
	e, ok := m.executions[id]
	if !ok {
		return ledger.ErrExecutionNotFound
	}
	e.Status = status
	m.executions[id] = e
	return nil
}

func (m *Store) DeleteExecution(_ context.Context, id habit.ExecutionID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deleteExecutionLocked(id)
}

func (m *Store) deleteExecutionLocked(id habit.ExecutionID) error {
	e, ok := m.executions[id]
	if !ok {
		return ledger.ErrExecutionNotFound
	}
	delete(m.byKey, e.Key())
	delete(m.executions, id)
	return nil
}

func (m *Store) DeleteExecutionsForHabit(_ context.Context, habitID habit.HabitID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deleteExecutionsForHabitLocked(habitID)
	return nil
}

func (m *Store) deleteExecutionsForHabitLocked(habitID habit.HabitID) {
	for id, e := range m.executions {
		if e.HabitID == habitID {
			delete(m.byKey, e.Key())
			delete(m.executions, id)
		}
	}
}

func (m *Store) ListExecutions(_ context.Context, habitID habit.HabitID) ([]habit.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listExecutionsLocked(habitID, "", ""), nil
}

func (m *Store) ListExecutionsInRange(_ context.Context, habitID habit.HabitID, from, to habit.DateKey) ([]habit.Execution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listExecutionsLocked(habitID, from, to), nil
}

// listExecutionsLocked filters by habit and optional inclusive date
// range, newest first.
func (m *Store) listExecutionsLocked(habitID habit.HabitID, from, to habit.DateKey) []habit.Execution {
	var out []habit.Execution
	for _, e := range m.executions {
		if e.HabitID != habitID {
			continue
		}
		if from != "" && e.Date.Before(from) {
			continue
		}
		if to != "" && e.Date.After(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date.After(out[j].Date)
		}
		return out[i].Hour > out[j].Hour
	})
	return out
}

func (m *Store) ExecutionExists(_ context.Context, habitID habit.HabitID, date habit.DateKey, hour habit.HourKey) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.byKey[habit.OccurrenceKey(habitID, date, hour)]
	return ok, nil
}

func (m *Store) FirstExecutionDate(_ context.Context, habitID habit.HabitID) (habit.DateKey, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var first habit.DateKey
	found := false
	for _, e := range m.executions {
		if e.HabitID != habitID {
			continue
		}
		if !found || e.Date.Before(first) {
			first = e.Date
			found = true
		}
	}
	return first, found, nil
}

func (m *Store) LatestExecutionDate(_ context.Context) (habit.DateKey, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var last habit.DateKey
	found := false
	for _, e := range m.executions {
		if !found || e.Date.After(last) {
			last = e.Date
			found = true
		}
	}
	return last, found, nil
}

func clamp(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

// =============================================================================
// TRANSACTIONS - Simulated with snapshot + rollback on error
// =============================================================================

// WithTx executes fn against a view of the store. On error the snapshot
// taken at entry is restored, giving all-or-nothing semantics.
func (m *Store) WithTx(ctx context.Context, fn func(ledger.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snap := m.snapshot()
	if err := fn(&txView{parent: m}); err != nil {
		m.restore(snap)
		return err
	}
	return nil
}

type storeSnapshot struct {
	habits     map[habit.HabitID]habit.Habit
	executions map[habit.ExecutionID]habit.Execution
	byKey      map[string]habit.ExecutionID
}

func (m *Store) snapshot() storeSnapshot {
	s := storeSnapshot{
		habits:     make(map[habit.HabitID]habit.Habit, len(m.habits)),
		executions: make(map[habit.ExecutionID]habit.Execution, len(m.executions)),
		byKey:      make(map[string]habit.ExecutionID, len(m.byKey)),
	}
	for k, v := range m.habits {
		s.habits[k] = v
	}
	for k, v := range m.executions {
		s.executions[k] = v
	}
	for k, v := range m.byKey {
		s.byKey[k] = v
	}
	return s
}

func (m *Store) restore(s storeSnapshot) {
	m.habits = s.habits
	m.executions = s.executions
	m.byKey = s.byKey
}

// txView routes calls to the parent's locked methods. The parent mutex is
// held for the whole transaction, so views see their own writes.
type txView struct {
	parent *Store
}

func (tv *txView) SaveHabit(_ context.Context, h habit.Habit) error {
	tv.parent.saveHabitLocked(h)
	return nil
}

func (tv *txView) GetHabit(_ context.Context, id habit.HabitID) (*habit.Habit, error) {
	return tv.parent.getHabitLocked(id), nil
}

func (tv *txView) ListHabits(_ context.Context) ([]habit.Habit, error) {
	return tv.parent.listHabitsLocked(), nil
}

func (tv *txView) DeleteHabit(_ context.Context, id habit.HabitID) error {
	return tv.parent.deleteHabitLocked(id)
}

func (tv *txView) AdjustCounters(_ context.Context, id habit.HabitID, delta ledger.CounterDelta) error {
	return tv.parent.adjustCountersLocked(id, delta)
}

func (tv *txView) SetCounters(_ context.Context, id habit.HabitID, good, bad, skip int) error {
	return tv.parent.setCountersLocked(id, good, bad, skip)
}

func (tv *txView) InsertExecution(_ context.Context, e habit.Execution) error {
	return tv.parent.insertExecutionLocked(e)
}

func (tv *txView) GetExecution(_ context.Context, id habit.ExecutionID) (*habit.Execution, error) {
	return tv.parent.getExecutionLocked(id), nil
}

func (tv *txView) SetExecutionStatus(_ context.Context, id habit.ExecutionID, status habit.Status) error {
	return tv.parent.setExecutionStatusLocked(id, status)
}

func (tv *txView) DeleteExecution(_ context.Context, id habit.ExecutionID) error {
	return tv.parent.deleteExecutionLocked(id)
}

func (tv *txView) DeleteExecutionsForHabit(_ context.Context, habitID habit.HabitID) error {
	tv.parent.deleteExecutionsForHabitLocked(habitID)
	return nil
}

func (tv *txView) ListExecutions(_ context.Context, habitID habit.HabitID) ([]habit.Execution, error) {
	return tv.parent.listExecutionsLocked(habitID, "", ""), nil
}

func (tv *txView) ListExecutionsInRange(_ context.Context, habitID habit.HabitID, from, to habit.DateKey) ([]habit.Execution, error) {
	return tv.parent.listExecutionsLocked(habitID, from, to), nil
}

func (tv *txView) ExecutionExists(_ context.Context, habitID habit.HabitID, date habit.DateKey, hour habit.HourKey) (bool, error) {
	_, ok := tv.parent.byKey[habit.OccurrenceKey(habitID, date, hour)]
	return ok, nil
}

func (tv *txView) FirstExecutionDate(_ context.Context, habitID habit.HabitID) (habit.DateKey, bool, error) {
	var first habit.DateKey
	found := false
	for _, e := range tv.parent.executions {
		if e.HabitID != habitID {
			continue
		}
		if !found || e.Date.Before(first) {
			first = e.Date
			found = true
		}
	}
	return first, found, nil
}

func (tv *txView) LatestExecutionDate(_ context.Context) (habit.DateKey, bool, error) {
	var last habit.DateKey
	found := false
	for _, e := range tv.parent.executions {
		if !found || e.Date.After(last) {
			last = e.Date
			found = true
		}
	}
	return last, found, nil
}
