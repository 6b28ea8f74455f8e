/*
service.go - UI-facing facade over the ledger engine

PURPOSE:
  Bundles ledger, calculator and backfiller behind the operations the
  presentation layer calls. The UI never talks to the store directly;
  this facade is the full surface of the engine.

OPERATIONS:
  Habits:   CreateHabit, GetHabit, ListHabits, UpdateHabit, DeleteHabit
  Choices:  RecordChoice (today's occurrence, returns habit + fresh
            effectiveness for re-render)
  History:  GetHistory, EditHistoryEntry, DeleteHistoryEntry
  Counters: EqualizeCounters
  Resume:   Backfill

CASCADE:
  Deleting a habit deletes all its executions in the same transaction -
  an explicit cascade, not a storage-level one.

SEE ALSO:
  - ledger.go, effectiveness.go, backfill.go: The components behind this
  - api package: HTTP exposure of these operations
*/
package ledger

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/habitloop/habit-engine/habit"
)

// Service is the engine facade handed to the presentation layer.
type Service struct {
	store      TxStore
	ledger     *Ledger
	calc       *Calculator
	backfiller *Backfiller

	now func() time.Time
}

// NewService wires a service over the given transactional store.
func NewService(store TxStore) *Service {
	return &Service{
		store:      store,
		ledger:     New(store),
		calc:       NewCalculator(store),
		backfiller: NewBackfiller(store),
		now:        time.Now,
	}
}

// SetClock pins the wall-clock source for the service and all its
// components. Tests use this to make the future-hour and backfill rules
// deterministic.
func (svc *Service) SetClock(now func() time.Time) {
	svc.now = now
	svc.ledger.Now = now
	svc.calc.Now = now
	svc.backfiller.Now = now
}

// Ledger exposes the underlying ledger for callers that need the raw
// record path (and for tests).
func (svc *Service) Ledger() *Ledger { return svc.ledger }

// =============================================================================
// HABIT CRUD
// =============================================================================

// CreateHabit validates and persists a new habit. A missing ID gets a
// generated one; repeat days and hours are normalized to sorted order.
func (svc *Service) CreateHabit(ctx context.Context, h habit.Habit) (*habit.Habit, error) {
	if h.ID == "" {
		h.ID = habit.HabitID(uuid.NewString())
	}
	normalizeSchedule(&h)
	if err := h.ValidateSchedule(); err != nil {
		return nil, err
	}
	if h.CreatedAt.IsZero() {
		h.CreatedAt = svc.now()
	}
	if err := svc.store.SaveHabit(ctx, h); err != nil {
		return nil, err
	}
	return &h, nil
}

// GetHabit returns a habit by id, or ErrHabitNotFound.
func (svc *Service) GetHabit(ctx context.Context, id habit.HabitID) (*habit.Habit, error) {
	h, err := svc.store.GetHabit(ctx, id)
	if err != nil {
		return nil, err
	}
	if h == nil {
		return nil, ErrHabitNotFound
	}
	return h, nil
}

// ListHabits returns all habits.
func (svc *Service) ListHabits(ctx context.Context) ([]habit.Habit, error) {
	return svc.store.ListHabits(ctx)
}

// UpdateHabit validates and persists changes to an existing habit.
// Counters are carried over from the stored habit: schedule and display
// edits must not disturb the ledger-derived totals.
func (svc *Service) UpdateHabit(ctx context.Context, h habit.Habit) (*habit.Habit, error) {
	existing, err := svc.GetHabit(ctx, h.ID)
	if err != nil {
		return nil, err
	}
	normalizeSchedule(&h)
	if err := h.ValidateSchedule(); err != nil {
		return nil, err
	}
	h.GoodCounter = existing.GoodCounter
	h.BadCounter = existing.BadCounter
	h.SkipCounter = existing.SkipCounter
	h.CreatedAt = existing.CreatedAt
	if err := svc.store.SaveHabit(ctx, h); err != nil {
		return nil, err
	}
	return &h, nil
}

// DeleteHabit removes a habit and cascades to all its executions in one
// transaction.
func (svc *Service) DeleteHabit(ctx context.Context, id habit.HabitID) error {
	return svc.store.WithTx(ctx, func(s Store) error {
		h, err := s.GetHabit(ctx, id)
		if err != nil {
			return err
		}
		if h == nil {
			return ErrHabitNotFound
		}
		if err := s.DeleteExecutionsForHabit(ctx, id); err != nil {
			return err
		}
		return s.DeleteHabit(ctx, id)
	})
}

// =============================================================================
// CHOICES AND HISTORY
// =============================================================================

// RecordChoice records the user's choice for today's relevant occurrence
// and returns the updated habit together with a fresh effectiveness
// result for re-render. Recording an already-recorded occurrence changes
// nothing (idempotent-by-key).
func (svc *Service) RecordChoice(ctx context.Context, habitID habit.HabitID, status habit.Status) (*habit.Habit, Effectiveness, error) {
	h, err := svc.GetHabit(ctx, habitID)
	if err != nil {
		return nil, Effectiveness{}, err
	}

	now := svc.now()
	hour := dueHourFor(h, habit.HourOf(now))
	if _, err := svc.ledger.Record(ctx, habitID, habit.DateOf(now), hour, status); err != nil {
		return nil, Effectiveness{}, err
	}

	updated, err := svc.GetHabit(ctx, habitID)
	if err != nil {
		return nil, Effectiveness{}, err
	}
	eff, err := svc.calc.Calculate(ctx, habitID)
	if err != nil {
		return nil, Effectiveness{}, err
	}
	return updated, eff, nil
}

// GetEffectiveness recomputes the habit's effectiveness from the ledger.
func (svc *Service) GetEffectiveness(ctx context.Context, habitID habit.HabitID) (Effectiveness, error) {
	return svc.calc.Calculate(ctx, habitID)
}

// GetHistory returns the habit's executions, newest first, for the
// history-editing screen.
func (svc *Service) GetHistory(ctx context.Context, habitID habit.HabitID) ([]habit.Execution, error) {
	if _, err := svc.GetHabit(ctx, habitID); err != nil {
		return nil, err
	}
	return svc.ledger.ListByHabit(ctx, habitID)
}

// EditHistoryEntry changes the status of a past execution.
func (svc *Service) EditHistoryEntry(ctx context.Context, id habit.ExecutionID, newStatus habit.Status) error {
	return svc.ledger.UpdateStatus(ctx, id, newStatus)
}

// DeleteHistoryEntry removes a past execution, reversing its counter
// contribution.
func (svc *Service) DeleteHistoryEntry(ctx context.Context, id habit.ExecutionID) error {
	return svc.ledger.Delete(ctx, id)
}

// EqualizeCounters applies the operator counter override.
func (svc *Service) EqualizeCounters(ctx context.Context, habitID habit.HabitID) (*habit.Habit, error) {
	return svc.ledger.EqualizeCounters(ctx, habitID)
}

// Backfill runs the resume-time reconciliation.
func (svc *Service) Backfill(ctx context.Context, maxDaysBack int) (int, error) {
	return svc.backfiller.Backfill(ctx, maxDaysBack)
}

// =============================================================================
// HELPERS
// =============================================================================

// dueHourFor picks the occurrence hour a choice made now refers to: the
// most recent due hour that has arrived, or the first upcoming hour when
// the user acts early. Hour-less habits always map to the empty hour.
func dueHourFor(h *habit.Habit, nowHour habit.HourKey) habit.HourKey {
	if len(h.RepeatHours) == 0 {
		return ""
	}
	var due habit.HourKey
	found := false
	for _, hr := range h.RepeatHours {
		if !hr.After(nowHour) {
			due = hr
			found = true
		}
	}
	if !found {
		return h.RepeatHours[0]
	}
	return due
}

// normalizeSchedule sorts repeat days and hours so expansion and
// dueHourFor can rely on order.
func normalizeSchedule(h *habit.Habit) {
	slices.Sort(h.RepeatDays)
	slices.Sort(h.RepeatHours)
}
