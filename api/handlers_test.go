package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/habitloop/habit-engine/api"
	"github.com/habitloop/habit-engine/habit"
	"github.com/habitloop/habit-engine/ledger"
	"github.com/habitloop/habit-engine/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

type fixture struct {
	store  *memory.Store
	svc    *ledger.Service
	server *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	svc := ledger.NewService(store)
	handler := api.NewHandler(svc, 14)
	server := httptest.NewServer(api.NewRouter(handler))
	t.Cleanup(server.Close)
	return &fixture{store: store, svc: svc, server: server}
}

func (f *fixture) do(t *testing.T, method, path string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, f.server.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func (f *fixture) seedHabit(t *testing.T, id habit.HabitID, days []time.Weekday, hours []habit.HourKey) {
	t.Helper()
	h := habit.Habit{
		ID:          id,
		Name:        string(id),
		RepeatDays:  days,
		RepeatHours: hours,
		Available:   true,
		CreatedAt:   time.Now(),
	}
	require.NoError(t, f.store.SaveHabit(context.Background(), h))
}

// =============================================================================
// HABIT CRUD TESTS
// =============================================================================

func TestAPI_CreateAndGetHabit(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/habits", api.SaveHabitRequest{
		Name:        "Morning run",
		Icon:        "🏃",
		RepeatDays:  []int{1, 3, 5},
		RepeatHours: []string{"08:00"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	created := decode[api.HabitDTO](t, resp)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Morning run", created.Name)
	assert.True(t, created.Available, "habits default to available")

	resp = f.do(t, http.MethodGet, "/api/habits/"+created.ID, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.HabitDTO](t, resp)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, []int{1, 3, 5}, got.RepeatDays)
}

func TestAPI_CreateHabit_Validation(t *testing.T) {
	f := newFixture(t)

	resp := f.do(t, http.MethodPost, "/api/habits", api.SaveHabitRequest{
		Name:        "bad hours",
		RepeatDays:  []int{1},
		RepeatHours: []string{"8am"},
	})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = f.do(t, http.MethodPost, "/api/habits", api.SaveHabitRequest{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode, "name is required")
}

func TestAPI_GetHabit_NotFound(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodGet, "/api/habits/ghost", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAPI_UpdateHabit_PreservesCounters(t *testing.T) {
	f := newFixture(t)
	f.seedHabit(t, "run", []time.Weekday{time.Monday}, nil)
	require.NoError(t, f.store.SetCounters(context.Background(), "run", 5, 2, 0))

	resp := f.do(t, http.MethodPut, "/api/habits/run", api.SaveHabitRequest{
		Name:       "Evening run",
		RepeatDays: []int{2},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.HabitDTO](t, resp)
	assert.Equal(t, "Evening run", got.Name)
	assert.Equal(t, 5, got.GoodCounter)
	assert.Equal(t, 2, got.BadCounter)
}

func TestAPI_DeleteHabit_Cascades(t *testing.T) {
	f := newFixture(t)
	f.seedHabit(t, "run", []time.Weekday{time.Monday}, nil)
	_, err := f.svc.Ledger().Record(context.Background(), "run", "2025-03-03", "", habit.StatusGood)
	require.NoError(t, err)

	resp := f.do(t, http.MethodDelete, "/api/habits/run", nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = f.do(t, http.MethodGet, "/api/habits/run", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	exists, err := f.store.ExecutionExists(context.Background(), "run", "2025-03-03", "")
	require.NoError(t, err)
	assert.False(t, exists)
}

// =============================================================================
// CHOICE AND EFFECTIVENESS TESTS
// =============================================================================

func TestAPI_RecordChoice(t *testing.T) {
	f := newFixture(t)
	f.svc.SetClock(func() time.Time {
		return time.Date(2025, time.March, 7, 10, 0, 0, 0, time.Local)
	})
	f.seedHabit(t, "run", []time.Weekday{time.Friday}, []habit.HourKey{"08:00"})

	resp := f.do(t, http.MethodPost, "/api/habits/run/choice", api.ChoiceRequest{Status: "good"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.ChoiceResponseDTO](t, resp)
	assert.Equal(t, 1, got.Habit.GoodCounter)
	require.NotNil(t, got.Effectiveness.Effectiveness)
	assert.Equal(t, 100, *got.Effectiveness.Effectiveness)

	// Retrying the same tap changes nothing
	resp = f.do(t, http.MethodPost, "/api/habits/run/choice", api.ChoiceRequest{Status: "bad"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode[api.ChoiceResponseDTO](t, resp)
	assert.Equal(t, 1, got.Habit.GoodCounter)
	assert.Equal(t, 0, got.Habit.BadCounter)
}

func TestAPI_RecordChoice_InvalidStatus(t *testing.T) {
	f := newFixture(t)
	f.seedHabit(t, "run", []time.Weekday{time.Friday}, nil)

	resp := f.do(t, http.MethodPost, "/api/habits/run/choice", api.ChoiceRequest{Status: "meh"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestAPI_GetEffectiveness_NoHistoryIsNull(t *testing.T) {
	f := newFixture(t)
	f.seedHabit(t, "run", []time.Weekday{time.Friday}, nil)

	resp := f.do(t, http.MethodGet, "/api/habits/run/effectiveness", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.EffectivenessDTO](t, resp)
	assert.Nil(t, got.Effectiveness)
	assert.Zero(t, got.TotalExpected)
}

// =============================================================================
// HISTORY TESTS
// =============================================================================

func TestAPI_HistoryEditAndDelete(t *testing.T) {
	f := newFixture(t)
	f.seedHabit(t, "run", []time.Weekday{time.Monday}, nil)

	ctx := context.Background()
	_, err := f.svc.Ledger().Record(ctx, "run", "2025-03-03", "", habit.StatusGood)
	require.NoError(t, err)

	resp := f.do(t, http.MethodGet, "/api/habits/run/history", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	entries := decode[[]api.ExecutionDTO](t, resp)
	require.Len(t, entries, 1)
	assert.Equal(t, "good", entries[0].Status)

	resp = f.do(t, http.MethodPut, "/api/history/"+entries[0].ID, api.EditHistoryRequest{Status: "bad"})
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	h, err := f.store.GetHabit(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 0, h.GoodCounter)
	assert.Equal(t, 1, h.BadCounter)

	resp = f.do(t, http.MethodDelete, "/api/history/"+entries[0].ID, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	h, err = f.store.GetHabit(ctx, "run")
	require.NoError(t, err)
	assert.Equal(t, 0, h.BadCounter)
}

func TestAPI_HistoryEdit_UnknownEntry(t *testing.T) {
	f := newFixture(t)
	resp := f.do(t, http.MethodPut, "/api/history/ghost", api.EditHistoryRequest{Status: "good"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// =============================================================================
// ADMIN TESTS
// =============================================================================

func TestAPI_Equalize(t *testing.T) {
	f := newFixture(t)
	f.seedHabit(t, "run", []time.Weekday{time.Monday}, nil)
	require.NoError(t, f.store.SetCounters(context.Background(), "run", 7, 4, 1))

	resp := f.do(t, http.MethodPost, "/api/habits/run/equalize", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.HabitDTO](t, resp)
	assert.Equal(t, 3, got.GoodCounter)
	assert.Equal(t, 0, got.BadCounter)
	assert.Equal(t, 1, got.SkipCounter)
}

func TestAPI_Backfill(t *testing.T) {
	f := newFixture(t)
	f.svc.SetClock(func() time.Time {
		return time.Date(2025, time.March, 7, 12, 0, 0, 0, time.Local)
	})
	allWeek := []time.Weekday{time.Sunday, time.Monday, time.Tuesday, time.Wednesday,
		time.Thursday, time.Friday, time.Saturday}
	f.seedHabit(t, "daily", allWeek, nil)

	ctx := context.Background()
	_, err := f.svc.Ledger().Record(ctx, "daily", "2025-03-03", "", habit.StatusGood)
	require.NoError(t, err)

	resp := f.do(t, http.MethodPost, "/api/admin/backfill", api.BackfillRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got := decode[api.BackfillResultDTO](t, resp)
	assert.Equal(t, 3, got.Inserted)

	resp = f.do(t, http.MethodPost, "/api/admin/backfill", api.BackfillRequest{})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	got = decode[api.BackfillResultDTO](t, resp)
	assert.Zero(t, got.Inserted, "re-run is idempotent")
}

func TestAPI_Backfill_RejectsNonPositiveBound(t *testing.T) {
	f := newFixture(t)
	bound := -1
	resp := f.do(t, http.MethodPost, "/api/admin/backfill", api.BackfillRequest{MaxDaysBack: &bound})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
