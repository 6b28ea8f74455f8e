/*
handlers.go - HTTP API handlers for the habit engine

PURPOSE:
  Exposes the habit engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to the ledger service.

ENDPOINTS:
  Habits:
    GET    /api/habits                      List all habits
    POST   /api/habits                      Create habit
    GET    /api/habits/{id}                 Get habit details
    PUT    /api/habits/{id}                 Update habit
    DELETE /api/habits/{id}                 Delete habit (cascades executions)

  Choices:
    POST   /api/habits/{id}/choice          Record today's good/bad/skip
    GET    /api/habits/{id}/effectiveness   Recompute effectiveness

  History:
    GET    /api/habits/{id}/history         Executions, newest first
    PUT    /api/history/{id}                Edit a past entry's status
    DELETE /api/history/{id}                Delete a past entry

  Admin:
    POST   /api/habits/{id}/equalize        Counter equalization override
    POST   /api/admin/backfill              Resume-time reconciliation

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Habit or execution not found
  - 500: Internal errors

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/habitloop/habit-engine/habit"
	"github.com/habitloop/habit-engine/ledger"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Service *ledger.Service

	// MaxDaysBack is the default backfill bound when the request omits it.
	MaxDaysBack int
}

// NewHandler creates a new handler over the given service.
func NewHandler(svc *ledger.Service, maxDaysBack int) *Handler {
	return &Handler{Service: svc, MaxDaysBack: maxDaysBack}
}

// =============================================================================
// HABIT HANDLERS
// =============================================================================

// ListHabits returns all habits.
func (h *Handler) ListHabits(w http.ResponseWriter, r *http.Request) {
	habits, err := h.Service.ListHabits(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list habits", err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitDTOs(habits))
}

// GetHabit returns a single habit.
func (h *Handler) GetHabit(w http.ResponseWriter, r *http.Request) {
	id := habit.HabitID(chi.URLParam(r, "id"))

	found, err := h.Service.GetHabit(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get habit", err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitDTO(*found))
}

// CreateHabit creates a new habit.
func (h *Handler) CreateHabit(w http.ResponseWriter, r *http.Request) {
	var req SaveHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Habit name is required", nil)
		return
	}

	created, err := h.Service.CreateHabit(r.Context(), toDomainHabit("", req))
	if err != nil {
		writeDomainError(w, "Failed to create habit", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHabitDTO(*created))
}

// UpdateHabit updates an existing habit's name, icon, schedule and
// availability. Counters are untouched.
func (h *Handler) UpdateHabit(w http.ResponseWriter, r *http.Request) {
	id := habit.HabitID(chi.URLParam(r, "id"))

	var req SaveHabitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "Habit name is required", nil)
		return
	}

	updated, err := h.Service.UpdateHabit(r.Context(), toDomainHabit(id, req))
	if err != nil {
		writeDomainError(w, "Failed to update habit", err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitDTO(*updated))
}

// DeleteHabit deletes a habit and all its executions.
func (h *Handler) DeleteHabit(w http.ResponseWriter, r *http.Request) {
	id := habit.HabitID(chi.URLParam(r, "id"))

	if err := h.Service.DeleteHabit(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete habit", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// CHOICE AND EFFECTIVENESS HANDLERS
// =============================================================================

// RecordChoice records good/bad/skip for today's occurrence and returns
// the updated habit plus fresh effectiveness.
func (h *Handler) RecordChoice(w http.ResponseWriter, r *http.Request) {
	id := habit.HabitID(chi.URLParam(r, "id"))

	var req ChoiceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := habit.Status(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "Status must be good, bad or skip", nil)
		return
	}

	updated, eff, err := h.Service.RecordChoice(r.Context(), id, status)
	if err != nil {
		writeDomainError(w, "Failed to record choice", err)
		return
	}
	writeJSON(w, http.StatusOK, ChoiceResponseDTO{
		Habit:         toHabitDTO(*updated),
		Effectiveness: toEffectivenessDTO(eff),
	})
}

// GetEffectiveness recomputes and returns the habit's effectiveness.
func (h *Handler) GetEffectiveness(w http.ResponseWriter, r *http.Request) {
	id := habit.HabitID(chi.URLParam(r, "id"))

	eff, err := h.Service.GetEffectiveness(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to calculate effectiveness", err)
		return
	}
	writeJSON(w, http.StatusOK, toEffectivenessDTO(eff))
}

// =============================================================================
// HISTORY HANDLERS
// =============================================================================

// GetHistory returns the habit's executions, newest first.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id := habit.HabitID(chi.URLParam(r, "id"))

	entries, err := h.Service.GetHistory(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to get history", err)
		return
	}
	writeJSON(w, http.StatusOK, toExecutionDTOs(entries))
}

// EditHistoryEntry changes the status of a past execution, with counters
// adjusted accordingly.
func (h *Handler) EditHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id := habit.ExecutionID(chi.URLParam(r, "id"))

	var req EditHistoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	status := habit.Status(req.Status)
	if !status.Valid() {
		writeError(w, http.StatusBadRequest, "Status must be good, bad or skip", nil)
		return
	}

	if err := h.Service.EditHistoryEntry(r.Context(), id, status); err != nil {
		writeDomainError(w, "Failed to edit history entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// DeleteHistoryEntry removes a past execution, reversing its counter
// contribution.
func (h *Handler) DeleteHistoryEntry(w http.ResponseWriter, r *http.Request) {
	id := habit.ExecutionID(chi.URLParam(r, "id"))

	if err := h.Service.DeleteHistoryEntry(r.Context(), id); err != nil {
		writeDomainError(w, "Failed to delete history entry", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// ADMIN HANDLERS
// =============================================================================

// EqualizeCounters applies the counter equalization override.
func (h *Handler) EqualizeCounters(w http.ResponseWriter, r *http.Request) {
	id := habit.HabitID(chi.URLParam(r, "id"))

	updated, err := h.Service.EqualizeCounters(r.Context(), id)
	if err != nil {
		writeDomainError(w, "Failed to equalize counters", err)
		return
	}
	writeJSON(w, http.StatusOK, toHabitDTO(*updated))
}

// Backfill runs resume-time reconciliation and reports inserted entries.
func (h *Handler) Backfill(w http.ResponseWriter, r *http.Request) {
	maxDaysBack := h.MaxDaysBack

	if r.Body != nil && r.ContentLength != 0 {
		var req BackfillRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
		if req.MaxDaysBack != nil {
			maxDaysBack = *req.MaxDaysBack
		}
	}
	if maxDaysBack <= 0 {
		writeError(w, http.StatusBadRequest, "max_days_back must be positive", nil)
		return
	}

	inserted, err := h.Service.Backfill(r.Context(), maxDaysBack)
	if err != nil {
		writeDomainError(w, "Backfill failed", err)
		return
	}
	writeJSON(w, http.StatusOK, BackfillResultDTO{Inserted: inserted})
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

// writeDomainError maps engine errors to HTTP status codes.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case ledger.IsNotFound(err):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, habit.ErrInvalidSchedule),
		errors.Is(err, ledger.ErrInvalidStatus):
		writeError(w, http.StatusBadRequest, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}
