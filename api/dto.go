/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/habitloop/habit-engine/habit"
	"github.com/habitloop/habit-engine/ledger"
)

// =============================================================================
// REQUEST/RESPONSE TYPES
// =============================================================================

// HabitDTO represents a habit in API responses.
type HabitDTO struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Icon        string   `json:"icon,omitempty"`
	RepeatDays  []int    `json:"repeat_days"`
	RepeatHours []string `json:"repeat_hours"`
	GoodCounter int      `json:"good_counter"`
	BadCounter  int      `json:"bad_counter"`
	SkipCounter int      `json:"skip_counter"`
	Available   bool     `json:"available"`
	CreatedAt   string   `json:"created_at,omitempty"`
}

// SaveHabitRequest is the request to create or update a habit.
type SaveHabitRequest struct {
	Name        string   `json:"name"`
	Icon        string   `json:"icon,omitempty"`
	RepeatDays  []int    `json:"repeat_days"`
	RepeatHours []string `json:"repeat_hours"`
	Available   *bool    `json:"available,omitempty"`
}

// ChoiceRequest records the user's choice for today's occurrence.
type ChoiceRequest struct {
	Status string `json:"status"` // good | bad | skip
}

// ChoiceResponseDTO is the re-render payload after recording a choice.
type ChoiceResponseDTO struct {
	Habit         HabitDTO         `json:"habit"`
	Effectiveness EffectivenessDTO `json:"effectiveness"`
}

// EffectivenessDTO represents an effectiveness calculation.
// Effectiveness is null when the habit has no history.
type EffectivenessDTO struct {
	Effectiveness *int `json:"effectiveness"`
	GoodCount     int  `json:"good_count"`
	BadCount      int  `json:"bad_count"`
	SkippedCount  int  `json:"skipped_count"`
	TotalExpected int  `json:"total_expected"`
}

// ExecutionDTO represents one ledger entry.
type ExecutionDTO struct {
	ID         string `json:"id"`
	HabitID    string `json:"habit_id"`
	Date       string `json:"date"`
	Hour       string `json:"hour,omitempty"`
	Status     string `json:"status"`
	RecordedAt string `json:"recorded_at,omitempty"`
}

// EditHistoryRequest changes the status of a past entry.
type EditHistoryRequest struct {
	Status string `json:"status"`
}

// BackfillRequest triggers resume-time reconciliation.
type BackfillRequest struct {
	MaxDaysBack *int `json:"max_days_back,omitempty"`
}

// BackfillResultDTO reports how many synthetic entries were inserted.
type BackfillResultDTO struct {
	Inserted int `json:"inserted"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toHabitDTO(h habit.Habit) HabitDTO {
	days := make([]int, len(h.RepeatDays))
	for i, d := range h.RepeatDays {
		days[i] = int(d)
	}
	hours := make([]string, len(h.RepeatHours))
	for i, hr := range h.RepeatHours {
		hours[i] = string(hr)
	}
	return HabitDTO{
		ID:          string(h.ID),
		Name:        h.Name,
		Icon:        h.Icon,
		RepeatDays:  days,
		RepeatHours: hours,
		GoodCounter: h.GoodCounter,
		BadCounter:  h.BadCounter,
		SkipCounter: h.SkipCounter,
		Available:   h.Available,
		CreatedAt:   h.CreatedAt.Format(time.RFC3339),
	}
}

func toHabitDTOs(habits []habit.Habit) []HabitDTO {
	dtos := make([]HabitDTO, len(habits))
	for i, h := range habits {
		dtos[i] = toHabitDTO(h)
	}
	return dtos
}

func toEffectivenessDTO(e ledger.Effectiveness) EffectivenessDTO {
	return EffectivenessDTO{
		Effectiveness: e.Effectiveness,
		GoodCount:     e.GoodCount,
		BadCount:      e.BadCount,
		SkippedCount:  e.SkippedCount,
		TotalExpected: e.TotalExpected,
	}
}

func toExecutionDTO(e habit.Execution) ExecutionDTO {
	return ExecutionDTO{
		ID:         string(e.ID),
		HabitID:    string(e.HabitID),
		Date:       string(e.Date),
		Hour:       string(e.Hour),
		Status:     string(e.Status),
		RecordedAt: e.Timestamp.Format(time.RFC3339),
	}
}

func toExecutionDTOs(entries []habit.Execution) []ExecutionDTO {
	dtos := make([]ExecutionDTO, len(entries))
	for i, e := range entries {
		dtos[i] = toExecutionDTO(e)
	}
	return dtos
}

func toDomainHabit(id habit.HabitID, req SaveHabitRequest) habit.Habit {
	days := make([]time.Weekday, len(req.RepeatDays))
	for i, d := range req.RepeatDays {
		days[i] = time.Weekday(d)
	}
	hours := make([]habit.HourKey, len(req.RepeatHours))
	for i, hr := range req.RepeatHours {
		hours[i] = habit.HourKey(hr)
	}
	available := true
	if req.Available != nil {
		available = *req.Available
	}
	return habit.Habit{
		ID:          id,
		Name:        req.Name,
		Icon:        req.Icon,
		RepeatDays:  days,
		RepeatHours: hours,
		Available:   available,
	}
}
