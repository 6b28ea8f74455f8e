/*
errors.go - Centralized error types for the ledger engine

PURPOSE:
  All error types in one place for consistency and discoverability.
  Store implementations return these sentinels so callers can branch
  with errors.Is regardless of the backing store.

ERROR CATEGORIES:
  1. Not-found errors - Mutations referencing unknown habits/executions
  2. Duplicate errors - Composite-key collisions (expected on retries)
  3. Store errors - Transaction aborts at the persistence layer

USAGE:
    if errors.Is(err, ledger.ErrExecutionNotFound) {
        // caller should refresh its view model
    }

SEE ALSO:
  - store.go: Store contract returning these errors
  - habit/errors.go: Schedule validation errors
*/
package ledger

import "errors"

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrHabitNotFound is returned when a referenced habit doesn't exist.
	ErrHabitNotFound = errors.New("habit not found")

	// ErrExecutionNotFound is returned when an update or delete references
	// an unknown execution id. Callers fail loudly and refresh their view.
	ErrExecutionNotFound = errors.New("execution not found")

	// ErrDuplicateExecution is returned by stores when an insert collides
	// with an existing (habit, date, hour) key. The record path converts
	// this into a silent no-op: recording is idempotent-by-key to tolerate
	// retried UI actions.
	ErrDuplicateExecution = errors.New("execution already recorded for occurrence")

	// ErrTransactionFailed is returned when the underlying store aborts a
	// write. It is propagated unchanged and never retried inside the
	// engine, since retry-after-partial-apply could double-count.
	ErrTransactionFailed = errors.New("store transaction failed")

	// ErrInvalidStatus is returned when a mutation carries a status
	// outside {good, bad, skip}.
	ErrInvalidStatus = errors.New("invalid execution status")
)

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsNotFound reports whether err indicates a missing habit or execution.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrHabitNotFound) || errors.Is(err, ErrExecutionNotFound)
}

// IsClientError reports whether err is due to invalid caller input rather
// than an engine or store fault.
func IsClientError(err error) bool {
	return IsNotFound(err) || errors.Is(err, ErrDuplicateExecution)
}
