/*
Package sqlite provides a SQLite-backed implementation of ledger.TxStore.

PURPOSE:
  Production persistence for habits and execution records. The same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  habits:     Habit entities with denormalized good/bad/skip counters
  executions: The execution ledger

COMPOSITE-KEY ENFORCEMENT:
  idx_unique_occurrence makes (habit_id, date, hour) unique at the
  database level. The engine pre-checks with ExecutionExists, but the
  index is the last line of defense: a raced insert surfaces as
  ErrDuplicateExecution instead of silently duplicating an occurrence.

COUNTER CLAMPING:
  AdjustCounters applies deltas with MAX(0, ...) so decrementing an
  already-zero counter clamps instead of going negative.

INDEXES:
  - idx_unique_occurrence: Composite-key identity (and existence checks)
  - idx_executions_habit_date: History reads, newest first (hot path)
  - idx_executions_date: Backfill's global latest-entry scan

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

CONCURRENCY:
  Uses sync.RWMutex on top of SQLite's own locking, matching the
  engine's single-writer model. The writer mutex is held for the whole
  WithTx call so no other writer interleaves with an open transaction.

USAGE:
  store, err := sqlite.New("./data/habits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  svc := ledger.NewService(store)

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - ledger/store.go: Interface definitions
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/habitloop/habit-engine/habit"
	"github.com/habitloop/habit-engine/ledger"
)

// Store implements ledger.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// Single connection: keeps ":memory:" databases coherent and matches
	// the engine's single-writer model.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS habits (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		icon TEXT NOT NULL DEFAULT '',
		repeat_days TEXT NOT NULL DEFAULT '',
		repeat_hours TEXT NOT NULL DEFAULT '',
		good_counter INTEGER NOT NULL DEFAULT 0,
		bad_counter INTEGER NOT NULL DEFAULT 0,
		skip_counter INTEGER NOT NULL DEFAULT 0,
		available INTEGER NOT NULL DEFAULT 1,
		created_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS executions (
		id TEXT PRIMARY KEY,
		habit_id TEXT NOT NULL,
		date TEXT NOT NULL,
		hour TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL,
		recorded_at TEXT NOT NULL
	);

	-- CRITICAL: at most one execution per due occurrence. The idempotent
	-- record path relies on this even under raced inserts.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_unique_occurrence
		ON executions(habit_id, date, hour);

	-- History screens read newest-first per habit (hot path)
	CREATE INDEX IF NOT EXISTS idx_executions_habit_date
		ON executions(habit_id, date DESC, hour DESC);

	-- Backfill scans for the global most recent entry date
	CREATE INDEX IF NOT EXISTS idx_executions_date
		ON executions(date);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// HABITS
// =============================================================================

// SaveHabit inserts or updates a habit.
func (s *Store) SaveHabit(ctx context.Context, h habit.Habit) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return saveHabit(ctx, s.db, h)
}

func saveHabit(ctx context.Context, db dbtx, h habit.Habit) error {
	query := `
		INSERT INTO habits
		(id, name, icon, repeat_days, repeat_hours, good_counter, bad_counter, skip_counter, available, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			icon = excluded.icon,
			repeat_days = excluded.repeat_days,
			repeat_hours = excluded.repeat_hours,
			good_counter = excluded.good_counter,
			bad_counter = excluded.bad_counter,
			skip_counter = excluded.skip_counter,
			available = excluded.available
	`

	createdAt := h.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := db.ExecContext(ctx, query,
		h.ID, h.Name, h.Icon,
		encodeDays(h.RepeatDays),
		encodeHours(h.RepeatHours),
		h.GoodCounter, h.BadCounter, h.SkipCounter,
		h.Available,
		createdAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to save habit: %w", err)
	}
	return nil
}

const habitColumns = `id, name, icon, repeat_days, repeat_hours, good_counter, bad_counter, skip_counter, available, created_at`

// GetHabit returns a habit by id, or nil when absent.
func (s *Store) GetHabit(ctx context.Context, id habit.HabitID) (*habit.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getHabit(ctx, s.db, id)
}

func getHabit(ctx context.Context, db dbtx, id habit.HabitID) (*habit.Habit, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+habitColumns+` FROM habits WHERE id = ?`, id)

	h, err := scanHabit(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return h, nil
}

// ListHabits returns all habits ordered by name.
func (s *Store) ListHabits(ctx context.Context) ([]habit.Habit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listHabits(ctx, s.db)
}

func listHabits(ctx context.Context, db dbtx) ([]habit.Habit, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT `+habitColumns+` FROM habits ORDER BY name, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list habits: %w", err)
	}
	defer rows.Close()

	var habits []habit.Habit
	for rows.Next() {
		h, err := scanHabit(rows)
		if err != nil {
			return nil, err
		}
		habits = append(habits, *h)
	}
	return habits, rows.Err()
}

// DeleteHabit removes a habit row. Execution cascade is the caller's job.
func (s *Store) DeleteHabit(ctx context.Context, id habit.HabitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return deleteHabit(ctx, s.db, id)
}

func deleteHabit(ctx context.Context, db dbtx, id habit.HabitID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM habits WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete habit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrHabitNotFound
	}
	return nil
}

// AdjustCounters applies a signed delta to the habit's counters,
// clamping each at zero.
func (s *Store) AdjustCounters(ctx context.Context, id habit.HabitID, delta ledger.CounterDelta) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return adjustCounters(ctx, s.db, id, delta)
}

func adjustCounters(ctx context.Context, db dbtx, id habit.HabitID, delta ledger.CounterDelta) error {
	query := `
		UPDATE habits SET
			good_counter = MAX(0, good_counter + ?),
			bad_counter = MAX(0, bad_counter + ?),
			skip_counter = MAX(0, skip_counter + ?)
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query, delta.Good, delta.Bad, delta.Skip, id)
	if err != nil {
		return fmt.Errorf("failed to adjust counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrHabitNotFound
	}
	return nil
}

// SetCounters overwrites the habit's counters.
func (s *Store) SetCounters(ctx context.Context, id habit.HabitID, good, bad, skip int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return setCounters(ctx, s.db, id, good, bad, skip)
}

func setCounters(ctx context.Context, db dbtx, id habit.HabitID, good, bad, skip int) error {
	query := `
		UPDATE habits SET
			good_counter = MAX(0, ?),
			bad_counter = MAX(0, ?),
			skip_counter = MAX(0, ?)
		WHERE id = ?
	`
	res, err := db.ExecContext(ctx, query, good, bad, skip, id)
	if err != nil {
		return fmt.Errorf("failed to set counters: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrHabitNotFound
	}
	return nil
}

// =============================================================================
// EXECUTIONS
// =============================================================================

// InsertExecution appends a ledger entry. Returns ErrDuplicateExecution
// when the (habit_id, date, hour) key already exists.
func (s *Store) InsertExecution(ctx context.Context, e habit.Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return insertExecution(ctx, s.db, e)
}

func insertExecution(ctx context.Context, db dbtx, e habit.Execution) error {
	query := `
		INSERT INTO executions (id, habit_id, date, hour, status, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := db.ExecContext(ctx, query,
		e.ID, e.HabitID, e.Date, e.Hour, e.Status,
		e.Timestamp.UTC().Format(time.RFC3339),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ledger.ErrDuplicateExecution
		}
		return fmt.Errorf("failed to insert execution: %w", err)
	}
	return nil
}

const executionColumns = `id, habit_id, date, hour, status, recorded_at`

// GetExecution returns an execution by id, or nil when absent.
func (s *Store) GetExecution(ctx context.Context, id habit.ExecutionID) (*habit.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return getExecution(ctx, s.db, id)
}

func getExecution(ctx context.Context, db dbtx, id habit.ExecutionID) (*habit.Execution, error) {
	row := db.QueryRowContext(ctx,
		`SELECT `+executionColumns+` FROM executions WHERE id = ?`, id)

	e, err := scanExecution(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return e, nil
}

// SetExecutionStatus mutates a stored entry's status.
func (s *Store) SetExecutionStatus(ctx context.Context, id habit.ExecutionID, status habit.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return setExecutionStatus(ctx, s.db, id, status)
}

func setExecutionStatus(ctx context.Context, db dbtx, id habit.ExecutionID, status habit.Status) error {
	res, err := db.ExecContext(ctx,
		`UPDATE executions SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return fmt.Errorf("failed to update execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrExecutionNotFound
	}
	return nil
}

// DeleteExecution removes a single ledger entry.
func (s *Store) DeleteExecution(ctx context.Context, id habit.ExecutionID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return deleteExecution(ctx, s.db, id)
}

func deleteExecution(ctx context.Context, db dbtx, id habit.ExecutionID) error {
	res, err := db.ExecContext(ctx, `DELETE FROM executions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete execution: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ledger.ErrExecutionNotFound
	}
	return nil
}

// DeleteExecutionsForHabit bulk-deletes a habit's ledger entries.
func (s *Store) DeleteExecutionsForHabit(ctx context.Context, habitID habit.HabitID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return deleteExecutionsForHabit(ctx, s.db, habitID)
}

func deleteExecutionsForHabit(ctx context.Context, db dbtx, habitID habit.HabitID) error {
	_, err := db.ExecContext(ctx, `DELETE FROM executions WHERE habit_id = ?`, habitID)
	if err != nil {
		return fmt.Errorf("failed to delete executions: %w", err)
	}
	return nil
}

// ListExecutions returns a habit's entries, newest first.
func (s *Store) ListExecutions(ctx context.Context, habitID habit.HabitID) ([]habit.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listExecutions(ctx, s.db, habitID)
}

func listExecutions(ctx context.Context, db dbtx, habitID habit.HabitID) ([]habit.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE habit_id = ?
		ORDER BY date DESC, hour DESC
	`
	return queryExecutions(ctx, db, query, habitID)
}

// ListExecutionsInRange returns a habit's entries with date in [from, to].
func (s *Store) ListExecutionsInRange(ctx context.Context, habitID habit.HabitID, from, to habit.DateKey) ([]habit.Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return listExecutionsInRange(ctx, s.db, habitID, from, to)
}

func listExecutionsInRange(ctx context.Context, db dbtx, habitID habit.HabitID, from, to habit.DateKey) ([]habit.Execution, error) {
	query := `
		SELECT ` + executionColumns + `
		FROM executions
		WHERE habit_id = ? AND date >= ? AND date <= ?
		ORDER BY date DESC, hour DESC
	`
	return queryExecutions(ctx, db, query, habitID, from, to)
}

// ExecutionExists is the composite-key lookup backing idempotent record.
func (s *Store) ExecutionExists(ctx context.Context, habitID habit.HabitID, date habit.DateKey, hour habit.HourKey) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return executionExists(ctx, s.db, habitID, date, hour)
}

func executionExists(ctx context.Context, db dbtx, habitID habit.HabitID, date habit.DateKey, hour habit.HourKey) (bool, error) {
	var count int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM executions WHERE habit_id = ? AND date = ? AND hour = ?`,
		habitID, date, hour,
	).Scan(&count)
	return count > 0, err
}

// FirstExecutionDate returns the habit's earliest entry date.
func (s *Store) FirstExecutionDate(ctx context.Context, habitID habit.HabitID) (habit.DateKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return firstExecutionDate(ctx, s.db, habitID)
}

func firstExecutionDate(ctx context.Context, db dbtx, habitID habit.HabitID) (habit.DateKey, bool, error) {
	var date sql.NullString
	err := db.QueryRowContext(ctx,
		`SELECT MIN(date) FROM executions WHERE habit_id = ?`, habitID,
	).Scan(&date)
	if err != nil {
		return "", false, err
	}
	if !date.Valid {
		return "", false, nil
	}
	return habit.DateKey(date.String), true, nil
}

// LatestExecutionDate returns the most recent entry date across all habits.
func (s *Store) LatestExecutionDate(ctx context.Context) (habit.DateKey, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return latestExecutionDate(ctx, s.db)
}

func latestExecutionDate(ctx context.Context, db dbtx) (habit.DateKey, bool, error) {
	var date sql.NullString
	err := db.QueryRowContext(ctx, `SELECT MAX(date) FROM executions`).Scan(&date)
	if err != nil {
		return "", false, err
	}
	if !date.Valid {
		return "", false, nil
	}
	return habit.DateKey(date.String), true, nil
}

func queryExecutions(ctx context.Context, db dbtx, query string, args ...any) ([]habit.Execution, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query executions: %w", err)
	}
	defer rows.Close()

	var executions []habit.Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, err
		}
		executions = append(executions, *e)
	}
	return executions, rows.Err()
}

// =============================================================================
// TRANSACTIONS (ledger.TxStore interface)
// =============================================================================

// WithTx executes fn within a database transaction. The writer mutex is
// held for the whole call so fn sees an isolated view.
func (s *Store) WithTx(ctx context.Context, fn func(store ledger.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", ledger.ErrTransactionFailed, err)
	}
	return nil
}

// txStore routes every operation through the open transaction so reads
// inside WithTx see the transaction's own writes.
type txStore struct {
	tx *sql.Tx
}

func (ts *txStore) SaveHabit(ctx context.Context, h habit.Habit) error {
	return saveHabit(ctx, ts.tx, h)
}

func (ts *txStore) GetHabit(ctx context.Context, id habit.HabitID) (*habit.Habit, error) {
	return getHabit(ctx, ts.tx, id)
}

func (ts *txStore) ListHabits(ctx context.Context) ([]habit.Habit, error) {
	return listHabits(ctx, ts.tx)
}

func (ts *txStore) DeleteHabit(ctx context.Context, id habit.HabitID) error {
	return deleteHabit(ctx, ts.tx, id)
}

func (ts *txStore) AdjustCounters(ctx context.Context, id habit.HabitID, delta ledger.CounterDelta) error {
	return adjustCounters(ctx, ts.tx, id, delta)
}

func (ts *txStore) SetCounters(ctx context.Context, id habit.HabitID, good, bad, skip int) error {
	return setCounters(ctx, ts.tx, id, good, bad, skip)
}

func (ts *txStore) InsertExecution(ctx context.Context, e habit.Execution) error {
	return insertExecution(ctx, ts.tx, e)
}

func (ts *txStore) GetExecution(ctx context.Context, id habit.ExecutionID) (*habit.Execution, error) {
	return getExecution(ctx, ts.tx, id)
}

func (ts *txStore) SetExecutionStatus(ctx context.Context, id habit.ExecutionID, status habit.Status) error {
	return setExecutionStatus(ctx, ts.tx, id, status)
}

func (ts *txStore) DeleteExecution(ctx context.Context, id habit.ExecutionID) error {
	return deleteExecution(ctx, ts.tx, id)
}

func (ts *txStore) DeleteExecutionsForHabit(ctx context.Context, habitID habit.HabitID) error {
	return deleteExecutionsForHabit(ctx, ts.tx, habitID)
}

func (ts *txStore) ListExecutions(ctx context.Context, habitID habit.HabitID) ([]habit.Execution, error) {
	return listExecutions(ctx, ts.tx, habitID)
}

func (ts *txStore) ListExecutionsInRange(ctx context.Context, habitID habit.HabitID, from, to habit.DateKey) ([]habit.Execution, error) {
	return listExecutionsInRange(ctx, ts.tx, habitID, from, to)
}

func (ts *txStore) ExecutionExists(ctx context.Context, habitID habit.HabitID, date habit.DateKey, hour habit.HourKey) (bool, error) {
	return executionExists(ctx, ts.tx, habitID, date, hour)
}

func (ts *txStore) FirstExecutionDate(ctx context.Context, habitID habit.HabitID) (habit.DateKey, bool, error) {
	return firstExecutionDate(ctx, ts.tx, habitID)
}

func (ts *txStore) LatestExecutionDate(ctx context.Context) (habit.DateKey, bool, error) {
	return latestExecutionDate(ctx, ts.tx)
}

// =============================================================================
// SCANNING AND ENCODING HELPERS
// =============================================================================

// dbtx is the subset of *sql.DB / *sql.Tx the helpers need.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanHabit(row rowScanner) (*habit.Habit, error) {
	var (
		h         habit.Habit
		days      string
		hours     string
		createdAt string
	)
	err := row.Scan(
		&h.ID, &h.Name, &h.Icon, &days, &hours,
		&h.GoodCounter, &h.BadCounter, &h.SkipCounter,
		&h.Available, &createdAt,
	)
	if err != nil {
		return nil, err
	}

	h.RepeatDays = decodeDays(days)
	h.RepeatHours = decodeHours(hours)
	h.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	return &h, nil
}

func scanExecution(row rowScanner) (*habit.Execution, error) {
	var (
		e          habit.Execution
		recordedAt string
	)
	err := row.Scan(&e.ID, &e.HabitID, &e.Date, &e.Hour, &e.Status, &recordedAt)
	if err != nil {
		return nil, err
	}
	e.Timestamp, _ = time.Parse(time.RFC3339, recordedAt)
	return &e, nil
}

// encodeDays serializes weekdays as comma-separated ints (time.Weekday
// numbering, Sunday = 0).
func encodeDays(days []time.Weekday) string {
	parts := make([]string, len(days))
	for i, d := range days {
		parts[i] = strconv.Itoa(int(d))
	}
	return strings.Join(parts, ",")
}

func decodeDays(s string) []time.Weekday {
	if s == "" {
		return nil
	}
	var days []time.Weekday
	for _, part := range strings.Split(s, ",") {
		n, err := strconv.Atoi(part)
		if err != nil {
			continue
		}
		days = append(days, time.Weekday(n))
	}
	return days
}

func encodeHours(hours []habit.HourKey) string {
	parts := make([]string, len(hours))
	for i, h := range hours {
		parts[i] = string(h)
	}
	return strings.Join(parts, ",")
}

func decodeHours(s string) []habit.HourKey {
	if s == "" {
		return nil
	}
	var hours []habit.HourKey
	for _, part := range strings.Split(s, ",") {
		hours = append(hours, habit.HourKey(part))
	}
	return hours
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
