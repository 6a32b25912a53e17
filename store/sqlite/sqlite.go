/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements leave.TxStore (requests + history + balance ledger),
  leave.Directory, and the calendar's workweek/holiday sources against
  one SQLite database. In production the same patterns apply to
  PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  employees:        directory records with per-type day balances
  requests:         one row per leave request
  request_history:  append-only transition log (no UPDATE, no DELETE,
                    except when the owning request is administratively
                    removed)
  holidays:         named non-working dates
  workweek:         one row per weekday, flagged working or not

RESERVATION ATOMICITY:
  Reserve reads the balance and writes it back with an optimistic
  guard (UPDATE ... WHERE balance = <read value>). Zero rows affected
  means a concurrent writer got there first; that surfaces as
  leave.ErrLedgerConflict, which the lifecycle service retries. The
  store-wide mutex makes the conflict path unreachable within one
  process; the guard keeps multi-process deployments honest.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): multiple readers
  don't block, single writer at a time, better crash recovery.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - leave/store.go: interface definitions
  - store/memory/memory.go: in-memory implementation for tests/dev
*/
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

const tsLayout = time.RFC3339Nano

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// dbtx is satisfied by both *sql.DB and *sql.Tx.
type dbtx interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

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
	-- Employees (directory slice + balances)
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL UNIQUE,
		name TEXT NOT NULL,
		manager_email TEXT NOT NULL DEFAULT '',
		department TEXT NOT NULL DEFAULT '',
		vacation_balance TEXT NOT NULL DEFAULT '0',
		sick_balance TEXT NOT NULL DEFAULT '0',
		personal_balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_employees_manager
		ON employees(manager_email);

	-- Leave requests
	CREATE TABLE IF NOT EXISTS requests (
		id TEXT PRIMARY KEY,
		employee_email TEXT NOT NULL,
		leave_type TEXT NOT NULL,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		total_days INTEGER NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		description TEXT,
		requested_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_requests_employee
		ON requests(employee_email);
	CREATE INDEX IF NOT EXISTS idx_requests_status
		ON requests(status);
	-- Hot path: conflict detection and availability scans
	CREATE INDEX IF NOT EXISTS idx_requests_employee_status_dates
		ON requests(employee_email, status, start_date, end_date);

	-- Request history (append-only audit trail)
	CREATE TABLE IF NOT EXISTS request_history (
		id TEXT PRIMARY KEY,
		request_id TEXT NOT NULL,
		action TEXT NOT NULL,
		actor TEXT NOT NULL,
		at TEXT NOT NULL,
		note TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_history_request
		ON request_history(request_id);

	-- Holidays
	CREATE TABLE IF NOT EXISTS holidays (
		id TEXT PRIMARY KEY,
		date TEXT NOT NULL,
		name TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_holidays_unique
		ON holidays(date, name);
	CREATE INDEX IF NOT EXISTS idx_holidays_date
		ON holidays(date);

	-- Workweek (one row per weekday; 0 = Sunday)
	CREATE TABLE IF NOT EXISTS workweek (
		weekday INTEGER PRIMARY KEY,
		non_working BOOLEAN NOT NULL DEFAULT FALSE
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}
	return s.seedWorkweek()
}

// seedWorkweek writes the default Saturday/Sunday workweek on first run.
func (s *Store) seedWorkweek() error {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM workweek").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	def := calendar.DefaultWorkweek()
	for wd := 0; wd < 7; wd++ {
		if _, err := s.db.Exec(
			"INSERT INTO workweek (weekday, non_working) VALUES (?, ?)",
			wd, def.NonWorking[wd],
		); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// REQUEST STORE (leave.Store interface)
// =============================================================================

// SaveRequest inserts a request or updates its mutable fields.
func (s *Store) SaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveRequest(ctx, s.db, r)
}

func (s *Store) saveRequest(ctx context.Context, db dbtx, r *leave.LeaveRequest) error {
	query := `
		INSERT INTO requests
		(id, employee_email, leave_type, start_date, end_date, total_days, status, description, requested_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			start_date = excluded.start_date,
			end_date = excluded.end_date,
			total_days = excluded.total_days,
			status = excluded.status,
			description = excluded.description
	`

	_, err := db.ExecContext(ctx, query,
		r.ID,
		r.EmployeeEmail,
		r.Type,
		r.StartDate.String(),
		r.EndDate.String(),
		r.TotalDays,
		r.Status,
		nullString(r.Description),
		r.RequestedAt.UTC().Format(tsLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save request: %w", translateErr(err))
	}
	return nil
}

// GetRequest returns a request with its full history.
func (s *Store) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getRequest(ctx, s.db, id)
}

func (s *Store) getRequest(ctx context.Context, db dbtx, id leave.RequestID) (*leave.LeaveRequest, error) {
	row := db.QueryRowContext(ctx, `
		SELECT id, employee_email, leave_type, start_date, end_date, total_days, status, description, requested_at
		FROM requests WHERE id = ?
	`, id)

	r, err := scanRequest(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	history, err := s.loadHistory(ctx, db, id)
	if err != nil {
		return nil, err
	}
	r.History = history
	return r, nil
}

func (s *Store) loadHistory(ctx context.Context, db dbtx, id leave.RequestID) ([]leave.HistoryEntry, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT id, action, actor, at, note
		FROM request_history
		WHERE request_id = ?
		ORDER BY at ASC, rowid ASC
	`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	defer rows.Close()

	var entries []leave.HistoryEntry
	for rows.Next() {
		var (
			e    leave.HistoryEntry
			at   string
			note sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Action, &e.Actor, &at, &note); err != nil {
			return nil, err
		}
		if e.At, err = time.Parse(tsLayout, at); err != nil {
			return nil, fmt.Errorf("corrupt history timestamp %q for request %s: %w", at, id, err)
		}
		e.Note = note.String
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RequestsByEmployee returns all requests of an employee, newest first.
func (s *Store) RequestsByEmployee(ctx context.Context, email string) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.requestsByEmployee(ctx, s.db, email)
}

func (s *Store) requestsByEmployee(ctx context.Context, db dbtx, email string) ([]leave.LeaveRequest, error) {
	return s.queryRequestsWithHistory(ctx, db, `
		SELECT id, employee_email, leave_type, start_date, end_date, total_days, status, description, requested_at
		FROM requests
		WHERE employee_email = ?
		ORDER BY requested_at DESC
	`, email)
}

// ActiveRequestsByEmployee returns the employee's Pending and Approved
// requests, ordered by start date.
func (s *Store) ActiveRequestsByEmployee(ctx context.Context, email string) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeRequests(ctx, s.db, email)
}

func (s *Store) activeRequests(ctx context.Context, db dbtx, email string) ([]leave.LeaveRequest, error) {
	return s.queryRequests(ctx, db, `
		SELECT id, employee_email, leave_type, start_date, end_date, total_days, status, description, requested_at
		FROM requests
		WHERE employee_email = ? AND status IN ('pending', 'approved')
		ORDER BY start_date ASC
	`, email)
}

// ApprovedOverlapping returns Approved requests of the given employees
// overlapping [from, to].
func (s *Store) ApprovedOverlapping(ctx context.Context, emails []string, from, to calendar.Date) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.approvedOverlapping(ctx, s.db, emails, from, to)
}

func (s *Store) approvedOverlapping(ctx context.Context, db dbtx, emails []string, from, to calendar.Date) ([]leave.LeaveRequest, error) {
	if len(emails) == 0 {
		return nil, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(emails)), ",")

	args := make([]any, 0, len(emails)+2)
	for _, e := range emails {
		args = append(args, e)
	}
	args = append(args, to.String(), from.String())

	// Inclusive-range overlap: start <= to AND end >= from.
	return s.queryRequests(ctx, db, `
		SELECT id, employee_email, leave_type, start_date, end_date, total_days, status, description, requested_at
		FROM requests
		WHERE status = 'approved'
		  AND employee_email IN (`+placeholders+`)
		  AND start_date <= ? AND end_date >= ?
		ORDER BY start_date ASC
	`, args...)
}

// PendingRequests returns all Pending requests, oldest first.
func (s *Store) PendingRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.pendingRequests(ctx, s.db)
}

func (s *Store) pendingRequests(ctx context.Context, db dbtx) ([]leave.LeaveRequest, error) {
	return s.queryRequests(ctx, db, `
		SELECT id, employee_email, leave_type, start_date, end_date, total_days, status, description, requested_at
		FROM requests
		WHERE status = 'pending'
		ORDER BY requested_at ASC
	`)
}

// AppendHistory appends one transition record. This is the only write
// to request_history.
func (s *Store) AppendHistory(ctx context.Context, id leave.RequestID, entry leave.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendHistory(ctx, s.db, id, entry)
}

func (s *Store) appendHistory(ctx context.Context, db dbtx, id leave.RequestID, entry leave.HistoryEntry) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO request_history (id, request_id, action, actor, at, note)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		entry.ID, id, entry.Action, entry.Actor,
		entry.At.UTC().Format(tsLayout), nullString(entry.Note),
	)
	if err != nil {
		return fmt.Errorf("failed to append history: %w", translateErr(err))
	}
	return nil
}

// DeleteRequest removes a request and its history. Administrative
// override only.
func (s *Store) DeleteRequest(ctx context.Context, id leave.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteRequest(ctx, s.db, id)
}

func (s *Store) deleteRequest(ctx context.Context, db dbtx, id leave.RequestID) error {
	res, err := db.ExecContext(ctx, "DELETE FROM requests WHERE id = ?", id)
	if err != nil {
		return translateErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrNotFound
	}
	_, err = db.ExecContext(ctx, "DELETE FROM request_history WHERE request_id = ?", id)
	return translateErr(err)
}

func (s *Store) queryRequests(ctx context.Context, db dbtx, query string, args ...any) ([]leave.LeaveRequest, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query requests: %w", translateErr(err))
	}
	defer rows.Close()

	var requests []leave.LeaveRequest
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		requests = append(requests, *r)
	}
	return requests, rows.Err()
}

func (s *Store) queryRequestsWithHistory(ctx context.Context, db dbtx, query string, args ...any) ([]leave.LeaveRequest, error) {
	requests, err := s.queryRequests(ctx, db, query, args...)
	if err != nil {
		return nil, err
	}
	for i := range requests {
		history, err := s.loadHistory(ctx, db, requests[i].ID)
		if err != nil {
			return nil, err
		}
		requests[i].History = history
	}
	return requests, nil
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*leave.LeaveRequest, error) {
	var (
		r           leave.LeaveRequest
		start, end  string
		description sql.NullString
		requestedAt string
	)

	err := row.Scan(
		&r.ID, &r.EmployeeEmail, &r.Type, &start, &end,
		&r.TotalDays, &r.Status, &description, &requestedAt,
	)
	if err != nil {
		return nil, err
	}

	if r.StartDate, err = calendar.ParseDate(start); err != nil {
		return nil, fmt.Errorf("corrupt start_date %q for request %s: %w", start, r.ID, err)
	}
	if r.EndDate, err = calendar.ParseDate(end); err != nil {
		return nil, fmt.Errorf("corrupt end_date %q for request %s: %w", end, r.ID, err)
	}
	r.Description = description.String
	if r.RequestedAt, err = time.Parse(tsLayout, requestedAt); err != nil {
		return nil, fmt.Errorf("corrupt requested_at %q for request %s: %w", requestedAt, r.ID, err)
	}
	return &r, nil
}

// =============================================================================
// BALANCE LEDGER (leave.Ledger interface)
// =============================================================================

func balanceColumn(t leave.LeaveType) (string, error) {
	switch t {
	case leave.TypeVacation:
		return "vacation_balance", nil
	case leave.TypeSick:
		return "sick_balance", nil
	case leave.TypePersonalUnpaid:
		return "personal_balance", nil
	}
	return "", fmt.Errorf("%w: %q", leave.ErrUnknownLeaveType, t)
}

// Reserve atomically checks and decrements the balance. The optimistic
// guard turns a concurrent write into leave.ErrLedgerConflict.
func (s *Store) Reserve(ctx context.Context, employeeID string, t leave.LeaveType, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.reserve(ctx, s.db, employeeID, t, days)
}

func (s *Store) reserve(ctx context.Context, db dbtx, employeeID string, t leave.LeaveType, days int) error {
	if !t.DrawsOnBalance() {
		return nil
	}

	col, err := balanceColumn(t)
	if err != nil {
		return err
	}

	current, err := s.readBalance(ctx, db, col, employeeID)
	if err != nil {
		return err
	}

	requested := decimal.NewFromInt(int64(days))
	if current.LessThan(requested) {
		return &leave.InsufficientBalanceError{
			EmployeeID: employeeID,
			Type:       t,
			Available:  current,
			Requested:  days,
		}
	}

	return s.writeBalance(ctx, db, col, employeeID, current, current.Sub(requested))
}

// Release atomically increments the balance. No ceiling check; a denial
// or withdrawal simply returns previously committed days.
func (s *Store) Release(ctx context.Context, employeeID string, t leave.LeaveType, days int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.release(ctx, s.db, employeeID, t, days)
}

func (s *Store) release(ctx context.Context, db dbtx, employeeID string, t leave.LeaveType, days int) error {
	if !t.DrawsOnBalance() {
		return nil
	}

	col, err := balanceColumn(t)
	if err != nil {
		return err
	}

	current, err := s.readBalance(ctx, db, col, employeeID)
	if err != nil {
		return err
	}

	return s.writeBalance(ctx, db, col, employeeID, current, current.Add(decimal.NewFromInt(int64(days))))
}

// Balance returns the current balance for the pair.
func (s *Store) Balance(ctx context.Context, employeeID string, t leave.LeaveType) (decimal.Decimal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	col, err := balanceColumn(t)
	if err != nil {
		return decimal.Zero, err
	}
	return s.readBalance(ctx, s.db, col, employeeID)
}

func (s *Store) readBalance(ctx context.Context, db dbtx, col, employeeID string) (decimal.Decimal, error) {
	var raw string
	err := db.QueryRowContext(ctx,
		"SELECT "+col+" FROM employees WHERE id = ?", employeeID,
	).Scan(&raw)
	if err == sql.ErrNoRows {
		return decimal.Zero, leave.ErrNotFound
	}
	if err != nil {
		return decimal.Zero, err
	}

	d, err := decimal.NewFromString(raw)
	if err != nil {
		return decimal.Zero, fmt.Errorf("corrupt balance %q for employee %s: %w", raw, employeeID, err)
	}
	return d, nil
}

func (s *Store) writeBalance(ctx context.Context, db dbtx, col, employeeID string, prev, next decimal.Decimal) error {
	res, err := db.ExecContext(ctx,
		"UPDATE employees SET "+col+" = ? WHERE id = ? AND "+col+" = ?",
		next.String(), employeeID, prev.String(),
	)
	if err != nil {
		return translateErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrLedgerConflict
	}
	return nil
}

// =============================================================================
// TRANSACTIONAL STORE (leave.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(leave.TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", translateErr(err))
	}
	defer sqlTx.Rollback()

	if err := fn(&txStore{parent: s, tx: sqlTx}); err != nil {
		return err
	}
	return translateErr(sqlTx.Commit())
}

// txStore reuses the parent's helpers against the open transaction.
// The parent's write lock is held for the duration of WithTx, so no
// method here takes it again.
type txStore struct {
	parent *Store
	tx     *sql.Tx
}

func (ts *txStore) SaveRequest(ctx context.Context, r *leave.LeaveRequest) error {
	return ts.parent.saveRequest(ctx, ts.tx, r)
}

func (ts *txStore) GetRequest(ctx context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	return ts.parent.getRequest(ctx, ts.tx, id)
}

func (ts *txStore) RequestsByEmployee(ctx context.Context, email string) ([]leave.LeaveRequest, error) {
	return ts.parent.requestsByEmployee(ctx, ts.tx, email)
}

func (ts *txStore) ActiveRequestsByEmployee(ctx context.Context, email string) ([]leave.LeaveRequest, error) {
	return ts.parent.activeRequests(ctx, ts.tx, email)
}

func (ts *txStore) ApprovedOverlapping(ctx context.Context, emails []string, from, to calendar.Date) ([]leave.LeaveRequest, error) {
	return ts.parent.approvedOverlapping(ctx, ts.tx, emails, from, to)
}

func (ts *txStore) PendingRequests(ctx context.Context) ([]leave.LeaveRequest, error) {
	return ts.parent.pendingRequests(ctx, ts.tx)
}

func (ts *txStore) AppendHistory(ctx context.Context, id leave.RequestID, entry leave.HistoryEntry) error {
	return ts.parent.appendHistory(ctx, ts.tx, id, entry)
}

func (ts *txStore) DeleteRequest(ctx context.Context, id leave.RequestID) error {
	return ts.parent.deleteRequest(ctx, ts.tx, id)
}

func (ts *txStore) Reserve(ctx context.Context, employeeID string, t leave.LeaveType, days int) error {
	return ts.parent.reserve(ctx, ts.tx, employeeID, t, days)
}

func (ts *txStore) Release(ctx context.Context, employeeID string, t leave.LeaveType, days int) error {
	return ts.parent.release(ctx, ts.tx, employeeID, t, days)
}

func (ts *txStore) Balance(ctx context.Context, employeeID string, t leave.LeaveType) (decimal.Decimal, error) {
	col, err := balanceColumn(t)
	if err != nil {
		return decimal.Zero, err
	}
	return ts.parent.readBalance(ctx, ts.tx, col, employeeID)
}

func (ts *txStore) WithTx(_ context.Context, fn func(leave.TxStore) error) error {
	// Already inside a transaction; just run in the same scope.
	return fn(ts)
}

// =============================================================================
// EMPLOYEE DIRECTORY (leave.Directory interface + admin writes)
// =============================================================================

// SaveEmployee inserts or updates a directory record, balances included.
// Administration/seeding surface; lifecycle code never calls this.
func (s *Store) SaveEmployee(ctx context.Context, emp leave.Employee) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO employees
		(id, email, name, manager_email, department, vacation_balance, sick_balance, personal_balance, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			name = excluded.name,
			manager_email = excluded.manager_email,
			department = excluded.department,
			vacation_balance = excluded.vacation_balance,
			sick_balance = excluded.sick_balance,
			personal_balance = excluded.personal_balance
	`

	_, err := s.db.ExecContext(ctx, query,
		emp.ID, emp.Email, emp.Name, emp.ManagerEmail, emp.Department,
		emp.Balances.Vacation.String(),
		emp.Balances.Sick.String(),
		emp.Balances.Personal.String(),
		time.Now().UTC().Format(tsLayout),
	)
	return translateErr(err)
}

// GetEmployeeByEmail returns the directory record, or leave.ErrNotFound.
func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `
		SELECT id, email, name, manager_email, department, vacation_balance, sick_balance, personal_balance
		FROM employees WHERE email = ?
	`, email)

	emp, err := scanEmployee(row)
	if err == sql.ErrNoRows {
		return nil, leave.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return emp, nil
}

// DirectReports returns the employees whose manager is managerEmail.
func (s *Store) DirectReports(ctx context.Context, managerEmail string) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEmployees(ctx, `
		SELECT id, email, name, manager_email, department, vacation_balance, sick_balance, personal_balance
		FROM employees
		WHERE manager_email = ?
		ORDER BY email ASC
	`, managerEmail)
}

// ListEmployees returns all employees, ordered by name.
func (s *Store) ListEmployees(ctx context.Context) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryEmployees(ctx, `
		SELECT id, email, name, manager_email, department, vacation_balance, sick_balance, personal_balance
		FROM employees
		ORDER BY name ASC
	`)
}

func (s *Store) queryEmployees(ctx context.Context, query string, args ...any) ([]leave.Employee, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var employees []leave.Employee
	for rows.Next() {
		emp, err := scanEmployee(rows)
		if err != nil {
			return nil, err
		}
		employees = append(employees, *emp)
	}
	return employees, rows.Err()
}

func scanEmployee(row scanner) (*leave.Employee, error) {
	var (
		emp                      leave.Employee
		vacation, sick, personal string
	)
	err := row.Scan(
		&emp.ID, &emp.Email, &emp.Name, &emp.ManagerEmail, &emp.Department,
		&vacation, &sick, &personal,
	)
	if err != nil {
		return nil, err
	}

	if emp.Balances.Vacation, err = decimal.NewFromString(vacation); err != nil {
		return nil, fmt.Errorf("corrupt vacation balance %q for employee %s: %w", vacation, emp.ID, err)
	}
	if emp.Balances.Sick, err = decimal.NewFromString(sick); err != nil {
		return nil, fmt.Errorf("corrupt sick balance %q for employee %s: %w", sick, emp.ID, err)
	}
	if emp.Balances.Personal, err = decimal.NewFromString(personal); err != nil {
		return nil, fmt.Errorf("corrupt personal balance %q for employee %s: %w", personal, emp.ID, err)
	}
	return &emp, nil
}

// =============================================================================
// HOLIDAY CALENDAR (calendar.HolidaySource + admin writes)
// =============================================================================

// SaveHoliday inserts a holiday. The (date, name) pair is unique;
// re-adding an existing holiday is a no-op.
func (s *Store) SaveHoliday(ctx context.Context, h calendar.Holiday) (calendar.Holiday, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if h.ID == "" {
		h.ID = uuid.NewString()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO holidays (id, date, name, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(date, name) DO NOTHING
	`,
		h.ID, h.Date.String(), h.Name, time.Now().UTC().Format(tsLayout),
	)
	if err != nil {
		return calendar.Holiday{}, translateErr(err)
	}
	return h, nil
}

// DeleteHoliday removes a holiday by ID.
func (s *Store) DeleteHoliday(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM holidays WHERE id = ?", id)
	if err != nil {
		return translateErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return leave.ErrNotFound
	}
	return nil
}

// ListHolidays returns all holidays, ordered by date.
func (s *Store) ListHolidays(ctx context.Context) ([]calendar.Holiday, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, date, name FROM holidays ORDER BY date ASC",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return scanHolidays(rows)
}

// IsHoliday implements calendar.HolidaySource.
func (s *Store) IsHoliday(date calendar.Date) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM holidays WHERE date = ?", date.String(),
	).Scan(&count)
	if err != nil {
		return false
	}
	return count > 0
}

// HolidaysInRange implements calendar.HolidaySource.
func (s *Store) HolidaysInRange(from, to calendar.Date) []calendar.Holiday {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, date, name FROM holidays WHERE date >= ? AND date <= ? ORDER BY date ASC",
		from.String(), to.String(),
	)
	if err != nil {
		return nil
	}
	defer rows.Close()

	holidays, _ := scanHolidays(rows)
	return holidays
}

func scanHolidays(rows *sql.Rows) ([]calendar.Holiday, error) {
	var holidays []calendar.Holiday
	for rows.Next() {
		var (
			h       calendar.Holiday
			dateStr string
		)
		if err := rows.Scan(&h.ID, &dateStr, &h.Name); err != nil {
			return nil, err
		}
		d, err := calendar.ParseDate(dateStr)
		if err != nil {
			return nil, fmt.Errorf("corrupt holiday date %q: %w", dateStr, err)
		}
		h.Date = d
		holidays = append(holidays, h)
	}
	return holidays, rows.Err()
}

// =============================================================================
// WORKWEEK (calendar.WorkweekSource + admin writes)
// =============================================================================

// Workweek implements calendar.WorkweekSource. Falls back to the
// default Saturday/Sunday week on read failure.
func (s *Store) Workweek() calendar.Workweek {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT weekday, non_working FROM workweek")
	if err != nil {
		return calendar.DefaultWorkweek()
	}
	defer rows.Close()

	var w calendar.Workweek
	for rows.Next() {
		var (
			wd         int
			nonWorking bool
		)
		if err := rows.Scan(&wd, &nonWorking); err != nil {
			return calendar.DefaultWorkweek()
		}
		if wd >= 0 && wd < 7 {
			w.NonWorking[wd] = nonWorking
		}
	}
	return w
}

// SaveWorkweek replaces the stored workweek flags.
func (s *Store) SaveWorkweek(ctx context.Context, w calendar.Workweek) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return translateErr(err)
	}
	defer sqlTx.Rollback()

	for wd := 0; wd < 7; wd++ {
		if _, err := sqlTx.ExecContext(ctx, `
			INSERT INTO workweek (weekday, non_working) VALUES (?, ?)
			ON CONFLICT(weekday) DO UPDATE SET non_working = excluded.non_working
		`, wd, w.NonWorking[wd]); err != nil {
			return translateErr(err)
		}
	}
	return translateErr(sqlTx.Commit())
}

// =============================================================================
// HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

// translateErr maps driver-level contention onto the domain's
// retryable conflict error.
func translateErr(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "database is locked") || strings.Contains(msg, "database table is locked") {
		return fmt.Errorf("%w: %v", leave.ErrLedgerConflict, err)
	}
	return err
}
