/*
store.go - Persistence and collaborator interfaces

PURPOSE:
  Defines the contracts between the lifecycle manager and its
  collaborators: request persistence, the balance ledger, and the
  external employee directory. Implementations live in store/sqlite
  (production) and store/memory (tests/dev).

HISTORY CONTRACT:
  AppendHistory is the ONLY write to a request's history. There is no
  edit or delete; insertion order is the canonical audit trail. The
  one exception is DeleteRequest (administrative override), which
  removes the request together with its history.

ATOMICITY:
  WithTx scopes a set of writes to one atomic unit. A transition's
  reserve/release, request update and history append either all commit
  or all roll back; there is no partial state.

SEE ALSO:
  - lifecycle.go: the only caller of WithTx
  - store/sqlite/sqlite.go, store/memory/memory.go: implementations
*/
package leave

import (
	"context"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// STORE - Request persistence
// =============================================================================

type Store interface {
	// SaveRequest inserts or updates a request's mutable fields
	// (dates, total days, status). History is written separately.
	SaveRequest(ctx context.Context, r *LeaveRequest) error

	// GetRequest returns a request with its full history, or ErrNotFound.
	GetRequest(ctx context.Context, id RequestID) (*LeaveRequest, error)

	// RequestsByEmployee returns all requests of an employee, newest first,
	// with history.
	RequestsByEmployee(ctx context.Context, employeeEmail string) ([]LeaveRequest, error)

	// ActiveRequestsByEmployee returns the employee's Pending and
	// Approved requests. Input to the conflict detector.
	ActiveRequestsByEmployee(ctx context.Context, employeeEmail string) ([]LeaveRequest, error)

	// ApprovedOverlapping returns Approved requests of any of the given
	// employees that share at least one date with [from, to].
	ApprovedOverlapping(ctx context.Context, employeeEmails []string, from, to calendar.Date) ([]LeaveRequest, error)

	// PendingRequests returns all Pending requests, oldest first. The
	// manager approval queue.
	PendingRequests(ctx context.Context) ([]LeaveRequest, error)

	// AppendHistory appends one transition record to a request's history.
	AppendHistory(ctx context.Context, id RequestID, entry HistoryEntry) error

	// DeleteRequest removes a request and its history. Administrative
	// override only; the caller must have settled the reservation first.
	DeleteRequest(ctx context.Context, id RequestID) error
}

// =============================================================================
// LEDGER - Atomic balance reservation
// =============================================================================

// Ledger holds per-employee, per-type day balances. Reserve is a single
// atomic check-and-decrement: two concurrent reservations against the
// same (employee, type) can never jointly overdraw the balance.
type Ledger interface {
	// Reserve decrements the balance by days if it covers them, else
	// returns InsufficientBalanceError and changes nothing. A no-op for
	// leave types that do not draw on a balance.
	Reserve(ctx context.Context, employeeID string, t LeaveType, days int) error

	// Release increments the balance by days. Always succeeds; balances
	// have no ceiling at release time.
	Release(ctx context.Context, employeeID string, t LeaveType, days int) error

	// Balance returns the current balance for the pair.
	Balance(ctx context.Context, employeeID string, t LeaveType) (decimal.Decimal, error)
}

// =============================================================================
// TXSTORE - Store + Ledger under one atomic scope
// =============================================================================

// TxStore bundles request persistence and the ledger, and can run a
// function within one transaction. If fn returns an error every write
// made through its TxStore argument is rolled back.
type TxStore interface {
	Store
	Ledger

	WithTx(ctx context.Context, fn func(TxStore) error) error
}

// =============================================================================
// DIRECTORY - External employee lookup (read-only)
// =============================================================================

// Directory is the external employee directory. The core never mutates
// identity fields through it.
type Directory interface {
	// GetEmployeeByEmail returns the directory record, or ErrNotFound.
	GetEmployeeByEmail(ctx context.Context, email string) (*Employee, error)

	// DirectReports returns the employees whose manager is managerEmail.
	DirectReports(ctx context.Context, managerEmail string) ([]Employee, error)
}
