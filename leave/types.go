/*
Package leave implements the leave-request lifecycle and balance ledger.

PURPOSE:
  This package holds the domain core: the LeaveRequest entity and its
  state machine, the conflict detector with next-slot suggestion, the
  error taxonomy every caller maps from, and the interfaces the
  persistence layer implements.

KEY CONCEPTS IN THIS FILE (types.go):
  - LeaveType: vacation / sick / personal-unpaid. Only the first two
    draw on a balance; personal-unpaid is unlimited and never reserved.
  - Status: Pending, Approved, Denied, Withdrawn. A leave day is held
    against the balance exactly while the request is Pending or
    Approved.
  - HistoryEntry: one append-only audit record per transition.
  - Employee/Balances: the slice of the external directory this core
    reads. Balances are mutated only through reserve/release.

DESIGN PRINCIPLES:
  1. All dates are calendar.Date values, normalized at the boundary.
  2. Balances use decimal.Decimal; no floating-point day math.
  3. History is insertion-ordered and never edited.

SEE ALSO:
  - lifecycle.go: the state machine and its atomic transitions
  - conflict.go: overlap detection and slot suggestion
  - errors.go: the error taxonomy
*/
package leave

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// LEAVE TYPE
// =============================================================================

type LeaveType string

const (
	TypeVacation       LeaveType = "vacation"
	TypeSick           LeaveType = "sick"
	TypePersonalUnpaid LeaveType = "personal_unpaid"
)

// Valid reports whether t is one of the known leave types.
func (t LeaveType) Valid() bool {
	switch t {
	case TypeVacation, TypeSick, TypePersonalUnpaid:
		return true
	}
	return false
}

// DrawsOnBalance reports whether requests of this type reserve days.
// Personal unpaid leave is unlimited and never touches a balance.
func (t LeaveType) DrawsOnBalance() bool { return t != TypePersonalUnpaid }

// =============================================================================
// REQUEST STATUS - the state machine's states
// =============================================================================

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusDenied    Status = "denied"
	StatusWithdrawn Status = "withdrawn"
)

// Active reports whether the request currently holds a reservation.
func (s Status) Active() bool { return s == StatusPending || s == StatusApproved }

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool { return s == StatusDenied || s == StatusWithdrawn }

// =============================================================================
// AUDIT TRAIL
// =============================================================================

type Action string

const (
	ActionCreated     Action = "created"
	ActionApproved    Action = "approved"
	ActionDenied      Action = "denied"
	ActionWithdrawn   Action = "withdrawn"
	ActionRescheduled Action = "rescheduled"
	ActionDeleted     Action = "deleted"
)

// HistoryEntry is one transition record. Entries are append-only;
// insertion order is the canonical history.
type HistoryEntry struct {
	ID     string
	Action Action
	Actor  string
	At     time.Time
	Note   string
}

func newHistoryEntry(action Action, actor, note string, at time.Time) HistoryEntry {
	return HistoryEntry{
		ID:     uuid.NewString(),
		Action: action,
		Actor:  actor,
		At:     at,
		Note:   note,
	}
}

// =============================================================================
// LEAVE REQUEST - the central entity
// =============================================================================

type RequestID string

func NewRequestID() RequestID { return RequestID(uuid.NewString()) }

// LeaveRequest is a request for absence over an inclusive date range.
// ID, EmployeeEmail, Type and RequestedAt are immutable after creation;
// dates and TotalDays change only through a reschedule.
type LeaveRequest struct {
	ID            RequestID
	EmployeeEmail string
	Type          LeaveType
	StartDate     calendar.Date
	EndDate       calendar.Date
	TotalDays     int // working days in [StartDate, EndDate] at last (re)computation
	Status        Status
	Description   string
	RequestedAt   time.Time
	History       []HistoryEntry
}

// Overlaps reports whether [start, end] shares at least one calendar
// date with this request's range. Inclusive on both ends.
func (r *LeaveRequest) Overlaps(start, end calendar.Date) bool {
	return start.BeforeOrEqual(r.EndDate) && end.AfterOrEqual(r.StartDate)
}

// =============================================================================
// EMPLOYEE - read-only slice of the external directory
// =============================================================================

// Employee is the directory record this core reads. Identity fields are
// never mutated here; balances move only through the ledger.
type Employee struct {
	ID           string
	Email        string
	Name         string
	ManagerEmail string
	Department   string
	Balances     Balances
}

// Balances holds the per-type day balances. Personal is informational:
// personal-unpaid requests never reserve against it.
type Balances struct {
	Vacation decimal.Decimal
	Sick     decimal.Decimal
	Personal decimal.Decimal
}

// ForType returns the balance drawn on by the given leave type.
func (b Balances) ForType(t LeaveType) decimal.Decimal {
	switch t {
	case TypeVacation:
		return b.Vacation
	case TypeSick:
		return b.Sick
	default:
		return b.Personal
	}
}

// BalanceSummary is the user-facing balance view: the stored balances
// plus the days currently held by Pending/Approved requests per type.
type BalanceSummary struct {
	Employee Employee
	Held     map[LeaveType]int
}
