/*
errors.go - Centralized error taxonomy for the leave engine

PURPOSE:
  All domain errors in one place. Callers match with errors.Is against
  the sentinels, or errors.As against the structured types when they
  need the attached context (the conflicting request, the suggested
  slot, the available balance).

ERROR CATEGORIES:
  1. Validation errors - bad input, rejected before any mutation
  2. Business errors   - overlap, insufficient balance, bad transition
  3. Ledger errors     - concurrent-write conflicts, safe to retry

PROPAGATION POLICY:
  Every operation validates before it mutates: on failure nothing is
  written and no history entry is appended. ErrLedgerConflict is the
  only error the service retries automatically; everything else is
  surfaced directly.

SEE ALSO:
  - lifecycle.go: where these errors are produced
  - api/handlers.go: where they map to HTTP statuses
*/
package leave

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidDateRange is returned when endDate precedes startDate
	// or a date is missing.
	ErrInvalidDateRange = errors.New("invalid date range")

	// ErrEmptyRange is returned when the range contains zero working days.
	ErrEmptyRange = errors.New("range contains no working days")

	// ErrOverlap is returned when the range collides with an existing
	// Pending/Approved request for the same employee.
	ErrOverlap = errors.New("overlapping leave request")

	// ErrInsufficientBalance is returned when a reservation exceeds the
	// available balance.
	ErrInsufficientBalance = errors.New("insufficient balance")

	// ErrNotFound is returned for an unknown request id or employee.
	ErrNotFound = errors.New("not found")

	// ErrInvalidTransition is returned when an action is not allowed in
	// the request's current state.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrLedgerConflict is returned when a concurrent write is detected.
	// Safe to retry; the service retries it a bounded number of times.
	ErrLedgerConflict = errors.New("ledger conflict")

	// ErrNoSlotAvailable is returned when the slot suggestion walk
	// exhausts its search bound without finding a free range.
	ErrNoSlotAvailable = errors.New("no available slot within search bound")

	// ErrUnknownLeaveType is returned for a leave type outside the
	// known set.
	ErrUnknownLeaveType = errors.New("unknown leave type")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// OverlapError reports the conflicting request and, when the suggestion
// walk succeeded, the nearest non-overlapping range of equal
// calendar-day span.
type OverlapError struct {
	Conflict       LeaveRequest
	SuggestedStart calendar.Date
	SuggestedEnd   calendar.Date
	HasSuggestion  bool
}

func (e *OverlapError) Error() string {
	if e.HasSuggestion {
		return fmt.Sprintf("range overlaps request %s (%s to %s); next free slot %s to %s",
			e.Conflict.ID, e.Conflict.StartDate, e.Conflict.EndDate, e.SuggestedStart, e.SuggestedEnd)
	}
	return fmt.Sprintf("range overlaps request %s (%s to %s)",
		e.Conflict.ID, e.Conflict.StartDate, e.Conflict.EndDate)
}

func (e *OverlapError) Unwrap() error { return ErrOverlap }

// InsufficientBalanceError reports the shortfall.
type InsufficientBalanceError struct {
	EmployeeID string
	Type       LeaveType
	Available  decimal.Decimal
	Requested  int
}

func (e *InsufficientBalanceError) Error() string {
	return fmt.Sprintf("insufficient %s balance: available %s, requested %d",
		e.Type, e.Available, e.Requested)
}

func (e *InsufficientBalanceError) Unwrap() error { return ErrInsufficientBalance }

// InvalidTransitionError reports why the state machine rejected an action.
type InvalidTransitionError struct {
	RequestID RequestID
	From      Status
	Action    Action
	Reason    string
}

func (e *InvalidTransitionError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("cannot %s request %s in state %s: %s", e.Action, e.RequestID, e.From, e.Reason)
	}
	return fmt.Sprintf("cannot %s request %s in state %s", e.Action, e.RequestID, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrLedgerConflict)
}

// IsClientError returns true if the error is due to invalid client input
// or a user-actionable business rule, as opposed to an internal failure.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidDateRange) ||
		errors.Is(err, ErrEmptyRange) ||
		errors.Is(err, ErrOverlap) ||
		errors.Is(err, ErrInsufficientBalance) ||
		errors.Is(err, ErrInvalidTransition) ||
		errors.Is(err, ErrUnknownLeaveType) ||
		errors.Is(err, ErrNoSlotAvailable)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}
