/*
lifecycle.go - The leave-request state machine

PURPOSE:
  Owns every transition a request can take and ties each one to the
  balance ledger in a single atomic unit:

    (none)   --Create-->     Pending    reserve days, history += created
    Pending  --Approve-->    Approved   history += approved
    Pending  --Deny-->       Denied     release days, history += denied
    Pending  --Withdraw-->   Withdrawn  release days, history += withdrawn
    Approved --Reschedule--> Pending    settle day delta, history += rescheduled

  Denied and Withdrawn are terminal. Rescheduling is a transition, not
  a state: the request re-enters Pending with new dates.

VALIDATION BEFORE MUTATION:
  Create and Reschedule run the full validation chain (date sanity,
  working-day count, conflict detection) before anything is written.
  The ledger reservation happens inside the same transaction as the
  request write and the history append, so a failure at any point
  leaves no partial state.

RESCHEDULE AND THE BALANCE DELTA:
  A reschedule can change the working-day count (new holidays, longer
  range). The reservation is settled inside the reschedule transaction:
  the old count is released and the new count reserved. If the new
  reservation does not fit the balance, the whole transition rolls back
  and the original reservation stands.

CONCURRENCY:
  The ledger's Reserve is the single atomic check-and-decrement. State
  guards run on a fresh read inside the transaction, never on a
  snapshot taken before it, so two racing transitions cannot both pass
  the same guard and double-settle a reservation. The service also
  retries a bounded number of times when the store reports
  ErrLedgerConflict.

SEE ALSO:
  - conflict.go: overlap detection used by Create/Reschedule
  - store.go: the TxStore contract this service drives
*/
package leave

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/warp/leave-engine/calendar"
)

// ledgerRetries bounds automatic retries on ErrLedgerConflict.
const ledgerRetries = 3

// CalendarService is the slice of the calendar the lifecycle needs.
// *calendar.Calendar satisfies it.
type CalendarService interface {
	IsWorkingDay(date calendar.Date) bool
	CountWorkingDays(start, end calendar.Date) int
	NextWorkingDayOnOrAfter(date calendar.Date) (calendar.Date, error)
}

// Service is the request lifecycle manager.
type Service struct {
	Store     TxStore
	Directory Directory
	Calendar  CalendarService

	// Now is the clock; overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func NewService(store TxStore, directory Directory, cal CalendarService) *Service {
	return &Service{
		Store:     store,
		Directory: directory,
		Calendar:  cal,
		Now:       time.Now,
	}
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// =============================================================================
// CREATE
// =============================================================================

// CreateParams is the input to Create.
type CreateParams struct {
	EmployeeEmail string
	Type          LeaveType
	StartDate     calendar.Date
	EndDate       calendar.Date
	Description   string
}

// Create validates the proposed range, reserves the working days and
// persists the new Pending request with its first history entry, all
// atomically. On any failure nothing is written.
func (s *Service) Create(ctx context.Context, p CreateParams) (*LeaveRequest, error) {
	if !p.Type.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownLeaveType, p.Type)
	}
	if p.StartDate.IsZero() || p.EndDate.IsZero() || p.EndDate.Before(p.StartDate) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidDateRange, p.StartDate, p.EndDate)
	}

	totalDays := s.Calendar.CountWorkingDays(p.StartDate, p.EndDate)
	if totalDays == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrEmptyRange, p.StartDate, p.EndDate)
	}

	active, err := s.Store.ActiveRequestsByEmployee(ctx, p.EmployeeEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to load active requests: %w", err)
	}
	if conflict := FindOverlap(p.EmployeeEmail, p.StartDate, p.EndDate, active); conflict != nil {
		return nil, s.overlapError(p.EmployeeEmail, p.StartDate, p.EndDate, active, conflict)
	}

	emp, err := s.Directory.GetEmployeeByEmail(ctx, p.EmployeeEmail)
	if err != nil {
		return nil, err
	}

	now := s.now()
	req := &LeaveRequest{
		ID:            NewRequestID(),
		EmployeeEmail: p.EmployeeEmail,
		Type:          p.Type,
		StartDate:     p.StartDate,
		EndDate:       p.EndDate,
		TotalDays:     totalDays,
		Status:        StatusPending,
		Description:   p.Description,
		RequestedAt:   now,
	}
	entry := newHistoryEntry(ActionCreated, p.EmployeeEmail, "", now)

	err = s.withLedgerRetry(ctx, func() error {
		return s.Store.WithTx(ctx, func(tx TxStore) error {
			if err := tx.Reserve(ctx, emp.ID, req.Type, req.TotalDays); err != nil {
				return err
			}
			if err := tx.SaveRequest(ctx, req); err != nil {
				return err
			}
			return tx.AppendHistory(ctx, req.ID, entry)
		})
	})
	if err != nil {
		return nil, err
	}

	req.History = append(req.History, entry)
	slog.Info("leave request created",
		"request_id", req.ID, "employee", req.EmployeeEmail,
		"type", req.Type, "days", req.TotalDays)
	return req, nil
}

// overlapError builds the OverlapError, attaching a suggested slot of
// equal calendar-day span when the walk finds one.
func (s *Service) overlapError(email string, start, end calendar.Date, active []LeaveRequest, conflict *LeaveRequest) error {
	oe := &OverlapError{Conflict: *conflict}
	if newStart, newEnd, err := SuggestNextSlot(email, start, end, active); err == nil {
		oe.SuggestedStart = newStart
		oe.SuggestedEnd = newEnd
		oe.HasSuggestion = true
	}
	return oe
}

// DefaultStartDate is the start date a new request form should offer:
// the next working day strictly after today.
func (s *Service) DefaultStartDate() (calendar.Date, error) {
	return s.Calendar.NextWorkingDayOnOrAfter(calendar.DateOf(s.now()).AddDays(1))
}

// =============================================================================
// APPROVE / DENY / WITHDRAW
// =============================================================================

// Approve moves a Pending request to Approved. The reservation made at
// creation simply stays held. The Pending guard runs on a fresh read
// inside the transaction so a concurrent transition cannot slip past a
// stale snapshot.
func (s *Service) Approve(ctx context.Context, id RequestID, actor string) (*LeaveRequest, error) {
	entry := newHistoryEntry(ActionApproved, actor, "", s.now())

	var req *LeaveRequest
	err := s.Store.WithTx(ctx, func(tx TxStore) error {
		cur, err := tx.GetRequest(ctx, id)
		if err != nil {
			return err
		}
		if cur.Status != StatusPending {
			return &InvalidTransitionError{RequestID: id, From: cur.Status, Action: ActionApproved}
		}
		cur.Status = StatusApproved
		if err := tx.SaveRequest(ctx, cur); err != nil {
			return err
		}
		if err := tx.AppendHistory(ctx, cur.ID, entry); err != nil {
			return err
		}
		req = cur
		return nil
	})
	if err != nil {
		return nil, err
	}

	req.History = append(req.History, entry)
	slog.Info("leave request approved", "request_id", req.ID, "actor", actor)
	return req, nil
}

// Deny moves a Pending request to Denied and releases its reservation.
func (s *Service) Deny(ctx context.Context, id RequestID, actor, note string) (*LeaveRequest, error) {
	return s.terminate(ctx, id, actor, note, ActionDenied, StatusDenied)
}

// Withdraw moves a Pending request to Withdrawn and releases its
// reservation. Only the request's owner may withdraw.
func (s *Service) Withdraw(ctx context.Context, id RequestID, actor string) (*LeaveRequest, error) {
	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor != req.EmployeeEmail {
		return nil, &InvalidTransitionError{
			RequestID: id, From: req.Status, Action: ActionWithdrawn,
			Reason: "only the request owner may withdraw",
		}
	}
	return s.terminate(ctx, id, actor, "", ActionWithdrawn, StatusWithdrawn)
}

// terminate is the shared Deny/Withdraw path: Pending guard, release,
// status flip and history append in one transaction. The guard is
// checked against a read taken inside the transaction; a request
// already closed by a racing caller fails here instead of releasing
// its days a second time.
func (s *Service) terminate(ctx context.Context, id RequestID, actor, note string, action Action, to Status) (*LeaveRequest, error) {
	snapshot, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if snapshot.Status != StatusPending {
		return nil, &InvalidTransitionError{RequestID: id, From: snapshot.Status, Action: action}
	}

	emp, err := s.Directory.GetEmployeeByEmail(ctx, snapshot.EmployeeEmail)
	if err != nil {
		return nil, err
	}

	entry := newHistoryEntry(action, actor, note, s.now())

	var req *LeaveRequest
	err = s.withLedgerRetry(ctx, func() error {
		return s.Store.WithTx(ctx, func(tx TxStore) error {
			cur, err := tx.GetRequest(ctx, id)
			if err != nil {
				return err
			}
			if cur.Status != StatusPending {
				return &InvalidTransitionError{RequestID: id, From: cur.Status, Action: action}
			}
			if err := tx.Release(ctx, emp.ID, cur.Type, cur.TotalDays); err != nil {
				return err
			}
			cur.Status = to
			if err := tx.SaveRequest(ctx, cur); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, cur.ID, entry); err != nil {
				return err
			}
			req = cur
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	req.History = append(req.History, entry)
	slog.Info("leave request closed",
		"request_id", req.ID, "status", req.Status, "actor", actor, "released_days", req.TotalDays)
	return req, nil
}

// =============================================================================
// RESCHEDULE
// =============================================================================

// Reschedule moves an Approved future request to new dates and back to
// Pending. The working-day count is recomputed under the current
// calendar and the reservation delta settled in the same transaction:
// the old count is released, the new count reserved.
func (s *Service) Reschedule(ctx context.Context, id RequestID, actor string, newStart, newEnd calendar.Date) (*LeaveRequest, error) {
	req, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status != StatusApproved {
		return nil, &InvalidTransitionError{RequestID: id, From: req.Status, Action: ActionRescheduled}
	}
	if actor != req.EmployeeEmail {
		return nil, &InvalidTransitionError{
			RequestID: id, From: req.Status, Action: ActionRescheduled,
			Reason: "only the request owner may reschedule",
		}
	}

	if newStart.IsZero() || newEnd.IsZero() || newEnd.Before(newStart) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidDateRange, newStart, newEnd)
	}
	if !newEnd.After(calendar.DateOf(s.now())) {
		return nil, fmt.Errorf("%w: rescheduled range must end in the future", ErrInvalidDateRange)
	}

	newDays := s.Calendar.CountWorkingDays(newStart, newEnd)
	if newDays == 0 {
		return nil, fmt.Errorf("%w: %s to %s", ErrEmptyRange, newStart, newEnd)
	}

	active, err := s.Store.ActiveRequestsByEmployee(ctx, req.EmployeeEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to load active requests: %w", err)
	}
	if conflict := findOverlapExcluding(req.EmployeeEmail, newStart, newEnd, active, req.ID); conflict != nil {
		return nil, s.overlapError(req.EmployeeEmail, newStart, newEnd, withoutRequest(active, req.ID), conflict)
	}

	emp, err := s.Directory.GetEmployeeByEmail(ctx, req.EmployeeEmail)
	if err != nil {
		return nil, err
	}

	now := s.now()

	// The Approved guard, the old-day release and the note all use the
	// request as it stands inside the transaction, not the snapshot
	// validated above.
	var (
		oldDays int
		entry   HistoryEntry
	)
	err = s.withLedgerRetry(ctx, func() error {
		return s.Store.WithTx(ctx, func(tx TxStore) error {
			cur, err := tx.GetRequest(ctx, id)
			if err != nil {
				return err
			}
			if cur.Status != StatusApproved {
				return &InvalidTransitionError{RequestID: id, From: cur.Status, Action: ActionRescheduled}
			}

			oldDays = cur.TotalDays
			note := fmt.Sprintf("moved from %s to %s (%s to %s)", cur.StartDate, cur.EndDate, newStart, newEnd)
			entry = newHistoryEntry(ActionRescheduled, actor, note, now)

			if err := tx.Release(ctx, emp.ID, cur.Type, oldDays); err != nil {
				return err
			}
			if err := tx.Reserve(ctx, emp.ID, cur.Type, newDays); err != nil {
				return err
			}
			cur.StartDate = newStart
			cur.EndDate = newEnd
			cur.TotalDays = newDays
			cur.Status = StatusPending
			if err := tx.SaveRequest(ctx, cur); err != nil {
				return err
			}
			if err := tx.AppendHistory(ctx, cur.ID, entry); err != nil {
				return err
			}
			req = cur
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	req.History = append(req.History, entry)
	slog.Info("leave request rescheduled",
		"request_id", req.ID, "old_days", oldDays, "new_days", newDays)
	return req, nil
}

func withoutRequest(requests []LeaveRequest, id RequestID) []LeaveRequest {
	out := make([]LeaveRequest, 0, len(requests))
	for _, r := range requests {
		if r.ID != id {
			out = append(out, r)
		}
	}
	return out
}

// =============================================================================
// ADMINISTRATIVE DELETE
// =============================================================================

// AdminDelete removes a request entirely. If the request still holds a
// reservation (Pending or Approved) the days are released in the same
// transaction, so reserved days can never leak.
func (s *Service) AdminDelete(ctx context.Context, id RequestID, actor string) error {
	snapshot, err := s.Store.GetRequest(ctx, id)
	if err != nil {
		return err
	}

	emp, err := s.Directory.GetEmployeeByEmail(ctx, snapshot.EmployeeEmail)
	if err != nil {
		return err
	}

	// Whether a reservation is still held is decided by the status as
	// read inside the transaction; a request closed by a racing caller
	// must not be released again here.
	var wasStatus Status
	err = s.withLedgerRetry(ctx, func() error {
		return s.Store.WithTx(ctx, func(tx TxStore) error {
			cur, err := tx.GetRequest(ctx, id)
			if err != nil {
				return err
			}
			wasStatus = cur.Status
			if cur.Status.Active() {
				if err := tx.Release(ctx, emp.ID, cur.Type, cur.TotalDays); err != nil {
					return err
				}
			}
			return tx.DeleteRequest(ctx, cur.ID)
		})
	})
	if err != nil {
		return err
	}

	slog.Warn("leave request deleted by admin",
		"request_id", id, "actor", actor, "was_status", wasStatus)
	return nil
}

// =============================================================================
// READ SURFACES
// =============================================================================

// TeamAvailability returns the Approved requests of managerEmail's
// direct reports that overlap [from, to].
func (s *Service) TeamAvailability(ctx context.Context, managerEmail string, from, to calendar.Date) ([]LeaveRequest, error) {
	if to.Before(from) {
		return nil, fmt.Errorf("%w: %s to %s", ErrInvalidDateRange, from, to)
	}
	reports, err := s.Directory.DirectReports(ctx, managerEmail)
	if err != nil {
		return nil, err
	}
	if len(reports) == 0 {
		return nil, nil
	}
	emails := make([]string, len(reports))
	for i, e := range reports {
		emails[i] = e.Email
	}
	return s.Store.ApprovedOverlapping(ctx, emails, from, to)
}

// BalanceSummary returns the employee's stored balances plus the days
// currently held by Pending/Approved requests per leave type.
func (s *Service) BalanceSummary(ctx context.Context, employeeEmail string) (*BalanceSummary, error) {
	emp, err := s.Directory.GetEmployeeByEmail(ctx, employeeEmail)
	if err != nil {
		return nil, err
	}

	active, err := s.Store.ActiveRequestsByEmployee(ctx, employeeEmail)
	if err != nil {
		return nil, err
	}

	held := make(map[LeaveType]int)
	for _, r := range active {
		held[r.Type] += r.TotalDays
	}

	return &BalanceSummary{Employee: *emp, Held: held}, nil
}

// =============================================================================
// LEDGER RETRY
// =============================================================================

// withLedgerRetry reruns fn on ErrLedgerConflict, a bounded number of
// times. Any other error is surfaced immediately.
func (s *Service) withLedgerRetry(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= ledgerRetries; attempt++ {
		err = fn()
		if err == nil || !IsRetryable(err) {
			return err
		}
		slog.Debug("retrying after ledger conflict", "attempt", attempt)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 10 * time.Millisecond):
		}
	}
	return err
}
