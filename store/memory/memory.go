/*
Package memory provides an in-memory leave.TxStore for tests and dev.

PURPOSE:
  Implements request persistence, the balance ledger and the employee
  directory against plain maps. WithTx is simulated with a snapshot of
  the whole state that is restored when the transaction function
  returns an error, giving the same all-or-nothing semantics as the
  SQLite store.

SEE ALSO:
  - store/sqlite/sqlite.go: the production implementation
  - ledger: the balance map this store embeds
*/
package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

// Store is an in-memory TxStore + Directory.
type Store struct {
	mu        sync.RWMutex
	ledger    *ledger.Memory
	employees map[string]leave.Employee // by email, balances live in ledger
	requests  map[leave.RequestID]*leave.LeaveRequest
}

func New() *Store {
	return &Store{
		ledger:    ledger.NewMemory(),
		employees: make(map[string]leave.Employee),
		requests:  make(map[leave.RequestID]*leave.LeaveRequest),
	}
}

// Ledger exposes the underlying balance map for test seeding.
func (s *Store) Ledger() *ledger.Memory { return s.ledger }

// SeedEmployee registers a directory record and loads its balances
// into the ledger.
func (s *Store) SeedEmployee(emp leave.Employee) {
	s.mu.Lock()
	s.employees[emp.Email] = emp
	s.mu.Unlock()

	s.ledger.SetBalance(emp.ID, leave.TypeVacation, emp.Balances.Vacation)
	s.ledger.SetBalance(emp.ID, leave.TypeSick, emp.Balances.Sick)
	s.ledger.SetBalance(emp.ID, leave.TypePersonalUnpaid, emp.Balances.Personal)
}

// =============================================================================
// STORE (leave.Store)
// =============================================================================

func (s *Store) SaveRequest(_ context.Context, r *leave.LeaveRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(r)
}

func (s *Store) saveLocked(r *leave.LeaveRequest) error {
	if existing, ok := s.requests[r.ID]; ok {
		// History is append-only; only mutable fields change here.
		existing.StartDate = r.StartDate
		existing.EndDate = r.EndDate
		existing.TotalDays = r.TotalDays
		existing.Status = r.Status
		existing.Description = r.Description
		return nil
	}
	stored := *r
	stored.History = append([]leave.HistoryEntry(nil), r.History...)
	s.requests[r.ID] = &stored
	return nil
}

func (s *Store) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.getLocked(id)
}

func (s *Store) getLocked(id leave.RequestID) (*leave.LeaveRequest, error) {
	r, ok := s.requests[id]
	if !ok {
		return nil, leave.ErrNotFound
	}
	out := copyRequest(r)
	return &out, nil
}

func (s *Store) RequestsByEmployee(_ context.Context, email string) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []leave.LeaveRequest
	for _, r := range s.requests {
		if r.EmployeeEmail == email {
			out = append(out, copyRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.After(out[j].RequestedAt) })
	return out, nil
}

func (s *Store) ActiveRequestsByEmployee(_ context.Context, email string) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeLocked(email), nil
}

func (s *Store) activeLocked(email string) []leave.LeaveRequest {
	var out []leave.LeaveRequest
	for _, r := range s.requests {
		if r.EmployeeEmail == email && r.Status.Active() {
			out = append(out, copyRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out
}

func (s *Store) ApprovedOverlapping(_ context.Context, emails []string, from, to calendar.Date) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	wanted := make(map[string]bool, len(emails))
	for _, e := range emails {
		wanted[e] = true
	}

	var out []leave.LeaveRequest
	for _, r := range s.requests {
		if r.Status == leave.StatusApproved && wanted[r.EmployeeEmail] && r.Overlaps(from, to) {
			out = append(out, copyRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartDate.Before(out[j].StartDate) })
	return out, nil
}

func (s *Store) PendingRequests(_ context.Context) ([]leave.LeaveRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []leave.LeaveRequest
	for _, r := range s.requests {
		if r.Status == leave.StatusPending {
			out = append(out, copyRequest(r))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RequestedAt.Before(out[j].RequestedAt) })
	return out, nil
}

func (s *Store) AppendHistory(_ context.Context, id leave.RequestID, entry leave.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.appendHistoryLocked(id, entry)
}

func (s *Store) appendHistoryLocked(id leave.RequestID, entry leave.HistoryEntry) error {
	r, ok := s.requests[id]
	if !ok {
		return leave.ErrNotFound
	}
	r.History = append(r.History, entry)
	return nil
}

func (s *Store) DeleteRequest(_ context.Context, id leave.RequestID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteLocked(id)
}

func (s *Store) deleteLocked(id leave.RequestID) error {
	if _, ok := s.requests[id]; !ok {
		return leave.ErrNotFound
	}
	delete(s.requests, id)
	return nil
}

// =============================================================================
// LEDGER (leave.Ledger) - delegated to the embedded balance map
// =============================================================================

func (s *Store) Reserve(ctx context.Context, employeeID string, t leave.LeaveType, days int) error {
	return s.ledger.Reserve(ctx, employeeID, t, days)
}

func (s *Store) Release(ctx context.Context, employeeID string, t leave.LeaveType, days int) error {
	return s.ledger.Release(ctx, employeeID, t, days)
}

func (s *Store) Balance(ctx context.Context, employeeID string, t leave.LeaveType) (decimal.Decimal, error) {
	return s.ledger.Balance(ctx, employeeID, t)
}

// =============================================================================
// DIRECTORY (leave.Directory)
// =============================================================================

func (s *Store) GetEmployeeByEmail(ctx context.Context, email string) (*leave.Employee, error) {
	s.mu.RLock()
	emp, ok := s.employees[email]
	s.mu.RUnlock()
	if !ok {
		return nil, leave.ErrNotFound
	}

	// Balances are authoritative in the ledger.
	emp.Balances.Vacation, _ = s.ledger.Balance(ctx, emp.ID, leave.TypeVacation)
	emp.Balances.Sick, _ = s.ledger.Balance(ctx, emp.ID, leave.TypeSick)
	emp.Balances.Personal, _ = s.ledger.Balance(ctx, emp.ID, leave.TypePersonalUnpaid)
	return &emp, nil
}

func (s *Store) DirectReports(_ context.Context, managerEmail string) ([]leave.Employee, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []leave.Employee
	for _, emp := range s.employees {
		if emp.ManagerEmail == managerEmail {
			out = append(out, emp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

// =============================================================================
// TRANSACTIONS - snapshot + rollback
// =============================================================================

// WithTx runs fn against an unlocked view while holding the write lock.
// On error the request map and ledger are restored from a snapshot.
func (s *Store) WithTx(_ context.Context, fn func(leave.TxStore) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	reqSnap := s.snapshotLocked()
	ledSnap := s.ledger.Snapshot()

	if err := fn(&txView{parent: s}); err != nil {
		s.requests = reqSnap
		s.ledger.Restore(ledSnap)
		return err
	}
	return nil
}

func (s *Store) snapshotLocked() map[leave.RequestID]*leave.LeaveRequest {
	snap := make(map[leave.RequestID]*leave.LeaveRequest, len(s.requests))
	for id, r := range s.requests {
		c := copyRequest(r)
		snap[id] = &c
	}
	return snap
}

// txView operates on the parent without re-locking; the parent's write
// lock is held for the duration of WithTx.
type txView struct {
	parent *Store
}

func (tv *txView) SaveRequest(_ context.Context, r *leave.LeaveRequest) error {
	return tv.parent.saveLocked(r)
}

func (tv *txView) GetRequest(_ context.Context, id leave.RequestID) (*leave.LeaveRequest, error) {
	return tv.parent.getLocked(id)
}

func (tv *txView) RequestsByEmployee(_ context.Context, email string) ([]leave.LeaveRequest, error) {
	var out []leave.LeaveRequest
	for _, r := range tv.parent.requests {
		if r.EmployeeEmail == email {
			out = append(out, copyRequest(r))
		}
	}
	return out, nil
}

func (tv *txView) ActiveRequestsByEmployee(_ context.Context, email string) ([]leave.LeaveRequest, error) {
	return tv.parent.activeLocked(email), nil
}

func (tv *txView) ApprovedOverlapping(_ context.Context, emails []string, from, to calendar.Date) ([]leave.LeaveRequest, error) {
	wanted := make(map[string]bool, len(emails))
	for _, e := range emails {
		wanted[e] = true
	}
	var out []leave.LeaveRequest
	for _, r := range tv.parent.requests {
		if r.Status == leave.StatusApproved && wanted[r.EmployeeEmail] && r.Overlaps(from, to) {
			out = append(out, copyRequest(r))
		}
	}
	return out, nil
}

func (tv *txView) PendingRequests(_ context.Context) ([]leave.LeaveRequest, error) {
	var out []leave.LeaveRequest
	for _, r := range tv.parent.requests {
		if r.Status == leave.StatusPending {
			out = append(out, copyRequest(r))
		}
	}
	return out, nil
}

func (tv *txView) AppendHistory(_ context.Context, id leave.RequestID, entry leave.HistoryEntry) error {
	return tv.parent.appendHistoryLocked(id, entry)
}

func (tv *txView) DeleteRequest(_ context.Context, id leave.RequestID) error {
	return tv.parent.deleteLocked(id)
}

func (tv *txView) Reserve(ctx context.Context, employeeID string, t leave.LeaveType, days int) error {
	return tv.parent.ledger.Reserve(ctx, employeeID, t, days)
}

func (tv *txView) Release(ctx context.Context, employeeID string, t leave.LeaveType, days int) error {
	return tv.parent.ledger.Release(ctx, employeeID, t, days)
}

func (tv *txView) Balance(ctx context.Context, employeeID string, t leave.LeaveType) (decimal.Decimal, error) {
	return tv.parent.ledger.Balance(ctx, employeeID, t)
}

func (tv *txView) WithTx(_ context.Context, fn func(leave.TxStore) error) error {
	// Already inside a transaction; just run in the same scope.
	return fn(tv)
}

func copyRequest(r *leave.LeaveRequest) leave.LeaveRequest {
	c := *r
	c.History = append([]leave.HistoryEntry(nil), r.History...)
	return c
}
