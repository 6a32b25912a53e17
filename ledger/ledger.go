/*
Package ledger provides the in-memory balance ledger.

PURPOSE:
  Holds per-employee, per-leave-type day balances behind a single
  mutex, making Reserve a true atomic check-and-decrement: two
  concurrent reservations against the same (employee, type) pair can
  never jointly overdraw the balance, because the check and the
  decrement happen under one lock.

WHY A SINGLE OWNER?
  The balance is the only shared mutable resource in the engine with a
  correctness requirement. Guarding it with one mutex is the simplest
  single-writer arrangement; the SQLite store achieves the same thing
  with its store-wide lock plus a SQL transaction.

CORRECTIONS:
  There is no ceiling check on Release. A denial or withdrawal simply
  returns previously committed days; an external annual reset policy
  overwrites balances wholesale through SetBalance.

SEE ALSO:
  - leave/store.go: the Ledger interface this implements
  - store/sqlite/sqlite.go: the production implementation
*/
package ledger

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/leave"
)

type key struct {
	EmployeeID string
	Type       leave.LeaveType
}

// Memory is a mutex-guarded balance map implementing leave.Ledger.
type Memory struct {
	mu       sync.Mutex
	balances map[key]decimal.Decimal
}

func NewMemory() *Memory {
	return &Memory{balances: make(map[key]decimal.Decimal)}
}

// SetBalance overwrites a balance. Seeding and external resets only;
// lifecycle code must go through Reserve/Release.
func (m *Memory) SetBalance(employeeID string, t leave.LeaveType, days decimal.Decimal) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.balances[key{employeeID, t}] = days
}

// Reserve atomically checks and decrements the balance. Returns
// InsufficientBalanceError without mutation when days exceed it.
func (m *Memory) Reserve(_ context.Context, employeeID string, t leave.LeaveType, days int) error {
	if !t.DrawsOnBalance() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{employeeID, t}
	current := m.balances[k]
	requested := decimal.NewFromInt(int64(days))
	if current.LessThan(requested) {
		return &leave.InsufficientBalanceError{
			EmployeeID: employeeID,
			Type:       t,
			Available:  current,
			Requested:  days,
		}
	}
	m.balances[k] = current.Sub(requested)
	return nil
}

// Release increments the balance. Always succeeds.
func (m *Memory) Release(_ context.Context, employeeID string, t leave.LeaveType, days int) error {
	if !t.DrawsOnBalance() {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	k := key{employeeID, t}
	m.balances[k] = m.balances[k].Add(decimal.NewFromInt(int64(days)))
	return nil
}

// Balance returns the current balance for the pair.
func (m *Memory) Balance(_ context.Context, employeeID string, t leave.LeaveType) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.balances[key{employeeID, t}], nil
}

// BalanceSnapshot is an opaque copy of the ledger state.
type BalanceSnapshot struct {
	balances map[key]decimal.Decimal
}

// Snapshot copies the current balances. Used by the memory store's
// transaction scope to roll back on error.
func (m *Memory) Snapshot() BalanceSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make(map[key]decimal.Decimal, len(m.balances))
	for k, v := range m.balances {
		out[k] = v
	}
	return BalanceSnapshot{balances: out}
}

// Restore replaces all balances with a previously taken snapshot.
func (m *Memory) Restore(snapshot BalanceSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.balances = make(map[key]decimal.Decimal, len(snapshot.balances))
	for k, v := range snapshot.balances {
		m.balances[k] = v
	}
}
