package ledger_test

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/ledger"
)

func newLedger(vacationDays int64) *ledger.Memory {
	m := ledger.NewMemory()
	m.SetBalance("emp-1", leave.TypeVacation, decimal.NewFromInt(vacationDays))
	return m
}

func TestReserve_DecrementsBalance(t *testing.T) {
	m := newLedger(10)
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, "emp-1", leave.TypeVacation, 4))

	bal, err := m.Balance(ctx, "emp-1", leave.TypeVacation)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(6)))
}

func TestReserve_ExactBalance_Allowed(t *testing.T) {
	m := newLedger(5)
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, "emp-1", leave.TypeVacation, 5))

	bal, _ := m.Balance(ctx, "emp-1", leave.TypeVacation)
	assert.True(t, bal.IsZero())
}

func TestReserve_Overdraw_RejectedWithoutMutation(t *testing.T) {
	m := newLedger(3)
	ctx := context.Background()

	err := m.Reserve(ctx, "emp-1", leave.TypeVacation, 4)

	var insufficient *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(decimal.NewFromInt(3)))
	assert.Equal(t, 4, insufficient.Requested)

	bal, _ := m.Balance(ctx, "emp-1", leave.TypeVacation)
	assert.True(t, bal.Equal(decimal.NewFromInt(3)))
}

func TestReserve_PersonalUnpaid_NoOp(t *testing.T) {
	m := ledger.NewMemory() // zero balances everywhere
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, "emp-1", leave.TypePersonalUnpaid, 30))

	bal, _ := m.Balance(ctx, "emp-1", leave.TypePersonalUnpaid)
	assert.True(t, bal.IsZero())
}

func TestRelease_RestoresBalance(t *testing.T) {
	m := newLedger(10)
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, "emp-1", leave.TypeVacation, 7))
	require.NoError(t, m.Release(ctx, "emp-1", leave.TypeVacation, 7))

	bal, _ := m.Balance(ctx, "emp-1", leave.TypeVacation)
	assert.True(t, bal.Equal(decimal.NewFromInt(10)))
}

func TestBalances_PerTypeIndependent(t *testing.T) {
	m := ledger.NewMemory()
	m.SetBalance("emp-1", leave.TypeVacation, decimal.NewFromInt(10))
	m.SetBalance("emp-1", leave.TypeSick, decimal.NewFromInt(5))
	ctx := context.Background()

	require.NoError(t, m.Reserve(ctx, "emp-1", leave.TypeVacation, 10))

	sick, _ := m.Balance(ctx, "emp-1", leave.TypeSick)
	assert.True(t, sick.Equal(decimal.NewFromInt(5)))
}

func TestReserve_Concurrent_NeverOverdraws(t *testing.T) {
	// GIVEN: 10 vacation days and 50 goroutines each reserving 1 day
	// WHEN: All race through Reserve
	// THEN: Exactly 10 succeed and the balance ends at zero

	m := newLedger(10)
	ctx := context.Background()

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := m.Reserve(ctx, "emp-1", leave.TypeVacation, 1); err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)
	bal, _ := m.Balance(ctx, "emp-1", leave.TypeVacation)
	assert.True(t, bal.IsZero())
}

func TestSnapshotRestore_RollsBackReservations(t *testing.T) {
	m := newLedger(10)
	ctx := context.Background()

	snap := m.Snapshot()
	require.NoError(t, m.Reserve(ctx, "emp-1", leave.TypeVacation, 6))
	m.Restore(snap)

	bal, _ := m.Balance(ctx, "emp-1", leave.TypeVacation)
	assert.True(t, bal.Equal(decimal.NewFromInt(10)))
}
