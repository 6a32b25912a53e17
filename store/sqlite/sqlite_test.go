package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	require.NoError(t, store.SaveEmployee(context.Background(), leave.Employee{
		ID:           "emp-ana",
		Email:        "ana@corp.test",
		Name:         "Ana",
		ManagerEmail: "mia@corp.test",
		Balances: leave.Balances{
			Vacation: decimal.NewFromInt(10),
			Sick:     decimal.NewFromInt(5),
		},
	}))
	return store
}

func d(year int, month time.Month, day int) calendar.Date {
	return calendar.NewDate(year, month, day)
}

func newRequest(email string, start, end calendar.Date, days int) *leave.LeaveRequest {
	return &leave.LeaveRequest{
		ID:            leave.NewRequestID(),
		EmployeeEmail: email,
		Type:          leave.TypeVacation,
		StartDate:     start,
		EndDate:       end,
		TotalDays:     days,
		Status:        leave.StatusPending,
		RequestedAt:   time.Now().UTC(),
	}
}

// =============================================================================
// REQUEST PERSISTENCE TESTS
// =============================================================================

func TestSaveRequest_RoundTripWithHistory(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	req := newRequest("ana@corp.test", d(2025, time.March, 10), d(2025, time.March, 14), 5)
	req.Description = "spring break"
	require.NoError(t, store.SaveRequest(ctx, req))
	require.NoError(t, store.AppendHistory(ctx, req.ID, leave.HistoryEntry{
		ID: "h1", Action: leave.ActionCreated, Actor: "ana@corp.test", At: time.Now().UTC(),
	}))

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)

	assert.Equal(t, req.ID, got.ID)
	assert.Equal(t, "2025-03-10", got.StartDate.String())
	assert.Equal(t, "2025-03-14", got.EndDate.String())
	assert.Equal(t, 5, got.TotalDays)
	assert.Equal(t, "spring break", got.Description)
	require.Len(t, got.History, 1)
	assert.Equal(t, leave.ActionCreated, got.History[0].Action)
}

func TestSaveRequest_UpdateMutatesOnlyMutableFields(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	req := newRequest("ana@corp.test", d(2025, time.March, 10), d(2025, time.March, 14), 5)
	require.NoError(t, store.SaveRequest(ctx, req))

	req.Status = leave.StatusApproved
	req.StartDate = d(2025, time.March, 24)
	req.EndDate = d(2025, time.March, 26)
	req.TotalDays = 3
	require.NoError(t, store.SaveRequest(ctx, req))

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, leave.StatusApproved, got.Status)
	assert.Equal(t, 3, got.TotalDays)
	assert.Equal(t, "2025-03-24", got.StartDate.String())
}

func TestGetRequest_Unknown_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetRequest(context.Background(), leave.RequestID("missing"))
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestHistory_PreservesInsertionOrder(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	req := newRequest("ana@corp.test", d(2025, time.March, 10), d(2025, time.March, 14), 5)
	require.NoError(t, store.SaveRequest(ctx, req))

	base := time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)
	for i, action := range []leave.Action{leave.ActionCreated, leave.ActionApproved, leave.ActionRescheduled} {
		require.NoError(t, store.AppendHistory(ctx, req.ID, leave.HistoryEntry{
			ID:     string(action) + "-entry",
			Action: action,
			Actor:  "ana@corp.test",
			At:     base.Add(time.Duration(i) * time.Minute),
		}))
	}

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	require.Len(t, got.History, 3)
	assert.Equal(t, leave.ActionCreated, got.History[0].Action)
	assert.Equal(t, leave.ActionApproved, got.History[1].Action)
	assert.Equal(t, leave.ActionRescheduled, got.History[2].Action)
}

func TestCorruptRows_SurfaceErrorsInsteadOfZeroValues(t *testing.T) {
	// GIVEN: Rows whose stored dates and balances no longer parse
	// WHEN: Reading them back
	// THEN: The read fails loudly rather than returning zero dates or
	//       zero balances

	path := filepath.Join(t.TempDir(), "leave.db")
	store, err := sqlite.New(path)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	raw, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	t.Cleanup(func() { raw.Close() })

	_, err = raw.Exec(`
		INSERT INTO requests
			(id, employee_email, leave_type, start_date, end_date, total_days, status, requested_at)
		VALUES
			('req-bad', 'ana@corp.test', 'vacation', 'not-a-date', '2025-03-14', 5, 'pending', '2025-03-01T12:00:00Z')
	`)
	require.NoError(t, err)

	_, err = store.GetRequest(context.Background(), leave.RequestID("req-bad"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt start_date")

	_, err = raw.Exec(`
		INSERT INTO employees
			(id, email, name, vacation_balance, sick_balance, personal_balance, created_at)
		VALUES
			('emp-bad', 'bad@corp.test', 'Bad', 'ten', '0', '0', '2025-01-01T00:00:00Z')
	`)
	require.NoError(t, err)

	_, err = store.GetEmployeeByEmail(context.Background(), "bad@corp.test")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt vacation balance")
}

func TestActiveRequests_ExcludeTerminal(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	pending := newRequest("ana@corp.test", d(2025, time.March, 10), d(2025, time.March, 14), 5)
	require.NoError(t, store.SaveRequest(ctx, pending))

	denied := newRequest("ana@corp.test", d(2025, time.April, 7), d(2025, time.April, 11), 5)
	denied.Status = leave.StatusDenied
	require.NoError(t, store.SaveRequest(ctx, denied))

	active, err := store.ActiveRequestsByEmployee(ctx, "ana@corp.test")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, pending.ID, active[0].ID)
}

func TestApprovedOverlapping_InclusiveBounds(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	approved := newRequest("ana@corp.test", d(2025, time.March, 10), d(2025, time.March, 14), 5)
	approved.Status = leave.StatusApproved
	require.NoError(t, store.SaveRequest(ctx, approved))

	// Window touching only the last day still matches.
	got, err := store.ApprovedOverlapping(ctx, []string{"ana@corp.test"}, d(2025, time.March, 14), d(2025, time.March, 20))
	require.NoError(t, err)
	assert.Len(t, got, 1)

	// Window starting the day after does not.
	got, err = store.ApprovedOverlapping(ctx, []string{"ana@corp.test"}, d(2025, time.March, 15), d(2025, time.March, 20))
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestPendingRequests_OldestFirst(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := newRequest("ana@corp.test", d(2025, time.March, 10), d(2025, time.March, 11), 2)
	older.RequestedAt = time.Date(2025, time.February, 1, 9, 0, 0, 0, time.UTC)
	newer := newRequest("ana@corp.test", d(2025, time.April, 7), d(2025, time.April, 8), 2)
	newer.RequestedAt = time.Date(2025, time.February, 2, 9, 0, 0, 0, time.UTC)

	require.NoError(t, store.SaveRequest(ctx, newer))
	require.NoError(t, store.SaveRequest(ctx, older))

	queue, err := store.PendingRequests(ctx)
	require.NoError(t, err)
	require.Len(t, queue, 2)
	assert.Equal(t, older.ID, queue[0].ID)
}

// =============================================================================
// LEDGER TESTS
// =============================================================================

func TestReserve_DecrementsStoredBalance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, "emp-ana", leave.TypeVacation, 4))

	bal, err := store.Balance(ctx, "emp-ana", leave.TypeVacation)
	require.NoError(t, err)
	assert.True(t, bal.Equal(decimal.NewFromInt(6)))
}

func TestReserve_Overdraw_Rejected(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	err := store.Reserve(ctx, "emp-ana", leave.TypeVacation, 11)

	var insufficient *leave.InsufficientBalanceError
	require.ErrorAs(t, err, &insufficient)
	assert.True(t, insufficient.Available.Equal(decimal.NewFromInt(10)))

	bal, _ := store.Balance(ctx, "emp-ana", leave.TypeVacation)
	assert.True(t, bal.Equal(decimal.NewFromInt(10)))
}

func TestReserve_UnknownEmployee_NotFound(t *testing.T) {
	store := newTestStore(t)

	err := store.Reserve(context.Background(), "emp-ghost", leave.TypeVacation, 1)
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestRelease_RestoresStoredBalance(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.Reserve(ctx, "emp-ana", leave.TypeSick, 3))
	require.NoError(t, store.Release(ctx, "emp-ana", leave.TypeSick, 3))

	bal, _ := store.Balance(ctx, "emp-ana", leave.TypeSick)
	assert.True(t, bal.Equal(decimal.NewFromInt(5)))
}

// =============================================================================
// TRANSACTION TESTS
// =============================================================================

func TestWithTx_ErrorRollsBackEverything(t *testing.T) {
	// GIVEN: A transaction reserving days and saving a request
	// WHEN: The function returns an error after both writes
	// THEN: Neither the balance nor the request survives

	store := newTestStore(t)
	ctx := context.Background()

	req := newRequest("ana@corp.test", d(2025, time.March, 10), d(2025, time.March, 14), 5)
	boom := assert.AnError

	err := store.WithTx(ctx, func(tx leave.TxStore) error {
		if err := tx.Reserve(ctx, "emp-ana", leave.TypeVacation, 5); err != nil {
			return err
		}
		if err := tx.SaveRequest(ctx, req); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	bal, _ := store.Balance(ctx, "emp-ana", leave.TypeVacation)
	assert.True(t, bal.Equal(decimal.NewFromInt(10)))
	_, err = store.GetRequest(ctx, req.ID)
	assert.ErrorIs(t, err, leave.ErrNotFound)
}

func TestWithTx_CommitPersistsEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	req := newRequest("ana@corp.test", d(2025, time.March, 10), d(2025, time.March, 14), 5)

	err := store.WithTx(ctx, func(tx leave.TxStore) error {
		if err := tx.Reserve(ctx, "emp-ana", leave.TypeVacation, 5); err != nil {
			return err
		}
		if err := tx.SaveRequest(ctx, req); err != nil {
			return err
		}
		return tx.AppendHistory(ctx, req.ID, leave.HistoryEntry{
			ID: "h1", Action: leave.ActionCreated, Actor: "ana@corp.test", At: time.Now().UTC(),
		})
	})
	require.NoError(t, err)

	bal, _ := store.Balance(ctx, "emp-ana", leave.TypeVacation)
	assert.True(t, bal.Equal(decimal.NewFromInt(5)))

	got, err := store.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Len(t, got.History, 1)
}

// =============================================================================
// DIRECTORY / CALENDAR TESTS
// =============================================================================

func TestDirectory_ReadsBackEmployee(t *testing.T) {
	store := newTestStore(t)

	emp, err := store.GetEmployeeByEmail(context.Background(), "ana@corp.test")
	require.NoError(t, err)
	assert.Equal(t, "emp-ana", emp.ID)
	assert.True(t, emp.Balances.Vacation.Equal(decimal.NewFromInt(10)))

	reports, err := store.DirectReports(context.Background(), "mia@corp.test")
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, "ana@corp.test", reports[0].Email)
}

func TestHolidays_SaveQueryDelete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	saved, err := store.SaveHoliday(ctx, calendar.Holiday{Date: d(2025, time.March, 12), Name: "Founders Day"})
	require.NoError(t, err)
	require.NotEmpty(t, saved.ID)

	assert.True(t, store.IsHoliday(d(2025, time.March, 12)))
	assert.False(t, store.IsHoliday(d(2025, time.March, 13)))

	inRange := store.HolidaysInRange(d(2025, time.March, 1), d(2025, time.March, 31))
	require.Len(t, inRange, 1)
	assert.Equal(t, "Founders Day", inRange[0].Name)

	require.NoError(t, store.DeleteHoliday(ctx, saved.ID))
	assert.False(t, store.IsHoliday(d(2025, time.March, 12)))
}

func TestWorkweek_DefaultsAndOverride(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	def := store.Workweek()
	assert.True(t, def.IsNonWorking(time.Saturday))
	assert.True(t, def.IsNonWorking(time.Sunday))
	assert.False(t, def.IsNonWorking(time.Friday))

	custom := def
	custom.NonWorking[time.Friday] = true
	require.NoError(t, store.SaveWorkweek(ctx, custom))

	assert.True(t, store.Workweek().IsNonWorking(time.Friday))
}
