/*
handlers_test.go - HTTP-level tests for the leave engine API

Exercises the full stack (router, handlers, lifecycle service, SQLite
store) through httptest, the way a client would drive it.
*/
package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/leave-engine/api"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// TEST SETUP
// =============================================================================

func newTestRouter(t *testing.T) *chi.Mux {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	cal := calendar.New(store, store)
	svc := leave.NewService(store, store, cal)
	// Fixed clock: Sat Mar 1, 2025.
	svc.Now = func() time.Time {
		return time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	}

	return api.NewRouter(api.NewHandler(store, svc))
}

func do(t *testing.T, router http.Handler, method, path, actor string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if actor != "" {
		req.Header.Set("X-Actor", actor)
	}

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&out), "body: %s", rec.Body.String())
	return out
}

func seedAna(t *testing.T, router http.Handler) {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/employees", "", map[string]string{
		"email":            "ana@corp.test",
		"name":             "Ana",
		"manager_email":    "mia@corp.test",
		"vacation_balance": "10",
		"sick_balance":     "5",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func submitVacation(t *testing.T, router http.Handler, start, end string) api.RequestDTO {
	t.Helper()
	rec := do(t, router, http.MethodPost, "/api/employees/ana@corp.test/requests", "ana@corp.test",
		map[string]string{"type": "vacation", "start_date": start, "end_date": end})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[api.RequestDTO](t, rec)
}

// =============================================================================
// EMPLOYEE ENDPOINTS
// =============================================================================

func TestEmployees_CreateAndList(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)

	rec := do(t, router, http.MethodGet, "/api/employees", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	employees := decode[[]api.EmployeeDTO](t, rec)
	require.Len(t, employees, 1)
	assert.Equal(t, "ana@corp.test", employees[0].Email)
	assert.Equal(t, "10", employees[0].Balances.Vacation)
}

func TestEmployees_GetUnknown_404(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/employees/ghost@corp.test", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

// =============================================================================
// REQUEST SUBMISSION
// =============================================================================

func TestSubmitRequest_HappyPath(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)

	req := submitVacation(t, router, "2025-03-10", "2025-03-14")

	assert.Equal(t, "pending", req.Status)
	assert.Equal(t, 5, req.TotalDays)
	require.Len(t, req.History, 1)
	assert.Equal(t, "created", req.History[0].Action)

	// Balance reflects the hold.
	rec := do(t, router, http.MethodGet, "/api/employees/ana@corp.test/balance", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	summary := decode[api.BalanceSummaryDTO](t, rec)
	assert.Equal(t, "5", summary.Employee.Balances.Vacation)
	assert.Equal(t, 5, summary.Held["vacation"])
}

func TestSubmitRequest_BadDate_400(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)

	rec := do(t, router, http.MethodPost, "/api/employees/ana@corp.test/requests", "ana@corp.test",
		map[string]string{"type": "vacation", "start_date": "03/10/2025", "end_date": "2025-03-14"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSubmitRequest_Overlap_409WithSuggestion(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)
	submitVacation(t, router, "2025-03-10", "2025-03-14")

	rec := do(t, router, http.MethodPost, "/api/employees/ana@corp.test/requests", "ana@corp.test",
		map[string]string{"type": "vacation", "start_date": "2025-03-12", "end_date": "2025-03-13"})
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decode[api.ErrorDTO](t, rec)
	require.NotNil(t, body.Conflict)
	assert.Equal(t, "2025-03-10", body.Conflict.StartDate)
	assert.Equal(t, "2025-03-15", body.SuggestedStart)
	assert.Equal(t, "2025-03-16", body.SuggestedEnd)
}

func TestSubmitRequest_InsufficientBalance_409(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)

	rec := do(t, router, http.MethodPost, "/api/employees/ana@corp.test/requests", "ana@corp.test",
		map[string]string{"type": "vacation", "start_date": "2025-03-10", "end_date": "2025-03-28"})
	require.Equal(t, http.StatusConflict, rec.Code)

	body := decode[api.ErrorDTO](t, rec)
	assert.Equal(t, "10", body.Available)
	assert.Equal(t, 15, body.Requested)
}

// =============================================================================
// LIFECYCLE ENDPOINTS
// =============================================================================

func TestLifecycle_ApproveThenWithdrawGuard(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)
	req := submitVacation(t, router, "2025-03-10", "2025-03-14")

	// Manager approves.
	rec := do(t, router, http.MethodPost, "/api/requests/"+req.ID+"/approve", "mia@corp.test", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	approved := decode[api.RequestDTO](t, rec)
	assert.Equal(t, "approved", approved.Status)

	// Approving again conflicts with the state machine.
	rec = do(t, router, http.MethodPost, "/api/requests/"+req.ID+"/approve", "mia@corp.test", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLifecycle_DenyReturnsDays(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)
	req := submitVacation(t, router, "2025-03-10", "2025-03-14")

	rec := do(t, router, http.MethodPost, "/api/requests/"+req.ID+"/deny", "mia@corp.test",
		map[string]string{"note": "coverage gap"})
	require.Equal(t, http.StatusOK, rec.Code)

	denied := decode[api.RequestDTO](t, rec)
	assert.Equal(t, "denied", denied.Status)
	require.Len(t, denied.History, 2)
	assert.Equal(t, "coverage gap", denied.History[1].Note)

	summary := decode[api.BalanceSummaryDTO](t, do(t, router, http.MethodGet, "/api/employees/ana@corp.test/balance", "", nil))
	assert.Equal(t, "10", summary.Employee.Balances.Vacation)
}

func TestLifecycle_WithdrawByNonOwner_409(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)
	req := submitVacation(t, router, "2025-03-10", "2025-03-14")

	rec := do(t, router, http.MethodPost, "/api/requests/"+req.ID+"/withdraw", "mia@corp.test", nil)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestLifecycle_Reschedule_BackToPending(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)
	req := submitVacation(t, router, "2025-03-10", "2025-03-14")

	rec := do(t, router, http.MethodPost, "/api/requests/"+req.ID+"/approve", "mia@corp.test", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodPost, "/api/requests/"+req.ID+"/reschedule", "ana@corp.test",
		map[string]string{"start_date": "2025-03-24", "end_date": "2025-03-26"})
	require.Equal(t, http.StatusOK, rec.Code)

	moved := decode[api.RequestDTO](t, rec)
	assert.Equal(t, "pending", moved.Status)
	assert.Equal(t, 3, moved.TotalDays)
	assert.Equal(t, "2025-03-24", moved.StartDate)
}

func TestLifecycle_PendingQueue(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)
	req := submitVacation(t, router, "2025-03-10", "2025-03-14")

	rec := do(t, router, http.MethodGet, "/api/requests/pending", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	queue := decode[[]api.RequestDTO](t, rec)
	require.Len(t, queue, 1)
	assert.Equal(t, req.ID, queue[0].ID)
}

func TestLifecycle_AdminDelete_204(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)
	req := submitVacation(t, router, "2025-03-10", "2025-03-14")

	rec := do(t, router, http.MethodDelete, "/api/requests/"+req.ID, "admin@corp.test", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)

	rec = do(t, router, http.MethodGet, "/api/requests/"+req.ID, "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestDefaultStart_SkipsWeekend(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/requests/default-start", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// Today is Sat Mar 1; the next working day after tomorrow's Sunday
	// is Monday Mar 3.
	body := decode[api.DefaultStartDTO](t, rec)
	assert.Equal(t, "2025-03-03", body.StartDate)
}

// =============================================================================
// CALENDAR ADMINISTRATION
// =============================================================================

func TestHolidays_AffectWorkingDayCount(t *testing.T) {
	// GIVEN: Wed Mar 12 declared a holiday
	// WHEN: Submitting Mar 10-14
	// THEN: Only 4 days are charged

	router := newTestRouter(t)
	seedAna(t, router)

	rec := do(t, router, http.MethodPost, "/api/holidays", "admin@corp.test",
		map[string]string{"date": "2025-03-12", "name": "Founders Day"})
	require.Equal(t, http.StatusCreated, rec.Code)

	req := submitVacation(t, router, "2025-03-10", "2025-03-14")
	assert.Equal(t, 4, req.TotalDays)
}

func TestWorkweek_GetAndPut(t *testing.T) {
	router := newTestRouter(t)

	rec := do(t, router, http.MethodGet, "/api/calendar/workweek", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	ww := decode[api.WorkweekDTO](t, rec)
	assert.ElementsMatch(t, []string{"saturday", "sunday"}, ww.NonWorkingDays)

	rec = do(t, router, http.MethodPut, "/api/calendar/workweek", "admin@corp.test",
		api.WorkweekDTO{NonWorkingDays: []string{"friday", "saturday", "sunday"}})
	require.Equal(t, http.StatusOK, rec.Code)

	ww = decode[api.WorkweekDTO](t, do(t, router, http.MethodGet, "/api/calendar/workweek", "", nil))
	assert.ElementsMatch(t, []string{"friday", "saturday", "sunday"}, ww.NonWorkingDays)
}

// =============================================================================
// TEAM AVAILABILITY
// =============================================================================

func TestTeamAvailability_ApprovedOnly(t *testing.T) {
	router := newTestRouter(t)
	seedAna(t, router)
	req := submitVacation(t, router, "2025-03-10", "2025-03-14")

	rec := do(t, router, http.MethodPost, "/api/requests/"+req.ID+"/approve", "mia@corp.test", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = do(t, router, http.MethodGet,
		"/api/team/availability?manager=mia@corp.test&from=2025-03-01&to=2025-03-31", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	out := decode[[]api.RequestDTO](t, rec)
	require.Len(t, out, 1)
	assert.Equal(t, "ana@corp.test", out[0].EmployeeEmail)

	rec = do(t, router, http.MethodGet, "/api/team/availability?from=2025-03-01&to=2025-03-31", "", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
