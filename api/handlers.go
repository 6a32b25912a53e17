/*
handlers.go - HTTP API handlers for the leave engine

PURPOSE:
  Exposes the leave-request lifecycle via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Employees:
    GET    /api/employees                     List all employees
    POST   /api/employees                     Register employee
    GET    /api/employees/{email}             Get employee details
    GET    /api/employees/{email}/balance     Balance + held days
    GET    /api/employees/{email}/requests    Request history
    POST   /api/employees/{email}/requests    Submit leave request

  Requests:
    GET    /api/requests/pending              Manager approval queue
    GET    /api/requests/default-start        Pre-filled start date
    GET    /api/requests/{id}                 Get request with history
    POST   /api/requests/{id}/approve         Approve (manager)
    POST   /api/requests/{id}/deny            Deny (manager)
    POST   /api/requests/{id}/withdraw        Withdraw (owner)
    POST   /api/requests/{id}/reschedule      Move approved request
    DELETE /api/requests/{id}                 Administrative delete

  Team:
    GET    /api/team/availability             Approved leave of reports

  Calendar:
    GET    /api/holidays                      List holidays
    POST   /api/holidays                      Add holiday
    DELETE /api/holidays/{id}                 Remove holiday
    GET    /api/calendar/workweek             Non-working weekdays
    PUT    /api/calendar/workweek             Replace workweek

ACTOR IDENTIFICATION:
  The acting user is taken from the X-Actor header. There is no
  authentication; the header is trusted. Ownership rules (withdraw,
  reschedule) are enforced against it by the lifecycle service.

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Resource not found
  - 409: Overlap, insufficient balance, invalid transition
  - 500: Internal errors
  Overlap conflicts carry the blocking request and a suggested free
  slot of equal length when one exists within the search horizon.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - leave/lifecycle.go: The state machine behind these handlers
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
	"github.com/warp/leave-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store   *sqlite.Store
	Service *leave.Service
}

// NewHandler creates a new handler with the given store and service.
func NewHandler(store *sqlite.Store, service *leave.Service) *Handler {
	return &Handler{Store: store, Service: service}
}

// actorFrom reads the acting user from the X-Actor header.
func actorFrom(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get("X-Actor"))
}

// =============================================================================
// EMPLOYEE HANDLERS
// =============================================================================

// ListEmployees returns all employees.
func (h *Handler) ListEmployees(w http.ResponseWriter, r *http.Request) {
	employees, err := h.Store.ListEmployees(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list employees", err)
		return
	}

	dtos := make([]EmployeeDTO, len(employees))
	for i, e := range employees {
		dtos[i] = toEmployeeDTO(e)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateEmployee registers an employee with starting balances.
func (h *Handler) CreateEmployee(w http.ResponseWriter, r *http.Request) {
	var req CreateEmployeeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Email == "" || req.Name == "" {
		writeError(w, http.StatusBadRequest, "email and name are required", nil)
		return
	}

	emp := leave.Employee{
		ID:           req.ID,
		Email:        req.Email,
		Name:         req.Name,
		ManagerEmail: req.ManagerEmail,
		Department:   req.Department,
	}
	if emp.ID == "" {
		emp.ID = uuid.NewString()
	}

	var err error
	if emp.Balances.Vacation, err = parseBalance(req.Vacation); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid vacation_balance", err)
		return
	}
	if emp.Balances.Sick, err = parseBalance(req.Sick); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid sick_balance", err)
		return
	}
	if emp.Balances.Personal, err = parseBalance(req.Personal); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid personal_balance", err)
		return
	}

	if err := h.Store.SaveEmployee(r.Context(), emp); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save employee", err)
		return
	}
	writeJSON(w, http.StatusCreated, toEmployeeDTO(emp))
}

func parseBalance(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

// GetEmployee returns a single employee by email.
func (h *Handler) GetEmployee(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	emp, err := h.Service.Directory.GetEmployeeByEmail(r.Context(), email)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toEmployeeDTO(*emp))
}

// GetBalance returns the stored balances plus the days held by active
// requests per leave type.
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	summary, err := h.Service.BalanceSummary(r.Context(), email)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	held := make(map[string]int, len(summary.Held))
	for t, days := range summary.Held {
		held[string(t)] = days
	}
	writeJSON(w, http.StatusOK, BalanceSummaryDTO{
		Employee: toEmployeeDTO(summary.Employee),
		Held:     held,
	})
}

// ListRequests returns the employee's full request history, newest first.
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")
	requests, err := h.Service.Store.RequestsByEmployee(r.Context(), email)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// SubmitRequest creates a new leave request for the employee.
func (h *Handler) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	email := chi.URLParam(r, "email")

	var body CreateRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := calendar.ParseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := calendar.ParseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	req, err := h.Service.Create(r.Context(), leave.CreateParams{
		EmployeeEmail: email,
		Type:          leave.LeaveType(body.Type),
		StartDate:     start,
		EndDate:       end,
		Description:   body.Description,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toRequestDTO(*req))
}

// =============================================================================
// REQUEST HANDLERS
// =============================================================================

// GetRequest returns one request with its history.
func (h *Handler) GetRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	req, err := h.Service.Store.GetRequest(r.Context(), id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// ListPendingRequests returns the approval queue, oldest first.
func (h *Handler) ListPendingRequests(w http.ResponseWriter, r *http.Request) {
	requests, err := h.Service.Store.PendingRequests(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list pending requests", err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// DefaultStart returns the start date a new request form should offer.
func (h *Handler) DefaultStart(w http.ResponseWriter, r *http.Request) {
	start, err := h.Service.DefaultStartDate()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "No working day found", err)
		return
	}
	writeJSON(w, http.StatusOK, DefaultStartDTO{StartDate: start.String()})
}

// ApproveRequest moves a pending request to approved.
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	req, err := h.Service.Approve(r.Context(), id, actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// DenyRequest moves a pending request to denied and returns the days.
func (h *Handler) DenyRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var body DenyBody
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			writeError(w, http.StatusBadRequest, "Invalid request body", err)
			return
		}
	}

	req, err := h.Service.Deny(r.Context(), id, actorFrom(r), body.Note)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// WithdrawRequest lets the owner withdraw a pending request.
func (h *Handler) WithdrawRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	req, err := h.Service.Withdraw(r.Context(), id, actorFrom(r))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// RescheduleRequest moves an approved request to new dates; it re-enters
// the pending queue.
func (h *Handler) RescheduleRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))

	var body RescheduleBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	start, err := calendar.ParseDate(body.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := calendar.ParseDate(body.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	req, err := h.Service.Reschedule(r.Context(), id, actorFrom(r), start, end)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTO(*req))
}

// DeleteRequest removes a request entirely, settling any held days.
func (h *Handler) DeleteRequest(w http.ResponseWriter, r *http.Request) {
	id := leave.RequestID(chi.URLParam(r, "id"))
	if err := h.Service.AdminDelete(r.Context(), id, actorFrom(r)); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// =============================================================================
// TEAM HANDLERS
// =============================================================================

// TeamAvailability returns the approved leave of a manager's direct
// reports within a date window.
func (h *Handler) TeamAvailability(w http.ResponseWriter, r *http.Request) {
	manager := r.URL.Query().Get("manager")
	if manager == "" {
		writeError(w, http.StatusBadRequest, "manager query parameter is required", nil)
		return
	}

	from, err := calendar.ParseDate(r.URL.Query().Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid from date", err)
		return
	}
	to, err := calendar.ParseDate(r.URL.Query().Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid to date", err)
		return
	}

	requests, err := h.Service.TeamAvailability(r.Context(), manager, from, to)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toRequestDTOs(requests))
}

// =============================================================================
// CALENDAR HANDLERS
// =============================================================================

// ListHolidays returns all holidays.
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	holidays, err := h.Store.ListHolidays(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list holidays", err)
		return
	}

	dtos := make([]HolidayDTO, len(holidays))
	for i, hol := range holidays {
		dtos[i] = toHolidayDTO(hol)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateHoliday adds a holiday to the calendar.
func (h *Handler) CreateHoliday(w http.ResponseWriter, r *http.Request) {
	var req CreateHolidayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}
	date, err := calendar.ParseDate(req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid date", err)
		return
	}

	saved, err := h.Store.SaveHoliday(r.Context(), calendar.Holiday{Date: date, Name: req.Name})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save holiday", err)
		return
	}
	writeJSON(w, http.StatusCreated, toHolidayDTO(saved))
}

// DeleteHoliday removes a holiday by ID.
func (h *Handler) DeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if err := h.Store.DeleteHoliday(r.Context(), id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetWorkweek returns the non-working weekdays.
func (h *Handler) GetWorkweek(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, toWorkweekDTO(h.Store.Workweek()))
}

// PutWorkweek replaces the non-working weekday set.
func (h *Handler) PutWorkweek(w http.ResponseWriter, r *http.Request) {
	var req WorkweekDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	ww, err := parseWorkweek(req)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid workweek", err)
		return
	}
	if err := h.Store.SaveWorkweek(r.Context(), ww); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save workweek", err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkweekDTO(ww))
}

func toWorkweekDTO(w calendar.Workweek) WorkweekDTO {
	dto := WorkweekDTO{NonWorkingDays: []string{}}
	for wd := 0; wd < 7; wd++ {
		if w.NonWorking[wd] {
			dto.NonWorkingDays = append(dto.NonWorkingDays, strings.ToLower(time.Weekday(wd).String()))
		}
	}
	return dto
}

func parseWorkweek(dto WorkweekDTO) (calendar.Workweek, error) {
	var w calendar.Workweek
	for _, name := range dto.NonWorkingDays {
		wd, err := parseWeekday(name)
		if err != nil {
			return calendar.Workweek{}, err
		}
		w.NonWorking[wd] = true
	}
	return w, nil
}

func parseWeekday(name string) (time.Weekday, error) {
	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if strings.EqualFold(name, wd.String()) {
			return wd, nil
		}
	}
	return 0, errors.New("unknown weekday: " + name)
}

// =============================================================================
// RESPONSE HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	dto := ErrorDTO{Error: message}
	if err != nil {
		dto.Detail = err.Error()
	}
	writeJSON(w, status, dto)
}

// writeDomainError maps domain errors onto HTTP statuses. Overlap and
// insufficient-balance conflicts keep their structured payloads.
func writeDomainError(w http.ResponseWriter, err error) {
	var overlap *leave.OverlapError
	if errors.As(err, &overlap) {
		dto := ErrorDTO{Error: "Requested dates overlap an existing request", Detail: err.Error()}
		conflict := toRequestDTO(overlap.Conflict)
		dto.Conflict = &conflict
		if overlap.HasSuggestion {
			dto.SuggestedStart = overlap.SuggestedStart.String()
			dto.SuggestedEnd = overlap.SuggestedEnd.String()
		}
		writeJSON(w, http.StatusConflict, dto)
		return
	}

	var insufficient *leave.InsufficientBalanceError
	if errors.As(err, &insufficient) {
		writeJSON(w, http.StatusConflict, ErrorDTO{
			Error:     "Insufficient balance",
			Detail:    err.Error(),
			Available: insufficient.Available.String(),
			Requested: insufficient.Requested,
		})
		return
	}

	switch {
	case leave.IsNotFound(err):
		writeError(w, http.StatusNotFound, "Not found", err)
	case errors.Is(err, leave.ErrInvalidTransition), errors.Is(err, leave.ErrLedgerConflict):
		writeError(w, http.StatusConflict, "Conflict", err)
	case leave.IsClientError(err):
		writeError(w, http.StatusBadRequest, "Invalid input", err)
	default:
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}
