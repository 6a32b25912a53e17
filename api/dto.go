/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DATES:
  All dates cross the wire as "YYYY-MM-DD" strings; timestamps as
  RFC 3339. Balances are decimal strings to avoid float drift.

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/warp/leave-engine/calendar"
	"github.com/warp/leave-engine/leave"
)

// =============================================================================
// EMPLOYEE TYPES
// =============================================================================

// EmployeeDTO represents an employee in API responses.
type EmployeeDTO struct {
	ID           string      `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	ManagerEmail string      `json:"manager_email,omitempty"`
	Department   string      `json:"department,omitempty"`
	Balances     BalancesDTO `json:"balances"`
}

// BalancesDTO carries per-type balances as decimal strings.
type BalancesDTO struct {
	Vacation string `json:"vacation"`
	Sick     string `json:"sick"`
	Personal string `json:"personal_unpaid"`
}

// CreateEmployeeRequest is the request to register an employee.
type CreateEmployeeRequest struct {
	ID           string `json:"id,omitempty"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	ManagerEmail string `json:"manager_email,omitempty"`
	Department   string `json:"department,omitempty"`
	Vacation     string `json:"vacation_balance,omitempty"`
	Sick         string `json:"sick_balance,omitempty"`
	Personal     string `json:"personal_balance,omitempty"`
}

// BalanceSummaryDTO is the balance view: stored balances plus the days
// currently held by active requests, per leave type.
type BalanceSummaryDTO struct {
	Employee EmployeeDTO    `json:"employee"`
	Held     map[string]int `json:"held_days"`
}

// =============================================================================
// REQUEST TYPES
// =============================================================================

// RequestDTO represents a leave request in API responses.
type RequestDTO struct {
	ID            string       `json:"id"`
	EmployeeEmail string       `json:"employee_email"`
	Type          string       `json:"type"`
	StartDate     string       `json:"start_date"`
	EndDate       string       `json:"end_date"`
	TotalDays     int          `json:"total_days"`
	Status        string       `json:"status"`
	Description   string       `json:"description,omitempty"`
	RequestedAt   string       `json:"requested_at"`
	History       []HistoryDTO `json:"history,omitempty"`
}

// HistoryDTO is one audit trail entry.
type HistoryDTO struct {
	Action string `json:"action"`
	Actor  string `json:"actor"`
	At     string `json:"at"`
	Note   string `json:"note,omitempty"`
}

// CreateRequestBody is the request to submit a leave request.
type CreateRequestBody struct {
	Type        string `json:"type"`
	StartDate   string `json:"start_date"`
	EndDate     string `json:"end_date"`
	Description string `json:"description,omitempty"`
}

// RescheduleBody is the request to move an approved request.
type RescheduleBody struct {
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
}

// DenyBody optionally carries the manager's reason.
type DenyBody struct {
	Note string `json:"note,omitempty"`
}

// DefaultStartDTO is the pre-filled start date for a new request form.
type DefaultStartDTO struct {
	StartDate string `json:"start_date"`
}

// =============================================================================
// CALENDAR TYPES
// =============================================================================

// HolidayDTO represents a holiday.
type HolidayDTO struct {
	ID   string `json:"id"`
	Date string `json:"date"`
	Name string `json:"name"`
}

// CreateHolidayRequest is the request to add a holiday.
type CreateHolidayRequest struct {
	Date string `json:"date"`
	Name string `json:"name"`
}

// WorkweekDTO lists the non-working weekdays by lowercase name.
type WorkweekDTO struct {
	NonWorkingDays []string `json:"non_working_days"`
}

// =============================================================================
// ERROR TYPES
// =============================================================================

// ErrorDTO is the uniform error envelope. Conflict responses carry the
// blocking request and, when one exists, a suggested free slot.
type ErrorDTO struct {
	Error          string      `json:"error"`
	Detail         string      `json:"detail,omitempty"`
	Conflict       *RequestDTO `json:"conflict,omitempty"`
	SuggestedStart string      `json:"suggested_start,omitempty"`
	SuggestedEnd   string      `json:"suggested_end,omitempty"`
	Available      string      `json:"available,omitempty"`
	Requested      int         `json:"requested,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func toEmployeeDTO(e leave.Employee) EmployeeDTO {
	return EmployeeDTO{
		ID:           e.ID,
		Email:        e.Email,
		Name:         e.Name,
		ManagerEmail: e.ManagerEmail,
		Department:   e.Department,
		Balances: BalancesDTO{
			Vacation: e.Balances.Vacation.String(),
			Sick:     e.Balances.Sick.String(),
			Personal: e.Balances.Personal.String(),
		},
	}
}

func toRequestDTO(r leave.LeaveRequest) RequestDTO {
	dto := RequestDTO{
		ID:            string(r.ID),
		EmployeeEmail: r.EmployeeEmail,
		Type:          string(r.Type),
		StartDate:     r.StartDate.String(),
		EndDate:       r.EndDate.String(),
		TotalDays:     r.TotalDays,
		Status:        string(r.Status),
		Description:   r.Description,
		RequestedAt:   r.RequestedAt.UTC().Format(time.RFC3339),
	}
	for _, e := range r.History {
		dto.History = append(dto.History, HistoryDTO{
			Action: string(e.Action),
			Actor:  e.Actor,
			At:     e.At.UTC().Format(time.RFC3339),
			Note:   e.Note,
		})
	}
	return dto
}

func toRequestDTOs(requests []leave.LeaveRequest) []RequestDTO {
	dtos := make([]RequestDTO, len(requests))
	for i, r := range requests {
		dtos[i] = toRequestDTO(r)
	}
	return dtos
}

func toHolidayDTO(h calendar.Holiday) HolidayDTO {
	return HolidayDTO{ID: h.ID, Date: h.Date.String(), Name: h.Name}
}
