/*
conflict.go - Overlap detection and next-slot suggestion

PURPOSE:
  Decides whether a proposed date range collides with an employee's
  existing Pending/Approved requests, and when it does, finds the
  nearest later range of equal calendar-day span that is free.

OVERLAP TEST:
  Inclusive ranges overlap iff start <= other.end AND end >= other.start.
  Only requests in an active state (Pending, Approved) count; Denied
  and Withdrawn requests never block a new one.

SUGGESTION WALK:
  SuggestNextSlot preserves the elapsed calendar-day span of the
  original range (not its working-day count) and slides the start
  forward one day at a time until the range is free. The walk carries
  an explicit cap; past it the caller gets ErrNoSlotAvailable instead
  of an unbounded loop.
*/
package leave

import "github.com/warp/leave-engine/calendar"

// suggestSlotCap bounds the suggestion walk to ten years of day-steps.
const suggestSlotCap = 3650

// FindOverlap returns the first active request of employeeEmail whose
// range shares at least one calendar date with [start, end], or nil if
// the range is free. Requests with other owners or inactive statuses
// are ignored.
func FindOverlap(employeeEmail string, start, end calendar.Date, requests []LeaveRequest) *LeaveRequest {
	for i := range requests {
		r := &requests[i]
		if r.EmployeeEmail != employeeEmail || !r.Status.Active() {
			continue
		}
		if r.Overlaps(start, end) {
			return r
		}
	}
	return nil
}

// findOverlapExcluding is FindOverlap minus one request id. Used by
// reschedule, where the moved request must not conflict with itself.
func findOverlapExcluding(employeeEmail string, start, end calendar.Date, requests []LeaveRequest, exclude RequestID) *LeaveRequest {
	for i := range requests {
		r := &requests[i]
		if r.ID == exclude || r.EmployeeEmail != employeeEmail || !r.Status.Active() {
			continue
		}
		if r.Overlaps(start, end) {
			return r
		}
	}
	return nil
}

// SuggestNextSlot finds the nearest range after [start, end] with the
// same calendar-day span that does not overlap any of employeeEmail's
// active requests. Returns ErrNoSlotAvailable past the search cap.
func SuggestNextSlot(employeeEmail string, start, end calendar.Date, requests []LeaveRequest) (calendar.Date, calendar.Date, error) {
	span := calendar.DaysBetween(start, end)
	for step := 1; step <= suggestSlotCap; step++ {
		newStart := start.AddDays(step)
		newEnd := newStart.AddDays(span)
		if FindOverlap(employeeEmail, newStart, newEnd, requests) == nil {
			return newStart, newEnd, nil
		}
	}
	return calendar.Date{}, calendar.Date{}, ErrNoSlotAvailable
}
