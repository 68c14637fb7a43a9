package model

import "time"

// Appointment lifecycle states. CANCELLED, COMPLETED and NO_SHOW are
// terminal: no transition leads out of them.
const (
	StatusScheduled = "SCHEDULED"
	StatusWaiting   = "WAITING"
	StatusCancelled = "CANCELLED"
	StatusCompleted = "COMPLETED"
	StatusNoShow    = "NO_SHOW"
)

// Staff availability states.
const (
	StaffAvailable = "AVAILABLE"
	StaffOnLeave   = "ON_LEAVE"
)

// Appointment is the central scheduling entity. EndTime is always
// StartTime plus the service duration and is recomputed whenever the
// start or the service changes. QueuePosition is non-nil exactly while
// Status is WAITING. StaffID is nil while waiting and may be cleared by
// cancellation; completed and no-show appointments keep the staff they
// were served by.
type Appointment struct {
	ID            string
	OwnerID       string
	CustomerName  string
	StartTime     time.Time
	EndTime       time.Time
	Status        string
	QueuePosition *int
	ServiceID     string
	StaffID       *string
	CreatedAt     time.Time
}

// IsTerminal reports whether no further lifecycle transition is allowed.
func IsTerminal(status string) bool {
	switch status {
	case StatusCancelled, StatusCompleted, StatusNoShow:
		return true
	}
	return false
}

// DayRange returns the UTC calendar day containing t as a half-open
// [start, end) interval.
func DayRange(t time.Time) (time.Time, time.Time) {
	u := t.UTC()
	start := time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}
