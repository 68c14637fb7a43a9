package directory

import "time"

// Service is a bookable offering owned by an account. StaffType is a
// free-text tag that must match a staff member's ServiceType for that
// staff member to be eligible.
type Service struct {
	ID              string
	OwnerID         string
	Name            string
	DurationMinutes int
	StaffType       string
}

// Staff is a schedulable resource. DailyCapacity bounds the number of
// SCHEDULED appointments whose start falls within one UTC calendar day.
type Staff struct {
	ID                 string
	OwnerID            string
	Name               string
	ServiceType        string
	DailyCapacity      int
	AvailabilityStatus string
	CreatedAt          time.Time
}

// Duration returns the service length as a time.Duration.
func (s Service) Duration() time.Duration {
	return time.Duration(s.DurationMinutes) * time.Minute
}
