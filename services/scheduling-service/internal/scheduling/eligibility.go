package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
)

// Evaluation is the outcome of an eligibility check. DayCount is the
// staff's SCHEDULED count for the day containing the requested start; it
// is only meaningful when OK is true (the selector uses it to pick the
// least-loaded candidate).
type Evaluation struct {
	OK       bool
	Reason   string
	DayCount int
}

func ineligible(reason string) Evaluation {
	return Evaluation{OK: false, Reason: reason}
}

// EvaluateStaff decides whether the staff member may be booked for the
// [start, end) window. Checks run in order and short-circuit on the
// first failure: existence, availability, service type match, daily
// capacity, interval overlap. excludeID skips one appointment in the
// overlap check so edits do not collide with themselves. The evaluator
// performs no writes.
func EvaluateStaff(ctx context.Context, s Store, ownerID, staffID, requiredType string, start, end time.Time, excludeID string) (Evaluation, error) {
	staff, found, err := s.GetStaff(ctx, ownerID, staffID)
	if err != nil {
		return Evaluation{}, err
	}
	if !found {
		return ineligible("Staff not found"), nil
	}
	if staff.AvailabilityStatus != model.StaffAvailable {
		return ineligible("Staff is on leave"), nil
	}
	if staff.ServiceType != requiredType {
		return ineligible("Staff service type mismatch"), nil
	}

	dayStart, dayEnd := model.DayRange(start)
	count, err := s.CountScheduled(ctx, ownerID, staff.ID, dayStart, dayEnd)
	if err != nil {
		return Evaluation{}, err
	}
	if count >= staff.DailyCapacity {
		return ineligible(fmt.Sprintf("%s already has %d appointments today.", staff.Name, count)), nil
	}

	overlap, err := s.ScheduledOverlapExists(ctx, ownerID, staff.ID, start, end, excludeID)
	if err != nil {
		return Evaluation{}, err
	}
	if overlap {
		return ineligible("This staff member already has an appointment at this time."), nil
	}

	return Evaluation{OK: true, DayCount: count}, nil
}
