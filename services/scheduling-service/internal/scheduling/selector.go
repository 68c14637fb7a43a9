package scheduling

import (
	"context"
	"time"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/directory"
)

// SelectLeastLoaded picks a staff member for the [start, end) window:
// among AVAILABLE staff of the required type that pass the eligibility
// checks, the one with the fewest SCHEDULED appointments on that day
// wins. Ties go to the first staff encountered with the minimal count;
// enumeration order is the store's stable created_at ordering. The
// second return is false when no candidate passes.
func SelectLeastLoaded(ctx context.Context, s Store, ownerID, serviceType string, start, end time.Time) (directory.Staff, bool, error) {
	candidates, err := s.ListAvailableStaff(ctx, ownerID, serviceType)
	if err != nil {
		return directory.Staff{}, false, err
	}

	var selected directory.Staff
	best := -1
	for _, staff := range candidates {
		eval, err := EvaluateStaff(ctx, s, ownerID, staff.ID, serviceType, start, end, "")
		if err != nil {
			return directory.Staff{}, false, err
		}
		if !eval.OK {
			continue
		}
		if best < 0 || eval.DayCount < best {
			selected = staff
			best = eval.DayCount
		}
	}
	if best < 0 {
		return directory.Staff{}, false, nil
	}
	return selected, true, nil
}
