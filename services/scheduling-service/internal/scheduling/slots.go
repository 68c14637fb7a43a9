package scheduling

import (
	"context"
	"time"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
)

// Slot is a contiguous [Start, End) interval within one UTC day during
// which a staff member has no conflicting booking.
type Slot struct {
	Start time.Time
	End   time.Time
}

// NextSlot finds the earliest interval of length duration starting at or
// after candidateStart that does not overlap any of the given bookings
// and does not cross the end of candidateStart's UTC day. bookings must
// be the day's SCHEDULED appointments for one staff member, sorted by
// start ascending; they are non-overlapping by invariant, so a single
// greedy sweep is sufficient. Returns false when the day is already at
// dailyCapacity or no interval fits before midnight.
//
// now is a parameter rather than a clock read so the search stays
// deterministic under test.
func NextSlot(bookings []model.Appointment, candidateStart, now time.Time, duration time.Duration, dailyCapacity int) (Slot, bool) {
	if now.After(candidateStart) {
		candidateStart = now
	}
	dayStart, dayEnd := model.DayRange(candidateStart)
	if candidateStart.Before(dayStart) {
		candidateStart = dayStart
	}

	if len(bookings) >= dailyCapacity {
		return Slot{}, false
	}

	for _, b := range bookings {
		if !candidateStart.Before(b.EndTime) {
			// Booking lies entirely before the candidate.
			continue
		}
		candidateEnd := candidateStart.Add(duration)
		if !candidateEnd.After(b.StartTime) {
			return Slot{Start: candidateStart, End: candidateEnd}, true
		}
		candidateStart = b.EndTime
	}

	candidateEnd := candidateStart.Add(duration)
	if candidateEnd.After(dayEnd) {
		return Slot{}, false
	}
	return Slot{Start: candidateStart, End: candidateEnd}, true
}

// FindNextSlot loads the staff's SCHEDULED bookings for the day
// containing max(earliest, now) and runs the greedy sweep over them.
func FindNextSlot(ctx context.Context, s Store, ownerID, staffID string, earliest, now time.Time, duration time.Duration, dailyCapacity int) (Slot, bool, error) {
	candidate := earliest
	if now.After(candidate) {
		candidate = now
	}
	dayStart, dayEnd := model.DayRange(candidate)

	bookings, err := s.ListScheduledForStaff(ctx, ownerID, staffID, dayStart, dayEnd)
	if err != nil {
		return Slot{}, false, err
	}
	slot, ok := NextSlot(bookings, candidate, now, duration, dailyCapacity)
	return slot, ok, nil
}
