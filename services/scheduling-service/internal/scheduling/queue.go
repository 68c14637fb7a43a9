package scheduling

import (
	"context"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
)

// Renumber rewrites queue positions for the owner's WAITING appointments
// to their 1-based rank in (start asc, created_at asc) order, leaving a
// dense 1..N sequence with no gaps or duplicates. It must run inside the
// same transaction as any change to the WAITING set's membership; the
// store's row locking serializes concurrent renumbers per owner.
// Returns the queue length. Calling it twice without an intervening
// mutation is a no-op.
func Renumber(ctx context.Context, s Store, ownerID string) (int, error) {
	waiting, err := s.ListWaitingForRenumber(ctx, ownerID)
	if err != nil {
		return 0, err
	}
	for i, appt := range waiting {
		pos := i + 1
		if appt.QueuePosition != nil && *appt.QueuePosition == pos {
			continue
		}
		if err := s.SetQueuePosition(ctx, appt.ID, &pos); err != nil {
			return 0, err
		}
	}
	return len(waiting), nil
}

// ListWaiting returns the owner's waiting queue in display order
// (queue position ascending, then start).
func ListWaiting(ctx context.Context, s Store, ownerID string) ([]model.Appointment, error) {
	return s.ListWaitingByPosition(ctx, ownerID)
}
