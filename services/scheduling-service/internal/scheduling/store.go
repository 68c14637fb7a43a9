package scheduling

import (
	"context"
	"time"

	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/directory"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
)

// ListFilter narrows appointment listings. Zero values mean "no filter".
// Day restricts to appointments starting within one UTC calendar day.
type ListFilter struct {
	StaffID string
	Status  string
	Day     *time.Time
}

// Store is the repository contract the engine runs against. A Store
// handed to the engine is expected to be a single transaction (or the
// in-memory equivalent) so that every eligibility/capacity/overlap check
// and the write it guards are atomic as a unit. Directory records are
// read-only through this interface; appointment rows are owned by the
// scheduling core and always owner-scoped.
type Store interface {
	// LockOwner serializes mutating operations per owner for the rest of
	// the transaction. Row locks cannot do this on their own: they cover
	// only rows that already exist, so two transactions inserting into
	// the same owner's waiting queue would never contend. Implementations
	// whose transactions already run one at a time may no-op.
	LockOwner(ctx context.Context, ownerID string) error

	// Directory reads.
	GetService(ctx context.Context, ownerID, serviceID string) (directory.Service, bool, error)
	GetStaff(ctx context.Context, ownerID, staffID string) (directory.Staff, bool, error)
	// ListAvailableStaff returns AVAILABLE staff of the given service
	// type in a stable order (created_at ascending).
	ListAvailableStaff(ctx context.Context, ownerID, serviceType string) ([]directory.Staff, error)

	// Appointment reads.
	GetAppointment(ctx context.Context, ownerID, id string) (model.Appointment, bool, error)
	ListAppointments(ctx context.Context, ownerID string, f ListFilter) ([]model.Appointment, error)
	// CountScheduled counts SCHEDULED appointments for the staff whose
	// start falls within [from, to).
	CountScheduled(ctx context.Context, ownerID, staffID string, from, to time.Time) (int, error)
	// ScheduledOverlapExists reports whether any SCHEDULED appointment
	// for the staff overlaps [start, end), excluding excludeID when
	// non-empty.
	ScheduledOverlapExists(ctx context.Context, ownerID, staffID string, start, end time.Time, excludeID string) (bool, error)
	// ListScheduledForStaff returns the staff's SCHEDULED appointments
	// starting within [from, to), ordered by start ascending.
	ListScheduledForStaff(ctx context.Context, ownerID, staffID string, from, to time.Time) ([]model.Appointment, error)
	// ListWaitingForRenumber returns the owner's WAITING appointments
	// ordered by (start asc, created_at asc), locked for the duration
	// of the transaction.
	ListWaitingForRenumber(ctx context.Context, ownerID string) ([]model.Appointment, error)
	// ListWaitingByPosition returns the owner's WAITING appointments
	// ordered by (queue_position asc, start asc) for display.
	ListWaitingByPosition(ctx context.Context, ownerID string) ([]model.Appointment, error)

	// Appointment writes.
	CreateAppointment(ctx context.Context, appt *model.Appointment) error
	UpdateAppointment(ctx context.Context, appt model.Appointment) error
	SetQueuePosition(ctx context.Context, id string, pos *int) error
}

// Tx is a Store whose reads and writes commit or roll back as a unit.
type Tx interface {
	Store
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// DB opens transactions. Each orchestrator operation runs inside exactly
// one transaction so no caller can observe an intermediate state between
// an eligibility check and the write it guards.
type DB interface {
	Begin(ctx context.Context) (Tx, error)
}
