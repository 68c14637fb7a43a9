package appointments

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/scheduling"
)

// AuditEvent is the structured record handed to the audit sink after a
// mutation commits. Delivery is fire-and-forget: sink failures must not
// roll back scheduling.
type AuditEvent struct {
	Action        string
	Message       string
	OwnerID       string
	AppointmentID string
	StaffID       string
}

// AuditSink accepts audit events. Implementations swallow their own
// errors (logging them at most).
type AuditSink interface {
	Record(ctx context.Context, e AuditEvent)
}

// Projection is the public shape of an appointment returned by every
// operation.
type Projection struct {
	ID            string
	CustomerName  string
	StartTime     time.Time
	EndTime       time.Time
	Status        string
	QueuePosition *int
	StaffID       *string
	ServiceID     string
}

// Result pairs the updated appointment with a human-readable message.
type Result struct {
	Appointment Projection
	Message     string
}

// Service is the scheduling orchestrator: the appointment lifecycle
// controller composing the eligibility evaluator, auto-assign selector,
// slot finder and waiting-queue manager. Every mutating operation runs
// inside a single store transaction and takes the per-owner lock first,
// so its check-then-write sequence is atomic with respect to concurrent
// callers and queue positions stay contiguous under racing creates.
type Service struct {
	db     scheduling.DB
	audit  AuditSink
	logger *slog.Logger
	now    func() time.Time
}

func NewService(db scheduling.DB, audit AuditSink, logger *slog.Logger) *Service {
	return &Service{db: db, audit: audit, logger: logger, now: time.Now}
}

// WithClock overrides the time source. Tests use it to pin "now" for
// slot searches and created-at tie-breaks.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

type CreateInput struct {
	CustomerName string
	ServiceID    string
	StartTime    time.Time
	StaffID      string // empty selects a staff member automatically
}

// Create resolves the service, computes the window, and either schedules
// the appointment with an eligible staff member or parks it in the
// waiting queue. Exactly one appointment row is created either way.
func (s *Service) Create(ctx context.Context, ownerID string, in CreateInput) (Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := tx.LockOwner(ctx, ownerID); err != nil {
		return Result{}, err
	}

	svc, found, err := tx.GetService(ctx, ownerID, in.ServiceID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, notFound("Service not found")
	}

	start := in.StartTime.UTC()
	end := start.Add(svc.Duration())

	var staffID *string
	status := model.StatusScheduled
	message := "Appointment scheduled successfully"

	if in.StaffID != "" {
		eval, err := scheduling.EvaluateStaff(ctx, tx, ownerID, in.StaffID, svc.StaffType, start, end, "")
		if err != nil {
			return Result{}, err
		}
		if eval.OK {
			id := in.StaffID
			staffID = &id
		} else {
			status = model.StatusWaiting
			message = eval.Reason
			if message == "" {
				message = "Staff unavailable, added to waiting queue"
			}
		}
	} else {
		staff, ok, err := scheduling.SelectLeastLoaded(ctx, tx, ownerID, svc.StaffType, start, end)
		if err != nil {
			return Result{}, err
		}
		if ok {
			id := staff.ID
			staffID = &id
		} else {
			status = model.StatusWaiting
			message = "No staff available, added to waiting queue"
		}
	}

	appt := model.Appointment{
		ID:           uuid.NewString(),
		OwnerID:      ownerID,
		CustomerName: in.CustomerName,
		StartTime:    start,
		EndTime:      end,
		Status:       status,
		ServiceID:    svc.ID,
		StaffID:      staffID,
		CreatedAt:    s.now().UTC(),
	}
	if err := tx.CreateAppointment(ctx, &appt); err != nil {
		return Result{}, err
	}
	if status == model.StatusWaiting {
		if _, err := scheduling.Renumber(ctx, tx, ownerID); err != nil {
			return Result{}, err
		}
		appt, _, err = tx.GetAppointment(ctx, ownerID, appt.ID)
		if err != nil {
			return Result{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}

	s.record(ctx, AuditEvent{
		Action:        "APPOINTMENT_CREATED",
		Message:       fmt.Sprintf("Appointment for %q created with status %s.", appt.CustomerName, appt.Status),
		OwnerID:       ownerID,
		AppointmentID: appt.ID,
		StaffID:       deref(appt.StaffID),
	})
	return Result{Appointment: project(appt), Message: message}, nil
}

// Get returns one appointment, owner-scoped.
func (s *Service) Get(ctx context.Context, ownerID, id string) (Projection, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Projection{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appt, found, err := tx.GetAppointment(ctx, ownerID, id)
	if err != nil {
		return Projection{}, err
	}
	if !found {
		return Projection{}, notFound("Appointment not found")
	}
	return project(appt), nil
}

// List returns the owner's appointments ordered by start time.
func (s *Service) List(ctx context.Context, ownerID string, f scheduling.ListFilter) ([]Projection, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appts, err := tx.ListAppointments(ctx, ownerID, f)
	if err != nil {
		return nil, err
	}
	out := make([]Projection, 0, len(appts))
	for _, a := range appts {
		out = append(out, project(a))
	}
	return out, nil
}

// ListWaiting returns the owner's waiting queue in display order.
func (s *Service) ListWaiting(ctx context.Context, ownerID string) ([]Projection, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	appts, err := scheduling.ListWaiting(ctx, tx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]Projection, 0, len(appts))
	for _, a := range appts {
		out = append(out, project(a))
	}
	return out, nil
}

type UpdateInput struct {
	CustomerName *string
	StartTime    *time.Time
	// StaffID semantics: nil leaves the assignment untouched; a pointer
	// to the empty string clears it (forcing WAITING); any other value
	// reassigns, subject to eligibility.
	StaffID *string
	Status  *string
}

// Update applies a patch to an appointment and re-runs the lifecycle
// rules: a resolved staff must pass eligibility (excluding this
// appointment's own interval) or the edit fails with Conflict; a missing
// staff forces WAITING; entering or leaving the waiting queue renumbers
// it.
func (s *Service) Update(ctx context.Context, ownerID, id string, in UpdateInput) (Result, error) {
	if in.Status != nil && !validStatus(*in.Status) {
		return Result{}, badRequest("Invalid status")
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := tx.LockOwner(ctx, ownerID); err != nil {
		return Result{}, err
	}

	appt, found, err := tx.GetAppointment(ctx, ownerID, id)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, notFound("Appointment not found")
	}

	svc, found, err := tx.GetService(ctx, ownerID, appt.ServiceID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, notFound("Service not found")
	}

	start := appt.StartTime
	if in.StartTime != nil {
		start = in.StartTime.UTC()
	}
	end := start.Add(svc.Duration())

	if in.CustomerName != nil {
		appt.CustomerName = *in.CustomerName
	}

	staffID := appt.StaffID
	if in.StaffID != nil {
		if *in.StaffID == "" {
			staffID = nil
		} else {
			v := *in.StaffID
			staffID = &v
		}
	}

	status := appt.Status
	if in.Status != nil {
		status = *in.Status
	}

	wasWaiting := appt.QueuePosition != nil
	appt.StartTime = start
	appt.EndTime = end

	if status == model.StatusCancelled {
		appt.Status = model.StatusCancelled
		appt.StaffID = nil
		appt.QueuePosition = nil
		if err := tx.UpdateAppointment(ctx, appt); err != nil {
			return Result{}, err
		}
		if wasWaiting {
			if _, err := scheduling.Renumber(ctx, tx, ownerID); err != nil {
				return Result{}, err
			}
		}
		if err := tx.Commit(ctx); err != nil {
			return Result{}, err
		}
		s.record(ctx, AuditEvent{
			Action:        "APPOINTMENT_CANCELLED",
			Message:       fmt.Sprintf("Appointment for %q cancelled.", appt.CustomerName),
			OwnerID:       ownerID,
			AppointmentID: appt.ID,
		})
		return Result{Appointment: project(appt), Message: "Appointment cancelled successfully"}, nil
	}

	if staffID == nil {
		status = model.StatusWaiting
	} else {
		eval, err := scheduling.EvaluateStaff(ctx, tx, ownerID, *staffID, svc.StaffType, start, end, appt.ID)
		if err != nil {
			return Result{}, err
		}
		if !eval.OK {
			return Result{}, conflict(eval.Reason)
		}
		status = model.StatusScheduled
	}

	appt.Status = status
	appt.StaffID = staffID
	appt.QueuePosition = nil
	if status == model.StatusWaiting {
		appt.StaffID = nil
	}
	if err := tx.UpdateAppointment(ctx, appt); err != nil {
		return Result{}, err
	}

	// Entering the queue assigns a fresh position; leaving it closes the
	// gap the old position left behind.
	if status == model.StatusWaiting || wasWaiting {
		if _, err := scheduling.Renumber(ctx, tx, ownerID); err != nil {
			return Result{}, err
		}
		appt, _, err = tx.GetAppointment(ctx, ownerID, appt.ID)
		if err != nil {
			return Result{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}

	s.record(ctx, AuditEvent{
		Action:        "APPOINTMENT_UPDATED",
		Message:       fmt.Sprintf("Appointment for %q updated to status %s.", appt.CustomerName, appt.Status),
		OwnerID:       ownerID,
		AppointmentID: appt.ID,
		StaffID:       deref(appt.StaffID),
	})
	return Result{Appointment: project(appt), Message: "Appointment updated successfully"}, nil
}

// Cancel moves any non-terminal appointment to CANCELLED, clearing its
// staff and queue position. The queue is renumbered only when the
// appointment actually held a position.
func (s *Service) Cancel(ctx context.Context, ownerID, id string) (Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := tx.LockOwner(ctx, ownerID); err != nil {
		return Result{}, err
	}

	appt, found, err := tx.GetAppointment(ctx, ownerID, id)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, notFound("Appointment not found")
	}
	if model.IsTerminal(appt.Status) {
		return Result{}, badRequest("Appointment is already finalized")
	}

	hadPosition := appt.QueuePosition != nil
	appt.Status = model.StatusCancelled
	appt.QueuePosition = nil
	appt.StaffID = nil
	if err := tx.UpdateAppointment(ctx, appt); err != nil {
		return Result{}, err
	}
	if hadPosition {
		if _, err := scheduling.Renumber(ctx, tx, ownerID); err != nil {
			return Result{}, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}

	s.record(ctx, AuditEvent{
		Action:        "APPOINTMENT_CANCELLED",
		Message:       fmt.Sprintf("Appointment for %q cancelled.", appt.CustomerName),
		OwnerID:       ownerID,
		AppointmentID: appt.ID,
	})
	return Result{Appointment: project(appt), Message: "Appointment cancelled successfully"}, nil
}

// Complete marks a SCHEDULED appointment COMPLETED.
func (s *Service) Complete(ctx context.Context, ownerID, id string) (Result, error) {
	return s.finalize(ctx, ownerID, id, model.StatusCompleted,
		"Only scheduled appointments can be marked as completed",
		"Appointment completed successfully", "APPOINTMENT_COMPLETED")
}

// MarkNoShow marks a SCHEDULED appointment NO_SHOW.
func (s *Service) MarkNoShow(ctx context.Context, ownerID, id string) (Result, error) {
	return s.finalize(ctx, ownerID, id, model.StatusNoShow,
		"Only scheduled appointments can be marked as no-show",
		"Appointment marked as no-show successfully", "APPOINTMENT_NO_SHOW")
}

func (s *Service) finalize(ctx context.Context, ownerID, id, target, precondition, message, action string) (Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := tx.LockOwner(ctx, ownerID); err != nil {
		return Result{}, err
	}

	appt, found, err := tx.GetAppointment(ctx, ownerID, id)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, notFound("Appointment not found")
	}
	if appt.Status != model.StatusScheduled {
		return Result{}, badRequest(precondition)
	}

	appt.Status = target
	if err := tx.UpdateAppointment(ctx, appt); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}

	s.record(ctx, AuditEvent{
		Action:        action,
		Message:       fmt.Sprintf("Appointment for %q moved to %s.", appt.CustomerName, target),
		OwnerID:       ownerID,
		AppointmentID: appt.ID,
		StaffID:       deref(appt.StaffID),
	})
	return Result{Appointment: project(appt), Message: message}, nil
}

// AssignFromQueue gives the staff member the earliest waiting
// appointment that fits their schedule. Candidates are tried strictly in
// queue order and the first one with a viable slot wins, even when a
// later entry would fit more tightly. The assigned appointment adopts
// the found slot, the remainder of the queue is renumbered, and an audit
// record is emitted.
func (s *Service) AssignFromQueue(ctx context.Context, ownerID, staffID string) (Result, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return Result{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()
	if err := tx.LockOwner(ctx, ownerID); err != nil {
		return Result{}, err
	}

	staff, found, err := tx.GetStaff(ctx, ownerID, staffID)
	if err != nil {
		return Result{}, err
	}
	if !found {
		return Result{}, notFound("Staff not found")
	}
	if staff.AvailabilityStatus != model.StaffAvailable {
		return Result{}, conflict("Staff is not available")
	}

	waiting, err := tx.ListWaitingByPosition(ctx, ownerID)
	if err != nil {
		return Result{}, err
	}

	now := s.now().UTC()
	var assigned *model.Appointment
	var slot scheduling.Slot
	for i := range waiting {
		candidate := waiting[i]
		svc, found, err := tx.GetService(ctx, ownerID, candidate.ServiceID)
		if err != nil {
			return Result{}, err
		}
		if !found || svc.StaffType != staff.ServiceType {
			continue
		}
		found = false
		slot, found, err = scheduling.FindNextSlot(ctx, tx, ownerID, staff.ID, candidate.StartTime, now, svc.Duration(), staff.DailyCapacity)
		if err != nil {
			return Result{}, err
		}
		if found {
			assigned = &candidate
			break
		}
	}
	if assigned == nil {
		return Result{}, conflict("No eligible waiting appointment for this staff")
	}

	assigned.Status = model.StatusScheduled
	assigned.StaffID = &staff.ID
	assigned.QueuePosition = nil
	assigned.StartTime = slot.Start
	assigned.EndTime = slot.End
	if err := tx.UpdateAppointment(ctx, *assigned); err != nil {
		return Result{}, err
	}
	if _, err := scheduling.Renumber(ctx, tx, ownerID); err != nil {
		return Result{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Result{}, err
	}

	s.record(ctx, AuditEvent{
		Action:        "QUEUE_ASSIGNED",
		Message:       fmt.Sprintf("Appointment for %q auto-assigned to %s.", assigned.CustomerName, staff.Name),
		OwnerID:       ownerID,
		AppointmentID: assigned.ID,
		StaffID:       staff.ID,
	})
	return Result{Appointment: project(*assigned), Message: "Assigned earliest eligible appointment"}, nil
}

// StaffLoad summarizes one staff member's booking load for a day.
type StaffLoad struct {
	ID             string
	Name           string
	CurrentLoad    int
	DailyCapacity  int
	AvailableSlots int
	IsAtCapacity   bool
}

// AvailableStaffWithLoad lists AVAILABLE staff matching the service's
// required type together with their SCHEDULED count for the target day.
// Pure read; never mutates.
func (s *Service) AvailableStaffWithLoad(ctx context.Context, ownerID, serviceID string, date *time.Time) ([]StaffLoad, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	svc, found, err := tx.GetService(ctx, ownerID, serviceID)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, notFound("Service not found")
	}

	target := s.now().UTC()
	if date != nil {
		target = date.UTC()
	}
	dayStart, dayEnd := model.DayRange(target)

	staffList, err := tx.ListAvailableStaff(ctx, ownerID, svc.StaffType)
	if err != nil {
		return nil, err
	}
	out := make([]StaffLoad, 0, len(staffList))
	for _, staff := range staffList {
		count, err := tx.CountScheduled(ctx, ownerID, staff.ID, dayStart, dayEnd)
		if err != nil {
			return nil, err
		}
		out = append(out, StaffLoad{
			ID:             staff.ID,
			Name:           staff.Name,
			CurrentLoad:    count,
			DailyCapacity:  staff.DailyCapacity,
			AvailableSlots: staff.DailyCapacity - count,
			IsAtCapacity:   count >= staff.DailyCapacity,
		})
	}
	return out, nil
}

func (s *Service) record(ctx context.Context, e AuditEvent) {
	if s.audit == nil {
		return
	}
	s.audit.Record(ctx, e)
}

func project(a model.Appointment) Projection {
	return Projection{
		ID:            a.ID,
		CustomerName:  a.CustomerName,
		StartTime:     a.StartTime,
		EndTime:       a.EndTime,
		Status:        a.Status,
		QueuePosition: a.QueuePosition,
		StaffID:       a.StaffID,
		ServiceID:     a.ServiceID,
	}
}

func validStatus(s string) bool {
	switch s {
	case model.StatusScheduled, model.StatusWaiting, model.StatusCancelled, model.StatusCompleted, model.StatusNoShow:
		return true
	}
	return false
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
