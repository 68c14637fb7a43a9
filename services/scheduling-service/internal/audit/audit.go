// Package audit persists the activity log. Each record is written
// together with an outbox event so downstream consumers (analytics,
// notifications) see the same stream. Recording is fire-and-forget:
// failures are logged and never propagate into the scheduling path.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/sajid-hossain/apptsched/libs/db"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/appointments"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/outbox"
)

type Recorder struct {
	pool   *db.Pool
	outbox *outbox.Repository
	logger *slog.Logger
}

func NewRecorder(pool *db.Pool, outboxRepo *outbox.Repository, logger *slog.Logger) *Recorder {
	return &Recorder{pool: pool, outbox: outboxRepo, logger: logger}
}

// Record implements appointments.AuditSink.
func (r *Recorder) Record(ctx context.Context, e appointments.AuditEvent) {
	if err := r.record(ctx, e); err != nil {
		r.logger.Error("audit record failed", "action", e.Action, "appointment_id", e.AppointmentID, "err", err)
	}
}

func (r *Recorder) record(ctx context.Context, e appointments.AuditEvent) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	_, err = tx.Exec(ctx, `
		INSERT INTO activity_log (owner_id, appointment_id, staff_id, action, message)
		VALUES ($1, NULLIF($2, '')::uuid, NULLIF($3, '')::uuid, $4, $5)
	`, e.OwnerID, e.AppointmentID, e.StaffID, e.Action, e.Message)
	if err != nil {
		return err
	}

	eventType := outbox.EventAppointmentCreated
	switch e.Action {
	case "APPOINTMENT_UPDATED":
		eventType = outbox.EventAppointmentUpdated
	case "APPOINTMENT_CANCELLED":
		eventType = outbox.EventAppointmentCancelled
	case "QUEUE_ASSIGNED":
		eventType = outbox.EventQueueAssigned
	}

	payload, err := json.Marshal(map[string]any{
		"action":         e.Action,
		"message":        e.Message,
		"owner_id":       e.OwnerID,
		"appointment_id": e.AppointmentID,
		"staff_id":       e.StaffID,
		"created_at":     time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return err
	}
	if err := r.outbox.Insert(ctx, tx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   e.AppointmentID,
		EventType:     eventType,
		Payload:       payload,
	}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// Entry is the activity log row shape returned to callers.
type Entry struct {
	ID            int64  `json:"id"`
	Action        string `json:"action"`
	Message       string `json:"message"`
	AppointmentID string `json:"appointmentId,omitempty"`
	StaffID       string `json:"staffId,omitempty"`
	CreatedAt     string `json:"createdAt"`
}

func (r *Recorder) ListRecent(ctx context.Context, ownerID string, limit int) ([]Entry, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, action, message, COALESCE(appointment_id::text, ''), COALESCE(staff_id::text, ''), created_at
		FROM activity_log
		WHERE owner_id = $1
		ORDER BY id DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var createdAt time.Time
		if err := rows.Scan(&e.ID, &e.Action, &e.Message, &e.AppointmentID, &e.StaffID, &createdAt); err != nil {
			return nil, err
		}
		e.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
