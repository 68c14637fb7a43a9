// Package storage implements the scheduling store on Postgres via pgx.
//
// Concurrency discipline: every orchestrator operation runs inside one
// transaction. Mutating operations first take a per-owner advisory lock
// (LockOwner), which serializes check-then-write sequences for that
// owner, including queue renumbering against concurrent inserts of new
// WAITING rows. GetStaff additionally takes a row lock on the staff
// record. The appointments table carries an exclusion constraint over
// (staff_id, tstzrange(start_time, end_time)) for SCHEDULED rows as a
// storage-level backstop: a write that races past the checks surfaces
// as a conflict (IsConflict).
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sajid-hossain/apptsched/libs/db"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/directory"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/model"
	"github.com/sajid-hossain/apptsched/services/scheduling-service/internal/scheduling"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (scheduling.Tx, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &txStore{tx: tx}, nil
}

// IsConflict reports whether err is the overlap exclusion constraint
// firing (Postgres 23P01).
func IsConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23P01"
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type txStore struct {
	tx pgx.Tx
}

func (t *txStore) Commit(ctx context.Context) error   { return t.tx.Commit(ctx) }
func (t *txStore) Rollback(ctx context.Context) error { return t.tx.Rollback(ctx) }

// LockOwner takes a transaction-scoped advisory lock keyed on the owner.
// FOR UPDATE on the WAITING rows is not enough to serialize renumbering:
// it only locks rows that already exist, so two transactions each
// inserting a new WAITING row for the same owner would both renumber
// from their own snapshot and both commit position 1. The advisory lock
// makes mutations for one owner mutually exclusive.
func (t *txStore) LockOwner(ctx context.Context, ownerID string) error {
	_, err := t.tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, ownerID)
	return err
}

func (t *txStore) GetService(ctx context.Context, ownerID, serviceID string) (directory.Service, bool, error) {
	var s directory.Service
	err := t.tx.QueryRow(ctx, `
		SELECT id::text, owner_id::text, name, duration_minutes, staff_type
		FROM services
		WHERE id = $1 AND owner_id = $2
	`, serviceID, ownerID).Scan(&s.ID, &s.OwnerID, &s.Name, &s.DurationMinutes, &s.StaffType)
	if errors.Is(err, pgx.ErrNoRows) {
		return directory.Service{}, false, nil
	}
	if err != nil {
		return directory.Service{}, false, err
	}
	return s, true, nil
}

func (t *txStore) GetStaff(ctx context.Context, ownerID, staffID string) (directory.Staff, bool, error) {
	var s directory.Staff
	err := t.tx.QueryRow(ctx, `
		SELECT id::text, owner_id::text, name, service_type, daily_capacity, availability_status, created_at
		FROM staff
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE
	`, staffID, ownerID).Scan(&s.ID, &s.OwnerID, &s.Name, &s.ServiceType, &s.DailyCapacity, &s.AvailabilityStatus, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return directory.Staff{}, false, nil
	}
	if err != nil {
		return directory.Staff{}, false, err
	}
	return s, true, nil
}

func (t *txStore) ListAvailableStaff(ctx context.Context, ownerID, serviceType string) ([]directory.Staff, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT id::text, owner_id::text, name, service_type, daily_capacity, availability_status, created_at
		FROM staff
		WHERE owner_id = $1 AND service_type = $2 AND availability_status = 'AVAILABLE'
		ORDER BY created_at ASC, id ASC
	`, ownerID, serviceType)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []directory.Staff
	for rows.Next() {
		var s directory.Staff
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.ServiceType, &s.DailyCapacity, &s.AvailabilityStatus, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

const appointmentColumns = `
	id::text, owner_id::text, customer_name, start_time, end_time, status,
	queue_position, service_id::text, staff_id::text, created_at`

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	err := row.Scan(
		&a.ID,
		&a.OwnerID,
		&a.CustomerName,
		&a.StartTime,
		&a.EndTime,
		&a.Status,
		&a.QueuePosition,
		&a.ServiceID,
		&a.StaffID,
		&a.CreatedAt,
	)
	return a, err
}

func (t *txStore) GetAppointment(ctx context.Context, ownerID, id string) (model.Appointment, bool, error) {
	a, err := scanAppointment(t.tx.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE
	`, id, ownerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, false, nil
	}
	if err != nil {
		return model.Appointment{}, false, err
	}
	return a, true, nil
}

func (t *txStore) ListAppointments(ctx context.Context, ownerID string, f scheduling.ListFilter) ([]model.Appointment, error) {
	query := `
		SELECT ` + appointmentColumns + `
		FROM appointments
		WHERE owner_id = $1`
	args := []any{ownerID}
	if f.StaffID != "" {
		args = append(args, f.StaffID)
		query += fmt.Sprintf(" AND staff_id = $%d", len(args))
	}
	if f.Status != "" {
		args = append(args, f.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if f.Day != nil {
		dayStart, dayEnd := model.DayRange(*f.Day)
		args = append(args, dayStart, dayEnd)
		query += fmt.Sprintf(" AND start_time >= $%d AND start_time < $%d", len(args)-1, len(args))
	}
	query += " ORDER BY start_time ASC"

	rows, err := t.tx.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (t *txStore) CountScheduled(ctx context.Context, ownerID, staffID string, from, to time.Time) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
		SELECT count(*)
		FROM appointments
		WHERE owner_id = $1 AND staff_id = $2 AND status = 'SCHEDULED'
			AND start_time >= $3 AND start_time < $4
	`, ownerID, staffID, from, to).Scan(&n)
	return n, err
}

func (t *txStore) ScheduledOverlapExists(ctx context.Context, ownerID, staffID string, start, end time.Time, excludeID string) (bool, error) {
	var exists bool
	err := t.tx.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM appointments
			WHERE owner_id = $1 AND staff_id = $2 AND status = 'SCHEDULED'
				AND start_time < $4 AND end_time > $3
				AND ($5 = '' OR id::text <> $5)
		)
	`, ownerID, staffID, start, end, excludeID).Scan(&exists)
	return exists, err
}

func (t *txStore) ListScheduledForStaff(ctx context.Context, ownerID, staffID string, from, to time.Time) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE owner_id = $1 AND staff_id = $2 AND status = 'SCHEDULED'
			AND start_time >= $3 AND start_time < $4
		ORDER BY start_time ASC
	`, ownerID, staffID, from, to)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (t *txStore) ListWaitingForRenumber(ctx context.Context, ownerID string) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE owner_id = $1 AND status = 'WAITING'
		ORDER BY start_time ASC, created_at ASC
		FOR UPDATE
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (t *txStore) ListWaitingByPosition(ctx context.Context, ownerID string) ([]model.Appointment, error) {
	rows, err := t.tx.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE owner_id = $1 AND status = 'WAITING'
		ORDER BY queue_position ASC NULLS LAST, start_time ASC
	`, ownerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectAppointments(rows)
}

func (t *txStore) CreateAppointment(ctx context.Context, appt *model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, owner_id, customer_name, start_time, end_time, status, queue_position, service_id, staff_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, appt.ID, appt.OwnerID, appt.CustomerName, appt.StartTime, appt.EndTime, appt.Status,
		appt.QueuePosition, appt.ServiceID, appt.StaffID, appt.CreatedAt)
	return err
}

func (t *txStore) UpdateAppointment(ctx context.Context, appt model.Appointment) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET customer_name = $2,
			start_time = $3,
			end_time = $4,
			status = $5,
			queue_position = $6,
			staff_id = $7
		WHERE id = $1
	`, appt.ID, appt.CustomerName, appt.StartTime, appt.EndTime, appt.Status, appt.QueuePosition, appt.StaffID)
	return err
}

func (t *txStore) SetQueuePosition(ctx context.Context, id string, pos *int) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET queue_position = $2
		WHERE id = $1
	`, id, pos)
	return err
}

func collectAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}
