package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/sajid-hossain/apptsched/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}

type Service struct {
	ID              string
	OwnerID         string
	Name            string
	DurationMinutes int
	StaffType       string
	CreatedAt       time.Time
}

func (r *Repository) CreateService(ctx context.Context, ownerID, name string, durationMinutes int, staffType string) (string, error) {
	id := uuid.NewString()
	_, err := r.pool.Exec(ctx, `
		INSERT INTO services (id, owner_id, name, duration_minutes, staff_type)
		VALUES ($1, $2, $3, $4, $5)
	`, id, ownerID, name, durationMinutes, staffType)
	if err != nil {
		return "", err
	}
	return id, nil
}

func (r *Repository) ListServices(ctx context.Context, ownerID string, limit int) ([]Service, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_id::text, name, duration_minutes, staff_type, created_at
		FROM services
		WHERE owner_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Service
	for rows.Next() {
		var s Service
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.DurationMinutes, &s.StaffType, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

func (r *Repository) GetService(ctx context.Context, ownerID, id string) (Service, error) {
	var s Service
	err := r.pool.QueryRow(ctx, `
		SELECT id::text, owner_id::text, name, duration_minutes, staff_type, created_at
		FROM services
		WHERE id = $1 AND owner_id = $2
	`, id, ownerID).Scan(&s.ID, &s.OwnerID, &s.Name, &s.DurationMinutes, &s.StaffType, &s.CreatedAt)
	return s, err
}

type Staff struct {
	ID                 string
	OwnerID            string
	Name               string
	ServiceType        string
	DailyCapacity      int
	AvailabilityStatus string
	CreatedAt          time.Time
}

// CreateStaff inserts within the caller's transaction so the outbox
// event rides the same commit.
func (r *Repository) CreateStaff(ctx context.Context, tx pgx.Tx, ownerID, name, serviceType string, dailyCapacity int) (string, error) {
	id := uuid.NewString()
	_, err := tx.Exec(ctx, `
		INSERT INTO staff (id, owner_id, name, service_type, daily_capacity, availability_status)
		VALUES ($1, $2, $3, $4, $5, 'AVAILABLE')
	`, id, ownerID, name, serviceType, dailyCapacity)
	if err != nil {
		return "", err
	}
	return id, nil
}

type StaffPatch struct {
	Name               *string
	ServiceType        *string
	DailyCapacity      *int
	AvailabilityStatus *string
}

func (r *Repository) GetStaffForUpdate(ctx context.Context, tx pgx.Tx, ownerID, id string) (Staff, error) {
	var s Staff
	err := tx.QueryRow(ctx, `
		SELECT id::text, owner_id::text, name, service_type, daily_capacity, availability_status, created_at
		FROM staff
		WHERE id = $1 AND owner_id = $2
		FOR UPDATE
	`, id, ownerID).Scan(&s.ID, &s.OwnerID, &s.Name, &s.ServiceType, &s.DailyCapacity, &s.AvailabilityStatus, &s.CreatedAt)
	return s, err
}

func (r *Repository) UpdateStaff(ctx context.Context, tx pgx.Tx, s Staff) error {
	_, err := tx.Exec(ctx, `
		UPDATE staff
		SET name = $2,
			service_type = $3,
			daily_capacity = $4,
			availability_status = $5,
			updated_at = now()
		WHERE id = $1
	`, s.ID, s.Name, s.ServiceType, s.DailyCapacity, s.AvailabilityStatus)
	return err
}

func (r *Repository) ListStaff(ctx context.Context, ownerID string, limit int) ([]Staff, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id::text, owner_id::text, name, service_type, daily_capacity, availability_status, created_at
		FROM staff
		WHERE owner_id = $1
		ORDER BY created_at ASC
		LIMIT $2
	`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Staff
	for rows.Next() {
		var s Staff
		if err := rows.Scan(&s.ID, &s.OwnerID, &s.Name, &s.ServiceType, &s.DailyCapacity, &s.AvailabilityStatus, &s.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
