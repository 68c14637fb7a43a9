// Package inbox deduplicates consumed events by event id. The unique
// insert is the idempotency check: a duplicate delivery hits 23505 and
// is skipped.
package inbox

import (
	"context"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/sajid-hossain/apptsched/libs/db"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

// Record returns true when the event is new, false when it was seen
// before.
func (r *Repository) Record(ctx context.Context, eventID string, eventType string) (bool, error) {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO inbox_events (event_id, event_type)
		VALUES ($1, $2)
	`, eventID, eventType)
	if err == nil {
		return true, nil
	}
	if pgErr, ok := err.(*pgconn.PgError); ok && pgErr.Code == "23505" {
		return false, nil
	}
	return false, err
}
