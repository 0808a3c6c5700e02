package outbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

type execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// EnqueueTx inserts a pending event using the caller's transaction so the
// event commits or rolls back with the business write that produced it.
func EnqueueTx(ctx context.Context, tx execer, eventType string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("outbox: marshal %s payload: %w", eventType, err)
	}
	_, err = tx.Exec(ctx, `INSERT INTO outbox_events (event_type, payload, status, attempts, created_at)
VALUES ($1, $2, 'pending', 0, NOW())`, eventType, body)
	return err
}

// RepositoryPort describes persistence used by the dispatcher.
type RepositoryPort interface {
	ListPending(ctx context.Context, limit int) ([]Event, error)
	MarkDelivered(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, lastError string) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// ListPending returns the oldest undelivered events. Failed rows stay in the
// sweep so transient hook outages drain on the next tick.
func (r *Repository) ListPending(ctx context.Context, limit int) ([]Event, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, event_type, payload, status, attempts, COALESCE(last_error, ''), created_at
FROM outbox_events WHERE status IN ('pending', 'failed') ORDER BY created_at LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var events []Event
	for rows.Next() {
		var event Event
		var status string
		if err := rows.Scan(&event.ID, &event.Type, &event.Payload, &status, &event.Attempts, &event.LastError, &event.CreatedAt); err != nil {
			return nil, err
		}
		event.Status = Status(status)
		events = append(events, event)
	}
	return events, rows.Err()
}

// MarkDelivered finalizes a row after the hook acknowledged it.
func (r *Repository) MarkDelivered(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox_events
SET status = 'delivered', last_error = NULL, delivered_at = NOW() WHERE id = $1`, id)
	return err
}

// MarkFailed records the delivery error and bumps the attempt counter.
func (r *Repository) MarkFailed(ctx context.Context, id int64, lastError string) error {
	_, err := r.pool.Exec(ctx, `UPDATE outbox_events
SET status = 'failed', attempts = attempts + 1, last_error = $2 WHERE id = $1`, id, lastError)
	return err
}

var _ RepositoryPort = (*Repository)(nil)
