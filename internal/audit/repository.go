package audit

import (
	"context"
	"encoding/json"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Entry is one audit_logs row as returned to readers.
type Entry struct {
	ID         int64
	ActorID    int64
	Action     string
	Entity     string
	EntityID   string
	Changes    map[string]any
	OccurredAt time.Time
}

// Filter narrows an audit listing.
type Filter struct {
	Entity   string
	EntityID string
	Action   string
	ActorID  int64
	Limit    int
	Offset   int
}

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	List(ctx context.Context, filter Filter) ([]Entry, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// List returns audit rows, newest first.
func (r *Repository) List(ctx context.Context, filter Filter) ([]Entry, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, actor_id, action, entity, entity_id, changes, occurred_at
FROM audit_logs
WHERE ($1 = '' OR entity = $1)
  AND ($2 = '' OR entity_id = $2)
  AND ($3 = '' OR action = $3)
  AND ($4 = 0 OR actor_id = $4)
ORDER BY occurred_at DESC LIMIT $5 OFFSET $6`,
		filter.Entity, filter.EntityID, filter.Action, filter.ActorID, filter.Limit, filter.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var entries []Entry
	for rows.Next() {
		var entry Entry
		var changes []byte
		if err := rows.Scan(&entry.ID, &entry.ActorID, &entry.Action, &entry.Entity, &entry.EntityID, &changes, &entry.OccurredAt); err != nil {
			return nil, err
		}
		if len(changes) > 0 {
			if err := json.Unmarshal(changes, &entry.Changes); err != nil {
				return nil, err
			}
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

var _ RepositoryPort = (*Repository)(nil)
