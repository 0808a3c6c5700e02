package leads

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, lead Lead) (int64, error)
	Get(ctx context.Context, id int64) (Lead, error)
	List(ctx context.Context, limit, offset int, status string) ([]Lead, error)
	Update(ctx context.Context, lead Lead) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a lead and returns its id.
func (r *Repository) Create(ctx context.Context, lead Lead) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO leads (name, phone, email, interest_level, status, workflow_step, notes, assigned_to, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, 0), NOW(), NOW()) RETURNING id`,
		lead.Name, lead.Phone, lead.Email, string(lead.InterestLevel), string(lead.Status), lead.WorkflowStep, lead.Notes, lead.AssignedTo).Scan(&id)
	return id, err
}

// Get fetches a lead by id.
func (r *Repository) Get(ctx context.Context, id int64) (Lead, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, name, phone, email, interest_level, status, workflow_step, notes, COALESCE(assigned_to, 0), created_at, updated_at
FROM leads WHERE id = $1`, id)
	return scanLead(row)
}

// List returns leads ordered by recency.
func (r *Repository) List(ctx context.Context, limit, offset int, status string) ([]Lead, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, phone, email, interest_level, status, workflow_step, notes, COALESCE(assigned_to, 0), created_at, updated_at
FROM leads WHERE ($3 = '' OR status = $3) ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Lead
	for rows.Next() {
		lead, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, lead)
	}
	return result, rows.Err()
}

// Update persists mutable lead fields.
func (r *Repository) Update(ctx context.Context, lead Lead) error {
	tag, err := r.pool.Exec(ctx, `UPDATE leads SET name=$2, phone=$3, email=$4, interest_level=$5, status=$6, workflow_step=$7, notes=$8, assigned_to=NULLIF($9, 0), updated_at=$10
WHERE id=$1`, lead.ID, lead.Name, lead.Phone, lead.Email, string(lead.InterestLevel), string(lead.Status), lead.WorkflowStep, lead.Notes, lead.AssignedTo, time.Now().UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func scanLead(row pgx.Row) (Lead, error) {
	var lead Lead
	var interest, status string
	err := row.Scan(&lead.ID, &lead.Name, &lead.Phone, &lead.Email, &interest, &status, &lead.WorkflowStep, &lead.Notes, &lead.AssignedTo, &lead.CreatedAt, &lead.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Lead{}, ErrNotFound
		}
		return Lead{}, err
	}
	lead.InterestLevel = InterestLevel(interest)
	lead.Status = Status(status)
	return lead, nil
}

var _ RepositoryPort = (*Repository)(nil)
