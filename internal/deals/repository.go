package deals

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-dms/atlas-dms/internal/approvals"
	"github.com/atlas-dms/atlas-dms/internal/platform/db"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Deal, error)
	List(ctx context.Context, limit, offset int, status string) ([]Deal, error)
}

// TxRepository exposes the operations deal submission runs in one
// transaction.
type TxRepository interface {
	CreateDeal(ctx context.Context, deal Deal) (int64, error)
	InsertApproval(ctx context.Context, approval approvals.Approval) (int64, error)
	AppendAudit(ctx context.Context, log shared.AuditLog) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type txRepo struct {
	tx pgx.Tx
}

// WithTx wraps fn in a RepeatableRead transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &txRepo{tx: tx})
	})
}

const dealColumns = `id, lead_id, title, amount, approval_level, status, COALESCE(rejection_reason, ''), created_by, created_at, updated_at`

// Get fetches a deal.
func (r *Repository) Get(ctx context.Context, id int64) (Deal, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+dealColumns+` FROM deals WHERE id = $1`, id)
	return scanDeal(row)
}

// List returns deals with an optional status filter.
func (r *Repository) List(ctx context.Context, limit, offset int, status string) ([]Deal, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+dealColumns+` FROM deals
WHERE ($3 = '' OR status = $3) ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Deal
	for rows.Next() {
		deal, err := scanDeal(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, deal)
	}
	return result, rows.Err()
}

func (t *txRepo) CreateDeal(ctx context.Context, deal Deal) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO deals (lead_id, title, amount, approval_level, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW()) RETURNING id`,
		deal.LeadID, deal.Title, deal.Amount, deal.ApprovalLevel, string(deal.Status), deal.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertApproval(ctx context.Context, approval approvals.Approval) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO approvals (entity_type, entity_id, level, approver_role, status, created_at)
VALUES ($1, $2, $3, $4, 'pending', NOW()) RETURNING id`,
		string(approval.EntityType), approval.EntityID, approval.Level, string(approval.ApproverRole)).Scan(&id)
	return id, err
}

func (t *txRepo) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.AppendAuditTx(ctx, t.tx, log)
}

func scanDeal(row pgx.Row) (Deal, error) {
	var deal Deal
	var status string
	err := row.Scan(&deal.ID, &deal.LeadID, &deal.Title, &deal.Amount, &deal.ApprovalLevel, &status, &deal.RejectionReason, &deal.CreatedBy, &deal.CreatedAt, &deal.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Deal{}, ErrNotFound
		}
		return Deal{}, err
	}
	deal.Status = Status(status)
	return deal, nil
}

var _ RepositoryPort = (*Repository)(nil)
