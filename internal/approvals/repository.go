package approvals

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-dms/atlas-dms/internal/platform/db"
	"github.com/atlas-dms/atlas-dms/internal/rbac"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Approval, error)
	CountPending(ctx context.Context, roles []rbac.Role) (int64, error)
}

// TxRepository exposes the operations a decision runs in one transaction.
type TxRepository interface {
	// Resolve flips a pending approval to the given terminal status. It
	// reports false when the row was no longer pending, which callers map
	// to a conflict.
	Resolve(ctx context.Context, id int64, status Status, decidedBy int64, reason string) (bool, error)
	InsertApproval(ctx context.Context, approval Approval) (int64, error)
	SetDealStatus(ctx context.Context, dealID int64, status, reason string) error
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

// Get fetches one approval row.
func (r *Repository) Get(ctx context.Context, id int64) (Approval, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, entity_type, entity_id, level, approver_role, status, COALESCE(decided_by, 0), COALESCE(decided_at, 'epoch'::timestamptz), COALESCE(reason, ''), created_at
FROM approvals WHERE id = $1`, id)
	var a Approval
	var entityType, role, status string
	err := row.Scan(&a.ID, &entityType, &a.EntityID, &a.Level, &role, &status, &a.DecidedBy, &a.DecidedAt, &a.Reason, &a.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Approval{}, ErrNotFound
		}
		return Approval{}, err
	}
	a.EntityType = EntityType(entityType)
	a.ApproverRole = rbac.Role(role)
	a.Status = Status(status)
	return a, nil
}

// CountPending counts pending approvals whose approver role is in roles.
func (r *Repository) CountPending(ctx context.Context, roles []rbac.Role) (int64, error) {
	if len(roles) == 0 {
		return 0, nil
	}
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		names = append(names, string(role))
	}
	var count int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM approvals WHERE status = 'pending' AND approver_role = ANY($1)`, names).Scan(&count)
	return count, err
}

// Resolve guards the pending precondition inside the UPDATE itself so a
// concurrent decision loses cleanly with zero rows affected.
func (t *txRepo) Resolve(ctx context.Context, id int64, status Status, decidedBy int64, reason string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE approvals SET status=$2, decided_by=$3, decided_at=$4, reason=NULLIF($5, '')
WHERE id=$1 AND status='pending'`, id, string(status), decidedBy, time.Now().UTC(), reason)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txRepo) InsertApproval(ctx context.Context, approval Approval) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO approvals (entity_type, entity_id, level, approver_role, status, created_at)
VALUES ($1, $2, $3, $4, 'pending', NOW()) RETURNING id`,
		string(approval.EntityType), approval.EntityID, approval.Level, string(approval.ApproverRole)).Scan(&id)
	return id, err
}

func (t *txRepo) SetDealStatus(ctx context.Context, dealID int64, status, reason string) error {
	tag, err := t.tx.Exec(ctx, `UPDATE deals SET status=$2, rejection_reason=NULLIF($3, ''), updated_at=NOW() WHERE id=$1`, dealID, status, reason)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (t *txRepo) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.AppendAuditTx(ctx, t.tx, log)
}

var _ RepositoryPort = (*Repository)(nil)
