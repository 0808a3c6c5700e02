package oem

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-dms/atlas-dms/internal/outbox"
	"github.com/atlas-dms/atlas-dms/internal/platform/db"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (OEM, error)
	List(ctx context.Context, limit, offset int) ([]OEM, error)
	SetStatus(ctx context.Context, id int64, status Status) (bool, error)
}

// TxRepository exposes the writes OEM onboarding runs in one transaction.
type TxRepository interface {
	CreateOEM(ctx context.Context, item OEM) (int64, error)
	InsertContact(ctx context.Context, contact Contact) error
	Enqueue(ctx context.Context, eventType string, payload any) error
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

// Get fetches an OEM with its contacts.
func (r *Repository) Get(ctx context.Context, id int64) (OEM, error) {
	var item OEM
	var status string
	err := r.pool.QueryRow(ctx, `SELECT id, name, region, status, created_at, updated_at FROM oems WHERE id = $1`, id).
		Scan(&item.ID, &item.Name, &item.Region, &status, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return OEM{}, ErrNotFound
		}
		return OEM{}, err
	}
	item.Status = Status(status)

	rows, err := r.pool.Query(ctx, `SELECT id, oem_id, name, email, phone, role FROM oem_contacts WHERE oem_id = $1 ORDER BY id`, id)
	if err != nil {
		return OEM{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var contact Contact
		if err := rows.Scan(&contact.ID, &contact.OEMID, &contact.Name, &contact.Email, &contact.Phone, &contact.Role); err != nil {
			return OEM{}, err
		}
		item.Contacts = append(item.Contacts, contact)
	}
	return item, rows.Err()
}

// List returns OEMs without contacts.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]OEM, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, name, region, status, created_at, updated_at
FROM oems ORDER BY name LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []OEM
	for rows.Next() {
		var item OEM
		var status string
		if err := rows.Scan(&item.ID, &item.Name, &item.Region, &status, &item.CreatedAt, &item.UpdatedAt); err != nil {
			return nil, err
		}
		item.Status = Status(status)
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetStatus flips active/inactive. The bool reports whether a row matched.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE oems SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txRepo) CreateOEM(ctx context.Context, item OEM) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO oems (name, region, status, created_at, updated_at)
VALUES ($1, $2, $3, NOW(), NOW()) RETURNING id`, item.Name, item.Region, string(item.Status)).Scan(&id)
	return id, err
}

func (t *txRepo) InsertContact(ctx context.Context, contact Contact) error {
	_, err := t.tx.Exec(ctx, `INSERT INTO oem_contacts (oem_id, name, email, phone, role)
VALUES ($1, $2, $3, $4, $5)`, contact.OEMID, contact.Name, contact.Email, contact.Phone, contact.Role)
	return err
}

func (t *txRepo) Enqueue(ctx context.Context, eventType string, payload any) error {
	return outbox.EnqueueTx(ctx, t.tx, eventType, payload)
}

func (t *txRepo) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.AppendAuditTx(ctx, t.tx, log)
}

var _ RepositoryPort = (*Repository)(nil)
