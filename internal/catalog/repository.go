package catalog

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-dms/atlas-dms/internal/outbox"
	"github.com/atlas-dms/atlas-dms/internal/platform/db"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Product, error)
	List(ctx context.Context, limit, offset int, activeOnly bool) ([]Product, error)
	SetActive(ctx context.Context, id int64, active bool) (bool, error)
}

// TxRepository exposes the writes product creation runs in one transaction.
type TxRepository interface {
	CreateProduct(ctx context.Context, product Product) (int64, error)
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

const productColumns = `id, sku, name, hsn_code, asset_category, asset_type, serialized, warranty_months, active, created_at, updated_at`

// Get fetches a product.
func (r *Repository) Get(ctx context.Context, id int64) (Product, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+productColumns+` FROM products WHERE id = $1`, id)
	return scanProduct(row)
}

// List returns products, optionally limited to active ones.
func (r *Repository) List(ctx context.Context, limit, offset int, activeOnly bool) ([]Product, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+productColumns+` FROM products
WHERE (NOT $3 OR active) ORDER BY name LIMIT $1 OFFSET $2`, limit, offset, activeOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		product, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	return products, rows.Err()
}

// SetActive toggles availability. The bool reports whether a row matched.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE products SET active = $2, updated_at = NOW() WHERE id = $1`, id, active)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txRepo) CreateProduct(ctx context.Context, product Product) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO products (sku, name, hsn_code, asset_category, asset_type, serialized, warranty_months, active, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, NOW(), NOW()) RETURNING id`,
		product.SKU, product.Name, product.HSNCode, product.AssetCategory, product.AssetType, product.Serialized, product.WarrantyMonths).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return 0, ErrDuplicateSKU
		}
		return 0, err
	}
	return id, nil
}

func (t *txRepo) Enqueue(ctx context.Context, eventType string, payload any) error {
	return outbox.EnqueueTx(ctx, t.tx, eventType, payload)
}

func (t *txRepo) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.AppendAuditTx(ctx, t.tx, log)
}

func scanProduct(row pgx.Row) (Product, error) {
	var product Product
	err := row.Scan(&product.ID, &product.SKU, &product.Name, &product.HSNCode, &product.AssetCategory, &product.AssetType,
		&product.Serialized, &product.WarrantyMonths, &product.Active, &product.CreatedAt, &product.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return product, nil
}

var _ RepositoryPort = (*Repository)(nil)
