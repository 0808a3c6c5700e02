package inventory

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	Create(ctx context.Context, item Item) (int64, error)
	Get(ctx context.Context, id int64) (Item, error)
	List(ctx context.Context, limit, offset int, status string) ([]Item, error)
	SetStatus(ctx context.Context, id int64, status Status) (bool, error)
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const itemColumns = `id, product_id, oem_id, COALESCE(serial_number, ''), status, base_amount, gst_amount, final_amount, created_at, updated_at`

// Create inserts a unit.
func (r *Repository) Create(ctx context.Context, item Item) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO inventory_items (product_id, oem_id, serial_number, status, base_amount, gst_amount, final_amount, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW()) RETURNING id`,
		item.ProductID, item.OEMID, item.SerialNumber, string(item.Status), item.BaseAmount, item.GSTAmount, item.FinalAmount).Scan(&id)
	return id, err
}

// Get fetches a unit.
func (r *Repository) Get(ctx context.Context, id int64) (Item, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+itemColumns+` FROM inventory_items WHERE id = $1`, id)
	return scanItem(row)
}

// List returns units with an optional status filter.
func (r *Repository) List(ctx context.Context, limit, offset int, status string) ([]Item, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+itemColumns+` FROM inventory_items
WHERE ($3 = '' OR status = $3) ORDER BY id LIMIT $1 OFFSET $2`, limit, offset, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// SetStatus updates one unit. The bool reports whether a row matched.
func (r *Repository) SetStatus(ctx context.Context, id int64, status Status) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE inventory_items SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func scanItem(row pgx.Row) (Item, error) {
	var item Item
	var status string
	err := row.Scan(&item.ID, &item.ProductID, &item.OEMID, &item.SerialNumber, &status,
		&item.BaseAmount, &item.GSTAmount, &item.FinalAmount, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Item{}, ErrNotFound
		}
		return Item{}, err
	}
	item.Status = Status(status)
	return item, nil
}

var _ RepositoryPort = (*Repository)(nil)
