package orders

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-dms/atlas-dms/internal/platform/db"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, id int64) (Order, error)
	List(ctx context.Context, limit, offset int) ([]Order, error)
	GetDispute(ctx context.Context, id int64) (Dispute, error)
	ListDisputes(ctx context.Context, orderID int64) ([]Dispute, error)
	CreateDispute(ctx context.Context, dispute Dispute) (int64, error)
}

// TxRepository exposes the writes order creation and goods receipt run in
// one transaction.
type TxRepository interface {
	CreateOrder(ctx context.Context, order Order) (int64, error)
	InsertOrderItems(ctx context.Context, orderID int64, itemIDs []int64) error
	GetOrderForUpdate(ctx context.Context, id int64) (Order, error)
	FinalizeGRN(ctx context.Context, id int64, grnID string, grnDate time.Time) error
	ReleaseReservedItems(ctx context.Context, itemIDs []int64) (int64, error)
	ReserveItems(ctx context.Context, itemIDs []int64) (int64, error)
	ResolveDispute(ctx context.Context, id int64, status DisputeStatus, resolution string) (bool, error)
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

const orderColumns = `id, deal_id, order_status, delivery_status, COALESCE(grn_id, ''), COALESCE(grn_date, 'epoch'::timestamptz), created_by, created_at, updated_at`

// Get fetches an order with its item ids.
func (r *Repository) Get(ctx context.Context, id int64) (Order, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)
	order, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	order.ItemIDs, err = r.itemIDs(ctx, r.pool, id)
	return order, err
}

// List returns orders without item ids.
func (r *Repository) List(ctx context.Context, limit, offset int) ([]Order, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+orderColumns+` FROM orders ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var result []Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, rows.Err()
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *Repository) itemIDs(ctx context.Context, q querier, orderID int64) ([]int64, error) {
	rows, err := q.Query(ctx, `SELECT inventory_id FROM order_items WHERE order_id = $1 ORDER BY inventory_id`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

const disputeColumns = `id, order_id, subject, COALESCE(detail, ''), status, assignee_id, COALESCE(resolution, ''), created_by, created_at, updated_at`

// GetDispute fetches one dispute.
func (r *Repository) GetDispute(ctx context.Context, id int64) (Dispute, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE id = $1`, id)
	return scanDispute(row)
}

// ListDisputes returns disputes for one order.
func (r *Repository) ListDisputes(ctx context.Context, orderID int64) ([]Dispute, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+disputeColumns+` FROM disputes WHERE order_id = $1 ORDER BY created_at DESC`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var disputes []Dispute
	for rows.Next() {
		dispute, err := scanDispute(rows)
		if err != nil {
			return nil, err
		}
		disputes = append(disputes, dispute)
	}
	return disputes, rows.Err()
}

// CreateDispute inserts an open dispute.
func (r *Repository) CreateDispute(ctx context.Context, dispute Dispute) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO disputes (order_id, subject, detail, status, assignee_id, created_by, created_at, updated_at)
VALUES ($1, $2, NULLIF($3, ''), 'open', $4, $5, NOW(), NOW()) RETURNING id`,
		dispute.OrderID, dispute.Subject, dispute.Detail, dispute.AssigneeID, dispute.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) CreateOrder(ctx context.Context, order Order) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO orders (deal_id, order_status, delivery_status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, NOW(), NOW()) RETURNING id`,
		order.DealID, string(order.OrderStatus), string(order.DeliveryStatus), order.CreatedBy).Scan(&id)
	return id, err
}

func (t *txRepo) InsertOrderItems(ctx context.Context, orderID int64, itemIDs []int64) error {
	for _, itemID := range itemIDs {
		if _, err := t.tx.Exec(ctx, `INSERT INTO order_items (order_id, inventory_id) VALUES ($1, $2)`, orderID, itemID); err != nil {
			return err
		}
	}
	return nil
}

func (t *txRepo) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id = $1 FOR UPDATE`, id)
	order, err := scanOrder(row)
	if err != nil {
		return Order{}, err
	}
	rows, err := t.tx.Query(ctx, `SELECT inventory_id FROM order_items WHERE order_id = $1 ORDER BY inventory_id`, id)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var itemID int64
		if err := rows.Scan(&itemID); err != nil {
			return Order{}, err
		}
		order.ItemIDs = append(order.ItemIDs, itemID)
	}
	return order, rows.Err()
}

func (t *txRepo) FinalizeGRN(ctx context.Context, id int64, grnID string, grnDate time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE orders
SET grn_id = $2, grn_date = $3, order_status = 'delivered', delivery_status = 'delivered', updated_at = NOW()
WHERE id = $1`, id, grnID, grnDate)
	return err
}

func (t *txRepo) ReleaseReservedItems(ctx context.Context, itemIDs []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE inventory_items SET status = 'available', updated_at = NOW()
WHERE id = ANY($1) AND status = 'reserved'`, itemIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) ReserveItems(ctx context.Context, itemIDs []int64) (int64, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE inventory_items SET status = 'reserved', updated_at = NOW()
WHERE id = ANY($1) AND status = 'available'`, itemIDs)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

func (t *txRepo) ResolveDispute(ctx context.Context, id int64, status DisputeStatus, resolution string) (bool, error) {
	tag, err := t.tx.Exec(ctx, `UPDATE disputes SET status = $2, resolution = NULLIF($3, ''), updated_at = NOW()
WHERE id = $1 AND status = 'open'`, id, string(status), resolution)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (t *txRepo) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.AppendAuditTx(ctx, t.tx, log)
}

func scanOrder(row pgx.Row) (Order, error) {
	var order Order
	var orderStatus, deliveryStatus string
	err := row.Scan(&order.ID, &order.DealID, &orderStatus, &deliveryStatus, &order.GRNID, &order.GRNDate,
		&order.CreatedBy, &order.CreatedAt, &order.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	order.OrderStatus = OrderStatus(orderStatus)
	order.DeliveryStatus = DeliveryStatus(deliveryStatus)
	return order, nil
}

func scanDispute(row pgx.Row) (Dispute, error) {
	var dispute Dispute
	var status string
	err := row.Scan(&dispute.ID, &dispute.OrderID, &dispute.Subject, &dispute.Detail, &status,
		&dispute.AssigneeID, &dispute.Resolution, &dispute.CreatedBy, &dispute.CreatedAt, &dispute.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Dispute{}, ErrDisputeNotFound
		}
		return Dispute{}, err
	}
	dispute.Status = DisputeStatus(status)
	return dispute, nil
}

var _ RepositoryPort = (*Repository)(nil)
