package provisioning

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
	Get(ctx context.Context, id int64) (Provision, error)
	List(ctx context.Context, limit, offset int, status string) ([]Provision, error)
	Create(ctx context.Context, provision Provision) (int64, error)
	GetPDI(ctx context.Context, id int64) (PDIRecord, error)
	ListPDI(ctx context.Context, provisionID int64) ([]PDIRecord, error)
}

// TxRepository exposes the writes status changes and inspections run in one
// transaction.
type TxRepository interface {
	GetForUpdate(ctx context.Context, id int64) (Provision, error)
	SetStatus(ctx context.Context, id int64, status Status, reason string) error
	InsertPDI(ctx context.Context, record PDIRecord) (int64, error)
	SetInventoryStatus(ctx context.Context, inventoryID int64, status string) error
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

const provisionColumns = `id, oem_id, product_id, quantity, status, COALESCE(reason, ''), created_by, created_at, updated_at`

// Get fetches a provision.
func (r *Repository) Get(ctx context.Context, id int64) (Provision, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+provisionColumns+` FROM provisions WHERE id = $1`, id)
	return scanProvision(row)
}

// List returns provisions with an optional status filter.
func (r *Repository) List(ctx context.Context, limit, offset int, status string) ([]Provision, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+provisionColumns+` FROM provisions
WHERE ($3 = '' OR status = $3) ORDER BY created_at DESC LIMIT $1 OFFSET $2`, limit, offset, status)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var provisions []Provision
	for rows.Next() {
		provision, err := scanProvision(rows)
		if err != nil {
			return nil, err
		}
		provisions = append(provisions, provision)
	}
	return provisions, rows.Err()
}

// Create inserts a provision.
func (r *Repository) Create(ctx context.Context, provision Provision) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx, `INSERT INTO provisions (oem_id, product_id, quantity, status, created_by, created_at, updated_at)
VALUES ($1, $2, $3, $4, $5, NOW(), NOW()) RETURNING id`,
		provision.OEMID, provision.ProductID, provision.Quantity, string(provision.Status), provision.CreatedBy).Scan(&id)
	return id, err
}

// GetPDI fetches one inspection row.
func (r *Repository) GetPDI(ctx context.Context, id int64) (PDIRecord, error) {
	row := r.pool.QueryRow(ctx, `SELECT id, provision_id, oem_id, inventory_id, pdi_status, COALESCE(notes, ''), recorded_by, recorded_at
FROM oem_inventory_pdi WHERE id = $1`, id)
	return scanPDI(row)
}

// ListPDI returns inspection rows for a provision.
func (r *Repository) ListPDI(ctx context.Context, provisionID int64) ([]PDIRecord, error) {
	rows, err := r.pool.Query(ctx, `SELECT id, provision_id, oem_id, inventory_id, pdi_status, COALESCE(notes, ''), recorded_by, recorded_at
FROM oem_inventory_pdi WHERE provision_id = $1 ORDER BY id`, provisionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []PDIRecord
	for rows.Next() {
		record, err := scanPDI(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// GetForUpdate locks the provision row for the length of the transaction.
func (t *txRepo) GetForUpdate(ctx context.Context, id int64) (Provision, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+provisionColumns+` FROM provisions WHERE id = $1 FOR UPDATE`, id)
	return scanProvision(row)
}

func (t *txRepo) SetStatus(ctx context.Context, id int64, status Status, reason string) error {
	_, err := t.tx.Exec(ctx, `UPDATE provisions SET status = $2, reason = NULLIF($3, ''), updated_at = NOW() WHERE id = $1`,
		id, string(status), reason)
	return err
}

func (t *txRepo) InsertPDI(ctx context.Context, record PDIRecord) (int64, error) {
	var id int64
	err := t.tx.QueryRow(ctx, `INSERT INTO oem_inventory_pdi (provision_id, oem_id, inventory_id, pdi_status, notes, recorded_by, recorded_at)
VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, NOW()) RETURNING id`,
		record.ProvisionID, record.OEMID, record.InventoryID, string(record.Status), record.Notes, record.RecordedBy).Scan(&id)
	return id, err
}

func (t *txRepo) SetInventoryStatus(ctx context.Context, inventoryID int64, status string) error {
	_, err := t.tx.Exec(ctx, `UPDATE inventory_items SET status = $2, updated_at = NOW() WHERE id = $1`, inventoryID, status)
	return err
}

func (t *txRepo) Enqueue(ctx context.Context, eventType string, payload any) error {
	return outbox.EnqueueTx(ctx, t.tx, eventType, payload)
}

func (t *txRepo) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	return shared.AppendAuditTx(ctx, t.tx, log)
}

func scanProvision(row pgx.Row) (Provision, error) {
	var provision Provision
	var status string
	err := row.Scan(&provision.ID, &provision.OEMID, &provision.ProductID, &provision.Quantity, &status,
		&provision.Reason, &provision.CreatedBy, &provision.CreatedAt, &provision.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Provision{}, ErrNotFound
		}
		return Provision{}, err
	}
	provision.Status = Status(status)
	return provision, nil
}

func scanPDI(row pgx.Row) (PDIRecord, error) {
	var record PDIRecord
	var status string
	err := row.Scan(&record.ID, &record.ProvisionID, &record.OEMID, &record.InventoryID, &status,
		&record.Notes, &record.RecordedBy, &record.RecordedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return PDIRecord{}, ErrPDINotFound
		}
		return PDIRecord{}, err
	}
	record.Status = PDIStatus(status)
	return record, nil
}

var _ RepositoryPort = (*Repository)(nil)
