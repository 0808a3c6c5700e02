package telematics

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/atlas-dms/atlas-dms/internal/platform/db"
)

// RepositoryPort describes persistence used by Service.
type RepositoryPort interface {
	UpsertVehicleDevice(ctx context.Context, device VehicleDevice) error
	AppendPull(ctx context.Context, pull Pull) error
	GetControl(ctx context.Context) (HistoryControl, error)
	SetControlStatus(ctx context.Context, status HistoryStatus) error
	WithControlTx(ctx context.Context, fn func(context.Context, ControlTx) error) error
	PullStats(ctx context.Context) (total, failures int64, err error)
}

// ControlTx operates on the locked history control row.
type ControlTx interface {
	GetControlForUpdate(ctx context.Context) (HistoryControl, error)
	AdvanceCheckpoint(ctx context.Context, to time.Time) error
	UpsertVehicleDevice(ctx context.Context, device VehicleDevice) error
	AppendPull(ctx context.Context, pull Pull) error
}

// Repository provides PostgreSQL backed persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

type controlTx struct {
	tx pgx.Tx
}

// WithControlTx wraps fn in a transaction holding the control row lock.
func (r *Repository) WithControlTx(ctx context.Context, fn func(context.Context, ControlTx) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &controlTx{tx: tx})
	})
}

const upsertDevice = `INSERT INTO vehicle_devices (vehicle_id, device_id, battery, odometer_km, latitude, longitude, reported_at, synced_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
ON CONFLICT (vehicle_id) DO UPDATE SET
	device_id = EXCLUDED.device_id,
	battery = EXCLUDED.battery,
	odometer_km = EXCLUDED.odometer_km,
	latitude = EXCLUDED.latitude,
	longitude = EXCLUDED.longitude,
	reported_at = EXCLUDED.reported_at,
	synced_at = NOW()
WHERE vehicle_devices.reported_at <= EXCLUDED.reported_at`

const appendPull = `INSERT INTO telematics_pulls (endpoint, success, payload, error, pulled_at)
VALUES ($1, $2, $3, NULLIF($4, ''), NOW())`

// UpsertVehicleDevice stores the newest reading for one vehicle. Stale
// readings never overwrite fresher ones.
func (r *Repository) UpsertVehicleDevice(ctx context.Context, device VehicleDevice) error {
	_, err := r.pool.Exec(ctx, upsertDevice, device.VehicleID, device.DeviceID, device.Battery,
		device.OdometerKM, device.Latitude, device.Longitude, device.ReportedAt)
	return err
}

// AppendPull records one provider call.
func (r *Repository) AppendPull(ctx context.Context, pull Pull) error {
	_, err := r.pool.Exec(ctx, appendPull, pull.Endpoint, pull.Success, pull.Payload, pull.Error)
	return err
}

const controlSelect = `SELECT status, checkpoint, batch_size, updated_at FROM telematics_history_control WHERE id = 1`

// GetControl reads the control row without locking.
func (r *Repository) GetControl(ctx context.Context) (HistoryControl, error) {
	return scanControl(r.pool.QueryRow(ctx, controlSelect))
}

// SetControlStatus pauses or resumes the history job.
func (r *Repository) SetControlStatus(ctx context.Context, status HistoryStatus) error {
	_, err := r.pool.Exec(ctx, `UPDATE telematics_history_control SET status = $1, updated_at = NOW() WHERE id = 1`, string(status))
	return err
}

// PullStats counts recorded provider calls.
func (r *Repository) PullStats(ctx context.Context) (int64, int64, error) {
	var total, failures int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*), COUNT(*) FILTER (WHERE NOT success) FROM telematics_pulls`).Scan(&total, &failures)
	return total, failures, err
}

func (t *controlTx) GetControlForUpdate(ctx context.Context) (HistoryControl, error) {
	return scanControl(t.tx.QueryRow(ctx, controlSelect+` FOR UPDATE`))
}

func (t *controlTx) AdvanceCheckpoint(ctx context.Context, to time.Time) error {
	_, err := t.tx.Exec(ctx, `UPDATE telematics_history_control SET checkpoint = $1, updated_at = NOW() WHERE id = 1`, to)
	return err
}

func (t *controlTx) UpsertVehicleDevice(ctx context.Context, device VehicleDevice) error {
	_, err := t.tx.Exec(ctx, upsertDevice, device.VehicleID, device.DeviceID, device.Battery,
		device.OdometerKM, device.Latitude, device.Longitude, device.ReportedAt)
	return err
}

func (t *controlTx) AppendPull(ctx context.Context, pull Pull) error {
	_, err := t.tx.Exec(ctx, appendPull, pull.Endpoint, pull.Success, pull.Payload, pull.Error)
	return err
}

func scanControl(row pgx.Row) (HistoryControl, error) {
	var control HistoryControl
	var status string
	err := row.Scan(&status, &control.Checkpoint, &control.BatchSize, &control.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return HistoryControl{}, errors.New("telematics: history control row missing, seed the database")
		}
		return HistoryControl{}, err
	}
	control.Status = HistoryStatus(status)
	return control, nil
}

var _ RepositoryPort = (*Repository)(nil)
