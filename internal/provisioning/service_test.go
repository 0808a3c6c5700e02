package provisioning

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-dms/atlas-dms/internal/outbox"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

type memoryProvisionRepo struct {
	provisions map[int64]Provision
	inventory  map[int64]string
	pdi        []PDIRecord
	events     []string
	audits     []shared.AuditLog
	enqueueErr error
	nextID     int64
}

func newMemoryProvisionRepo() *memoryProvisionRepo {
	return &memoryProvisionRepo{
		provisions: make(map[int64]Provision),
		inventory:  make(map[int64]string),
	}
}

func (r *memoryProvisionRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryProvisionTx{repo: r})
}

func (r *memoryProvisionRepo) Get(ctx context.Context, id int64) (Provision, error) {
	provision, ok := r.provisions[id]
	if !ok {
		return Provision{}, ErrNotFound
	}
	return provision, nil
}

func (r *memoryProvisionRepo) List(ctx context.Context, limit, offset int, status string) ([]Provision, error) {
	var provisions []Provision
	for _, provision := range r.provisions {
		if status == "" || string(provision.Status) == status {
			provisions = append(provisions, provision)
		}
	}
	return provisions, nil
}

func (r *memoryProvisionRepo) Create(ctx context.Context, provision Provision) (int64, error) {
	r.nextID++
	provision.ID = r.nextID
	r.provisions[provision.ID] = provision
	return provision.ID, nil
}

func (r *memoryProvisionRepo) GetPDI(ctx context.Context, id int64) (PDIRecord, error) {
	for _, record := range r.pdi {
		if record.ID == id {
			return record, nil
		}
	}
	return PDIRecord{}, ErrPDINotFound
}

func (r *memoryProvisionRepo) ListPDI(ctx context.Context, provisionID int64) ([]PDIRecord, error) {
	var records []PDIRecord
	for _, record := range r.pdi {
		if record.ProvisionID == provisionID {
			records = append(records, record)
		}
	}
	return records, nil
}

type memoryProvisionTx struct {
	repo *memoryProvisionRepo
}

func (t *memoryProvisionTx) GetForUpdate(ctx context.Context, id int64) (Provision, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryProvisionTx) SetStatus(ctx context.Context, id int64, status Status, reason string) error {
	provision, ok := t.repo.provisions[id]
	if !ok {
		return ErrNotFound
	}
	provision.Status = status
	provision.Reason = reason
	t.repo.provisions[id] = provision
	return nil
}

func (t *memoryProvisionTx) InsertPDI(ctx context.Context, record PDIRecord) (int64, error) {
	record.ID = int64(len(t.repo.pdi) + 1)
	t.repo.pdi = append(t.repo.pdi, record)
	return record.ID, nil
}

func (t *memoryProvisionTx) SetInventoryStatus(ctx context.Context, inventoryID int64, status string) error {
	t.repo.inventory[inventoryID] = status
	return nil
}

func (t *memoryProvisionTx) Enqueue(ctx context.Context, eventType string, payload any) error {
	if t.repo.enqueueErr != nil {
		return t.repo.enqueueErr
	}
	t.repo.events = append(t.repo.events, eventType)
	return nil
}

func (t *memoryProvisionTx) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	t.repo.audits = append(t.repo.audits, log)
	return nil
}

func seedProvision(repo *memoryProvisionRepo, status Status) int64 {
	repo.nextID++
	repo.provisions[repo.nextID] = Provision{ID: repo.nextID, OEMID: 5, ProductID: 8, Quantity: 10, Status: status}
	return repo.nextID
}

func testService(repo *memoryProvisionRepo) *Service {
	return NewService(slog.New(slog.DiscardHandler), repo)
}

var engineer = shared.Identity{UserID: 41, Role: "service_engineer"}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusAcknowledged, StatusInProduction, true},
		{StatusAcknowledged, StatusNotAvailable, true},
		{StatusAcknowledged, StatusCompleted, false},
		{StatusInProduction, StatusReadyForPDI, true},
		{StatusInProduction, StatusAcknowledged, false},
		{StatusReadyForPDI, StatusCompleted, true},
		{StatusCompleted, StatusInProduction, false},
		{StatusCancelled, StatusAcknowledged, false},
	}
	for _, tc := range cases {
		require.Equal(t, tc.ok, CanTransition(tc.from, tc.to), "%s -> %s", tc.from, tc.to)
	}
}

func TestSetStatusEnforcesTableUnlessForced(t *testing.T) {
	repo := newMemoryProvisionRepo()
	id := seedProvision(repo, StatusAcknowledged)
	svc := testService(repo)
	admin := shared.Identity{UserID: 2, Role: "admin"}

	err := svc.SetStatus(context.Background(), admin, id, StatusCompleted, "", false)
	require.ErrorIs(t, err, ErrIllegalTransition)
	require.Equal(t, StatusAcknowledged, repo.provisions[id].Status)

	require.NoError(t, svc.SetStatus(context.Background(), admin, id, StatusCompleted, "shortcut", true))
	require.Equal(t, StatusCompleted, repo.provisions[id].Status)
	require.Len(t, repo.audits, 1)
	require.Equal(t, true, repo.audits[0].Changes["force"])
}

func TestOEMReplyReadyForPDIEnqueuesEvent(t *testing.T) {
	repo := newMemoryProvisionRepo()
	id := seedProvision(repo, StatusInProduction)
	svc := testService(repo)

	require.NoError(t, svc.HandleOEMReply(context.Background(), id, StatusReadyForPDI, ""))
	require.Equal(t, StatusReadyForPDI, repo.provisions[id].Status)
	require.Equal(t, []string{outbox.EventPDINeeded}, repo.events)

	err := svc.HandleOEMReply(context.Background(), id, StatusCancelled, "")
	require.ErrorIs(t, err, ErrValidation)
}

func TestOEMReplyEnqueueFailureDoesNotBlockStatus(t *testing.T) {
	repo := newMemoryProvisionRepo()
	repo.enqueueErr = errors.New("outbox unavailable")
	id := seedProvision(repo, StatusInProduction)
	svc := testService(repo)

	require.NoError(t, svc.HandleOEMReply(context.Background(), id, StatusReadyForPDI, ""))
	require.Equal(t, StatusReadyForPDI, repo.provisions[id].Status)
	require.Empty(t, repo.events)
}

func TestCancelledWebhookIsUnconditional(t *testing.T) {
	repo := newMemoryProvisionRepo()
	id := seedProvision(repo, StatusCompleted)
	svc := testService(repo)

	require.NoError(t, svc.HandleCancelled(context.Background(), id, "oem recall"))
	require.Equal(t, StatusCancelled, repo.provisions[id].Status)
	require.Equal(t, "oem recall", repo.provisions[id].Reason)
}

func TestRecordPDIFailFlipsInventory(t *testing.T) {
	repo := newMemoryProvisionRepo()
	id := seedProvision(repo, StatusReadyForPDI)
	svc := testService(repo)

	record, err := svc.RecordPDI(context.Background(), engineer, PDIInput{ProvisionID: id, OEMID: 5, InventoryID: 77, Passed: false, Notes: "scratched frame"})
	require.NoError(t, err)
	require.Equal(t, PDIFailed, record.Status)
	require.Equal(t, "pdi_failed", repo.inventory[77])

	record, err = svc.RecordPDI(context.Background(), engineer, PDIInput{ProvisionID: id, OEMID: 5, InventoryID: 78, Passed: true})
	require.NoError(t, err)
	require.Equal(t, PDIPassed, record.Status)
	_, touched := repo.inventory[78]
	require.False(t, touched)
}
