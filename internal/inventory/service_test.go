package inventory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-dms/atlas-dms/internal/shared"
)

type memoryInventoryRepo struct {
	items  map[int64]Item
	nextID int64
}

func newMemoryInventoryRepo() *memoryInventoryRepo {
	return &memoryInventoryRepo{items: make(map[int64]Item)}
}

func (r *memoryInventoryRepo) Create(ctx context.Context, item Item) (int64, error) {
	r.nextID++
	item.ID = r.nextID
	r.items[item.ID] = item
	return item.ID, nil
}

func (r *memoryInventoryRepo) Get(ctx context.Context, id int64) (Item, error) {
	item, ok := r.items[id]
	if !ok {
		return Item{}, ErrNotFound
	}
	return item, nil
}

func (r *memoryInventoryRepo) List(ctx context.Context, limit, offset int, status string) ([]Item, error) {
	var items []Item
	for _, item := range r.items {
		if status == "" || string(item.Status) == status {
			items = append(items, item)
		}
	}
	return items, nil
}

func (r *memoryInventoryRepo) SetStatus(ctx context.Context, id int64, status Status) (bool, error) {
	item, ok := r.items[id]
	if !ok {
		return false, nil
	}
	item.Status = status
	r.items[id] = item
	return true, nil
}

type memoryAudit struct {
	logs []shared.AuditLog
}

func (a *memoryAudit) Record(ctx context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return nil
}

func TestCreateDefaultsToInTransit(t *testing.T) {
	repo := newMemoryInventoryRepo()
	audit := &memoryAudit{}
	svc := NewService(repo, audit)
	actor := shared.Identity{UserID: 3, Role: "admin"}

	item, err := svc.Create(context.Background(), actor, CreateInput{ProductID: 1, OEMID: 2, BaseAmount: 90000, GSTAmount: 16200, FinalAmount: 106200})
	require.NoError(t, err)
	require.Equal(t, StatusInTransit, item.Status)
	require.Len(t, audit.logs, 1)

	_, err = svc.Create(context.Background(), actor, CreateInput{ProductID: 1, OEMID: 2, Status: Status("lost")})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSetStatusValidatesEnum(t *testing.T) {
	repo := newMemoryInventoryRepo()
	repo.items[1] = Item{ID: 1, Status: StatusReserved}
	repo.nextID = 1
	svc := NewService(repo, &memoryAudit{})
	actor := shared.Identity{UserID: 3, Role: "admin"}

	require.NoError(t, svc.SetStatus(context.Background(), actor, 1, StatusAvailable))
	require.Equal(t, StatusAvailable, repo.items[1].Status)

	require.ErrorIs(t, svc.SetStatus(context.Background(), actor, 1, Status("melted")), ErrValidation)
	require.ErrorIs(t, svc.SetStatus(context.Background(), actor, 7, StatusSold), ErrNotFound)
}
