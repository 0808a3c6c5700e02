package orders

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atlas-dms/atlas-dms/internal/shared"
)

type memoryOrderRepo struct {
	orders      map[int64]Order
	disputes    map[int64]Dispute
	inventory   map[int64]string
	audits      []shared.AuditLog
	nextOrder   int64
	nextDispute int64
}

func newMemoryOrderRepo() *memoryOrderRepo {
	return &memoryOrderRepo{
		orders:    make(map[int64]Order),
		disputes:  make(map[int64]Dispute),
		inventory: make(map[int64]string),
	}
}

func (r *memoryOrderRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Snapshot so a failed tx leaves state untouched, like a rollback.
	inventoryBefore := make(map[int64]string, len(r.inventory))
	for k, v := range r.inventory {
		inventoryBefore[k] = v
	}
	ordersBefore := make(map[int64]Order, len(r.orders))
	for k, v := range r.orders {
		ordersBefore[k] = v
	}
	auditsBefore := len(r.audits)
	if err := fn(ctx, &memoryOrderTx{repo: r}); err != nil {
		r.inventory = inventoryBefore
		r.orders = ordersBefore
		r.audits = r.audits[:auditsBefore]
		return err
	}
	return nil
}

func (r *memoryOrderRepo) Get(ctx context.Context, id int64) (Order, error) {
	order, ok := r.orders[id]
	if !ok {
		return Order{}, ErrNotFound
	}
	return order, nil
}

func (r *memoryOrderRepo) List(ctx context.Context, limit, offset int) ([]Order, error) {
	var result []Order
	for _, order := range r.orders {
		result = append(result, order)
	}
	return result, nil
}

func (r *memoryOrderRepo) GetDispute(ctx context.Context, id int64) (Dispute, error) {
	dispute, ok := r.disputes[id]
	if !ok {
		return Dispute{}, ErrDisputeNotFound
	}
	return dispute, nil
}

func (r *memoryOrderRepo) ListDisputes(ctx context.Context, orderID int64) ([]Dispute, error) {
	var result []Dispute
	for _, dispute := range r.disputes {
		if dispute.OrderID == orderID {
			result = append(result, dispute)
		}
	}
	return result, nil
}

func (r *memoryOrderRepo) CreateDispute(ctx context.Context, dispute Dispute) (int64, error) {
	r.nextDispute++
	dispute.ID = r.nextDispute
	dispute.Status = DisputeOpen
	r.disputes[dispute.ID] = dispute
	return dispute.ID, nil
}

type memoryOrderTx struct {
	repo *memoryOrderRepo
}

func (t *memoryOrderTx) CreateOrder(ctx context.Context, order Order) (int64, error) {
	t.repo.nextOrder++
	order.ID = t.repo.nextOrder
	t.repo.orders[order.ID] = order
	return order.ID, nil
}

func (t *memoryOrderTx) InsertOrderItems(ctx context.Context, orderID int64, itemIDs []int64) error {
	order := t.repo.orders[orderID]
	order.ItemIDs = itemIDs
	t.repo.orders[orderID] = order
	return nil
}

func (t *memoryOrderTx) GetOrderForUpdate(ctx context.Context, id int64) (Order, error) {
	return t.repo.Get(ctx, id)
}

func (t *memoryOrderTx) FinalizeGRN(ctx context.Context, id int64, grnID string, grnDate time.Time) error {
	order, ok := t.repo.orders[id]
	if !ok {
		return ErrNotFound
	}
	order.GRNID = grnID
	order.GRNDate = grnDate
	order.OrderStatus = OrderDelivered
	order.DeliveryStatus = DeliveryDelivered
	t.repo.orders[id] = order
	return nil
}

func (t *memoryOrderTx) ReleaseReservedItems(ctx context.Context, itemIDs []int64) (int64, error) {
	var released int64
	for _, id := range itemIDs {
		if t.repo.inventory[id] == "reserved" {
			t.repo.inventory[id] = "available"
			released++
		}
	}
	return released, nil
}

func (t *memoryOrderTx) ReserveItems(ctx context.Context, itemIDs []int64) (int64, error) {
	var reserved int64
	for _, id := range itemIDs {
		if t.repo.inventory[id] == "available" {
			t.repo.inventory[id] = "reserved"
			reserved++
		}
	}
	return reserved, nil
}

func (t *memoryOrderTx) ResolveDispute(ctx context.Context, id int64, status DisputeStatus, resolution string) (bool, error) {
	dispute, ok := t.repo.disputes[id]
	if !ok || dispute.Status != DisputeOpen {
		return false, nil
	}
	dispute.Status = status
	dispute.Resolution = resolution
	t.repo.disputes[id] = dispute
	return true, nil
}

func (t *memoryOrderTx) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	t.repo.audits = append(t.repo.audits, log)
	return nil
}

var salesExec = shared.Identity{UserID: 12, Role: "sales_executive"}

func TestCreateReservesAllItemsOrFails(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.inventory[1] = "available"
	repo.inventory[2] = "available"
	repo.inventory[3] = "sold"
	svc := NewService(repo, nil)

	order, err := svc.Create(context.Background(), salesExec, CreateInput{DealID: 9, ItemIDs: []int64{1, 2}})
	require.NoError(t, err)
	require.Equal(t, OrderPlaced, order.OrderStatus)
	require.Equal(t, "reserved", repo.inventory[1])
	require.Equal(t, "reserved", repo.inventory[2])

	_, err = svc.Create(context.Background(), salesExec, CreateInput{DealID: 9, ItemIDs: []int64{3}})
	require.ErrorIs(t, err, ErrValidation)
	require.Equal(t, "sold", repo.inventory[3])
}

func TestFinalizeGRNIsAtomic(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.inventory[1] = "reserved"
	repo.inventory[2] = "reserved"
	repo.nextOrder = 1
	repo.orders[1] = Order{ID: 1, DealID: 9, ItemIDs: []int64{1, 2}, OrderStatus: OrderPlaced, DeliveryStatus: DeliveryPending}
	svc := NewService(repo, nil)

	grnDate := time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.FinalizeGRN(context.Background(), salesExec, 1, "GRN-2026-0042", grnDate, ""))

	order := repo.orders[1]
	require.Equal(t, OrderDelivered, order.OrderStatus)
	require.Equal(t, DeliveryDelivered, order.DeliveryStatus)
	require.Equal(t, "GRN-2026-0042", order.GRNID)
	require.Equal(t, "available", repo.inventory[1])
	require.Equal(t, "available", repo.inventory[2])
	require.Len(t, repo.audits, 1)
	require.Equal(t, "ORDER_GRN", repo.audits[0].Action)

	// Second receipt is rejected and flips nothing back.
	err := svc.FinalizeGRN(context.Background(), salesExec, 1, "GRN-2026-0043", grnDate, "")
	require.ErrorIs(t, err, ErrAlreadyDelivered)
	require.Equal(t, "GRN-2026-0042", repo.orders[1].GRNID)
}

func TestFinalizeGRNMissingOrderModifiesNothing(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.inventory[1] = "reserved"
	svc := NewService(repo, nil)

	err := svc.FinalizeGRN(context.Background(), salesExec, 99, "GRN-1", time.Now(), "")
	require.ErrorIs(t, err, ErrNotFound)
	require.Equal(t, "reserved", repo.inventory[1])
	require.Empty(t, repo.audits)
}

func TestResolveDisputeGatedToAssigneeOrSenior(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.orders[1] = Order{ID: 1}
	repo.disputes[1] = Dispute{ID: 1, OrderID: 1, Status: DisputeOpen, AssigneeID: 12}
	svc := NewService(repo, nil)

	other := shared.Identity{UserID: 50, Role: "sales_manager"}
	err := svc.ResolveDispute(context.Background(), other, 1, DisputeResolved, "no")
	require.ErrorIs(t, err, ErrNotAssignee)

	salesHead := shared.Identity{UserID: 51, Role: "sales_head"}
	require.NoError(t, svc.ResolveDispute(context.Background(), salesHead, 1, DisputeResolved, "replaced unit"))
	require.Equal(t, DisputeResolved, repo.disputes[1].Status)

	err = svc.ResolveDispute(context.Background(), salesHead, 1, DisputeClosed, "again")
	require.ErrorIs(t, err, ErrDisputeClosed)
}

func TestResolveDisputeByAssignee(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.disputes[1] = Dispute{ID: 1, OrderID: 1, Status: DisputeOpen, AssigneeID: 12}
	svc := NewService(repo, nil)

	require.NoError(t, svc.ResolveDispute(context.Background(), salesExec, 1, DisputeClosed, "withdrawn"))
	require.Equal(t, DisputeClosed, repo.disputes[1].Status)
}

type memoryIdemStore struct {
	keys map[string]bool
}

func (s *memoryIdemStore) CheckAndInsert(ctx context.Context, key, module string) error {
	if s.keys == nil {
		s.keys = make(map[string]bool)
	}
	full := module + "/" + key
	if s.keys[full] {
		return shared.ErrIdempotencyConflict
	}
	s.keys[full] = true
	return nil
}

func TestFinalizeGRNRejectsReplayedIdempotencyKey(t *testing.T) {
	repo := newMemoryOrderRepo()
	repo.inventory[1] = "reserved"
	repo.orders[1] = Order{ID: 1, DealID: 9, ItemIDs: []int64{1}, OrderStatus: OrderPlaced, DeliveryStatus: DeliveryPending}
	repo.orders[2] = Order{ID: 2, DealID: 9, ItemIDs: nil, OrderStatus: OrderPlaced, DeliveryStatus: DeliveryPending}
	svc := NewService(repo, &memoryIdemStore{})

	grnDate := time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
	require.NoError(t, svc.FinalizeGRN(context.Background(), salesExec, 1, "GRN-2026-0050", grnDate, "req-abc"))

	// Same key on another order is refused before anything is touched.
	err := svc.FinalizeGRN(context.Background(), salesExec, 2, "GRN-2026-0051", grnDate, "req-abc")
	require.ErrorIs(t, err, ErrDuplicateGRNRequest)
	require.Empty(t, repo.orders[2].GRNID)

	// A fresh key goes through.
	require.NoError(t, svc.FinalizeGRN(context.Background(), salesExec, 2, "GRN-2026-0051", grnDate, "req-def"))
}
