package orders

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/rbac"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// IdempotencyPort guards replayed finalization requests by key.
type IdempotencyPort interface {
	CheckAndInsert(ctx context.Context, key, module string) error
}

// Service handles orders, goods receipt and disputes.
type Service struct {
	repo RepositoryPort
	idem IdempotencyPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, idem IdempotencyPort) *Service {
	return &Service{repo: repo, idem: idem}
}

// CreateInput describes a new order over reserved units.
type CreateInput struct {
	DealID  int64
	ItemIDs []int64
}

// Create places an order and reserves the listed units in one transaction.
// Units that are not available stay untouched; the count mismatch fails the
// whole order.
func (s *Service) Create(ctx context.Context, identity shared.Identity, input CreateInput) (Order, error) {
	if input.DealID == 0 || len(input.ItemIDs) == 0 {
		return Order{}, ErrValidation
	}
	order := Order{
		DealID:         input.DealID,
		ItemIDs:        input.ItemIDs,
		OrderStatus:    OrderPlaced,
		DeliveryStatus: DeliveryPending,
		CreatedBy:      identity.UserID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		reserved, err := tx.ReserveItems(ctx, input.ItemIDs)
		if err != nil {
			return err
		}
		if reserved != int64(len(input.ItemIDs)) {
			return ErrValidation
		}
		id, err := tx.CreateOrder(ctx, order)
		if err != nil {
			return err
		}
		order.ID = id
		if err := tx.InsertOrderItems(ctx, id, input.ItemIDs); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "ORDER_CREATE",
			Entity:   "order",
			EntityID: strconv.FormatInt(id, 10),
			Changes:  map[string]any{"deal_id": input.DealID, "items": len(input.ItemIDs)},
		})
	})
	if err != nil {
		return Order{}, err
	}
	return order, nil
}

// Get returns one order.
func (s *Service) Get(ctx context.Context, id int64) (Order, error) {
	return s.repo.Get(ctx, id)
}

// List returns orders.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Order, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset)
}

// FinalizeGRN records the goods receipt note: both statuses move to
// delivered, every referenced unit flips reserved to available, and the
// audit row lands in the same transaction. A missing order modifies nothing.
// Callers may pass an idempotency key; a replay with the same key is
// rejected before the order is touched.
func (s *Service) FinalizeGRN(ctx context.Context, identity shared.Identity, orderID int64, grnID string, grnDate time.Time, idemKey string) error {
	if grnID == "" || grnDate.IsZero() {
		return ErrValidation
	}
	if idemKey != "" && s.idem != nil {
		if err := s.idem.CheckAndInsert(ctx, idemKey, "orders.grn"); err != nil {
			if errors.Is(err, shared.ErrIdempotencyConflict) {
				return ErrDuplicateGRNRequest
			}
			return err
		}
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		order, err := tx.GetOrderForUpdate(ctx, orderID)
		if err != nil {
			return err
		}
		if order.GRNID != "" || order.DeliveryStatus == DeliveryDelivered {
			return ErrAlreadyDelivered
		}
		if err := tx.FinalizeGRN(ctx, orderID, grnID, grnDate); err != nil {
			return err
		}
		released, err := tx.ReleaseReservedItems(ctx, order.ItemIDs)
		if err != nil {
			return err
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "ORDER_GRN",
			Entity:   "order",
			EntityID: strconv.FormatInt(orderID, 10),
			Changes:  map[string]any{"grn_id": grnID, "items_released": released},
		})
	})
}

// DisputeInput describes a new dispute.
type DisputeInput struct {
	OrderID    int64
	Subject    string
	Detail     string
	AssigneeID int64
}

// OpenDispute files a dispute against an order.
func (s *Service) OpenDispute(ctx context.Context, identity shared.Identity, input DisputeInput) (Dispute, error) {
	if input.OrderID == 0 || input.Subject == "" || input.AssigneeID == 0 {
		return Dispute{}, ErrValidation
	}
	if _, err := s.repo.Get(ctx, input.OrderID); err != nil {
		return Dispute{}, err
	}
	dispute := Dispute{
		OrderID:    input.OrderID,
		Subject:    input.Subject,
		Detail:     input.Detail,
		Status:     DisputeOpen,
		AssigneeID: input.AssigneeID,
		CreatedBy:  identity.UserID,
	}
	id, err := s.repo.CreateDispute(ctx, dispute)
	if err != nil {
		return Dispute{}, err
	}
	dispute.ID = id
	return dispute, nil
}

// seniorResolvers may close any dispute regardless of assignment.
var seniorResolvers = map[rbac.Role]bool{
	rbac.RoleAdmin:     true,
	rbac.RoleCEO:       true,
	rbac.RoleSalesHead: true,
}

// ResolveDispute moves an open dispute to resolved or closed. Only the
// assignee or a senior role may do it.
func (s *Service) ResolveDispute(ctx context.Context, identity shared.Identity, id int64, status DisputeStatus, resolution string) error {
	if status != DisputeResolved && status != DisputeClosed {
		return ErrValidation
	}
	dispute, err := s.repo.GetDispute(ctx, id)
	if err != nil {
		return err
	}
	if dispute.Status != DisputeOpen {
		return ErrDisputeClosed
	}
	role := rbac.Normalize(identity.Role)
	if dispute.AssigneeID != identity.UserID && !seniorResolvers[role] {
		return ErrNotAssignee
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ok, err := tx.ResolveDispute(ctx, id, status, resolution)
		if err != nil {
			return err
		}
		if !ok {
			return ErrDisputeClosed
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "DISPUTE_RESOLVE",
			Entity:   "dispute",
			EntityID: strconv.FormatInt(id, 10),
			Changes:  map[string]any{"status": string(status)},
		})
	})
}

// ListDisputes returns disputes for one order.
func (s *Service) ListDisputes(ctx context.Context, orderID int64) ([]Dispute, error) {
	return s.repo.ListDisputes(ctx, orderID)
}
