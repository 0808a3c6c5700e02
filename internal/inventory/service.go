package inventory

import (
	"context"
	"strconv"

	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// AuditPort records state-changing actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service handles stock units. The bulk reserved-to-available flip used by
// goods receipt lives in the orders package, inside the GRN transaction.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput describes a new stock unit.
type CreateInput struct {
	ProductID    int64
	OEMID        int64
	SerialNumber string
	Status       Status
	BaseAmount   float64
	GSTAmount    float64
	FinalAmount  float64
}

// Create registers a unit. Status defaults to in_transit, matching units
// announced by a provision before they physically arrive.
func (s *Service) Create(ctx context.Context, identity shared.Identity, input CreateInput) (Item, error) {
	if input.ProductID == 0 || input.OEMID == 0 || input.BaseAmount < 0 {
		return Item{}, ErrValidation
	}
	if input.Status == "" {
		input.Status = StatusInTransit
	}
	if !Known(input.Status) {
		return Item{}, ErrValidation
	}
	item := Item{
		ProductID:    input.ProductID,
		OEMID:        input.OEMID,
		SerialNumber: input.SerialNumber,
		Status:       input.Status,
		BaseAmount:   input.BaseAmount,
		GSTAmount:    input.GSTAmount,
		FinalAmount:  input.FinalAmount,
	}
	id, err := s.repo.Create(ctx, item)
	if err != nil {
		return Item{}, err
	}
	item.ID = id
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  identity.UserID,
		Action:   "INVENTORY_CREATE",
		Entity:   "inventory_item",
		EntityID: strconv.FormatInt(id, 10),
		Changes:  map[string]any{"product_id": input.ProductID, "status": string(item.Status)},
	})
	return item, nil
}

// Get returns one unit.
func (s *Service) Get(ctx context.Context, id int64) (Item, error) {
	return s.repo.Get(ctx, id)
}

// List returns units with an optional status filter.
func (s *Service) List(ctx context.Context, limit, offset int, status string) ([]Item, error) {
	if limit <= 0 {
		limit = 50
	}
	return s.repo.List(ctx, limit, offset, status)
}

// SetStatus moves one unit to a new stock state.
func (s *Service) SetStatus(ctx context.Context, identity shared.Identity, id int64, status Status) error {
	if !Known(status) {
		return ErrValidation
	}
	ok, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  identity.UserID,
		Action:   "INVENTORY_STATUS",
		Entity:   "inventory_item",
		EntityID: strconv.FormatInt(id, 10),
		Changes:  map[string]any{"status": string(status)},
	})
	return nil
}
