package catalog

import (
	"context"
	"strconv"
	"strings"

	"github.com/atlas-dms/atlas-dms/internal/outbox"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// Service handles the product catalog.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput describes a new SKU.
type CreateInput struct {
	SKU            string
	Name           string
	HSNCode        string
	AssetCategory  string
	AssetType      string
	Serialized     bool
	WarrantyMonths int
}

// Create writes the product, the product-catalog-created outbox event and the
// audit row in one transaction.
func (s *Service) Create(ctx context.Context, identity shared.Identity, input CreateInput) (Product, error) {
	if input.SKU == "" || input.Name == "" || input.WarrantyMonths < 0 {
		return Product{}, ErrValidation
	}
	product := Product{
		SKU:            strings.ToUpper(strings.TrimSpace(input.SKU)),
		Name:           strings.TrimSpace(input.Name),
		HSNCode:        input.HSNCode,
		AssetCategory:  input.AssetCategory,
		AssetType:      input.AssetType,
		Serialized:     input.Serialized,
		WarrantyMonths: input.WarrantyMonths,
		Active:         true,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateProduct(ctx, product)
		if err != nil {
			return err
		}
		product.ID = id
		if err := tx.Enqueue(ctx, outbox.EventCatalogCreated, map[string]any{
			"product_id": id,
			"sku":        product.SKU,
			"name":       product.Name,
		}); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "CATALOG_CREATE",
			Entity:   "product",
			EntityID: strconv.FormatInt(id, 10),
			Changes:  map[string]any{"sku": product.SKU},
		})
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

// Get returns one product.
func (s *Service) Get(ctx context.Context, id int64) (Product, error) {
	return s.repo.Get(ctx, id)
}

// List returns products.
func (s *Service) List(ctx context.Context, limit, offset int, activeOnly bool) ([]Product, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset, activeOnly)
}

// SetActive enables or disables a SKU.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) error {
	ok, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
