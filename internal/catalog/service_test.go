package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-dms/atlas-dms/internal/outbox"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

type memoryCatalogRepo struct {
	products map[int64]Product
	skus     map[string]bool
	events   []string
	audits   []shared.AuditLog
	nextID   int64
}

func newMemoryCatalogRepo() *memoryCatalogRepo {
	return &memoryCatalogRepo{products: make(map[int64]Product), skus: make(map[string]bool)}
}

func (r *memoryCatalogRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryCatalogTx{repo: r})
}

func (r *memoryCatalogRepo) Get(ctx context.Context, id int64) (Product, error) {
	product, ok := r.products[id]
	if !ok {
		return Product{}, ErrNotFound
	}
	return product, nil
}

func (r *memoryCatalogRepo) List(ctx context.Context, limit, offset int, activeOnly bool) ([]Product, error) {
	var products []Product
	for _, product := range r.products {
		if !activeOnly || product.Active {
			products = append(products, product)
		}
	}
	return products, nil
}

func (r *memoryCatalogRepo) SetActive(ctx context.Context, id int64, active bool) (bool, error) {
	product, ok := r.products[id]
	if !ok {
		return false, nil
	}
	product.Active = active
	r.products[id] = product
	return true, nil
}

type memoryCatalogTx struct {
	repo *memoryCatalogRepo
}

func (t *memoryCatalogTx) CreateProduct(ctx context.Context, product Product) (int64, error) {
	if t.repo.skus[product.SKU] {
		return 0, ErrDuplicateSKU
	}
	t.repo.nextID++
	product.ID = t.repo.nextID
	t.repo.products[product.ID] = product
	t.repo.skus[product.SKU] = true
	return product.ID, nil
}

func (t *memoryCatalogTx) Enqueue(ctx context.Context, eventType string, payload any) error {
	t.repo.events = append(t.repo.events, eventType)
	return nil
}

func (t *memoryCatalogTx) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	t.repo.audits = append(t.repo.audits, log)
	return nil
}

func TestCreateNormalizesAndEnqueues(t *testing.T) {
	repo := newMemoryCatalogRepo()
	svc := NewService(repo)
	actor := shared.Identity{UserID: 2, Role: "admin"}

	product, err := svc.Create(context.Background(), actor, CreateInput{
		SKU: " ev-trike-48v ", Name: "EV Trike 48V", HSNCode: "8703", Serialized: true, WarrantyMonths: 24,
	})
	require.NoError(t, err)
	require.Equal(t, "EV-TRIKE-48V", product.SKU)
	require.True(t, product.Active)
	require.Equal(t, []string{outbox.EventCatalogCreated}, repo.events)
	require.Len(t, repo.audits, 1)

	_, err = svc.Create(context.Background(), actor, CreateInput{SKU: "EV-TRIKE-48V", Name: "dup"})
	require.ErrorIs(t, err, ErrDuplicateSKU)
}

func TestSetActive(t *testing.T) {
	repo := newMemoryCatalogRepo()
	repo.products[1] = Product{ID: 1, SKU: "A", Active: true}
	svc := NewService(repo)

	require.NoError(t, svc.SetActive(context.Background(), 1, false))
	require.False(t, repo.products[1].Active)
	require.ErrorIs(t, svc.SetActive(context.Background(), 9, true), ErrNotFound)
}
