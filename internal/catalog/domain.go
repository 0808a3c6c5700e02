package catalog

import (
	"fmt"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
)

// Product is one SKU in the sellable catalog.
type Product struct {
	ID             int64
	SKU            string
	Name           string
	HSNCode        string
	AssetCategory  string
	AssetType      string
	Serialized     bool
	WarrantyMonths int
	Active         bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

var (
	// ErrNotFound indicates the product is missing.
	ErrNotFound = fmt.Errorf("catalog: %w", httpx.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("catalog: invalid input: %w", httpx.ErrValidation)
	// ErrDuplicateSKU indicates the SKU is already taken.
	ErrDuplicateSKU = fmt.Errorf("catalog: sku already exists: %w", httpx.ErrConflict)
)
