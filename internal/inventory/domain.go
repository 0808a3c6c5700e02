package inventory

import (
	"fmt"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
)

// Status is the stock state of one inventory unit.
type Status string

const (
	StatusAvailable  Status = "available"
	StatusReserved   Status = "reserved"
	StatusSold       Status = "sold"
	StatusDefective  Status = "defective"
	StatusPDIPending Status = "pdi_pending"
	StatusPDIFailed  Status = "pdi_failed"
	StatusInTransit  Status = "in_transit"
)

var knownStatuses = map[Status]bool{
	StatusAvailable:  true,
	StatusReserved:   true,
	StatusSold:       true,
	StatusDefective:  true,
	StatusPDIPending: true,
	StatusPDIFailed:  true,
	StatusInTransit:  true,
}

// Known reports whether s is a valid inventory status.
func Known(s Status) bool { return knownStatuses[s] }

// Item is a single stock unit of a product from an OEM.
type Item struct {
	ID           int64
	ProductID    int64
	OEMID        int64
	SerialNumber string
	Status       Status
	BaseAmount   float64
	GSTAmount    float64
	FinalAmount  float64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

var (
	// ErrNotFound indicates the inventory unit is missing.
	ErrNotFound = fmt.Errorf("inventory: %w", httpx.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("inventory: invalid input: %w", httpx.ErrValidation)
)
