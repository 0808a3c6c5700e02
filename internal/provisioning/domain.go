package provisioning

import (
	"fmt"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
)

// Status is the provisioning state of an OEM order line.
type Status string

const (
	StatusAcknowledged Status = "acknowledged"
	StatusInProduction Status = "in_production"
	StatusReadyForPDI  Status = "ready_for_pdi"
	StatusCompleted    Status = "completed"
	StatusNotAvailable Status = "not_available"
	StatusCancelled    Status = "cancelled"
)

// transitions is the only legal forward path. Anything else requires the
// audited force override.
var transitions = map[Status][]Status{
	StatusAcknowledged: {StatusInProduction, StatusNotAvailable, StatusCancelled},
	StatusInProduction: {StatusReadyForPDI, StatusNotAvailable, StatusCancelled},
	StatusReadyForPDI:  {StatusCompleted, StatusCancelled},
	StatusCompleted:    {},
	StatusNotAvailable: {},
	StatusCancelled:    {},
}

// CanTransition reports whether from may move to to without force.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Known reports whether s is a valid provision status.
func Known(s Status) bool {
	_, ok := transitions[s]
	return ok
}

// Provision is a request to an OEM to supply units of a product.
type Provision struct {
	ID        int64
	OEMID     int64
	ProductID int64
	Quantity  int
	Status    Status
	Reason    string
	CreatedBy int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// PDIStatus is the pre-delivery inspection outcome for one unit.
type PDIStatus string

const (
	PDIPending PDIStatus = "pending"
	PDIPassed  PDIStatus = "passed"
	PDIFailed  PDIStatus = "failed"
)

// PDIRecord joins a provision, its OEM and one inventory unit to an
// inspection outcome.
type PDIRecord struct {
	ID          int64
	ProvisionID int64
	OEMID       int64
	InventoryID int64
	Status      PDIStatus
	Notes       string
	RecordedBy  int64
	RecordedAt  time.Time
}

var (
	// ErrNotFound indicates the provision is missing.
	ErrNotFound = fmt.Errorf("provisioning: %w", httpx.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("provisioning: invalid input: %w", httpx.ErrValidation)
	// ErrIllegalTransition indicates the status move is not on the
	// transition table.
	ErrIllegalTransition = fmt.Errorf("provisioning: illegal status transition: %w", httpx.ErrConflict)
	// ErrPDINotFound indicates the inspection row is missing.
	ErrPDINotFound = fmt.Errorf("provisioning: pdi record: %w", httpx.ErrNotFound)
)
