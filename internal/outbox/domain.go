package outbox

import (
	"encoding/json"
	"time"
)

// Status tracks delivery of an outbound event.
type Status string

const (
	StatusPending   Status = "pending"
	StatusDelivered Status = "delivered"
	StatusFailed    Status = "failed"
)

// Event names known to the automation hook.
const (
	EventOEMOnboarded   = "oem-onboarded"
	EventCatalogCreated = "product-catalog-created"
	EventPDINeeded      = "pdi-needed"
)

// Event is one row in the webhook outbox.
type Event struct {
	ID        int64
	Type      string
	Payload   json.RawMessage
	Status    Status
	Attempts  int
	LastError string
	CreatedAt time.Time
}
