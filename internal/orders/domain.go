package orders

import (
	"fmt"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
)

// OrderStatus tracks the commercial side of an order.
type OrderStatus string

const (
	OrderPlaced    OrderStatus = "placed"
	OrderDelivered OrderStatus = "delivered"
	OrderCancelled OrderStatus = "cancelled"
)

// DeliveryStatus tracks the physical side of an order.
type DeliveryStatus string

const (
	DeliveryPending   DeliveryStatus = "pending"
	DeliveryDelivered DeliveryStatus = "delivered"
)

// Order groups reserved inventory units for a customer handover.
type Order struct {
	ID             int64
	DealID         int64
	ItemIDs        []int64
	OrderStatus    OrderStatus
	DeliveryStatus DeliveryStatus
	GRNID          string
	GRNDate        time.Time
	CreatedBy      int64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// DisputeStatus is the lifecycle of a delivery dispute.
type DisputeStatus string

const (
	DisputeOpen     DisputeStatus = "open"
	DisputeResolved DisputeStatus = "resolved"
	DisputeClosed   DisputeStatus = "closed"
)

// Dispute records a customer complaint against an order.
type Dispute struct {
	ID         int64
	OrderID    int64
	Subject    string
	Detail     string
	Status     DisputeStatus
	AssigneeID int64
	Resolution string
	CreatedBy  int64
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

var (
	// ErrNotFound indicates the order is missing.
	ErrNotFound = fmt.Errorf("orders: %w", httpx.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("orders: invalid input: %w", httpx.ErrValidation)
	// ErrAlreadyDelivered indicates the order already has a goods receipt.
	ErrAlreadyDelivered = fmt.Errorf("orders: order already delivered: %w", httpx.ErrConflict)
	// ErrDuplicateGRNRequest indicates a replayed idempotency key.
	ErrDuplicateGRNRequest = fmt.Errorf("orders: goods receipt already submitted for this key: %w", httpx.ErrConflict)
	// ErrDisputeNotFound indicates the dispute is missing.
	ErrDisputeNotFound = fmt.Errorf("orders: dispute: %w", httpx.ErrNotFound)
	// ErrDisputeClosed indicates the dispute is no longer open.
	ErrDisputeClosed = fmt.Errorf("orders: dispute not open: %w", httpx.ErrConflict)
	// ErrNotAssignee indicates the caller may not resolve the dispute.
	ErrNotAssignee = fmt.Errorf("orders: dispute can only be resolved by its assignee or a senior role: %w", httpx.ErrForbidden)
)
