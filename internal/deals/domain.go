package deals

import (
	"fmt"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
)

// Status is the deal lifecycle state.
type Status string

const (
	StatusPendingL1 Status = "pending_approval_l1"
	StatusPendingL2 Status = "pending_approval_l2"
	StatusPendingL3 Status = "pending_approval_l3"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
)

// Deal is a priced transaction tied to a lead.
type Deal struct {
	ID              int64
	LeadID          int64
	Title           string
	Amount          float64
	ApprovalLevel   int
	Status          Status
	RejectionReason string
	CreatedBy       int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

var (
	// ErrNotFound indicates the deal is missing.
	ErrNotFound = fmt.Errorf("deals: %w", httpx.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("deals: invalid input: %w", httpx.ErrValidation)
)
