// Package approvals implements the multi-level, role-gated sign-off chain
// attached to deals and order disputes.
package approvals

import (
	"fmt"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
	"github.com/atlas-dms/atlas-dms/internal/rbac"
)

// Status is the approval row lifecycle. A resolved row is immutable.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// EntityType names the owning entity kind.
type EntityType string

const (
	EntityDeal    EntityType = "deal"
	EntityDispute EntityType = "dispute"
)

// Approval is one required sign-off level for an entity.
type Approval struct {
	ID           int64
	EntityType   EntityType
	EntityID     int64
	Level        int
	ApproverRole rbac.Role
	Status       Status
	DecidedBy    int64
	DecidedAt    time.Time
	Reason       string
	CreatedAt    time.Time
}

// DealChain is the fixed approver sequence for deals, indexed by level-1.
var DealChain = []rbac.Role{rbac.RoleSalesManager, rbac.RoleSalesHead, rbac.RoleFinanceManager}

var (
	// ErrNotFound indicates the approval row is missing.
	ErrNotFound = fmt.Errorf("approvals: %w", httpx.ErrNotFound)
	// ErrAlreadyResolved blocks a second decision on the same row.
	ErrAlreadyResolved = fmt.Errorf("approvals: already resolved: %w", httpx.ErrConflict)
	// ErrWrongRole blocks callers whose role is not the required approver.
	ErrWrongRole = fmt.Errorf("approvals: caller is not the required approver: %w", httpx.ErrForbidden)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("approvals: invalid input: %w", httpx.ErrValidation)
)
