package deals

import (
	"context"
	"strconv"

	"github.com/atlas-dms/atlas-dms/internal/approvals"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// Service orchestrates deal workflows. Approval decisions themselves live in
// the approvals engine; submission here seeds the level-1 row.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// SubmitInput describes a new deal.
type SubmitInput struct {
	LeadID int64
	Title  string
	Amount float64
}

// Submit creates the deal in pending_approval_l1 together with its first
// approval row and the audit entry, all in one transaction.
func (s *Service) Submit(ctx context.Context, identity shared.Identity, input SubmitInput) (Deal, error) {
	if input.LeadID == 0 || input.Title == "" || input.Amount <= 0 {
		return Deal{}, ErrValidation
	}
	deal := Deal{
		LeadID:        input.LeadID,
		Title:         input.Title,
		Amount:        input.Amount,
		ApprovalLevel: 1,
		Status:        StatusPendingL1,
		CreatedBy:     identity.UserID,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateDeal(ctx, deal)
		if err != nil {
			return err
		}
		deal.ID = id
		if _, err := tx.InsertApproval(ctx, approvals.Approval{
			EntityType:   approvals.EntityDeal,
			EntityID:     id,
			Level:        1,
			ApproverRole: approvals.DealChain[0],
		}); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "DEAL_SUBMIT",
			Entity:   "deal",
			EntityID: strconv.FormatInt(id, 10),
			Changes:  map[string]any{"lead_id": input.LeadID, "amount": input.Amount},
		})
	})
	if err != nil {
		return Deal{}, err
	}
	return deal, nil
}

// Get returns one deal.
func (s *Service) Get(ctx context.Context, id int64) (Deal, error) {
	return s.repo.Get(ctx, id)
}

// List returns deals with an optional status filter.
func (s *Service) List(ctx context.Context, limit, offset int, status string) ([]Deal, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset, status)
}
