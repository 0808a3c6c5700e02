package approvals

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/atlas-dms/atlas-dms/internal/rbac"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// Deal status strings written by the engine. Owned by the deals table but
// spelled here so entity updates stay inside the decision transaction.
const (
	dealStatusApproved       = "approved"
	dealStatusRejected       = "rejected"
	dealStatusPendingPattern = "pending_approval_l%d"
)

const pendingCountTTL = 30 * time.Second

// Service drives approval decisions.
type Service struct {
	repo   RepositoryPort
	cache  *redis.Client
	logger *slog.Logger
}

// NewService constructs a Service. cache may be nil; counting then always
// hits the database.
func NewService(repo RepositoryPort, cache *redis.Client, logger *slog.Logger) *Service {
	return &Service{repo: repo, cache: cache, logger: logger}
}

// Reject resolves the approval as rejected and marks the owning deal
// rejected with the same reason, in one transaction. The rejection is
// terminal: remaining levels are never created.
func (s *Service) Reject(ctx context.Context, identity shared.Identity, approvalID int64, reason string) error {
	if reason == "" {
		return fmt.Errorf("approvals: rejection reason required: %w", ErrValidation)
	}
	approval, err := s.guardDecision(ctx, identity, approvalID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		resolved, err := tx.Resolve(ctx, approvalID, StatusRejected, identity.UserID, reason)
		if err != nil {
			return err
		}
		if !resolved {
			return ErrAlreadyResolved
		}
		if approval.EntityType == EntityDeal {
			if err := tx.SetDealStatus(ctx, approval.EntityID, dealStatusRejected, reason); err != nil {
				return err
			}
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "APPROVAL_REJECT",
			Entity:   string(approval.EntityType),
			EntityID: strconv.FormatInt(approval.EntityID, 10),
			Changes:  map[string]any{"approval_id": approvalID, "level": approval.Level, "reason": reason},
		})
	})
	if err != nil {
		return err
	}
	s.invalidateCounts(ctx)
	return nil
}

// Approve resolves the approval; when a higher level remains in the deal
// chain the next approval row is created and the deal advances to it,
// otherwise the deal is approved.
func (s *Service) Approve(ctx context.Context, identity shared.Identity, approvalID int64) error {
	approval, err := s.guardDecision(ctx, identity, approvalID)
	if err != nil {
		return err
	}
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		resolved, err := tx.Resolve(ctx, approvalID, StatusApproved, identity.UserID, "")
		if err != nil {
			return err
		}
		if !resolved {
			return ErrAlreadyResolved
		}
		changes := map[string]any{"approval_id": approvalID, "level": approval.Level}
		if approval.EntityType == EntityDeal {
			if approval.Level < len(DealChain) {
				next := approval.Level + 1
				if _, err := tx.InsertApproval(ctx, Approval{
					EntityType:   EntityDeal,
					EntityID:     approval.EntityID,
					Level:        next,
					ApproverRole: DealChain[next-1],
				}); err != nil {
					return err
				}
				if err := tx.SetDealStatus(ctx, approval.EntityID, fmt.Sprintf(dealStatusPendingPattern, next), ""); err != nil {
					return err
				}
				changes["next_level"] = next
			} else {
				if err := tx.SetDealStatus(ctx, approval.EntityID, dealStatusApproved, ""); err != nil {
					return err
				}
				changes["final"] = true
			}
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "APPROVAL_APPROVE",
			Entity:   string(approval.EntityType),
			EntityID: strconv.FormatInt(approval.EntityID, 10),
			Changes:  changes,
		})
	})
	if err != nil {
		return err
	}
	s.invalidateCounts(ctx)
	return nil
}

// CountPending returns the number of pending approvals the caller's role may
// see. Roles with no approver mapping get 0.
func (s *Service) CountPending(ctx context.Context, identity shared.Identity) (int64, error) {
	role := rbac.Normalize(identity.Role)
	visible := rbac.VisibleApproverRoles(role)
	if len(visible) == 0 {
		return 0, nil
	}
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, s.countKey(role)).Int64(); err == nil {
			return cached, nil
		}
	}
	count, err := s.repo.CountPending(ctx, visible)
	if err != nil {
		return 0, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, s.countKey(role), count, pendingCountTTL).Err(); err != nil && s.logger != nil {
			s.logger.Warn("cache pending count", slog.Any("error", err))
		}
	}
	return count, nil
}

// guardDecision loads the approval and applies the precondition checks that
// do not need the transaction: existence, resolved-state, and role gate.
// The pending re-check happens again inside Resolve's UPDATE.
func (s *Service) guardDecision(ctx context.Context, identity shared.Identity, approvalID int64) (Approval, error) {
	approval, err := s.repo.Get(ctx, approvalID)
	if err != nil {
		return Approval{}, err
	}
	if approval.Status != StatusPending {
		return Approval{}, ErrAlreadyResolved
	}
	if rbac.Normalize(identity.Role) != approval.ApproverRole {
		return Approval{}, ErrWrongRole
	}
	return approval, nil
}

func (s *Service) countKey(role rbac.Role) string {
	return "approvals:pending:" + string(role)
}

func (s *Service) invalidateCounts(ctx context.Context) {
	if s.cache == nil {
		return
	}
	for _, role := range []rbac.Role{rbac.RoleCEO, rbac.RoleSalesManager, rbac.RoleSalesHead, rbac.RoleFinanceManager} {
		if err := s.cache.Del(ctx, s.countKey(role)).Err(); err != nil && s.logger != nil {
			s.logger.Warn("invalidate pending count", slog.Any("error", err))
		}
	}
}
