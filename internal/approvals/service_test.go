package approvals

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/atlas-dms/atlas-dms/internal/rbac"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

type dealRecord struct {
	status string
	reason string
}

type memoryApprovalRepo struct {
	approvals map[int64]Approval
	deals     map[int64]*dealRecord
	audits    []shared.AuditLog
	nextID    int64
}

func newMemoryApprovalRepo() *memoryApprovalRepo {
	return &memoryApprovalRepo{
		approvals: make(map[int64]Approval),
		deals:     make(map[int64]*dealRecord),
	}
}

func (r *memoryApprovalRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryApprovalTx{repo: r})
}

func (r *memoryApprovalRepo) Get(ctx context.Context, id int64) (Approval, error) {
	approval, ok := r.approvals[id]
	if !ok {
		return Approval{}, ErrNotFound
	}
	return approval, nil
}

func (r *memoryApprovalRepo) CountPending(ctx context.Context, roles []rbac.Role) (int64, error) {
	set := make(map[rbac.Role]bool, len(roles))
	for _, role := range roles {
		set[role] = true
	}
	var count int64
	for _, approval := range r.approvals {
		if approval.Status == StatusPending && set[approval.ApproverRole] {
			count++
		}
	}
	return count, nil
}

type memoryApprovalTx struct {
	repo *memoryApprovalRepo
}

func (t *memoryApprovalTx) Resolve(ctx context.Context, id int64, status Status, decidedBy int64, reason string) (bool, error) {
	approval, ok := t.repo.approvals[id]
	if !ok || approval.Status != StatusPending {
		return false, nil
	}
	approval.Status = status
	approval.DecidedBy = decidedBy
	approval.Reason = reason
	t.repo.approvals[id] = approval
	return true, nil
}

func (t *memoryApprovalTx) InsertApproval(ctx context.Context, approval Approval) (int64, error) {
	t.repo.nextID++
	approval.ID = t.repo.nextID
	approval.Status = StatusPending
	t.repo.approvals[approval.ID] = approval
	return approval.ID, nil
}

func (t *memoryApprovalTx) SetDealStatus(ctx context.Context, dealID int64, status, reason string) error {
	deal, ok := t.repo.deals[dealID]
	if !ok {
		return ErrNotFound
	}
	deal.status = status
	deal.reason = reason
	return nil
}

func (t *memoryApprovalTx) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	t.repo.audits = append(t.repo.audits, log)
	return nil
}

func seedDealApproval(repo *memoryApprovalRepo, level int, role rbac.Role) int64 {
	repo.nextID++
	repo.approvals[repo.nextID] = Approval{
		ID:           repo.nextID,
		EntityType:   EntityDeal,
		EntityID:     100,
		Level:        level,
		ApproverRole: role,
		Status:       StatusPending,
	}
	repo.deals[100] = &dealRecord{status: "pending_approval_l1"}
	return repo.nextID
}

var (
	salesManager = shared.Identity{UserID: 21, Role: "sales_manager"}
	financeMgr   = shared.Identity{UserID: 23, Role: "finance_manager"}
	dealerUser   = shared.Identity{UserID: 30, Role: "dealer_admin"}
)

func TestRejectMarksDealAndIsTerminal(t *testing.T) {
	repo := newMemoryApprovalRepo()
	id := seedDealApproval(repo, 1, rbac.RoleSalesManager)
	svc := NewService(repo, nil, nil)

	err := svc.Reject(context.Background(), salesManager, id, "pricing out of band")
	require.NoError(t, err)
	require.Equal(t, StatusRejected, repo.approvals[id].Status)
	require.Equal(t, "rejected", repo.deals[100].status)
	require.Equal(t, "pricing out of band", repo.deals[100].reason)
	require.Len(t, repo.audits, 1)

	// No cascade: rejection created no further approval rows.
	require.Len(t, repo.approvals, 1)
}

func TestResolvedApprovalIsImmutable(t *testing.T) {
	repo := newMemoryApprovalRepo()
	id := seedDealApproval(repo, 1, rbac.RoleSalesManager)
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.Reject(context.Background(), salesManager, id, "dup"))
	auditCount := len(repo.audits)

	err := svc.Reject(context.Background(), salesManager, id, "again")
	require.ErrorIs(t, err, ErrAlreadyResolved)
	err = svc.Approve(context.Background(), salesManager, id)
	require.ErrorIs(t, err, ErrAlreadyResolved)

	require.Equal(t, "dup", repo.approvals[id].Reason)
	require.Len(t, repo.audits, auditCount)
}

func TestRejectRequiresMatchingRoleAndReason(t *testing.T) {
	repo := newMemoryApprovalRepo()
	id := seedDealApproval(repo, 1, rbac.RoleSalesManager)
	svc := NewService(repo, nil, nil)

	err := svc.Reject(context.Background(), financeMgr, id, "not mine")
	require.ErrorIs(t, err, ErrWrongRole)

	err = svc.Reject(context.Background(), salesManager, id, "")
	require.ErrorIs(t, err, ErrValidation)

	err = svc.Reject(context.Background(), salesManager, 999, "missing")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestApproveAdvancesChainThenApprovesDeal(t *testing.T) {
	repo := newMemoryApprovalRepo()
	id := seedDealApproval(repo, 1, rbac.RoleSalesManager)
	svc := NewService(repo, nil, nil)

	require.NoError(t, svc.Approve(context.Background(), salesManager, id))
	require.Equal(t, "pending_approval_l2", repo.deals[100].status)
	require.Len(t, repo.approvals, 2)

	var level2 Approval
	for _, approval := range repo.approvals {
		if approval.Level == 2 {
			level2 = approval
		}
	}
	require.Equal(t, rbac.RoleSalesHead, level2.ApproverRole)
	require.Equal(t, StatusPending, level2.Status)

	salesHead := shared.Identity{UserID: 22, Role: "sales_head"}
	require.NoError(t, svc.Approve(context.Background(), salesHead, level2.ID))
	require.Equal(t, "pending_approval_l3", repo.deals[100].status)

	var level3 Approval
	for _, approval := range repo.approvals {
		if approval.Level == 3 {
			level3 = approval
		}
	}
	require.NoError(t, svc.Approve(context.Background(), financeMgr, level3.ID))
	require.Equal(t, "approved", repo.deals[100].status)
}

func TestCountPendingVisibility(t *testing.T) {
	repo := newMemoryApprovalRepo()
	seedDealApproval(repo, 1, rbac.RoleSalesManager)
	repo.nextID++
	repo.approvals[repo.nextID] = Approval{
		ID: repo.nextID, EntityType: EntityDispute, EntityID: 7,
		Level: 1, ApproverRole: rbac.RoleFinanceManager, Status: StatusPending,
	}
	svc := NewService(repo, nil, nil)

	count, err := svc.CountPending(context.Background(), salesManager)
	require.NoError(t, err)
	require.EqualValues(t, 1, count)

	count, err = svc.CountPending(context.Background(), shared.Identity{UserID: 1, Role: "ceo"})
	require.NoError(t, err)
	require.EqualValues(t, 2, count)

	count, err = svc.CountPending(context.Background(), dealerUser)
	require.NoError(t, err)
	require.Zero(t, count)
}
