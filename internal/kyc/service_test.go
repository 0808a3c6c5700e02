package kyc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/atlas-dms/atlas-dms/internal/leads"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

type memoryKYCRepo struct {
	leads     map[int64]leads.Lead
	sessions  map[int64]Session // keyed by lead id
	loanFiles map[int64]int
	audits    []shared.AuditLog
	nextID    int64
}

func newMemoryKYCRepo() *memoryKYCRepo {
	return &memoryKYCRepo{
		leads:     make(map[int64]leads.Lead),
		sessions:  make(map[int64]Session),
		loanFiles: make(map[int64]int),
	}
}

func (r *memoryKYCRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryKYCTx{repo: r})
}

func (r *memoryKYCRepo) GetLead(ctx context.Context, leadID int64) (leads.Lead, error) {
	lead, ok := r.leads[leadID]
	if !ok {
		return leads.Lead{}, ErrLeadNotFound
	}
	return lead, nil
}

func (r *memoryKYCRepo) GetSessionByLead(ctx context.Context, leadID int64) (Session, error) {
	session, ok := r.sessions[leadID]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return session, nil
}

func (r *memoryKYCRepo) CreateSession(ctx context.Context, session Session) (Session, error) {
	r.nextID++
	session.ID = r.nextID
	r.sessions[session.LeadID] = session
	return session, nil
}

func (r *memoryKYCRepo) UpdateSession(ctx context.Context, session Session) error {
	if _, ok := r.sessions[session.LeadID]; !ok {
		return ErrSessionNotFound
	}
	r.sessions[session.LeadID] = session
	return nil
}

type memoryKYCTx struct {
	repo *memoryKYCRepo
}

func (t *memoryKYCTx) UpdateSession(ctx context.Context, session Session) error {
	return t.repo.UpdateSession(ctx, session)
}

func (t *memoryKYCTx) QualifyLead(ctx context.Context, leadID int64, workflowStep int) error {
	lead, ok := t.repo.leads[leadID]
	if !ok {
		return ErrLeadNotFound
	}
	lead.Status = leads.StatusQualified
	lead.WorkflowStep = workflowStep
	t.repo.leads[leadID] = lead
	return nil
}

func (t *memoryKYCTx) InsertLoanFacilitationFile(ctx context.Context, leadID int64) (bool, error) {
	if t.repo.loanFiles[leadID] > 0 {
		return false, nil
	}
	t.repo.loanFiles[leadID] = 1
	return true, nil
}

func (t *memoryKYCTx) AppendAudit(ctx context.Context, log shared.AuditLog) error {
	t.repo.audits = append(t.repo.audits, log)
	return nil
}

var kycIdentity = shared.Identity{UserID: 5, Email: "dealer@example.com", Role: "dealer"}

func newKYCFixture(t *testing.T, interest leads.InterestLevel) (*Service, *memoryKYCRepo) {
	t.Helper()
	repo := newMemoryKYCRepo()
	repo.leads[1] = leads.Lead{ID: 1, InterestLevel: interest, Status: leads.StatusNew, WorkflowStep: 2}
	return NewServiceWithDelay(repo, time.Millisecond), repo
}

func TestAccessRequiresHotLead(t *testing.T) {
	svc, _ := newKYCFixture(t, leads.InterestWarm)
	_, err := svc.Access(context.Background(), 1)
	require.ErrorIs(t, err, ErrLeadNotHot)

	svc2, _ := newKYCFixture(t, leads.InterestHot)
	_, err = svc2.Access(context.Background(), 404)
	require.ErrorIs(t, err, ErrLeadNotFound)
}

func TestAccessCreatesSessionLazilyOnce(t *testing.T) {
	svc, repo := newKYCFixture(t, leads.InterestHot)

	first, err := svc.Access(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, SessionPending, first.Status)
	require.Empty(t, first.Documents)

	second, err := svc.Access(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID)
	require.Len(t, repo.sessions, 1)
}

func TestSetPaymentMethodRecomputesRequiredTotal(t *testing.T) {
	svc, _ := newKYCFixture(t, leads.InterestHot)

	session, err := svc.SetPaymentMethod(context.Background(), 1, PaymentFinance)
	require.NoError(t, err)
	require.Equal(t, 3, session.RequiredTotal)

	session, err = svc.SetPaymentMethod(context.Background(), 1, PaymentUpfront)
	require.NoError(t, err)
	require.Equal(t, 2, session.RequiredTotal)

	_, err = svc.SetPaymentMethod(context.Background(), 1, "barter")
	require.ErrorIs(t, err, ErrInvalidPaymentMethod)
}

func TestVerifyDocument(t *testing.T) {
	svc, repo := newKYCFixture(t, leads.InterestHot)

	result, err := svc.VerifyDocument(context.Background(), 1, "pan", "FAIL123", "scan-1")
	require.NoError(t, err)
	require.Equal(t, "failed", result.Status)
	require.Empty(t, repo.sessions[1].Documents)

	result, err = svc.VerifyDocument(context.Background(), 1, "pan", "OK123", "scan-1")
	require.NoError(t, err)
	require.Equal(t, "verified", result.Status)
	require.Equal(t, "OK123", repo.sessions[1].Documents["pan"].Number)
	require.Equal(t, "verified", repo.sessions[1].Verification["pan"])
}

func TestCompleteQualifiesLeadAndIsIdempotentForLoanFiles(t *testing.T) {
	svc, repo := newKYCFixture(t, leads.InterestHot)

	_, err := svc.SetPaymentMethod(context.Background(), 1, PaymentFinance)
	require.NoError(t, err)

	session, err := svc.Complete(context.Background(), kycIdentity, 1)
	require.NoError(t, err)
	require.Equal(t, SessionCompleted, session.Status)
	require.Equal(t, leads.StatusQualified, repo.leads[1].Status)
	require.Equal(t, 3, repo.leads[1].WorkflowStep)
	require.Equal(t, 1, repo.loanFiles[1])

	// Second completion must not create a second loan file.
	_, err = svc.Complete(context.Background(), kycIdentity, 1)
	require.NoError(t, err)
	require.Equal(t, 1, repo.loanFiles[1])
}

func TestCompleteUpfrontSkipsLoanFile(t *testing.T) {
	svc, repo := newKYCFixture(t, leads.InterestHot)

	_, err := svc.SetPaymentMethod(context.Background(), 1, PaymentUpfront)
	require.NoError(t, err)
	_, err = svc.Complete(context.Background(), kycIdentity, 1)
	require.NoError(t, err)
	require.Zero(t, repo.loanFiles[1])
	require.Len(t, repo.audits, 1)
}
