package kyc

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/leads"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

const (
	// qualifiedWorkflowStep is the lead workflow step reached on completion.
	qualifiedWorkflowStep = 3
	// defaultVerifyDelay mimics the upstream document-verification latency.
	defaultVerifyDelay = 1500 * time.Millisecond
)

// Service drives the per-lead KYC state machine.
type Service struct {
	repo        RepositoryPort
	verifyDelay time.Duration
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo, verifyDelay: defaultVerifyDelay}
}

// NewServiceWithDelay constructs a Service with a custom verification delay.
func NewServiceWithDelay(repo RepositoryPort, delay time.Duration) *Service {
	return &Service{repo: repo, verifyDelay: delay}
}

// Access gates KYC entry. The lead must exist and be hot; the session row is
// created lazily on first access.
func (s *Service) Access(ctx context.Context, leadID int64) (Session, error) {
	lead, err := s.repo.GetLead(ctx, leadID)
	if err != nil {
		return Session{}, err
	}
	if lead.InterestLevel != leads.InterestHot {
		return Session{}, ErrLeadNotHot
	}
	session, err := s.repo.GetSessionByLead(ctx, leadID)
	if err == nil {
		return session, nil
	}
	if !errors.Is(err, ErrSessionNotFound) {
		return Session{}, err
	}
	return s.repo.CreateSession(ctx, Session{
		LeadID:        leadID,
		RequiredTotal: RequiredDocuments(""),
		Documents:     map[string]Document{},
		Verification:  map[string]string{},
		ConsentStatus: ConsentUnsent,
		Status:        SessionPending,
	})
}

// SetPaymentMethod selects finance or upfront and recomputes the required
// document total accordingly.
func (s *Service) SetPaymentMethod(ctx context.Context, leadID int64, method PaymentMethod) (Session, error) {
	if method != PaymentFinance && method != PaymentUpfront {
		return Session{}, ErrInvalidPaymentMethod
	}
	session, err := s.Access(ctx, leadID)
	if err != nil {
		return Session{}, err
	}
	if session.Status == SessionCompleted {
		return Session{}, ErrSessionCompleted
	}
	session.PaymentMethod = method
	session.RequiredTotal = RequiredDocuments(method)
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// SetConsent updates the consent flag.
func (s *Service) SetConsent(ctx context.Context, leadID int64, consent ConsentStatus) (Session, error) {
	if consent != ConsentSent && consent != ConsentUnsent {
		return Session{}, ErrValidation
	}
	session, err := s.Access(ctx, leadID)
	if err != nil {
		return Session{}, err
	}
	session.ConsentStatus = consent
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return Session{}, err
	}
	return session, nil
}

// VerifyDocument runs the (synthetic) document check. Document numbers
// containing "fail" report a failed verification and persist nothing; every
// other number verifies after the configured processing delay.
func (s *Service) VerifyDocument(ctx context.Context, leadID int64, docType, number, scanRef string) (VerificationResult, error) {
	if docType == "" || number == "" {
		return VerificationResult{}, ErrValidation
	}
	session, err := s.Access(ctx, leadID)
	if err != nil {
		return VerificationResult{}, err
	}
	if session.Status == SessionCompleted {
		return VerificationResult{}, ErrSessionCompleted
	}

	if strings.Contains(strings.ToLower(number), "fail") {
		return VerificationResult{DocumentType: docType, Status: "failed"}, nil
	}

	select {
	case <-time.After(s.verifyDelay):
	case <-ctx.Done():
		return VerificationResult{}, ctx.Err()
	}

	session.Documents[docType] = Document{
		Type:       docType,
		Number:     number,
		ScanRef:    scanRef,
		VerifiedAt: time.Now().UTC(),
	}
	session.Verification[docType] = "verified"
	if err := s.repo.UpdateSession(ctx, session); err != nil {
		return VerificationResult{}, err
	}
	return VerificationResult{DocumentType: docType, Status: "verified"}, nil
}

// Complete marks the session done and qualifies the parent lead in one
// transaction. Finance customers get exactly one loan facilitation file;
// repeat completion is tolerated and does not duplicate it.
func (s *Service) Complete(ctx context.Context, identity shared.Identity, leadID int64) (Session, error) {
	session, err := s.Access(ctx, leadID)
	if err != nil {
		return Session{}, err
	}
	session.Status = SessionCompleted
	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.UpdateSession(ctx, session); err != nil {
			return err
		}
		if err := tx.QualifyLead(ctx, leadID, qualifiedWorkflowStep); err != nil {
			return err
		}
		if session.PaymentMethod == PaymentFinance {
			if _, err := tx.InsertLoanFacilitationFile(ctx, leadID); err != nil {
				return err
			}
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "KYC_COMPLETE",
			Entity:   "kyc_session",
			EntityID: strconv.FormatInt(session.ID, 10),
			Changes:  map[string]any{"lead_id": leadID, "payment_method": string(session.PaymentMethod)},
		})
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}
