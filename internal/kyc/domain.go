package kyc

import (
	"fmt"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
)

// PaymentMethod selects how the customer pays, which drives the number of
// documents the session requires.
type PaymentMethod string

const (
	PaymentFinance PaymentMethod = "finance"
	PaymentUpfront PaymentMethod = "upfront"
)

// RequiredDocuments returns the document count for a payment method.
func RequiredDocuments(method PaymentMethod) int {
	if method == PaymentFinance {
		return 3
	}
	return 2
}

// SessionStatus is the KYC session lifecycle state.
type SessionStatus string

const (
	SessionPending   SessionStatus = "pending"
	SessionCompleted SessionStatus = "completed"
)

// ConsentStatus tracks whether the consent request went out.
type ConsentStatus string

const (
	ConsentUnsent ConsentStatus = "unsent"
	ConsentSent   ConsentStatus = "sent"
)

// Document is a collected KYC document.
type Document struct {
	Type       string    `json:"type"`
	Number     string    `json:"number"`
	ScanRef    string    `json:"scan_ref"`
	VerifiedAt time.Time `json:"verified_at"`
}

// Session holds per-lead document collection state. One session per lead,
// created lazily on first access check.
type Session struct {
	ID            int64
	LeadID        int64
	PaymentMethod PaymentMethod
	RequiredTotal int
	Documents     map[string]Document
	Verification  map[string]string
	ConsentStatus ConsentStatus
	Status        SessionStatus
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// VerificationResult reports the outcome of a document check.
type VerificationResult struct {
	DocumentType string `json:"document_type"`
	Status       string `json:"status"`
}

var (
	// ErrLeadNotFound indicates the parent lead is missing.
	ErrLeadNotFound = fmt.Errorf("kyc: lead %w", httpx.ErrNotFound)
	// ErrSessionNotFound indicates no session exists for the lead yet.
	ErrSessionNotFound = fmt.Errorf("kyc: session %w", httpx.ErrNotFound)
	// ErrLeadNotHot blocks KYC until the lead's interest level is hot.
	ErrLeadNotHot = fmt.Errorf("kyc: lead interest level is not hot: %w", httpx.ErrForbidden)
	// ErrInvalidPaymentMethod rejects unknown payment methods.
	ErrInvalidPaymentMethod = fmt.Errorf("kyc: payment method must be finance or upfront: %w", httpx.ErrValidation)
	// ErrSessionCompleted blocks mutation of a finished session.
	ErrSessionCompleted = fmt.Errorf("kyc: session already completed: %w", httpx.ErrConflict)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("kyc: invalid input: %w", httpx.ErrValidation)
)
