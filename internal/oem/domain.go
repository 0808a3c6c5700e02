package oem

import (
	"fmt"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
)

// Status marks whether an OEM is available for provisioning.
type Status string

const (
	StatusActive   Status = "active"
	StatusInactive Status = "inactive"
)

// Contact roles every OEM must carry, exactly once each.
const (
	ContactSalesHead      = "sales_head"
	ContactSalesManager   = "sales_manager"
	ContactFinanceManager = "finance_manager"
)

// OEM is a vehicle manufacturer the dealership provisions from.
type OEM struct {
	ID        int64
	Name      string
	Region    string
	Status    Status
	Contacts  []Contact
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Contact is one named person at the OEM.
type Contact struct {
	ID    int64
	OEMID int64
	Name  string
	Email string
	Phone string
	Role  string
}

var (
	// ErrNotFound indicates the OEM is missing.
	ErrNotFound = fmt.Errorf("oem: %w", httpx.ErrNotFound)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("oem: invalid input: %w", httpx.ErrValidation)
	// ErrContactRoles indicates the contact set is not exactly one
	// sales_head, one sales_manager and one finance_manager.
	ErrContactRoles = fmt.Errorf("oem: contacts must cover sales_head, sales_manager and finance_manager exactly once: %w", httpx.ErrValidation)
)

var requiredContactRoles = []string{ContactSalesHead, ContactSalesManager, ContactFinanceManager}

// ValidateContacts checks the exact role coverage before anything is written.
func ValidateContacts(contacts []Contact) error {
	if len(contacts) != len(requiredContactRoles) {
		return ErrContactRoles
	}
	seen := make(map[string]bool, len(contacts))
	for _, contact := range contacts {
		if seen[contact.Role] {
			return ErrContactRoles
		}
		seen[contact.Role] = true
	}
	for _, role := range requiredContactRoles {
		if !seen[role] {
			return ErrContactRoles
		}
	}
	return nil
}
