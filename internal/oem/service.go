package oem

import (
	"context"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/atlas-dms/atlas-dms/internal/outbox"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

var titleCaser = cases.Title(language.English)

// Service handles OEM onboarding and lifecycle.
type Service struct {
	repo RepositoryPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateInput describes a new OEM with its mandatory contact set.
type CreateInput struct {
	Name     string
	Region   string
	Contacts []Contact
}

// Create validates the contact roles, then writes the OEM, its contacts, the
// oem-onboarded outbox event and the audit row in one transaction.
func (s *Service) Create(ctx context.Context, identity shared.Identity, input CreateInput) (OEM, error) {
	if input.Name == "" {
		return OEM{}, ErrValidation
	}
	if err := ValidateContacts(input.Contacts); err != nil {
		return OEM{}, err
	}
	item := OEM{
		Name:   strings.TrimSpace(input.Name),
		Region: input.Region,
		Status: StatusActive,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.CreateOEM(ctx, item)
		if err != nil {
			return err
		}
		item.ID = id
		for _, contact := range input.Contacts {
			contact.OEMID = id
			contact.Name = titleCaser.String(strings.TrimSpace(contact.Name))
			contact.Email = strings.ToLower(strings.TrimSpace(contact.Email))
			if err := tx.InsertContact(ctx, contact); err != nil {
				return err
			}
			item.Contacts = append(item.Contacts, contact)
		}
		if err := tx.Enqueue(ctx, outbox.EventOEMOnboarded, map[string]any{
			"oem_id": id,
			"name":   item.Name,
			"region": item.Region,
		}); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "OEM_CREATE",
			Entity:   "oem",
			EntityID: strconv.FormatInt(id, 10),
			Changes:  map[string]any{"name": item.Name},
		})
	})
	if err != nil {
		return OEM{}, err
	}
	return item, nil
}

// Get returns one OEM with contacts.
func (s *Service) Get(ctx context.Context, id int64) (OEM, error) {
	return s.repo.Get(ctx, id)
}

// List returns OEM summaries.
func (s *Service) List(ctx context.Context, limit, offset int) ([]OEM, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset)
}

// SetStatus activates or deactivates an OEM.
func (s *Service) SetStatus(ctx context.Context, id int64, status Status) error {
	if status != StatusActive && status != StatusInactive {
		return ErrValidation
	}
	ok, err := s.repo.SetStatus(ctx, id, status)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound
	}
	return nil
}
