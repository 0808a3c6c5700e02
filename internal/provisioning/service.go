package provisioning

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/atlas-dms/atlas-dms/internal/outbox"
	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// Service handles provisioning lifecycle and pre-delivery inspections.
type Service struct {
	logger *slog.Logger
	repo   RepositoryPort
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, repo RepositoryPort) *Service {
	return &Service{logger: logger, repo: repo}
}

// CreateInput describes a new provision request.
type CreateInput struct {
	OEMID     int64
	ProductID int64
	Quantity  int
}

// Create registers a provision in acknowledged state.
func (s *Service) Create(ctx context.Context, identity shared.Identity, input CreateInput) (Provision, error) {
	if input.OEMID == 0 || input.ProductID == 0 || input.Quantity <= 0 {
		return Provision{}, ErrValidation
	}
	provision := Provision{
		OEMID:     input.OEMID,
		ProductID: input.ProductID,
		Quantity:  input.Quantity,
		Status:    StatusAcknowledged,
		CreatedBy: identity.UserID,
	}
	id, err := s.repo.Create(ctx, provision)
	if err != nil {
		return Provision{}, err
	}
	provision.ID = id
	return provision, nil
}

// Get returns one provision.
func (s *Service) Get(ctx context.Context, id int64) (Provision, error) {
	return s.repo.Get(ctx, id)
}

// List returns provisions with an optional status filter.
func (s *Service) List(ctx context.Context, limit, offset int, status string) ([]Provision, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset, status)
}

// SetStatus moves a provision along the transition table. force skips the
// table entirely; the override is always audited with the flag.
func (s *Service) SetStatus(ctx context.Context, identity shared.Identity, id int64, to Status, reason string, force bool) error {
	if !Known(to) {
		return ErrValidation
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		provision, err := tx.GetForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if !force && !CanTransition(provision.Status, to) {
			return ErrIllegalTransition
		}
		if err := tx.SetStatus(ctx, id, to, reason); err != nil {
			return err
		}
		changes := map[string]any{"from": string(provision.Status), "to": string(to)}
		if force {
			changes["force"] = true
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "PROVISION_STATUS",
			Entity:   "provision",
			EntityID: strconv.FormatInt(id, 10),
			Changes:  changes,
		})
	})
}

var oemReplyOutcomes = map[Status]bool{
	StatusReadyForPDI:  true,
	StatusNotAvailable: true,
	StatusAcknowledged: true,
}

// HandleOEMReply applies an inbound oem-reply webhook. A ready_for_pdi
// outcome also queues the pdi-needed event; if that enqueue fails the status
// change still commits and the failure is only logged.
func (s *Service) HandleOEMReply(ctx context.Context, provisionID int64, outcome Status, reason string) error {
	if !oemReplyOutcomes[outcome] {
		return ErrValidation
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		provision, err := tx.GetForUpdate(ctx, provisionID)
		if err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, provisionID, outcome, reason); err != nil {
			return err
		}
		if outcome == StatusReadyForPDI {
			if err := tx.Enqueue(ctx, outbox.EventPDINeeded, map[string]any{
				"provision_id": provisionID,
				"oem_id":       provision.OEMID,
			}); err != nil {
				s.logger.Error("enqueue pdi-needed",
					slog.Int64("provision_id", provisionID),
					slog.Any("error", err))
			}
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			Action:   "PROVISION_OEM_REPLY",
			Entity:   "provision",
			EntityID: strconv.FormatInt(provisionID, 10),
			Changes:  map[string]any{"from": string(provision.Status), "to": string(outcome)},
		})
	})
}

// HandleCancelled applies an inbound cancellation webhook. The move to
// cancelled is unconditional.
func (s *Service) HandleCancelled(ctx context.Context, provisionID int64, reason string) error {
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		provision, err := tx.GetForUpdate(ctx, provisionID)
		if err != nil {
			return err
		}
		if err := tx.SetStatus(ctx, provisionID, StatusCancelled, reason); err != nil {
			return err
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			Action:   "PROVISION_CANCELLED",
			Entity:   "provision",
			EntityID: strconv.FormatInt(provisionID, 10),
			Changes:  map[string]any{"from": string(provision.Status), "reason": reason},
		})
	})
}

// PDIInput describes one inspection outcome.
type PDIInput struct {
	ProvisionID int64
	OEMID       int64
	InventoryID int64
	Passed      bool
	Notes       string
}

// RecordPDI stores the inspection row. A failed inspection also flips the
// inventory unit to pdi_failed; a pass leaves finalization to goods receipt.
func (s *Service) RecordPDI(ctx context.Context, identity shared.Identity, input PDIInput) (PDIRecord, error) {
	if input.ProvisionID == 0 || input.OEMID == 0 || input.InventoryID == 0 {
		return PDIRecord{}, ErrValidation
	}
	record := PDIRecord{
		ProvisionID: input.ProvisionID,
		OEMID:       input.OEMID,
		InventoryID: input.InventoryID,
		Status:      PDIPassed,
		Notes:       input.Notes,
		RecordedBy:  identity.UserID,
	}
	if !input.Passed {
		record.Status = PDIFailed
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if _, err := tx.GetForUpdate(ctx, input.ProvisionID); err != nil {
			return err
		}
		id, err := tx.InsertPDI(ctx, record)
		if err != nil {
			return err
		}
		record.ID = id
		if record.Status == PDIFailed {
			if err := tx.SetInventoryStatus(ctx, input.InventoryID, "pdi_failed"); err != nil {
				return err
			}
		}
		return tx.AppendAudit(ctx, shared.AuditLog{
			ActorID:  identity.UserID,
			Action:   "PDI_RECORD",
			Entity:   "provision",
			EntityID: strconv.FormatInt(input.ProvisionID, 10),
			Changes:  map[string]any{"inventory_id": input.InventoryID, "pdi_status": string(record.Status)},
		})
	})
	if err != nil {
		return PDIRecord{}, err
	}
	return record, nil
}

// ListPDI returns inspection rows for a provision.
func (s *Service) ListPDI(ctx context.Context, provisionID int64) ([]PDIRecord, error) {
	return s.repo.ListPDI(ctx, provisionID)
}
