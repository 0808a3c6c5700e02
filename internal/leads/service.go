package leads

import (
	"context"
	"strconv"

	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// AuditPort records state-changing actions.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service orchestrates lead workflows.
type Service struct {
	repo  RepositoryPort
	audit AuditPort
}

// NewService constructs a Service.
func NewService(repo RepositoryPort, audit AuditPort) *Service {
	return &Service{repo: repo, audit: audit}
}

// CreateInput describes lead creation payload.
type CreateInput struct {
	Name          string
	Phone         string
	Email         string
	InterestLevel InterestLevel
	Notes         string
	AssignedTo    int64
}

// Create registers a new lead at workflow step 1.
func (s *Service) Create(ctx context.Context, identity shared.Identity, input CreateInput) (Lead, error) {
	if input.Name == "" || input.Phone == "" {
		return Lead{}, ErrValidation
	}
	switch input.InterestLevel {
	case InterestCold, InterestWarm, InterestHot:
	case "":
		input.InterestLevel = InterestCold
	default:
		return Lead{}, ErrValidation
	}
	lead := Lead{
		Name:          input.Name,
		Phone:         input.Phone,
		Email:         input.Email,
		InterestLevel: input.InterestLevel,
		Status:        StatusNew,
		WorkflowStep:  1,
		Notes:         input.Notes,
		AssignedTo:    input.AssignedTo,
	}
	id, err := s.repo.Create(ctx, lead)
	if err != nil {
		return Lead{}, err
	}
	lead.ID = id
	s.recordAudit(ctx, identity, "LEAD_CREATE", id, map[string]any{"name": lead.Name})
	return lead, nil
}

// Get returns one lead.
func (s *Service) Get(ctx context.Context, id int64) (Lead, error) {
	return s.repo.Get(ctx, id)
}

// List returns leads with an optional status filter.
func (s *Service) List(ctx context.Context, limit, offset int, status string) ([]Lead, error) {
	if limit <= 0 {
		limit = 20
	}
	return s.repo.List(ctx, limit, offset, status)
}

// SetInterest updates the interest grading of a lead.
func (s *Service) SetInterest(ctx context.Context, identity shared.Identity, id int64, level InterestLevel) (Lead, error) {
	switch level {
	case InterestCold, InterestWarm, InterestHot:
	default:
		return Lead{}, ErrValidation
	}
	lead, err := s.repo.Get(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	previous := lead.InterestLevel
	lead.InterestLevel = level
	if err := s.repo.Update(ctx, lead); err != nil {
		return Lead{}, err
	}
	s.recordAudit(ctx, identity, "LEAD_INTEREST", id, map[string]any{"from": string(previous), "to": string(level)})
	return lead, nil
}

// SetStatus moves a lead through its lifecycle. Qualification is not
// reachable here; it belongs to KYC completion.
func (s *Service) SetStatus(ctx context.Context, identity shared.Identity, id int64, status Status) (Lead, error) {
	lead, err := s.repo.Get(ctx, id)
	if err != nil {
		return Lead{}, err
	}
	if !CanTransition(lead.Status, status) {
		return Lead{}, ErrInvalidTransition
	}
	previous := lead.Status
	lead.Status = status
	if err := s.repo.Update(ctx, lead); err != nil {
		return Lead{}, err
	}
	s.recordAudit(ctx, identity, "LEAD_STATUS", id, map[string]any{"from": string(previous), "to": string(status)})
	return lead, nil
}

func (s *Service) recordAudit(ctx context.Context, identity shared.Identity, action string, id int64, changes map[string]any) {
	if s.audit == nil {
		return
	}
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  identity.UserID,
		Action:   action,
		Entity:   "lead",
		EntityID: strconv.FormatInt(id, 10),
		Changes:  changes,
	})
}
