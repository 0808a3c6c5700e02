package leads

import (
	"fmt"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
)

// InterestLevel grades how warm a lead is.
type InterestLevel string

const (
	InterestCold InterestLevel = "cold"
	InterestWarm InterestLevel = "warm"
	InterestHot  InterestLevel = "hot"
)

// Status is the lead lifecycle state.
type Status string

const (
	StatusNew       Status = "new"
	StatusQualified Status = "qualified"
	StatusConverted Status = "converted"
	StatusLost      Status = "lost"
)

// transitions lists the legal lead status moves. Qualification happens only
// through KYC completion, which writes the lead inside its own transaction.
var transitions = map[Status][]Status{
	StatusNew:       {StatusLost},
	StatusQualified: {StatusConverted, StatusLost},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Status) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// Lead is a prospective customer. Leads are never deleted.
type Lead struct {
	ID            int64
	Name          string
	Phone         string
	Email         string
	InterestLevel InterestLevel
	Status        Status
	WorkflowStep  int
	Notes         string
	AssignedTo    int64
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

var (
	// ErrNotFound indicates the lead is missing.
	ErrNotFound = fmt.Errorf("leads: %w", httpx.ErrNotFound)
	// ErrInvalidTransition occurs when a status move violates the lifecycle.
	ErrInvalidTransition = fmt.Errorf("leads: illegal status transition: %w", httpx.ErrConflict)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("leads: invalid input: %w", httpx.ErrValidation)
)
