package telematics

import (
	"fmt"
	"time"

	"github.com/atlas-dms/atlas-dms/internal/platform/httpx"
)

// VehicleDevice is the latest known telematics state for one vehicle.
type VehicleDevice struct {
	VehicleID  string
	DeviceID   string
	Battery    float64
	OdometerKM float64
	Latitude   float64
	Longitude  float64
	ReportedAt time.Time
	SyncedAt   time.Time
}

// Pull records one call to the telematics provider, success or failure.
type Pull struct {
	ID       int64
	Endpoint string
	Success  bool
	Payload  []byte
	Error    string
	PulledAt time.Time
}

// HistoryStatus is the run state of the history backfill job.
type HistoryStatus string

const (
	HistoryRunning HistoryStatus = "running"
	HistoryPaused  HistoryStatus = "paused"
)

// HistoryControl is the single control row steering the backfill. The
// checkpoint survives restarts.
type HistoryControl struct {
	Status     HistoryStatus
	Checkpoint time.Time
	BatchSize  int
	UpdatedAt  time.Time
}

// HistorySummary reports backfill progress.
type HistorySummary struct {
	Status       HistoryStatus
	Checkpoint   time.Time
	PullCount    int64
	FailureCount int64
}

var (
	// ErrUpstream indicates the telematics provider failed.
	ErrUpstream = fmt.Errorf("telematics: provider call failed: %w", httpx.ErrUpstream)
	// ErrPaused indicates the history job refused to run.
	ErrPaused = fmt.Errorf("telematics: history job is paused: %w", httpx.ErrConflict)
	// ErrValidation indicates invalid input.
	ErrValidation = fmt.Errorf("telematics: invalid input: %w", httpx.ErrValidation)
)
