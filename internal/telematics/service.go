package telematics

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
)

const (
	liveSyncConcurrency = 8
	defaultBatchSize    = 500
)

// ClientPort is the provider surface the service depends on.
type ClientPort interface {
	ListVehicles(ctx context.Context) ([]Vehicle, error)
	FetchState(ctx context.Context, vehicleID string) (DeviceState, []byte, error)
	FetchHistory(ctx context.Context, after time.Time, limit int) ([]DeviceState, []byte, error)
}

// Service runs live sync and the history backfill.
type Service struct {
	logger *slog.Logger
	client ClientPort
	repo   RepositoryPort
	group  singleflight.Group
}

// NewService constructs a Service.
func NewService(logger *slog.Logger, client ClientPort, repo RepositoryPort) *Service {
	return &Service{logger: logger, client: client, repo: repo}
}

// SyncLive pulls current state for every vehicle. Each provider call is
// recorded in telematics_pulls whether it worked or not; any failure fails
// the whole attempt.
func (s *Service) SyncLive(ctx context.Context) (int, error) {
	vehicles, err := s.client.ListVehicles(ctx)
	s.recordPull(ctx, "/vehicles", err, nil)
	if err != nil {
		return 0, err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(liveSyncConcurrency)
	for _, vehicle := range vehicles {
		g.Go(func() error {
			state, payload, err := s.client.FetchState(ctx, vehicle.VehicleID)
			s.recordPull(ctx, "/state", err, payload)
			if err != nil {
				return err
			}
			return s.repo.UpsertVehicleDevice(ctx, VehicleDevice{
				VehicleID:  state.VehicleID,
				DeviceID:   state.DeviceID,
				Battery:    state.Battery,
				OdometerKM: state.OdometerKM,
				Latitude:   state.Latitude,
				Longitude:  state.Longitude,
				ReportedAt: state.ReportedAt,
			})
		})
	}
	if err := g.Wait(); err != nil {
		return 0, err
	}
	return len(vehicles), nil
}

func (s *Service) recordPull(ctx context.Context, endpoint string, callErr error, payload []byte) {
	pull := Pull{Endpoint: endpoint, Success: callErr == nil, Payload: payload}
	if callErr != nil {
		pull.Error = callErr.Error()
	}
	if err := s.repo.AppendPull(ctx, pull); err != nil {
		s.logger.Error("append telematics pull", slog.String("endpoint", endpoint), slog.Any("error", err))
	}
}

// SetHistoryStatus pauses or resumes the backfill.
func (s *Service) SetHistoryStatus(ctx context.Context, status HistoryStatus) error {
	if status != HistoryRunning && status != HistoryPaused {
		return ErrValidation
	}
	return s.repo.SetControlStatus(ctx, status)
}

// RunHistoryOnce advances the backfill by one batch. The control row is
// locked for the whole batch so concurrent runs serialize; a paused control
// refuses the run. The checkpoint only moves after the batch is stored, so a
// crash repeats the batch instead of skipping it.
func (s *Service) RunHistoryOnce(ctx context.Context) (int, error) {
	var processed int
	err := s.repo.WithControlTx(ctx, func(ctx context.Context, tx ControlTx) error {
		control, err := tx.GetControlForUpdate(ctx)
		if err != nil {
			return err
		}
		if control.Status == HistoryPaused {
			return ErrPaused
		}
		batchSize := control.BatchSize
		if batchSize <= 0 {
			batchSize = defaultBatchSize
		}
		readings, payload, err := s.client.FetchHistory(ctx, control.Checkpoint, batchSize)
		if err != nil {
			// The batch tx rolls back on error, so the failure row must go
			// through the pool or it disappears with the rollback.
			s.recordPull(ctx, "/history", err, payload)
			return err
		}
		if pullErr := tx.AppendPull(ctx, Pull{Endpoint: "/history", Success: true, Payload: payload}); pullErr != nil {
			return pullErr
		}
		cursor := control.Checkpoint
		for _, reading := range readings {
			if err := tx.UpsertVehicleDevice(ctx, VehicleDevice{
				VehicleID:  reading.VehicleID,
				DeviceID:   reading.DeviceID,
				Battery:    reading.Battery,
				OdometerKM: reading.OdometerKM,
				Latitude:   reading.Latitude,
				Longitude:  reading.Longitude,
				ReportedAt: reading.ReportedAt,
			}); err != nil {
				return err
			}
			if reading.ReportedAt.After(cursor) {
				cursor = reading.ReportedAt
			}
		}
		processed = len(readings)
		if cursor.After(control.Checkpoint) {
			return tx.AdvanceCheckpoint(ctx, cursor)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return processed, nil
}

// HistorySummary reports backfill progress. Concurrent callers share one
// underlying query.
func (s *Service) HistorySummary(ctx context.Context) (HistorySummary, error) {
	result, err, _ := s.group.Do("history-summary", func() (any, error) {
		control, err := s.repo.GetControl(ctx)
		if err != nil {
			return nil, err
		}
		total, failures, err := s.repo.PullStats(ctx)
		if err != nil {
			return nil, err
		}
		return HistorySummary{
			Status:       control.Status,
			Checkpoint:   control.Checkpoint,
			PullCount:    total,
			FailureCount: failures,
		}, nil
	})
	if err != nil {
		return HistorySummary{}, err
	}
	return result.(HistorySummary), nil
}
