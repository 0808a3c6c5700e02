package jobs

import (
	"context"
	"errors"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atlas-dms/atlas-dms/internal/telematics"
)

// TelematicsSyncJob runs live sync on the queue.
type TelematicsSyncJob struct {
	service *telematics.Service
	logger  *slog.Logger
}

// NewTelematicsSyncJob constructs the job.
func NewTelematicsSyncJob(service *telematics.Service, logger *slog.Logger) *TelematicsSyncJob {
	return &TelematicsSyncJob{service: service, logger: logger}
}

// Handle processes TaskTelematicsSync tasks.
func (j *TelematicsSyncJob) Handle(ctx context.Context, t *asynq.Task) error {
	count, err := j.service.SyncLive(ctx)
	if err != nil {
		j.logger.Error("telematics live sync", slog.Any("error", err))
		return err
	}
	j.logger.Info("telematics live sync finished", slog.Int("vehicles", count))
	return nil
}

// TelematicsHistoryJob advances the backfill one batch per task.
type TelematicsHistoryJob struct {
	service *telematics.Service
	logger  *slog.Logger
}

// NewTelematicsHistoryJob constructs the job.
func NewTelematicsHistoryJob(service *telematics.Service, logger *slog.Logger) *TelematicsHistoryJob {
	return &TelematicsHistoryJob{service: service, logger: logger}
}

// Handle processes TaskTelematicsHistory tasks. A paused control row is not
// an error worth retrying.
func (j *TelematicsHistoryJob) Handle(ctx context.Context, t *asynq.Task) error {
	processed, err := j.service.RunHistoryOnce(ctx)
	if err != nil {
		if errors.Is(err, telematics.ErrPaused) {
			j.logger.Info("history backfill paused, skipping batch")
			return nil
		}
		j.logger.Error("history backfill batch", slog.Any("error", err))
		return err
	}
	j.logger.Info("history backfill batch finished", slog.Int("processed", processed))
	return nil
}
