package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/atlas-dms/atlas-dms/internal/shared"
)

// idempotencyRetention bounds how long processed request keys are kept.
// Replays older than this are indistinguishable from fresh requests.
const idempotencyRetention = 7 * 24 * time.Hour

// IdempotencyCleanupJob prunes expired idempotency keys.
type IdempotencyCleanupJob struct {
	store  *shared.IdempotencyStore
	logger *slog.Logger
}

// NewIdempotencyCleanupJob constructs the job.
func NewIdempotencyCleanupJob(store *shared.IdempotencyStore, logger *slog.Logger) *IdempotencyCleanupJob {
	return &IdempotencyCleanupJob{store: store, logger: logger}
}

// Handle processes TaskIdempotencyCleanup tasks.
func (j *IdempotencyCleanupJob) Handle(ctx context.Context, t *asynq.Task) error {
	if err := j.store.Cleanup(ctx, idempotencyRetention); err != nil {
		j.logger.Error("idempotency cleanup", slog.Any("error", err))
		return err
	}
	return nil
}
