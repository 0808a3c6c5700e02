package jobs

import (
	"context"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/atlas-dms/atlas-dms/internal/outbox"
)

// OutboxDispatchJob sweeps the outbox on the queue.
type OutboxDispatchJob struct {
	dispatcher *outbox.Dispatcher
	logger     *slog.Logger
}

// NewOutboxDispatchJob constructs the job.
func NewOutboxDispatchJob(dispatcher *outbox.Dispatcher, logger *slog.Logger) *OutboxDispatchJob {
	return &OutboxDispatchJob{dispatcher: dispatcher, logger: logger}
}

// Handle processes TaskOutboxDispatch tasks. Per-event delivery failures are
// recorded on the rows themselves; only infrastructure errors surface here.
func (j *OutboxDispatchJob) Handle(ctx context.Context, t *asynq.Task) error {
	if err := j.dispatcher.Dispatch(ctx); err != nil {
		j.logger.Error("outbox sweep", slog.Any("error", err))
		return err
	}
	return nil
}
