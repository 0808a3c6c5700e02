package jobs

import (
	"encoding/json"

	"github.com/hibiken/asynq"
)

const (
	// QueueDefault is the default queue name for background jobs.
	QueueDefault = "default"
	// TaskTelematicsSync pulls live vehicle state from the provider.
	TaskTelematicsSync = "telematics:sync"
	// TaskTelematicsHistory advances the history backfill by one batch.
	TaskTelematicsHistory = "telematics:history"
	// TaskOutboxDispatch drains pending outbox events to the automation hook.
	TaskOutboxDispatch = "outbox:dispatch"
	// TaskIdempotencyCleanup prunes expired idempotency keys.
	TaskIdempotencyCleanup = "maintenance:idempotency-cleanup"
)

// TelematicsSyncPayload configures one live sync run.
type TelematicsSyncPayload struct {
	Trigger string `json:"trigger"`
}

// NewTelematicsSyncTask constructs the live sync task.
func NewTelematicsSyncTask(trigger string) (*asynq.Task, error) {
	data, err := json.Marshal(TelematicsSyncPayload{Trigger: trigger})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTelematicsSync, data), nil
}

// NewTelematicsHistoryTask constructs a single-batch history task.
func NewTelematicsHistoryTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskTelematicsHistory, nil), nil
}

// NewOutboxDispatchTask constructs an outbox sweep task.
func NewOutboxDispatchTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskOutboxDispatch, nil), nil
}

// NewIdempotencyCleanupTask constructs a key-retention sweep task.
func NewIdempotencyCleanupTask() (*asynq.Task, error) {
	return asynq.NewTask(TaskIdempotencyCleanup, nil), nil
}
