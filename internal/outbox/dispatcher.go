package outbox

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const dispatchBatchSize = 50

// Dispatcher drains the outbox toward the automation hook.
type Dispatcher struct {
	logger  *slog.Logger
	repo    RepositoryPort
	hookURL string
	client  *http.Client
}

// NewDispatcher constructs a Dispatcher.
func NewDispatcher(logger *slog.Logger, repo RepositoryPort, hookURL string) *Dispatcher {
	return &Dispatcher{
		logger:  logger,
		repo:    repo,
		hookURL: hookURL,
		client:  &http.Client{Timeout: 15 * time.Second},
	}
}

type hookEnvelope struct {
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatch posts every pending event once. Failures are recorded per row and
// left for the next sweep.
func (d *Dispatcher) Dispatch(ctx context.Context) error {
	if d.hookURL == "" {
		d.logger.Warn("automation hook url not configured, skipping outbox sweep")
		return nil
	}
	events, err := d.repo.ListPending(ctx, dispatchBatchSize)
	if err != nil {
		return fmt.Errorf("outbox: list pending: %w", err)
	}
	for _, event := range events {
		if err := d.deliver(ctx, event); err != nil {
			d.logger.Error("deliver outbox event",
				slog.Int64("id", event.ID),
				slog.String("type", event.Type),
				slog.Any("error", err))
			if markErr := d.repo.MarkFailed(ctx, event.ID, err.Error()); markErr != nil {
				return markErr
			}
			continue
		}
		if err := d.repo.MarkDelivered(ctx, event.ID); err != nil {
			return err
		}
	}
	return nil
}

func (d *Dispatcher) deliver(ctx context.Context, event Event) error {
	body, err := json.Marshal(hookEnvelope{Event: event.Type, Payload: event.Payload})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.hookURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := d.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("hook returned %d", resp.StatusCode)
	}
	return nil
}
