package outbox

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

type memoryOutboxRepo struct {
	events map[int64]Event
}

func newMemoryOutboxRepo() *memoryOutboxRepo {
	return &memoryOutboxRepo{events: make(map[int64]Event)}
}

func (r *memoryOutboxRepo) ListPending(ctx context.Context, limit int) ([]Event, error) {
	var out []Event
	for _, event := range r.events {
		if event.Status != StatusDelivered && len(out) < limit {
			out = append(out, event)
		}
	}
	return out, nil
}

func (r *memoryOutboxRepo) MarkDelivered(ctx context.Context, id int64) error {
	event := r.events[id]
	event.Status = StatusDelivered
	event.LastError = ""
	r.events[id] = event
	return nil
}

func (r *memoryOutboxRepo) MarkFailed(ctx context.Context, id int64, lastError string) error {
	event := r.events[id]
	event.Status = StatusFailed
	event.Attempts++
	event.LastError = lastError
	r.events[id] = event
	return nil
}

func TestDispatchDeliversAndMarks(t *testing.T) {
	var received atomic.Int64
	var lastEvent string
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body hookEnvelope
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		lastEvent = body.Event
		received.Add(1)
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	repo := newMemoryOutboxRepo()
	repo.events[1] = Event{ID: 1, Type: EventOEMOnboarded, Payload: json.RawMessage(`{"oem_id":4}`), Status: StatusPending}
	dispatcher := NewDispatcher(slog.New(slog.DiscardHandler), repo, hook.URL)

	require.NoError(t, dispatcher.Dispatch(context.Background()))
	require.EqualValues(t, 1, received.Load())
	require.Equal(t, EventOEMOnboarded, lastEvent)
	require.Equal(t, StatusDelivered, repo.events[1].Status)
}

func TestDispatchRecordsFailureAndRetriesNextSweep(t *testing.T) {
	var calls atomic.Int64
	hook := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer hook.Close()

	repo := newMemoryOutboxRepo()
	repo.events[1] = Event{ID: 1, Type: EventPDINeeded, Payload: json.RawMessage(`{}`), Status: StatusPending}
	dispatcher := NewDispatcher(slog.New(slog.DiscardHandler), repo, hook.URL)

	require.NoError(t, dispatcher.Dispatch(context.Background()))
	require.Equal(t, StatusFailed, repo.events[1].Status)
	require.Equal(t, 1, repo.events[1].Attempts)
	require.Contains(t, repo.events[1].LastError, "502")

	// Failed rows stay in the sweep.
	require.NoError(t, dispatcher.Dispatch(context.Background()))
	require.Equal(t, StatusDelivered, repo.events[1].Status)
}

func TestDispatchWithoutHookURLIsNoop(t *testing.T) {
	repo := newMemoryOutboxRepo()
	repo.events[1] = Event{ID: 1, Type: EventCatalogCreated, Status: StatusPending}
	dispatcher := NewDispatcher(slog.New(slog.DiscardHandler), repo, "")

	require.NoError(t, dispatcher.Dispatch(context.Background()))
	require.Equal(t, StatusPending, repo.events[1].Status)
}
