package telematics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	vehicles   []Vehicle
	states     map[string]DeviceState
	stateErr   map[string]error
	history    []DeviceState
	historyErr error
	listErr    error
}

func (c *fakeClient) ListVehicles(ctx context.Context) ([]Vehicle, error) {
	if c.listErr != nil {
		return nil, c.listErr
	}
	return c.vehicles, nil
}

func (c *fakeClient) FetchState(ctx context.Context, vehicleID string) (DeviceState, []byte, error) {
	if err := c.stateErr[vehicleID]; err != nil {
		return DeviceState{}, nil, err
	}
	return c.states[vehicleID], []byte(`{}`), nil
}

func (c *fakeClient) FetchHistory(ctx context.Context, after time.Time, limit int) ([]DeviceState, []byte, error) {
	if c.historyErr != nil {
		return nil, nil, c.historyErr
	}
	var out []DeviceState
	for _, reading := range c.history {
		if reading.ReportedAt.After(after) && len(out) < limit {
			out = append(out, reading)
		}
	}
	return out, []byte(`{}`), nil
}

type memoryTelematicsRepo struct {
	mu      sync.Mutex
	devices map[string]VehicleDevice
	pulls   []Pull
	control HistoryControl
}

func newMemoryTelematicsRepo() *memoryTelematicsRepo {
	return &memoryTelematicsRepo{
		devices: make(map[string]VehicleDevice),
		control: HistoryControl{Status: HistoryRunning, BatchSize: 2},
	}
}

func (r *memoryTelematicsRepo) UpsertVehicleDevice(ctx context.Context, device VehicleDevice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.devices[device.VehicleID]; ok && existing.ReportedAt.After(device.ReportedAt) {
		return nil
	}
	r.devices[device.VehicleID] = device
	return nil
}

func (r *memoryTelematicsRepo) AppendPull(ctx context.Context, pull Pull) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pulls = append(r.pulls, pull)
	return nil
}

func (r *memoryTelematicsRepo) GetControl(ctx context.Context) (HistoryControl, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.control, nil
}

func (r *memoryTelematicsRepo) SetControlStatus(ctx context.Context, status HistoryStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.control.Status = status
	return nil
}

func (r *memoryTelematicsRepo) WithControlTx(ctx context.Context, fn func(context.Context, ControlTx) error) error {
	// Buffer every write like the real transaction: nothing lands until
	// commit, an error discards the lot.
	tx := &memoryControlTx{repo: r}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	tx.commit(ctx)
	return nil
}

func (r *memoryTelematicsRepo) PullStats(ctx context.Context) (int64, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var failures int64
	for _, pull := range r.pulls {
		if !pull.Success {
			failures++
		}
	}
	return int64(len(r.pulls)), failures, nil
}

type memoryControlTx struct {
	repo       *memoryTelematicsRepo
	devices    []VehicleDevice
	pulls      []Pull
	checkpoint *time.Time
}

func (t *memoryControlTx) GetControlForUpdate(ctx context.Context) (HistoryControl, error) {
	return t.repo.GetControl(ctx)
}

func (t *memoryControlTx) AdvanceCheckpoint(ctx context.Context, to time.Time) error {
	t.checkpoint = &to
	return nil
}

func (t *memoryControlTx) UpsertVehicleDevice(ctx context.Context, device VehicleDevice) error {
	t.devices = append(t.devices, device)
	return nil
}

func (t *memoryControlTx) AppendPull(ctx context.Context, pull Pull) error {
	t.pulls = append(t.pulls, pull)
	return nil
}

func (t *memoryControlTx) commit(ctx context.Context) {
	for _, device := range t.devices {
		_ = t.repo.UpsertVehicleDevice(ctx, device)
	}
	for _, pull := range t.pulls {
		_ = t.repo.AppendPull(ctx, pull)
	}
	if t.checkpoint != nil {
		t.repo.mu.Lock()
		t.repo.control.Checkpoint = *t.checkpoint
		t.repo.mu.Unlock()
	}
}

func testTelematicsService(client ClientPort, repo RepositoryPort) *Service {
	return NewService(slog.New(slog.DiscardHandler), client, repo)
}

func reading(vehicle string, at time.Time) DeviceState {
	return DeviceState{VehicleID: vehicle, DeviceID: "dev-" + vehicle, Battery: 80, ReportedAt: at}
}

func TestSyncLiveUpsertsAndRecordsPulls(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeClient{
		vehicles: []Vehicle{{VehicleID: "v1"}, {VehicleID: "v2"}},
		states: map[string]DeviceState{
			"v1": reading("v1", now),
			"v2": reading("v2", now),
		},
	}
	repo := newMemoryTelematicsRepo()
	svc := testTelematicsService(client, repo)

	count, err := svc.SyncLive(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, count)
	require.Len(t, repo.devices, 2)
	// One list pull plus one state pull per vehicle.
	require.Len(t, repo.pulls, 3)
}

func TestSyncLiveFailureIsRecordedAndFailsAttempt(t *testing.T) {
	now := time.Now().UTC()
	client := &fakeClient{
		vehicles: []Vehicle{{VehicleID: "v1"}, {VehicleID: "v2"}},
		states:   map[string]DeviceState{"v1": reading("v1", now)},
		stateErr: map[string]error{"v2": ErrUpstream},
	}
	repo := newMemoryTelematicsRepo()
	svc := testTelematicsService(client, repo)

	_, err := svc.SyncLive(context.Background())
	require.ErrorIs(t, err, ErrUpstream)

	var failed int
	for _, pull := range repo.pulls {
		if !pull.Success {
			failed++
		}
	}
	require.Equal(t, 1, failed)
}

func TestRunHistoryAdvancesCheckpointPerBatch(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	client := &fakeClient{history: []DeviceState{
		reading("v1", base.Add(1*time.Hour)),
		reading("v2", base.Add(2*time.Hour)),
		reading("v3", base.Add(3*time.Hour)),
	}}
	repo := newMemoryTelematicsRepo()
	svc := testTelematicsService(client, repo)

	processed, err := svc.RunHistoryOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, processed)
	require.Equal(t, base.Add(2*time.Hour), repo.control.Checkpoint)
	require.Len(t, repo.pulls, 1)
	require.True(t, repo.pulls[0].Success)

	processed, err = svc.RunHistoryOnce(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, processed)
	require.Equal(t, base.Add(3*time.Hour), repo.control.Checkpoint)

	processed, err = svc.RunHistoryOnce(context.Background())
	require.NoError(t, err)
	require.Zero(t, processed)
}

func TestRunHistoryRefusesWhenPaused(t *testing.T) {
	client := &fakeClient{}
	repo := newMemoryTelematicsRepo()
	repo.control.Status = HistoryPaused
	svc := testTelematicsService(client, repo)

	_, err := svc.RunHistoryOnce(context.Background())
	require.ErrorIs(t, err, ErrPaused)

	require.NoError(t, svc.SetHistoryStatus(context.Background(), HistoryRunning))
	_, err = svc.RunHistoryOnce(context.Background())
	require.NoError(t, err)
}

func TestRunHistoryFailureKeepsCheckpointAndRecordsPull(t *testing.T) {
	client := &fakeClient{historyErr: errors.New("provider down")}
	repo := newMemoryTelematicsRepo()
	checkpoint := time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC)
	repo.control.Checkpoint = checkpoint
	svc := testTelematicsService(client, repo)

	_, err := svc.RunHistoryOnce(context.Background())
	require.Error(t, err)
	require.Equal(t, checkpoint, repo.control.Checkpoint)

	// The failed fetch leaves its trace even though the batch rolled back.
	require.Len(t, repo.pulls, 1)
	require.False(t, repo.pulls[0].Success)
	require.Equal(t, "/history", repo.pulls[0].Endpoint)
	require.Contains(t, repo.pulls[0].Error, "provider down")
}

func TestHistorySummary(t *testing.T) {
	client := &fakeClient{}
	repo := newMemoryTelematicsRepo()
	repo.pulls = []Pull{{Success: true}, {Success: false}}
	svc := testTelematicsService(client, repo)

	summary, err := svc.HistorySummary(context.Background())
	require.NoError(t, err)
	require.Equal(t, HistoryRunning, summary.Status)
	require.EqualValues(t, 2, summary.PullCount)
	require.EqualValues(t, 1, summary.FailureCount)
}
