package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-analyzer/internal/alerts"
	"traffic-analyzer/internal/analysis"
	"traffic-analyzer/internal/domain/traffic"
	"traffic-analyzer/internal/signal"
)

type fakeHardware struct {
	mu        sync.Mutex
	connected bool
	triggered bool
	commands  []string
}

func (f *fakeHardware) Connected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.connected
}

func (f *fakeHardware) SensorTriggered() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.triggered
}

func (f *fakeHardware) Send(command string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, command)
}

func (f *fakeHardware) sent() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.commands...)
}

type nopClassifier struct{}

func (nopClassifier) AnalyzeFrame(ctx context.Context, jpeg []byte) ([]byte, error) {
	return []byte(`{}`), nil
}

func newTestService(hw Hardware) (*TrafficService, *analysis.Store) {
	log := zerolog.Nop()
	store := analysis.NewStore(12*time.Second, 120*time.Second)
	worker := analysis.NewWorker(store, nopClassifier{}, log)
	scheduler := analysis.NewScheduler(store, worker, log)
	controller := signal.NewController()
	dispatcher := alerts.NewDispatcher(nil, log)
	return NewTrafficService(store, scheduler, controller, dispatcher, hw, nil, log), store
}

func TestTick_IdleWithoutSnapshot(t *testing.T) {
	svc, _ := newTestService(nil)

	decision := svc.Tick(time.Now())
	assert.Equal(t, traffic.ActionIdle, decision.Action)
	assert.Equal(t, "Waiting for camera...", decision.Message)
}

func TestTick_QuotaExhaustedMessageWinsOverCamera(t *testing.T) {
	svc, store := newTestService(nil)

	require.True(t, store.TryClaim(time.Now()))
	store.Fail(time.Now(), analysis.ErrDailyQuotaExhausted, 0)

	decision := svc.Tick(time.Now())
	assert.Equal(t, traffic.ActionIdle, decision.Action)
	assert.Contains(t, decision.Message, "quota exhausted")
	assert.NotContains(t, decision.Message, "Waiting for camera")
}

func TestTick_DrivesWalkSign(t *testing.T) {
	hw := &fakeHardware{connected: true}
	svc, store := newTestService(hw)

	store.Publish(traffic.Analysis{
		Pedestrians: []traffic.Pedestrian{{Crossing: true}},
	}, time.Now())
	svc.Tick(time.Now())
	assert.Equal(t, []string{"WALK"}, hw.sent())

	store.Publish(traffic.Analysis{TrafficDensity: traffic.DensityLow}, time.Now())
	svc.Tick(time.Now())
	assert.Equal(t, []string{"WALK", "STOP"}, hw.sent())
}

func TestTick_MergesPIRSensor(t *testing.T) {
	hw := &fakeHardware{connected: true, triggered: true}
	svc, store := newTestService(hw)

	// The classifier saw nobody; the PIR injects one crossing pedestrian.
	store.Publish(traffic.Analysis{TrafficDensity: traffic.DensityMedium}, time.Now())
	decision := svc.Tick(time.Now())

	assert.Equal(t, traffic.ActionPedestrianCrossing, decision.Action)
	assert.True(t, decision.WalkSign)

	merged, _, ok := svc.CurrentState()
	require.True(t, ok)
	require.Len(t, merged.Pedestrians, 1)
	assert.Equal(t, "pir", merged.Pedestrians[0].Source)
}

func TestTick_PIRIgnoredWhenDisconnected(t *testing.T) {
	hw := &fakeHardware{connected: false, triggered: true}
	svc, store := newTestService(hw)

	store.Publish(traffic.Analysis{}, time.Now())
	decision := svc.Tick(time.Now())
	assert.Equal(t, traffic.ActionAdaptive, decision.Action)
	assert.Empty(t, hw.sent(), "no commands to a disconnected board")
}

func TestTick_PIRDoesNotDuplicateDetectedPedestrians(t *testing.T) {
	hw := &fakeHardware{connected: true, triggered: true}
	svc, store := newTestService(hw)

	store.Publish(traffic.Analysis{
		Pedestrians: []traffic.Pedestrian{{Box: traffic.Box{700, 300, 800, 400}, Crossing: true}},
	}, time.Now())
	svc.Tick(time.Now())

	merged, _, _ := svc.CurrentState()
	assert.Len(t, merged.Pedestrians, 1)
	assert.Empty(t, merged.Pedestrians[0].Source)
}

func TestStatus_ReportsQuotaAndLatch(t *testing.T) {
	hw := &fakeHardware{connected: true}
	svc, store := newTestService(hw)
	now := time.Now()

	store.Publish(traffic.Analysis{EmergencyPriority: true}, now)
	svc.Tick(now)

	status := svc.Status(now)
	assert.True(t, status.EmergencyLatched)
	assert.True(t, status.SensorConnected)
	assert.Equal(t, 1, status.Quota.CallsMade)
	assert.InDelta(t, 12, status.NextCallIn, 0.5)
}

func TestStatus_ExhaustedQuotaHasNoCountdown(t *testing.T) {
	svc, store := newTestService(nil)
	now := time.Now()

	require.True(t, store.TryClaim(now))
	store.Fail(now, analysis.ErrDailyQuotaExhausted, 0)

	status := svc.Status(now)
	assert.True(t, status.Quota.DailyQuotaExhausted)
	assert.Zero(t, status.NextCallIn)
}

func TestRecordLanePassage_Validation(t *testing.T) {
	svc, _ := newTestService(nil)

	err := svc.RecordLanePassage(context.Background(), "")
	assert.ErrorIs(t, err, ErrInvalidInput)

	// With storage disabled a valid passage is a no-op.
	assert.NoError(t, svc.RecordLanePassage(context.Background(), "lane1"))
}

func TestLaneQueries_UnavailableWithoutStorage(t *testing.T) {
	svc, _ := newTestService(nil)

	_, err := svc.LaneCounts(context.Background(), time.Hour)
	assert.ErrorIs(t, err, ErrUnavailable)

	_, err = svc.LaneEvents(context.Background(), 10)
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestAnnounce_Validation(t *testing.T) {
	svc, _ := newTestService(nil)
	assert.ErrorIs(t, svc.Announce(""), ErrInvalidInput)
	assert.NoError(t, svc.Announce("all clear"))
}
