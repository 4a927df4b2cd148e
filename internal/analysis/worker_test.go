package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"traffic-analyzer/internal/domain/traffic"
)

type fakeClassifier struct {
	response []byte
	err      error
	calls    int
}

func (f *fakeClassifier) AnalyzeFrame(ctx context.Context, jpeg []byte) ([]byte, error) {
	f.calls++
	return f.response, f.err
}

func runWorker(t *testing.T, s *Store, c Classifier) {
	t.Helper()
	w := NewWorker(s, c, zerolog.Nop())
	require.True(t, s.TryClaim(time.Now()))
	w.Run([]byte("jpeg"))
}

func TestWorker_SuccessPublishesSnapshot(t *testing.T) {
	s := newTestStore()
	runWorker(t, s, &fakeClassifier{response: []byte(`{
		"vehicles": [{"type": "bus", "box_2d": [100, 100, 300, 400]}],
		"pedestrians": [{"box_2d": [700, 300, 800, 400], "crossing": true}],
		"traffic_density": "high",
		"emergency_priority": false
	}`)})

	got, ok := s.Snapshot()
	require.True(t, ok)
	assert.Len(t, got.Vehicles, 1)
	assert.Equal(t, "bus", got.Vehicles[0].Type)
	assert.True(t, got.HasCrossingPedestrian())
	assert.Equal(t, traffic.DensityHigh, got.TrafficDensity)

	quota := s.Quota()
	assert.False(t, quota.Analyzing)
	assert.Equal(t, 1, quota.CallsMade)
}

func TestWorker_FailureIsAbsorbedAndClassified(t *testing.T) {
	s := newTestStore()
	start := time.Now()
	runWorker(t, s, &fakeClassifier{err: errors.New(`status 429: RESOURCE_EXHAUSTED "retryDelay": "60s"`)})

	_, ok := s.Snapshot()
	assert.False(t, ok, "a failed call publishes nothing")

	quota := s.Quota()
	assert.False(t, quota.Analyzing, "the worker slot must be released on failure")
	// 60s hint + 5s margin, measured from some point after start.
	assert.False(t, quota.NextAllowedCallAt.Before(start.Add(65*time.Second)))
}

func TestWorker_DailyQuotaStopsFurtherCalls(t *testing.T) {
	s := newTestStore()
	runWorker(t, s, &fakeClassifier{err: errors.New("429 RESOURCE_EXHAUSTED: GenerateRequestsPerDay")})

	assert.True(t, s.Quota().DailyQuotaExhausted)
	assert.False(t, s.TryClaim(time.Now().Add(48*time.Hour)))
}

func TestWorker_UndecodableResultIsTransient(t *testing.T) {
	s := newTestStore()
	start := time.Now()
	runWorker(t, s, &fakeClassifier{response: []byte("not json at all")})

	_, ok := s.Snapshot()
	assert.False(t, ok)

	quota := s.Quota()
	assert.False(t, quota.Analyzing)
	assert.False(t, quota.DailyQuotaExhausted)
	assert.False(t, quota.NextAllowedCallAt.Before(start.Add(12*time.Second)))
}

func TestWorker_MalformedFieldsDegradeToDefaults(t *testing.T) {
	s := newTestStore()
	runWorker(t, s, &fakeClassifier{response: []byte(`{}`)})

	got, ok := s.Snapshot()
	require.True(t, ok, "partial results still publish")
	assert.Equal(t, traffic.DensityUnknown, got.TrafficDensity)
	assert.Empty(t, got.Vehicles)
	assert.Empty(t, got.Pedestrians)
}

type panickingClassifier struct{}

func (panickingClassifier) AnalyzeFrame(ctx context.Context, jpeg []byte) ([]byte, error) {
	panic("classifier blew up")
}

func TestWorker_PanicReleasesSlot(t *testing.T) {
	s := newTestStore()
	w := NewWorker(s, panickingClassifier{}, zerolog.Nop())
	require.True(t, s.TryClaim(time.Now()))

	assert.NotPanics(t, func() { w.Run([]byte("jpeg")) })
	assert.False(t, s.Quota().Analyzing)
}
