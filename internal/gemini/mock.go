package gemini

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"
)

// MockClassifier fakes analysis results so the whole pipeline can run
// without an API key or camera pointed at a road. It simulates a short
// call delay and randomizes detections per call.
type MockClassifier struct {
	mu    sync.Mutex
	rand  *rand.Rand
	delay time.Duration
}

func NewMockClassifier(seed int64) *MockClassifier {
	return &MockClassifier{
		rand:  rand.New(rand.NewSource(seed)),
		delay: 500 * time.Millisecond,
	}
}

func (m *MockClassifier) AnalyzeFrame(ctx context.Context, jpeg []byte) ([]byte, error) {
	select {
	case <-time.After(m.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	result := map[string]any{
		"vehicles":           []any{},
		"emergency_vehicles": []any{},
		"pedestrians":        []any{},
		"traffic_density":    []string{"low", "medium", "high"}[m.rand.Intn(3)],
		"recommended_action": "Mock mode active",
		"emergency_priority": false,
	}
	if m.rand.Float64() > 0.5 {
		result["vehicles"] = []any{
			map[string]any{"type": "car", "box_2d": []int{400, 400, 600, 600}},
		}
	}
	if m.rand.Float64() > 0.5 {
		result["pedestrians"] = []any{
			map[string]any{"box_2d": []int{700, 300, 800, 400}, "crossing": true},
		}
	}

	return json.Marshal(result)
}
