package camera

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockSource_DeliversFrames(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	source := NewMockSource(100)
	source.Start(ctx)

	select {
	case frame := <-source.Frames():
		require.NotNil(t, frame.Image)
		bounds := frame.Image.Bounds()
		assert.Equal(t, 1280, bounds.Dx())
		assert.Equal(t, 720, bounds.Dy())
		assert.False(t, frame.CapturedAt.IsZero())
	case <-time.After(time.Second):
		t.Fatal("no frame delivered")
	}
}

func TestMockSource_ClosesOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	source := NewMockSource(100)
	source.Start(ctx)
	cancel()

	require.Eventually(t, func() bool {
		select {
		case _, ok := <-source.Frames():
			return !ok
		default:
			return false
		}
	}, time.Second, 5*time.Millisecond)
}

func TestMockSource_DefaultFPS(t *testing.T) {
	source := NewMockSource(0)
	assert.Equal(t, 15, source.fps)
}
