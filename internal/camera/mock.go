package camera

import (
	"context"
	"image"
	"image/color"
	"time"
)

// Frame is one captured image with its arrival time.
type Frame struct {
	Image      image.Image
	CapturedAt time.Time
}

// Source delivers frames at camera rate. Real capture (WebRTC, RTSP)
// lives outside this repository; the synthetic source below exists so
// the pipeline can run end to end without one.
type Source interface {
	Frames() <-chan Frame
}

// MockSource generates flat synthetic frames at a fixed rate. Frames
// are dropped, not buffered, when the consumer falls behind.
type MockSource struct {
	frames chan Frame
	fps    int
	width  int
	height int
}

func NewMockSource(fps int) *MockSource {
	if fps <= 0 {
		fps = 15
	}
	return &MockSource{
		frames: make(chan Frame),
		fps:    fps,
		width:  1280,
		height: 720,
	}
}

func (m *MockSource) Frames() <-chan Frame {
	return m.frames
}

// Start produces frames until the context is cancelled.
func (m *MockSource) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(time.Second / time.Duration(m.fps))
		defer ticker.Stop()
		defer close(m.frames)

		for {
			select {
			case <-ctx.Done():
				return
			case now := <-ticker.C:
				frame := Frame{Image: m.makeFrame(now), CapturedAt: now}
				select {
				case m.frames <- frame:
				default:
					// Consumer busy: drop the frame.
				}
			}
		}
	}()
}

func (m *MockSource) makeFrame(now time.Time) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, m.width, m.height))
	// A slowly shifting grey so consecutive frames differ.
	shade := uint8(40 + now.Second())
	c := color.RGBA{shade, shade, shade, 255}
	for y := 0; y < m.height; y += 4 {
		for x := 0; x < m.width; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	return img
}
