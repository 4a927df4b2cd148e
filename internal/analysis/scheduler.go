package analysis

import (
	"bytes"
	"image"
	"image/jpeg"
	"time"

	"github.com/rs/zerolog"
)

// Analysis resolution and JPEG quality for frames sent to the
// classifier, independent of the capture resolution.
const (
	analysisWidth  = 960
	analysisHeight = 540
	jpegQuality    = 90
)

// Scheduler is the admission gate on the frame path. It runs once per
// incoming frame, never blocks, and never queues frames: a frame that
// arrives while a call is in flight (or before the backoff window has
// elapsed) is simply skipped for analysis purposes.
type Scheduler struct {
	store  *Store
	worker *Worker
	log    zerolog.Logger
}

func NewScheduler(store *Store, worker *Worker, log zerolog.Logger) *Scheduler {
	return &Scheduler{store: store, worker: worker, log: log}
}

// OnFrame decides admission for one frame. The claim of the worker slot
// happens atomically with the admission check inside TryClaim, so two
// frames arriving together can never both dispatch. Encoding is cheap
// and bounded; the classifier call itself runs on its own goroutine.
func (s *Scheduler) OnFrame(frame image.Image, now time.Time) {
	s.store.MarkCameraActive()

	if !s.store.TryClaim(now) {
		return
	}

	encoded, err := encodeForAnalysis(frame)
	if err != nil {
		// The claim is already held; release it as a transient failure
		// so the gate does not wedge shut.
		s.store.Fail(now, ErrTransient, 0)
		s.log.Warn().Err(err).Msg("frame encode failed")
		return
	}

	go s.worker.Run(encoded)
}

// encodeForAnalysis downsamples a frame to the analysis resolution with
// nearest-neighbour sampling and encodes it as JPEG.
func encodeForAnalysis(frame image.Image) ([]byte, error) {
	bounds := frame.Bounds()
	resized := image.NewRGBA(image.Rect(0, 0, analysisWidth, analysisHeight))
	for y := 0; y < analysisHeight; y++ {
		srcY := bounds.Min.Y + y*bounds.Dy()/analysisHeight
		for x := 0; x < analysisWidth; x++ {
			srcX := bounds.Min.X + x*bounds.Dx()/analysisWidth
			resized.Set(x, y, frame.At(srcX, srcY))
		}
	}

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, resized, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
