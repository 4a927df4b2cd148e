package analysis

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"traffic-analyzer/internal/domain/traffic"
)

// Classifier is the external analysis collaborator. It receives an
// encoded JPEG frame and returns the raw JSON document described by the
// system instruction; decoding and sanitizing belong to the worker.
type Classifier interface {
	AnalyzeFrame(ctx context.Context, jpeg []byte) ([]byte, error)
}

// Worker executes at most one outstanding classifier call and
// reconciles its outcome into the store. Failures are absorbed here:
// the frame path and the render path only ever observe a possibly
// stale snapshot. The caller owns the worker-slot claim; Run must only
// be invoked after Store.TryClaim succeeded.
type Worker struct {
	store      *Store
	classifier Classifier
	log        zerolog.Logger
	now        func() time.Time
}

func NewWorker(store *Store, classifier Classifier, log zerolog.Logger) *Worker {
	return &Worker{
		store:      store,
		classifier: classifier,
		log:        log,
		now:        time.Now,
	}
}

// Run performs one analysis call to completion. It is meant to be
// launched on its own goroutine by the scheduler; there is no
// cancellation path, only backoff after the fact.
func (w *Worker) Run(jpeg []byte) {
	callID := uuid.NewString()
	started := w.now()

	// The worker-slot claim must be released on every path, including a
	// panicking classifier implementation.
	released := false
	defer func() {
		if r := recover(); r != nil {
			w.log.Error().Str("call_id", callID).Interface("panic", r).Msg("classifier panicked")
		}
		if !released {
			w.store.Fail(w.now(), ErrTransient, 0)
		}
	}()

	raw, err := w.classifier.AnalyzeFrame(context.Background(), jpeg)
	if err != nil {
		class, retryAfter := Classify(err)
		w.store.Fail(w.now(), class, retryAfter)
		released = true
		w.log.Warn().
			Err(err).
			Str("call_id", callID).
			Str("class", class.String()).
			Dur("retry_after", retryAfter).
			Msg("classifier call failed")
		return
	}

	result, err := traffic.DecodeAnalysis(raw)
	if err != nil {
		// An undecodable document counts as a transient failure.
		w.store.Fail(w.now(), ErrTransient, 0)
		released = true
		w.log.Warn().
			Err(err).
			Str("call_id", callID).
			Msg("classifier returned undecodable result")
		return
	}

	w.store.Publish(result, w.now())
	released = true
	w.log.Info().
		Str("call_id", callID).
		Dur("elapsed", w.now().Sub(started)).
		Int("vehicles", len(result.Vehicles)).
		Int("emergency_vehicles", len(result.EmergencyVehicles)).
		Int("pedestrians", len(result.Pedestrians)).
		Str("density", string(result.TrafficDensity)).
		Bool("emergency_priority", result.EmergencyPriority).
		Msg("analysis published")
}
