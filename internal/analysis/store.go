package analysis

import (
	"sync"
	"time"

	"traffic-analyzer/internal/domain/traffic"
)

// never is the sentinel for "no further calls": far enough in the
// future that any wall-clock comparison treats it as unreachable.
var never = time.Unix(1<<62, 0)

// Store is the single point of truth for the latest analysis and the
// call-quota bookkeeping. One mutex guards both as an atomic unit; the
// frame-arrival path, the worker-completion path and the decision tick
// all go through it. Callers receive copies and never hold the lock
// across expensive work.
type Store struct {
	mu sync.Mutex

	analysis   traffic.Analysis
	hasResult  bool
	version    uint64
	cameraSeen bool

	nextAllowedCallAt   time.Time
	dailyQuotaExhausted bool
	callsMade           int
	analyzing           bool

	callInterval   time.Duration
	defaultBackoff time.Duration
}

func NewStore(callInterval, defaultBackoff time.Duration) *Store {
	return &Store{
		callInterval:   callInterval,
		defaultBackoff: defaultBackoff,
	}
}

// Snapshot returns a copy of the latest analysis and whether one exists.
func (s *Store) Snapshot() (traffic.Analysis, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.analysis, s.hasResult
}

// Version increments on every published analysis.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.version
}

// Quota returns a copy of the current quota state.
func (s *Store) Quota() traffic.QuotaState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return traffic.QuotaState{
		NextAllowedCallAt:   s.nextAllowedCallAt,
		DailyQuotaExhausted: s.dailyQuotaExhausted,
		CallsMade:           s.callsMade,
		Analyzing:           s.analyzing,
	}
}

// MarkCameraActive records that at least one frame has arrived, which
// switches the idle message from "waiting for camera" to "waiting for
// first analysis".
func (s *Store) MarkCameraActive() {
	s.mu.Lock()
	s.cameraSeen = true
	s.mu.Unlock()
}

// CameraActive reports whether any frame has been seen.
func (s *Store) CameraActive() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cameraSeen
}

// canSubmitNow must be called with s.mu held.
func (s *Store) canSubmitNow(now time.Time) bool {
	return !s.analyzing && !s.dailyQuotaExhausted && !now.Before(s.nextAllowedCallAt)
}

// TryClaim checks admission and, when granted, claims the single worker
// slot in the same critical section. Two frames racing the gate can
// therefore never both win: the second observes analyzing == true.
func (s *Store) TryClaim(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.canSubmitNow(now) {
		return false
	}
	s.analyzing = true
	return true
}

// Publish swaps in a freshly completed analysis wholesale, schedules the
// next allowed call and releases the worker slot.
func (s *Store) Publish(a traffic.Analysis, now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.analysis = a
	s.hasResult = true
	s.version++
	s.callsMade++
	s.nextAllowedCallAt = now.Add(s.callInterval)
	s.analyzing = false
}

// Fail records a failed call per the error taxonomy and releases the
// worker slot. Once the daily quota is exhausted the state is terminal:
// no in-process reset exists.
func (s *Store) Fail(now time.Time, class ErrorClass, retryAfter time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callsMade++
	s.analyzing = false

	switch class {
	case ErrDailyQuotaExhausted:
		s.dailyQuotaExhausted = true
		s.nextAllowedCallAt = never
	case ErrRateLimited:
		backoff := s.defaultBackoff
		if retryAfter > 0 {
			backoff = retryAfter
		}
		s.nextAllowedCallAt = now.Add(backoff)
	default:
		s.nextAllowedCallAt = now.Add(s.callInterval)
	}
}
