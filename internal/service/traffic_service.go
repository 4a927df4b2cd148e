package service

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"

	"traffic-analyzer/internal/alerts"
	"traffic-analyzer/internal/analysis"
	"traffic-analyzer/internal/domain/traffic"
	"traffic-analyzer/internal/repository"
	"traffic-analyzer/internal/signal"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrUnavailable  = errors.New("unavailable")
)

// Hardware is the serial collaborator as the service sees it: a PIR
// motion flag in, a WALK/STOP word out.
type Hardware interface {
	Connected() bool
	SensorTriggered() bool
	Send(command string)
}

// TrafficService ties the pipeline together: the frame path feeds the
// scheduler, the decision tick reads the store and fans the decision
// out to the hardware and the alert dispatcher, and the HTTP layer
// reads published state from here.
type TrafficService struct {
	store      *analysis.Store
	scheduler  *analysis.Scheduler
	controller *signal.Controller
	dispatcher *alerts.Dispatcher
	hardware   Hardware
	lanes      *repository.LaneRepository
	log        zerolog.Logger

	mu           sync.Mutex
	lastAnalysis traffic.Analysis
	lastDecision traffic.Decision
	hasDecision  bool
}

func NewTrafficService(
	store *analysis.Store,
	scheduler *analysis.Scheduler,
	controller *signal.Controller,
	dispatcher *alerts.Dispatcher,
	hardware Hardware,
	lanes *repository.LaneRepository,
	log zerolog.Logger,
) *TrafficService {
	return &TrafficService{
		store:      store,
		scheduler:  scheduler,
		controller: controller,
		dispatcher: dispatcher,
		hardware:   hardware,
		lanes:      lanes,
		log:        log,
	}
}

// ProcessFrame runs the admission gate for one camera frame. It never
// blocks on I/O; the frame continues through the display path untouched.
func (s *TrafficService) ProcessFrame(frame image.Image, now time.Time) {
	s.scheduler.OnFrame(frame, now)
}

// Tick is one decision evaluation, independent of frame arrival. It
// merges the PIR sensor into the latest analysis, computes the signal
// decision, drives the walk sign and hands the state to the alert
// dispatcher.
func (s *TrafficService) Tick(now time.Time) traffic.Decision {
	snapshot, ok := s.store.Snapshot()

	sensorTriggered := false
	if s.hardware != nil && s.hardware.Connected() {
		sensorTriggered = s.hardware.SensorTriggered()
	}

	var decision traffic.Decision
	if !ok {
		decision = signal.Idle(s.store.Quota(), s.store.CameraActive())
	} else {
		snapshot = mergeSensor(snapshot, sensorTriggered)
		decision = s.controller.Decide(snapshot, sensorTriggered)
		s.dispatcher.Observe(decision, snapshot)
	}

	if s.hardware != nil && s.hardware.Connected() {
		if decision.WalkSign {
			s.hardware.Send("WALK")
		} else {
			s.hardware.Send("STOP")
		}
	}

	s.mu.Lock()
	s.lastAnalysis = snapshot
	s.lastDecision = decision
	s.hasDecision = true
	s.mu.Unlock()

	return decision
}

// mergeSensor injects a synthetic crossing pedestrian when the PIR
// fired and the classifier saw nobody, so every downstream consumer
// (signal logic, map, alerts) reacts consistently.
func mergeSensor(a traffic.Analysis, triggered bool) traffic.Analysis {
	if !triggered || len(a.Pedestrians) > 0 {
		return a
	}
	merged := a
	merged.Pedestrians = append([]traffic.Pedestrian{}, traffic.Pedestrian{Crossing: true, Source: "pir"})
	return merged
}

// CurrentState returns the analysis and decision most recently
// published by Tick.
func (s *TrafficService) CurrentState() (traffic.Analysis, traffic.Decision, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastAnalysis, s.lastDecision, s.hasDecision
}

// Status summarizes quota bookkeeping for the dashboard.
type Status struct {
	Quota            traffic.QuotaState `json:"quota"`
	NextCallIn       float64            `json:"next_call_in_seconds"`
	CameraActive     bool               `json:"camera_active"`
	EmergencyLatched bool               `json:"emergency_latched"`
	SensorConnected  bool               `json:"sensor_connected"`
	SensorTriggered  bool               `json:"sensor_triggered"`
}

func (s *TrafficService) Status(now time.Time) Status {
	quota := s.store.Quota()
	nextIn := quota.NextAllowedCallAt.Sub(now).Seconds()
	if nextIn < 0 || quota.DailyQuotaExhausted {
		nextIn = 0
	}
	st := Status{
		Quota:            quota,
		NextCallIn:       nextIn,
		CameraActive:     s.store.CameraActive(),
		EmergencyLatched: s.controller.EmergencyLatched(),
	}
	if s.hardware != nil {
		st.SensorConnected = s.hardware.Connected()
		st.SensorTriggered = s.hardware.Connected() && s.hardware.SensorTriggered()
	}
	return st
}

// RecordLanePassage persists one loop-sensor passage.
func (s *TrafficService) RecordLanePassage(ctx context.Context, lane string) error {
	if lane == "" {
		return fmt.Errorf("%w: lane is required", ErrInvalidInput)
	}
	if s.lanes == nil {
		return nil
	}
	event := &repository.LaneEvent{
		Lane:      lane,
		Details:   datatypes.JSON([]byte(`{"source":"loop"}`)),
		CountedAt: time.Now(),
	}
	if err := s.lanes.CreateLaneEvent(ctx, event); err != nil {
		s.log.Error().Err(err).Str("lane", lane).Msg("failed to record lane passage")
		return fmt.Errorf("record lane passage: %w", err)
	}
	return nil
}

// LaneCounts aggregates passages per lane over the trailing window.
func (s *TrafficService) LaneCounts(ctx context.Context, window time.Duration) (map[string]int64, error) {
	if s.lanes == nil {
		return nil, fmt.Errorf("%w: lane storage disabled", ErrUnavailable)
	}
	counts, err := s.lanes.CountsByLane(ctx, time.Now().Add(-window))
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read lane counts")
		return nil, fmt.Errorf("lane counts: %w", err)
	}
	return counts, nil
}

// LaneEvents lists recent passages, newest first.
func (s *TrafficService) LaneEvents(ctx context.Context, limit int) ([]repository.LaneEvent, error) {
	if s.lanes == nil {
		return nil, fmt.Errorf("%w: lane storage disabled", ErrUnavailable)
	}
	events, err := s.lanes.RecentEvents(ctx, limit)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to read lane events")
		return nil, fmt.Errorf("lane events: %w", err)
	}
	return events, nil
}

// Announce speaks a status update, fire and forget.
func (s *TrafficService) Announce(message string) error {
	if message == "" {
		return fmt.Errorf("%w: message is required", ErrInvalidInput)
	}
	s.dispatcher.AnnounceStatus(message)
	return nil
}
