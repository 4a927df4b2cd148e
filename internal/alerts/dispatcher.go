package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"traffic-analyzer/internal/domain/traffic"
)

// phrases are the spoken announcements per event.
var phrases = map[string]string{
	"do_not_cross":        "Attention: emergency vehicle approaching. All vehicles clear the intersection.",
	"pedestrians_on_road": "Pedestrian crossing detected.",
	"walk":                "You may cross now.",
	"wait":                "Please wait for vehicles to pass.",
}

// Dispatcher turns decision ticks into voice announcements. Repeats are
// suppressed by a composite state key, so an unchanged intersection
// state is announced exactly once. Announcements run on their own
// goroutines with no ordering guarantee relative to the next tick.
type Dispatcher struct {
	mu        sync.Mutex
	speaker   Speaker
	lastState string
	timeout   time.Duration
	log       zerolog.Logger
}

func NewDispatcher(speaker Speaker, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		speaker: speaker,
		timeout: 30 * time.Second,
		log:     log,
	}
}

// Observe considers one decision tick for announcement. The dedupe key
// combines the action with the presence flags of the analysis that
// produced it.
func (d *Dispatcher) Observe(decision traffic.Decision, a traffic.Analysis) {
	hasPeds := len(a.Pedestrians) > 0
	hasCars := len(a.Vehicles) > 0
	hasAmbulance := a.HasAmbulance()

	key := fmt.Sprintf("%s_%t_%t_%t", decision.Action, hasPeds, hasCars, hasAmbulance)

	d.mu.Lock()
	if key == d.lastState {
		d.mu.Unlock()
		return
	}
	d.lastState = key
	d.mu.Unlock()

	switch {
	case hasAmbulance:
		d.announce("do_not_cross")
	case hasPeds && !hasCars:
		d.announce("pedestrians_on_road", "walk")
	case hasPeds && hasCars:
		d.announce("pedestrians_on_road", "wait")
	}
}

// AnnounceStatus speaks an arbitrary status line, fire and forget.
func (d *Dispatcher) AnnounceStatus(message string) {
	d.speak("Traffic status update: " + message)
}

// announce plays the named phrases in order on a single goroutine.
func (d *Dispatcher) announce(events ...string) {
	texts := make([]string, 0, len(events))
	for _, ev := range events {
		if text, ok := phrases[ev]; ok {
			texts = append(texts, text)
		}
	}
	go func() {
		for _, text := range texts {
			d.speakSync(text)
		}
	}()
}

func (d *Dispatcher) speak(text string) {
	go d.speakSync(text)
}

func (d *Dispatcher) speakSync(text string) {
	if d.speaker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), d.timeout)
	defer cancel()
	if err := d.speaker.Speak(ctx, text); err != nil {
		d.log.Warn().Err(err).Str("text", text).Msg("voice alert failed")
	}
}
