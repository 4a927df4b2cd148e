package sensor

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// PassageFunc is invoked for every detected lane passage.
type PassageFunc func(ctx context.Context, lane string)

// Reader simulates a roadside induction-loop counter: a background
// loop registers a passage on a random lane every 5-10 seconds. The
// hardware serial variant is wired the same way, only the loop body
// differs.
type Reader struct {
	mu      sync.Mutex
	counts  map[string]int
	lanes   []string
	rand    *rand.Rand
	onEvent PassageFunc
	minWait time.Duration
	spread  time.Duration
	log     zerolog.Logger
}

func NewReader(onEvent PassageFunc, seed int64, log zerolog.Logger) *Reader {
	return &Reader{
		counts:  map[string]int{"lane1": 0, "lane2": 0},
		lanes:   []string{"lane1", "lane2"},
		rand:    rand.New(rand.NewSource(seed)),
		onEvent: onEvent,
		minWait: 5 * time.Second,
		spread:  5 * time.Second,
		log:     log,
	}
}

// Start runs the read loop until the context is cancelled.
func (r *Reader) Start(ctx context.Context) {
	go r.readLoop(ctx)
}

func (r *Reader) readLoop(ctx context.Context) {
	for {
		r.mu.Lock()
		wait := r.minWait
		if r.spread > 0 {
			wait += time.Duration(r.rand.Int63n(int64(r.spread) + 1))
		}
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}

		r.mu.Lock()
		lane := r.lanes[r.rand.Intn(len(r.lanes))]
		r.counts[lane]++
		count := r.counts[lane]
		r.mu.Unlock()

		r.log.Debug().Str("lane", lane).Int("count", count).Msg("lane passage")
		if r.onEvent != nil {
			r.onEvent(ctx, lane)
		}
	}
}

// Counts returns a copy of the per-lane totals for this session.
func (r *Reader) Counts() map[string]int {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]int, len(r.counts))
	for k, v := range r.counts {
		out[k] = v
	}
	return out
}
