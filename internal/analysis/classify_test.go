package analysis

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		wantClass   ErrorClass
		wantBackoff time.Duration
	}{
		{
			name:      "nil error",
			err:       nil,
			wantClass: ErrTransient,
		},
		{
			name:      "network error",
			err:       errors.New("dial tcp: connection refused"),
			wantClass: ErrTransient,
		},
		{
			name:      "plain 429",
			err:       errors.New("classifier status 429: too many requests"),
			wantClass: ErrRateLimited,
		},
		{
			name:      "resource exhausted",
			err:       errors.New(`rpc error: RESOURCE_EXHAUSTED: quota exceeded`),
			wantClass: ErrRateLimited,
		},
		{
			name:      "daily quota PerDay",
			err:       errors.New(`429: RESOURCE_EXHAUSTED quota_metric: GenerateRequestsPerDayPerProjectPerModel`),
			wantClass: ErrDailyQuotaExhausted,
		},
		{
			name:      "daily quota lowercase per_day",
			err:       errors.New(`status 429: quota limit "requests_per_day" exceeded`),
			wantClass: ErrDailyQuotaExhausted,
		},
		{
			name:        "rate limited with retryDelay hint",
			err:         errors.New(`status 429: RESOURCE_EXHAUSTED, "retryDelay": "42s"`),
			wantClass:   ErrRateLimited,
			wantBackoff: 47 * time.Second, // hint + 5s margin
		},
		{
			name:      "PerDay outside a quota error stays transient",
			err:       errors.New("PerDay is mentioned but no quota signal"),
			wantClass: ErrTransient,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			class, backoff := Classify(tt.err)
			assert.Equal(t, tt.wantClass, class)
			assert.Equal(t, tt.wantBackoff, backoff)
		})
	}
}

func TestClassify_HintParsingVariants(t *testing.T) {
	// The hint format is loosely specified; any digits after retryDelay count.
	for _, secs := range []int{1, 30, 120} {
		err := fmt.Errorf("429 RESOURCE_EXHAUSTED retryDelay: %ds", secs)
		class, backoff := Classify(err)
		assert.Equal(t, ErrRateLimited, class)
		assert.Equal(t, time.Duration(secs)*time.Second+5*time.Second, backoff)
	}
}
