package analysis

import (
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ErrorClass is the quota taxonomy for failed classifier calls.
type ErrorClass int

const (
	// ErrTransient covers network and parse errors; retry at the
	// normal call cadence.
	ErrTransient ErrorClass = iota
	// ErrRateLimited is a per-minute limit; retry after the server's
	// suggested delay or the default backoff.
	ErrRateLimited
	// ErrDailyQuotaExhausted is terminal for the process lifetime.
	ErrDailyQuotaExhausted
)

func (c ErrorClass) String() string {
	switch c {
	case ErrRateLimited:
		return "rate_limited"
	case ErrDailyQuotaExhausted:
		return "daily_quota_exhausted"
	default:
		return "transient"
	}
}

// safetyMargin is added on top of a server-suggested retry delay.
const safetyMargin = 5 * time.Second

var retryDelayPattern = regexp.MustCompile(`retryDelay\D*(\d+)`)

// Classify inspects a classifier error's text and maps it onto the
// quota taxonomy. The string matching is an explicit design choice to
// stay decoupled from any particular transport error type, and it is
// confined to this function: everywhere else only the ErrorClass is
// consulted. The returned duration is the server-suggested retry delay
// plus a safety margin, or zero when no hint was present.
func Classify(err error) (ErrorClass, time.Duration) {
	if err == nil {
		return ErrTransient, 0
	}
	text := err.Error()

	if !strings.Contains(text, "429") && !strings.Contains(text, "RESOURCE_EXHAUSTED") {
		return ErrTransient, 0
	}

	// Daily quota exhaustion shows up as a "PerDay" quota metric in the
	// error body and must never be retried.
	if strings.Contains(text, "PerDay") || strings.Contains(strings.ToLower(text), "per_day") {
		return ErrDailyQuotaExhausted, 0
	}

	if m := retryDelayPattern.FindStringSubmatch(text); m != nil {
		secs, convErr := strconv.Atoi(m[1])
		if convErr == nil {
			return ErrRateLimited, time.Duration(secs)*time.Second + safetyMargin
		}
	}
	return ErrRateLimited, 0
}
