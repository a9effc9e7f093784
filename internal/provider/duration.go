package provider

import (
	"math"
	"strconv"
	"strings"
	"time"
)

// maxRetryAfterSeconds is the largest hint a time.Duration can hold.
const maxRetryAfterSeconds = math.MaxInt64 / int64(time.Second)

// ParseRetryAfter reads a retry hint given either as a Go duration ("1m30s") or as seconds
// ("30", "2.5"). Anything unparsable or non-positive yields 0.
func ParseRetryAfter(raw string) time.Duration {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}
	if dur, err := time.ParseDuration(s); err == nil && dur > 0 {
		return dur
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil && secs > 0 {
		if secs >= float64(maxRetryAfterSeconds) {
			return time.Duration(maxRetryAfterSeconds) * time.Second
		}
		return time.Duration(secs * float64(time.Second))
	}
	return 0
}
