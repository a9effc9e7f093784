package util

import (
	"context"
	"time"

	log "github.com/nghyane/creative-mux/internal/logging"
)

// RetryPolicy bounds WithRetry. Attempts counts the first call; Retryable decides whether an
// error is worth another attempt.
type RetryPolicy struct {
	Attempts    int
	MaxInterval time.Duration
	Retryable   func(error) bool

	// Delay, when set, may return a server-provided wait that replaces the linear backoff.
	Delay func(error) time.Duration
}

// WithRetry calls fn until it succeeds, the policy rejects the error, attempts run out or ctx
// is done. The wait grows linearly by one second per attempt and is capped by MaxInterval.
// The last error is returned unwrapped.
func WithRetry[T any](ctx context.Context, policy RetryPolicy, logPrefix string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	attempts := max(policy.Attempts, 1)

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(attempt) * time.Second
			if policy.Delay != nil {
				if d := policy.Delay(lastErr); d > 0 {
					wait = d
				}
			}
			if policy.MaxInterval > 0 && wait > policy.MaxInterval {
				wait = policy.MaxInterval
			}
			timer := time.NewTimer(wait)
			select {
			case <-ctx.Done():
				timer.Stop()
				return zero, lastErr
			case <-timer.C:
			}
		}

		result, err := fn(ctx)
		if err == nil {
			return result, nil
		}
		lastErr = err
		if policy.Retryable == nil || !policy.Retryable(err) || ctx.Err() != nil {
			break
		}
		log.Warnf("%s attempt %d failed: %v", logPrefix, attempt+1, err)
	}
	return zero, lastErr
}
