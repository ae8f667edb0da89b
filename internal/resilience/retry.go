// Package resilience provides retry-with-backoff, timeout wrapping, a
// circuit breaker, and graceful degradation for outbound calls. The four
// utilities are independent and composable; none of them keeps global
// state.
package resilience

import (
	"context"
	"math"
	"math/rand"
	"time"

	"github.com/loopcrm/edgegate/internal/faults"
)

// RetryOptions tunes Retry. Zero values fall back to the defaults below.
type RetryOptions struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	// ShouldRetry overrides the default retryability classification
	// (network, timeout, rate-limited).
	ShouldRetry func(error) bool
}

const (
	defaultMaxAttempts  = 3
	defaultInitialDelay = 100 * time.Millisecond
	defaultMaxDelay     = 5 * time.Second
	defaultMultiplier   = 2.0
)

func (o RetryOptions) normalized() RetryOptions {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = defaultMaxAttempts
	}
	if o.InitialDelay <= 0 {
		o.InitialDelay = defaultInitialDelay
	}
	if o.MaxDelay <= 0 {
		o.MaxDelay = defaultMaxDelay
	}
	if o.Multiplier <= 0 {
		o.Multiplier = defaultMultiplier
	}
	if o.ShouldRetry == nil {
		o.ShouldRetry = faults.Retryable
	}
	return o
}

// Retry invokes fn up to MaxAttempts times, sleeping
// min(initial×multiplier^attempt, max) plus 10–30% jitter between
// attempts. It stops early when ShouldRetry rejects the failure or the
// context is done, and returns the last error otherwise.
func Retry[T any](ctx context.Context, opts RetryOptions, fn func(context.Context) (T, error)) (T, error) {
	opts = opts.normalized()

	var zero T
	var lastErr error
	for attempt := 0; attempt < opts.MaxAttempts; attempt++ {
		value, err := fn(ctx)
		if err == nil {
			return value, nil
		}
		lastErr = err

		if attempt == opts.MaxAttempts-1 || !opts.ShouldRetry(err) {
			break
		}

		select {
		case <-time.After(backoffDelay(opts, attempt)):
		case <-ctx.Done():
			return zero, faults.Wrap(faults.KindTimeout, "retry aborted", ctx.Err())
		}
	}
	return zero, lastErr
}

func backoffDelay(opts RetryOptions, attempt int) time.Duration {
	delay := float64(opts.InitialDelay) * math.Pow(opts.Multiplier, float64(attempt))
	if max := float64(opts.MaxDelay); delay > max {
		delay = max
	}
	// 10–30% jitter keeps synchronized clients from retrying in lockstep.
	jitter := delay * (0.1 + 0.2*rand.Float64())
	return time.Duration(delay + jitter)
}
