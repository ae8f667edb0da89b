package resilience

import (
	"context"
	"time"

	"github.com/loopcrm/edgegate/internal/faults"
)

// WithTimeout races fn against the deadline. On timeout it returns a typed
// timeout fault; cancellation is advisory, fn keeps running and its late
// result is discarded through the buffered channel, so callers must make
// fn safe to complete after abandonment.
func WithTimeout[T any](ctx context.Context, d time.Duration, message string, fn func(context.Context) (T, error)) (T, error) {
	type outcome struct {
		value T
		err   error
	}

	timeoutCtx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	results := make(chan outcome, 1)
	go func() {
		value, err := fn(timeoutCtx)
		results <- outcome{value: value, err: err}
	}()

	var zero T
	select {
	case r := <-results:
		return r.value, r.err
	case <-timeoutCtx.Done():
		return zero, faults.Wrap(faults.KindTimeout, message, timeoutCtx.Err())
	}
}
