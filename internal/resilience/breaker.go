package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/loopcrm/edgegate/internal/faults"
)

// BreakerState is the circuit breaker's current disposition.
type BreakerState int

const (
	Closed BreakerState = iota
	Open
	HalfOpen
)

func (s BreakerState) String() string {
	switch s {
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return "closed"
	}
}

// ErrCircuitOpen is returned without invoking the wrapped call while the
// circuit is open or out of half-open probes.
var ErrCircuitOpen = faults.New(faults.KindStateError, "circuit breaker open")

// CircuitBreaker opens after failureThreshold consecutive transport
// failures, rejects calls for resetTimeout, then allows halfOpenProbes
// calls through; any half-open failure reopens immediately, enough
// consecutive successes close the circuit. Recognized application
// rejections do not trip it: the dependency answered, so they clear the
// failure streak instead. One instance owns its state; share a single
// long-lived breaker per upstream dependency, since reconstructing it per
// request defeats it entirely.
type CircuitBreaker struct {
	// OnStateChange fires after every state transition. Set it before
	// first use; it runs with the breaker's lock held and must not call
	// back into the breaker.
	OnStateChange func(from, to BreakerState)

	mu sync.Mutex

	failureThreshold int
	resetTimeout     time.Duration
	halfOpenProbes   int

	state           BreakerState
	failureCount    int
	lastFailureAt   time.Time
	probesInFlight  int
	probesSucceeded int

	now func() time.Time
}

func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration, halfOpenProbes int) *CircuitBreaker {
	if failureThreshold <= 0 {
		failureThreshold = 5
	}
	if resetTimeout <= 0 {
		resetTimeout = 30 * time.Second
	}
	if halfOpenProbes <= 0 {
		halfOpenProbes = 1
	}
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		halfOpenProbes:   halfOpenProbes,
		state:            Closed,
		now:              time.Now,
	}
}

// State reports the breaker's disposition, accounting for an elapsed
// cool-down that would admit probes.
func (cb *CircuitBreaker) State() BreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	if cb.state == Open && cb.now().Sub(cb.lastFailureAt) >= cb.resetTimeout {
		return HalfOpen
	}
	return cb.state
}

// Reset forces the breaker closed and clears its counters.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.setState(Closed)
	cb.failureCount = 0
	cb.probesInFlight = 0
	cb.probesSucceeded = 0
}

// setState transitions the breaker and fires the hook. Callers hold mu.
func (cb *CircuitBreaker) setState(to BreakerState) {
	if cb.state == to {
		return
	}
	from := cb.state
	cb.state = to
	if cb.OnStateChange != nil {
		cb.OnStateChange(from, to)
	}
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case Closed:
		return nil
	case Open:
		if cb.now().Sub(cb.lastFailureAt) < cb.resetTimeout {
			return ErrCircuitOpen
		}
		cb.setState(HalfOpen)
		cb.probesInFlight = 0
		cb.probesSucceeded = 0
		fallthrough
	default: // HalfOpen
		if cb.probesInFlight >= cb.halfOpenProbes {
			return ErrCircuitOpen
		}
		cb.probesInFlight++
		return nil
	}
}

func (cb *CircuitBreaker) recordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case HalfOpen:
		cb.probesSucceeded++
		if cb.probesSucceeded >= cb.halfOpenProbes {
			cb.setState(Closed)
			cb.failureCount = 0
			cb.probesInFlight = 0
			cb.probesSucceeded = 0
		}
	case Closed:
		cb.failureCount = 0
	}
}

func (cb *CircuitBreaker) recordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureAt = cb.now()
	switch cb.state {
	case HalfOpen:
		// Any half-open failure reopens immediately.
		cb.setState(Open)
	case Closed:
		cb.failureCount++
		if cb.failureCount >= cb.failureThreshold {
			cb.setState(Open)
		}
	}
}

// tripsBreaker separates transport-level trouble from application
// rejections. An expired refresh token is a per-caller 401, not a sign the
// dependency is down; feeding it to the breaker would let a burst of
// ordinary session expiries block everyone.
func tripsBreaker(err error) bool {
	if faults.Retryable(err) {
		return true
	}
	switch faults.KindOf(err) {
	case faults.KindOffline, faults.KindUpstream, faults.KindUnknown:
		return true
	default:
		return false
	}
}

// Do runs fn under the breaker's admission control.
func (cb *CircuitBreaker) Do(ctx context.Context, fn func(context.Context) error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn(ctx)
	if err != nil && tripsBreaker(err) {
		cb.recordFailure()
		return err
	}
	cb.recordSuccess()
	return err
}

// Execute runs a value-returning fn under the breaker. A method cannot be
// generic, hence the free function.
func Execute[T any](ctx context.Context, cb *CircuitBreaker, fn func(context.Context) (T, error)) (T, error) {
	var value T
	err := cb.Do(ctx, func(ctx context.Context) error {
		var innerErr error
		value, innerErr = fn(ctx)
		return innerErr
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return value, nil
}
