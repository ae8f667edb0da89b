package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/loopcrm/edgegate/internal/faults"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct {
	at time.Time
}

func (c *fakeClock) Now() time.Time          { return c.at }
func (c *fakeClock) Advance(d time.Duration) { c.at = c.at.Add(d) }

func newTestBreaker(threshold int, reset time.Duration, probes int) (*CircuitBreaker, *fakeClock) {
	clock := &fakeClock{at: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
	cb := NewCircuitBreaker(threshold, reset, probes)
	cb.now = clock.Now
	return cb, clock
}

func failN(cb *CircuitBreaker, n int) {
	for i := 0; i < n; i++ {
		_ = cb.Do(context.Background(), func(context.Context) error {
			return errors.New("upstream down")
		})
	}
}

func TestBreakerOpensAfterThreshold(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second, 1)

	failN(cb, 2)
	assert.Equal(t, Closed, cb.State())

	failN(cb, 1)
	assert.Equal(t, Open, cb.State())
}

func TestBreakerRejectsWithoutInvoking(t *testing.T) {
	cb, _ := newTestBreaker(2, 30*time.Second, 1)
	failN(cb, 2)

	invoked := false
	err := cb.Do(context.Background(), func(context.Context) error {
		invoked = true
		return nil
	})

	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, faults.KindStateError, faults.KindOf(err))
	assert.False(t, invoked)
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	cb, _ := newTestBreaker(3, 30*time.Second, 1)

	failN(cb, 2)
	require.NoError(t, cb.Do(context.Background(), func(context.Context) error { return nil }))

	// The streak restarts; two more failures must not open the circuit.
	failN(cb, 2)
	assert.Equal(t, Closed, cb.State())
}

func TestBreakerAdmitsProbesAfterCooldown(t *testing.T) {
	cb, clock := newTestBreaker(2, 30*time.Second, 2)
	failN(cb, 2)

	clock.Advance(29 * time.Second)
	assert.ErrorIs(t, cb.Do(context.Background(), func(context.Context) error { return nil }), ErrCircuitOpen)

	clock.Advance(time.Second)
	assert.Equal(t, HalfOpen, cb.State())

	// Exactly halfOpenProbes calls get through; hold them half-done so no
	// further probes are admitted.
	require.NoError(t, cb.allow())
	require.NoError(t, cb.allow())
	assert.ErrorIs(t, cb.allow(), ErrCircuitOpen)

	cb.recordSuccess()
	assert.Equal(t, HalfOpen, cb.State())
	cb.recordSuccess()
	assert.Equal(t, Closed, cb.State())
}

func TestBreakerHalfOpenFailureReopens(t *testing.T) {
	cb, clock := newTestBreaker(2, 30*time.Second, 3)
	failN(cb, 2)
	clock.Advance(30 * time.Second)

	err := cb.Do(context.Background(), func(context.Context) error {
		return errors.New("still down")
	})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrCircuitOpen)

	// Reopened; the full cool-down applies again.
	assert.ErrorIs(t, cb.Do(context.Background(), func(context.Context) error { return nil }), ErrCircuitOpen)
	clock.Advance(30 * time.Second)
	assert.NoError(t, cb.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestBreakerReset(t *testing.T) {
	cb, _ := newTestBreaker(1, time.Hour, 1)
	failN(cb, 1)
	require.Equal(t, Open, cb.State())

	cb.Reset()
	assert.Equal(t, Closed, cb.State())
	assert.NoError(t, cb.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestExecuteReturnsValue(t *testing.T) {
	cb, _ := newTestBreaker(5, time.Minute, 1)

	value, err := Execute(context.Background(), cb, func(context.Context) (int, error) {
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	_, err = Execute(context.Background(), cb, func(context.Context) (int, error) {
		return 0, errors.New("boom")
	})
	assert.Error(t, err)
}

func TestGracefulDegradationFreshPath(t *testing.T) {
	var stored string
	result, err := WithGracefulDegradation(context.Background(),
		func(context.Context) (string, error) { return "fresh", nil },
		func(context.Context) (string, bool) { return "cached", true },
		func(_ context.Context, v string) { stored = v },
	)

	require.NoError(t, err)
	assert.Equal(t, "fresh", result.Value)
	assert.False(t, result.IsStale)
	assert.Equal(t, "fresh", stored)
}

func TestGracefulDegradationStaleFallback(t *testing.T) {
	fetchErr := faults.New(faults.KindUpstream, "fetch failed")
	result, err := WithGracefulDegradation(context.Background(),
		func(context.Context) (string, error) { return "", fetchErr },
		func(context.Context) (string, bool) { return "cached", true },
		nil,
	)

	require.NoError(t, err)
	assert.True(t, result.IsStale)
	assert.Equal(t, "cached", result.Value)
	assert.ErrorIs(t, result.Err, fetchErr)
}

func TestGracefulDegradationNoCache(t *testing.T) {
	fetchErr := faults.New(faults.KindUpstream, "fetch failed")
	_, err := WithGracefulDegradation(context.Background(),
		func(context.Context) (string, error) { return "", fetchErr },
		func(context.Context) (string, bool) { return "", false },
		nil,
	)
	assert.ErrorIs(t, err, fetchErr)
}

func TestBreakerIgnoresApplicationRejections(t *testing.T) {
	cb, _ := newTestBreaker(2, 30*time.Second, 1)

	deny := func(context.Context) error {
		return faults.New(faults.KindUnauthorized, "refresh token expired")
	}
	for i := 0; i < 5; i++ {
		require.Error(t, cb.Do(context.Background(), deny))
	}
	assert.Equal(t, Closed, cb.State())

	// A rejection between transport failures clears the streak.
	failN(cb, 1)
	require.Error(t, cb.Do(context.Background(), deny))
	failN(cb, 1)
	assert.Equal(t, Closed, cb.State())

	failN(cb, 2)
	assert.Equal(t, Open, cb.State())
}

func TestBreakerClosesOnHalfOpenRejection(t *testing.T) {
	cb, clock := newTestBreaker(2, 30*time.Second, 1)
	failN(cb, 2)
	require.Equal(t, Open, cb.State())

	clock.Advance(30 * time.Second)
	err := cb.Do(context.Background(), func(context.Context) error {
		return faults.New(faults.KindForbidden, "insufficient scope")
	})
	require.Error(t, err)
	assert.Equal(t, Closed, cb.State())
}

func TestBreakerReportsStateTransitions(t *testing.T) {
	cb, clock := newTestBreaker(2, 30*time.Second, 1)

	var transitions []string
	cb.OnStateChange = func(from, to BreakerState) {
		transitions = append(transitions, from.String()+">"+to.String())
	}

	failN(cb, 2)
	clock.Advance(30 * time.Second)
	failN(cb, 1)
	clock.Advance(30 * time.Second)
	require.NoError(t, cb.Do(context.Background(), func(context.Context) error { return nil }))

	assert.Equal(t, []string{
		"closed>open",
		"open>half_open",
		"half_open>open",
		"open>half_open",
		"half_open>closed",
	}, transitions)

	// Rejected calls while the circuit stays open are not transitions.
	failN(cb, 2)
	seen := len(transitions)
	assert.ErrorIs(t, cb.Do(context.Background(), func(context.Context) error { return nil }), ErrCircuitOpen)
	assert.Len(t, transitions, seen)
}
