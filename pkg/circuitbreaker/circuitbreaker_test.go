package circuitbreaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errTransport = errors.New("connection reset")
	errDeclined  = errors.New("card declined")
)

func newTestBreaker(clock *time.Time) *CircuitBreaker {
	cb := NewCircuitBreaker(Config{
		FailureThreshold:    2,
		SuccessThreshold:    1,
		Timeout:             time.Minute,
		HalfOpenMaxRequests: 1,
		IsFailure:           func(err error) bool { return !errors.Is(err, errDeclined) },
	})
	cb.now = func() time.Time { return *clock }
	return cb
}

func TestCircuitBreaker_OpensAfterThresholdAndRecovers(t *testing.T) {
	clock := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := newTestBreaker(&clock)

	fail := func() error { return errTransport }
	ok := func() error { return nil }

	assert.ErrorIs(t, cb.Execute(fail), errTransport)
	assert.ErrorIs(t, cb.Execute(fail), errTransport)
	assert.Equal(t, StateOpen, cb.GetState())
	assert.ErrorIs(t, cb.Execute(ok), ErrCircuitBreakerOpen)

	clock = clock.Add(2 * time.Minute)
	require.NoError(t, cb.Execute(ok))
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_BusinessErrorsDoNotTrip(t *testing.T) {
	clock := time.Now()
	cb := newTestBreaker(&clock)

	for i := 0; i < 5; i++ {
		assert.ErrorIs(t, cb.Execute(func() error { return errDeclined }), errDeclined)
	}
	assert.Equal(t, StateClosed, cb.GetState())

	for i := 0; i < 5; i++ {
		_ = cb.ExecuteContext(context.Background(), func(context.Context) error { return context.Canceled })
	}
	assert.Equal(t, StateClosed, cb.GetState())
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	clock := time.Now()
	var transitions []string
	cb := newTestBreaker(&clock)
	cb.config.OnStateChange = func(from, to State) { transitions = append(transitions, from.String()+"->"+to.String()) }

	_ = cb.Execute(func() error { return errTransport })
	_ = cb.Execute(func() error { return errTransport })
	clock = clock.Add(time.Minute)
	_ = cb.Execute(func() error { return errTransport })

	assert.Equal(t, StateOpen, cb.GetState())
	assert.Equal(t, []string{"closed->open", "open->half_open", "half_open->open"}, transitions)
}
