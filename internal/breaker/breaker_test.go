package breaker_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/breaker"
)

func newBreaker(t *testing.T) (*breaker.CircuitBreaker, *clock.Mock) {
	t.Helper()
	mock := clock.NewMock()
	return breaker.New(mock, zap.NewNop(), nil), mock
}

func failing(ctx context.Context) (interface{}, error) {
	return nil, errors.New("backend unavailable")
}

func succeeding(ctx context.Context) (interface{}, error) {
	return "ok", nil
}

func tripOpen(t *testing.T, b *breaker.CircuitBreaker, name string, threshold int) {
	t.Helper()
	for i := 0; i < threshold; i++ {
		b.Execute(context.Background(), name, failing)
	}
	state, ok := b.GetState(name)
	require.True(t, ok)
	require.Equal(t, breaker.StateOpen, state)
}

func TestCircuitBreaker_ClosedPassesThrough(t *testing.T) {
	b, _ := newBreaker(t)

	res := b.Execute(context.Background(), "registry", succeeding)

	assert.True(t, res.Success)
	assert.Equal(t, "ok", res.Data)
	assert.False(t, res.CircuitOpen)
	assert.Equal(t, breaker.StateClosed, res.State)
}

func TestCircuitBreaker_OpensAtFailureThreshold(t *testing.T) {
	b, _ := newBreaker(t)

	for i := 0; i < 4; i++ {
		res := b.Execute(context.Background(), "registry", failing)
		assert.Equal(t, breaker.StateClosed, res.State)
		assert.Equal(t, "backend unavailable", res.Error)
	}

	res := b.Execute(context.Background(), "registry", failing)
	assert.Equal(t, breaker.StateOpen, res.State)
}

func TestCircuitBreaker_OpenShortCircuits(t *testing.T) {
	b, _ := newBreaker(t)
	tripOpen(t, b, "registry", 5)

	invoked := false
	res := b.Execute(context.Background(), "registry", func(ctx context.Context) (interface{}, error) {
		invoked = true
		return nil, nil
	})

	assert.False(t, invoked, "wrapped function must not run while open")
	assert.False(t, res.Success)
	assert.True(t, res.CircuitOpen)
	assert.Equal(t, "circuit registry is open", res.Error)
}

func TestCircuitBreaker_SuccessWhileClosedClearsWindow(t *testing.T) {
	b, _ := newBreaker(t)

	for i := 0; i < 4; i++ {
		b.Execute(context.Background(), "registry", failing)
	}
	b.Execute(context.Background(), "registry", succeeding)

	// The window was cleared, so four more failures do not trip it.
	for i := 0; i < 4; i++ {
		res := b.Execute(context.Background(), "registry", failing)
		assert.Equal(t, breaker.StateClosed, res.State)
	}
}

func TestCircuitBreaker_FailureWindowPruning(t *testing.T) {
	b, mock := newBreaker(t)
	b.Register("registry", breaker.Config{
		FailureThreshold: 3,
		FailureWindow:    time.Minute,
	})

	b.Execute(context.Background(), "registry", failing)
	b.Execute(context.Background(), "registry", failing)

	// Old failures age out of the window before the third arrives.
	mock.Add(2 * time.Minute)
	res := b.Execute(context.Background(), "registry", failing)
	assert.Equal(t, breaker.StateClosed, res.State)

	stats := b.GetStats("registry")
	require.NotNil(t, stats)
	assert.Equal(t, 1, stats.RecentFailures)
}

func TestCircuitBreaker_HalfOpenAfterResetTimeout(t *testing.T) {
	b, mock := newBreaker(t)
	tripOpen(t, b, "registry", 5)

	mock.Add(29 * time.Second)
	state, _ := b.GetState("registry")
	assert.Equal(t, breaker.StateOpen, state)

	mock.Add(time.Second)
	state, _ = b.GetState("registry")
	assert.Equal(t, breaker.StateHalfOpen, state)
}

func TestCircuitBreaker_HalfOpenClosesAfterSuccessThreshold(t *testing.T) {
	b, mock := newBreaker(t)
	tripOpen(t, b, "registry", 5)
	mock.Add(30 * time.Second)

	for i := 0; i < 2; i++ {
		res := b.Execute(context.Background(), "registry", succeeding)
		assert.Equal(t, breaker.StateHalfOpen, res.State)
	}

	res := b.Execute(context.Background(), "registry", succeeding)
	assert.Equal(t, breaker.StateClosed, res.State)

	stats := b.GetStats("registry")
	require.NotNil(t, stats)
	assert.Equal(t, 0, stats.RecentFailures)
	assert.Equal(t, 0, stats.ConsecutiveSuccesses)
}

func TestCircuitBreaker_HalfOpenFailureReopens(t *testing.T) {
	b, mock := newBreaker(t)
	tripOpen(t, b, "registry", 5)
	mock.Add(30 * time.Second)

	b.Execute(context.Background(), "registry", succeeding)
	res := b.Execute(context.Background(), "registry", failing)
	assert.Equal(t, breaker.StateOpen, res.State)

	// The success counter was reset; reopening starts a fresh probe cycle.
	mock.Add(30 * time.Second)
	stats := b.GetStats("registry")
	require.NotNil(t, stats)
	assert.Equal(t, breaker.StateHalfOpen, stats.State)
	assert.Equal(t, 0, stats.ConsecutiveSuccesses)
}

func TestCircuitBreaker_RegisterIsIdempotent(t *testing.T) {
	b, _ := newBreaker(t)

	b.Register("registry", breaker.Config{FailureThreshold: 2})
	b.Register("registry", breaker.Config{FailureThreshold: 50})

	// First registration wins: two failures trip the circuit.
	b.Execute(context.Background(), "registry", failing)
	res := b.Execute(context.Background(), "registry", failing)
	assert.Equal(t, breaker.StateOpen, res.State)
}

func TestCircuitBreaker_Reset(t *testing.T) {
	b, _ := newBreaker(t)
	tripOpen(t, b, "registry", 5)

	b.Reset("registry")

	state, ok := b.GetState("registry")
	require.True(t, ok)
	assert.Equal(t, breaker.StateClosed, state)

	res := b.Execute(context.Background(), "registry", succeeding)
	assert.True(t, res.Success)
}

func TestCircuitBreaker_UnregisteredQueries(t *testing.T) {
	b, _ := newBreaker(t)

	_, ok := b.GetState("unknown")
	assert.False(t, ok)
	assert.Nil(t, b.GetStats("unknown"))
	b.Reset("unknown") // no-op, must not panic
}

func TestCircuitBreaker_StatsTimings(t *testing.T) {
	b, mock := newBreaker(t)

	b.Execute(context.Background(), "registry", succeeding)
	stats := b.GetStats("registry")
	require.NotNil(t, stats)
	assert.Equal(t, time.Duration(-1), stats.TimeSinceLastFailure)

	b.Execute(context.Background(), "registry", failing)
	mock.Add(5 * time.Second)

	stats = b.GetStats("registry")
	require.NotNil(t, stats)
	assert.Equal(t, 5*time.Second, stats.TimeSinceLastFailure)
}
