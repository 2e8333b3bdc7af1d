// Package breaker guards calls into the remote network layer with named
// circuits so a failing backend cannot cascade into every component.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/ethosengine/stewardnet/internal/metrics"
)

// State is the resilience state of one named circuit.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half_open"
)

// Config tunes one circuit's state machine.
type Config struct {
	// FailureThreshold is the number of failures inside FailureWindow
	// that trips the circuit open.
	FailureThreshold int
	// ResetTimeout is how long an open circuit waits before probing the
	// backend again (half-open).
	ResetTimeout time.Duration
	// SuccessThreshold is the number of consecutive half-open successes
	// required to close the circuit.
	SuccessThreshold int
	// FailureWindow bounds how long a failure counts against the circuit.
	FailureWindow time.Duration
}

// DefaultConfig returns the standard circuit configuration.
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 5,
		ResetTimeout:     30 * time.Second,
		SuccessThreshold: 3,
		FailureWindow:    60 * time.Second,
	}
}

// Result is the outcome of a guarded call. Execute never returns a Go
// error: rejected calls carry the backend's reason in Error, and calls the
// breaker refused to make are marked CircuitOpen so callers can tell "the
// backend said no" from "we chose not to ask".
type Result struct {
	Success     bool
	Data        interface{}
	Error       string
	CircuitOpen bool
	State       State
}

// Stats is a point-in-time view of one circuit.
type Stats struct {
	State                State `json:"state"`
	RecentFailures       int   `json:"recent_failures"`
	ConsecutiveSuccesses int   `json:"consecutive_successes"`
	// TimeSinceLastFailure is -1 when the circuit has never failed.
	TimeSinceLastFailure time.Duration `json:"time_since_last_failure"`
	TimeSinceStateChange time.Duration `json:"time_since_state_change"`
}

type circuit struct {
	name   string
	config Config

	mu                   sync.Mutex
	state                State
	failures             []time.Time
	consecutiveSuccesses int
	lastFailure          time.Time
	lastTransition       time.Time
}

// CircuitBreaker manages a set of named circuits, created lazily on first
// use and kept for the process lifetime.
type CircuitBreaker struct {
	clock   clock.Clock
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	circuits map[string]*circuit
}

// New creates a circuit breaker. The metrics argument may be nil.
func New(clk clock.Clock, logger *zap.Logger, m *metrics.Metrics) *CircuitBreaker {
	return &CircuitBreaker{
		clock:    clk,
		logger:   logger,
		metrics:  m,
		circuits: make(map[string]*circuit),
	}
}

// Register creates the named circuit with the given config. Registration is
// idempotent: the first registration wins and later calls are no-ops.
func (b *CircuitBreaker) Register(name string, cfg Config) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.circuits[name]; exists {
		return
	}
	b.circuits[name] = b.newCircuit(name, cfg)
}

// Execute runs fn under the named circuit, auto-registering it with the
// default config when unseen. All outcomes are reported through the Result;
// fn's error string is surfaced verbatim on rejection.
func (b *CircuitBreaker) Execute(ctx context.Context, name string, fn func(context.Context) (interface{}, error)) Result {
	c := b.getOrCreate(name)

	c.mu.Lock()
	b.maybeHalfOpenLocked(c)
	if c.state == StateOpen {
		c.mu.Unlock()
		if b.metrics != nil {
			b.metrics.CircuitShortCircuits.WithLabelValues(name).Inc()
		}
		return Result{
			Success:     false,
			Error:       fmt.Sprintf("circuit %s is open", name),
			CircuitOpen: true,
			State:       StateOpen,
		}
	}
	c.mu.Unlock()

	data, err := fn(ctx)
	if err != nil {
		state := b.recordFailure(c)
		return Result{Success: false, Error: err.Error(), State: state}
	}

	state := b.recordSuccess(c)
	return Result{Success: true, Data: data, State: state}
}

// GetState returns the named circuit's current state, evaluating the
// open-to-half-open timeout first. ok is false for unregistered circuits.
func (b *CircuitBreaker) GetState(name string) (State, bool) {
	b.mu.RLock()
	c, exists := b.circuits[name]
	b.mu.RUnlock()
	if !exists {
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	b.maybeHalfOpenLocked(c)
	return c.state, true
}

// GetStats returns a snapshot of the named circuit, or nil if unregistered.
func (b *CircuitBreaker) GetStats(name string) *Stats {
	b.mu.RLock()
	c, exists := b.circuits[name]
	b.mu.RUnlock()
	if !exists {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	b.maybeHalfOpenLocked(c)

	now := b.clock.Now()
	sinceFailure := time.Duration(-1)
	if !c.lastFailure.IsZero() {
		sinceFailure = now.Sub(c.lastFailure)
	}

	return &Stats{
		State:                c.state,
		RecentFailures:       len(b.pruneFailuresLocked(c, now)),
		ConsecutiveSuccesses: c.consecutiveSuccesses,
		TimeSinceLastFailure: sinceFailure,
		TimeSinceStateChange: now.Sub(c.lastTransition),
	}
}

// Reset forces the named circuit closed, clearing all counters. No-op for
// unregistered circuits.
func (b *CircuitBreaker) Reset(name string) {
	b.mu.RLock()
	c, exists := b.circuits[name]
	b.mu.RUnlock()
	if !exists {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failures = nil
	c.consecutiveSuccesses = 0
	if c.state != StateClosed {
		b.transitionLocked(c, StateClosed)
	}
}

// Names returns the registered circuit names.
func (b *CircuitBreaker) Names() []string {
	b.mu.RLock()
	defer b.mu.RUnlock()

	names := make([]string, 0, len(b.circuits))
	for name := range b.circuits {
		names = append(names, name)
	}
	return names
}

func (b *CircuitBreaker) newCircuit(name string, cfg Config) *circuit {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = DefaultConfig().FailureThreshold
	}
	if cfg.ResetTimeout <= 0 {
		cfg.ResetTimeout = DefaultConfig().ResetTimeout
	}
	if cfg.SuccessThreshold <= 0 {
		cfg.SuccessThreshold = DefaultConfig().SuccessThreshold
	}
	if cfg.FailureWindow <= 0 {
		cfg.FailureWindow = DefaultConfig().FailureWindow
	}
	return &circuit{
		name:           name,
		config:         cfg,
		state:          StateClosed,
		lastTransition: b.clock.Now(),
	}
}

func (b *CircuitBreaker) getOrCreate(name string) *circuit {
	b.mu.RLock()
	c, exists := b.circuits[name]
	b.mu.RUnlock()
	if exists {
		return c
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if c, exists = b.circuits[name]; exists {
		return c
	}
	c = b.newCircuit(name, DefaultConfig())
	b.circuits[name] = c
	return c
}

// maybeHalfOpenLocked moves an open circuit to half-open once the reset
// timeout has elapsed. Caller holds c.mu.
func (b *CircuitBreaker) maybeHalfOpenLocked(c *circuit) {
	if c.state != StateOpen {
		return
	}
	if b.clock.Now().Sub(c.lastTransition) >= c.config.ResetTimeout {
		c.consecutiveSuccesses = 0
		b.transitionLocked(c, StateHalfOpen)
	}
}

func (b *CircuitBreaker) recordSuccess(c *circuit) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateHalfOpen:
		c.consecutiveSuccesses++
		if c.consecutiveSuccesses >= c.config.SuccessThreshold {
			c.failures = nil
			c.consecutiveSuccesses = 0
			b.transitionLocked(c, StateClosed)
		}
	case StateClosed:
		// A success while closed clears the failure window.
		c.failures = nil
	}
	return c.state
}

func (b *CircuitBreaker) recordFailure(c *circuit) State {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := b.clock.Now()
	c.lastFailure = now

	switch c.state {
	case StateHalfOpen:
		// One failure during the probe phase reopens immediately.
		c.consecutiveSuccesses = 0
		b.transitionLocked(c, StateOpen)
	case StateClosed:
		c.failures = append(b.pruneFailuresLocked(c, now), now)
		if len(c.failures) >= c.config.FailureThreshold {
			b.transitionLocked(c, StateOpen)
		}
	}
	return c.state
}

// pruneFailuresLocked drops failures older than the window. Caller holds c.mu.
func (b *CircuitBreaker) pruneFailuresLocked(c *circuit, now time.Time) []time.Time {
	cutoff := now.Add(-c.config.FailureWindow)
	pruned := c.failures[:0]
	for _, ts := range c.failures {
		if ts.After(cutoff) {
			pruned = append(pruned, ts)
		}
	}
	c.failures = pruned
	return pruned
}

func (b *CircuitBreaker) transitionLocked(c *circuit, to State) {
	from := c.state
	c.state = to
	c.lastTransition = b.clock.Now()

	b.logger.Info("Circuit state changed",
		zap.String("circuit", c.name),
		zap.String("from", string(from)),
		zap.String("to", string(to)))

	if b.metrics != nil {
		b.metrics.CircuitTransitions.WithLabelValues(c.name, string(to)).Inc()
	}
}
