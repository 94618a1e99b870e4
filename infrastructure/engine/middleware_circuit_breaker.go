package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-thermofom/internal/domain"
	"github.com/ahrav/go-thermofom/internal/ports"
)

// ErrCircuitOpen indicates that the circuit breaker rejected a request.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// CircuitBreakerState represents the current state of a circuit breaker.
type CircuitBreakerState int

// Circuit breaker states.
const (
	// StateClosed allows all requests to pass through.
	StateClosed CircuitBreakerState = iota

	// StateOpen rejects all requests until the cooldown expires.
	StateOpen

	// StateHalfOpen lets a single probe request through to test recovery.
	StateHalfOpen
)

// String returns the state name used in logs.
func (s CircuitBreakerState) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return "unknown"
	}
}

// CircuitBreakerMetrics receives circuit breaker state changes and outcomes.
type CircuitBreakerMetrics interface {
	// RecordState updates the current circuit breaker state metric.
	RecordState(state CircuitBreakerState)

	// RecordTrip increments the rejected request counter.
	RecordTrip()

	// RecordSuccess increments the successful request counter.
	RecordSuccess()

	// RecordFailure increments the failed request counter.
	RecordFailure()
}

// CircuitBreaker opens after maxFailures consecutive provider failures and
// rejects requests for cooldownDuration before probing recovery.
// Property lookup failures describe the request, not the provider's health,
// and never count as failures.
type CircuitBreaker struct {
	mu               sync.Mutex
	state            CircuitBreakerState
	failureCount     int
	maxFailures      int
	cooldownDuration time.Duration
	openedAt         time.Time
	probing          bool
	now              func() time.Time
}

// NewCircuitBreaker creates a closed circuit breaker.
func NewCircuitBreaker(maxFailures int, cooldownDuration time.Duration) *CircuitBreaker {
	if maxFailures < 1 {
		maxFailures = 1
	}
	return &CircuitBreaker{
		state:            StateClosed,
		maxFailures:      maxFailures,
		cooldownDuration: cooldownDuration,
		now:              time.Now,
	}
}

// Call executes fn through the circuit breaker. If the circuit is open,
// Call returns ErrCircuitOpen without invoking fn. The lock is not held
// while fn runs.
func (cb *CircuitBreaker) Call(fn func() error) error {
	if err := cb.allow(); err != nil {
		return err
	}
	err := fn()
	cb.record(err)
	return err
}

func (cb *CircuitBreaker) allow() error {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldownDuration {
			return ErrCircuitOpen
		}
		cb.state = StateHalfOpen
		cb.probing = true
		return nil
	case StateHalfOpen:
		if cb.probing {
			return ErrCircuitOpen
		}
		cb.probing = true
		return nil
	default:
		return nil
	}
}

func (cb *CircuitBreaker) record(err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	failed := err != nil && !errors.Is(err, domain.ErrPropertyLookup)

	switch cb.state {
	case StateHalfOpen:
		cb.probing = false
		if failed {
			cb.trip()
			return
		}
		cb.failureCount = 0
		cb.state = StateClosed
	case StateClosed:
		if !failed {
			cb.failureCount = 0
			return
		}
		cb.failureCount++
		if cb.failureCount >= cb.maxFailures {
			cb.trip()
		}
	}
}

func (cb *CircuitBreaker) trip() {
	cb.state = StateOpen
	cb.openedAt = cb.now()
	cb.failureCount = 0
}

// GetState returns the current circuit breaker state.
func (cb *CircuitBreaker) GetState() CircuitBreakerState {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// circuitBreakerEngine fails fast while the shared breaker is open.
type circuitBreakerEngine struct {
	next    CoreEngine
	cb      *CircuitBreaker
	metrics CircuitBreakerMetrics
}

// CircuitBreakerMiddleware creates middleware that opens after maxFailures
// consecutive errors and stays open for cooldown.
func CircuitBreakerMiddleware(maxFailures int, cooldown time.Duration) Middleware {
	return CircuitBreakerMiddlewareWithMetrics(maxFailures, cooldown, nil)
}

// CircuitBreakerMiddlewareWithMetrics is CircuitBreakerMiddleware with
// metrics reporting.
func CircuitBreakerMiddlewareWithMetrics(maxFailures int, cooldown time.Duration, metrics CircuitBreakerMetrics) Middleware {
	cb := NewCircuitBreaker(maxFailures, cooldown)

	return func(next CoreEngine) CoreEngine {
		return &circuitBreakerEngine{
			next:    next,
			cb:      cb,
			metrics: metrics,
		}
	}
}

// Estimate executes the request through the circuit breaker.
func (c *circuitBreakerEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	var props domain.PropertyVector

	err := c.cb.Call(func() error {
		var err error
		props, err = c.next.Estimate(ctx, req)
		return err
	})

	if c.metrics != nil {
		switch {
		case err == nil:
			c.metrics.RecordSuccess()
		case errors.Is(err, ErrCircuitOpen):
			c.metrics.RecordTrip()
		default:
			c.metrics.RecordFailure()
		}
		c.metrics.RecordState(c.cb.GetState())
	}

	return props, err
}

// Name returns the wrapped provider's name.
func (c *circuitBreakerEngine) Name() string { return c.next.Name() }

// collectorBreakerMetrics reports breaker activity through a
// ports.MetricsCollector.
type collectorBreakerMetrics struct {
	collector ports.MetricsCollector
	labels    map[string]string
}

// NewCircuitBreakerMetrics adapts collector to CircuitBreakerMetrics. Every
// series carries an engine label set to engineName.
func NewCircuitBreakerMetrics(collector ports.MetricsCollector, engineName string) CircuitBreakerMetrics {
	return &collectorBreakerMetrics{
		collector: collector,
		labels:    map[string]string{"engine": engineName},
	}
}

func (m *collectorBreakerMetrics) RecordState(state CircuitBreakerState) {
	m.collector.RecordGauge("engine_circuit_state", float64(state), m.labels)
}

func (m *collectorBreakerMetrics) RecordTrip() {
	m.collector.RecordCounter("engine_circuit_trips_total", 1, m.labels)
}

func (m *collectorBreakerMetrics) RecordSuccess() {
	m.collector.RecordCounter("engine_circuit_results_total", 1, m.withResult("success"))
}

func (m *collectorBreakerMetrics) RecordFailure() {
	m.collector.RecordCounter("engine_circuit_results_total", 1, m.withResult("failure"))
}

func (m *collectorBreakerMetrics) withResult(result string) map[string]string {
	labels := make(map[string]string, len(m.labels)+1)
	for k, v := range m.labels {
		labels[k] = v
	}
	labels["result"] = result
	return labels
}
