package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/ahrav/go-thermofom/internal/domain"
)

// errSimulated is returned by MockCoreEngine when a failure is scheduled but
// no Error is configured.
var errSimulated = errors.New("simulated failure")

// MockCoreEngine is a configurable CoreEngine for middleware tests.
type MockCoreEngine struct {
	mu sync.Mutex

	// Response configuration
	Properties    domain.PropertyVector
	Error         error
	EngineName    string
	ResponseDelay time.Duration

	// FailUntilAttempt fails the first N calls, then succeeds.
	FailUntilAttempt int

	// Tracking
	CallCount      int
	LastRequest    domain.PropertyRequest
	LastContext    context.Context
	CallTimestamps []time.Time
}

// NewMockCoreEngine creates a mock that returns water-like properties.
func NewMockCoreEngine() *MockCoreEngine {
	return &MockCoreEngine{
		Properties: domain.PropertyVector{
			Density:             997.05,
			Viscosity:           8.9e-4,
			ThermalConductivity: 0.6065,
			HeatCapacity:        4181.3,
		},
		EngineName: "mock",
	}
}

// Estimate implements CoreEngine. The delay is served without holding the
// mock's lock so concurrent callers overlap.
func (m *MockCoreEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	m.mu.Lock()
	m.CallCount++
	call := m.CallCount
	m.LastRequest = req
	m.LastContext = ctx
	m.CallTimestamps = append(m.CallTimestamps, time.Now())
	delay := m.ResponseDelay
	failUntil := m.FailUntilAttempt
	configured := m.Error
	props := m.Properties
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return domain.PropertyVector{}, ctx.Err()
		}
	}

	if failUntil > 0 {
		if call <= failUntil {
			if configured != nil {
				return domain.PropertyVector{}, configured
			}
			return domain.PropertyVector{}, errSimulated
		}
		return props, nil
	}

	if configured != nil {
		return domain.PropertyVector{}, configured
	}
	return props, nil
}

// Name returns the configured engine name.
func (m *MockCoreEngine) Name() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.EngineName
}

// GetCallCount returns the number of Estimate calls.
func (m *MockCoreEngine) GetCallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.CallCount
}

// SetError changes the configured error.
func (m *MockCoreEngine) SetError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Error = err
}

// Reset clears tracking data while preserving configuration.
func (m *MockCoreEngine) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCount = 0
	m.LastRequest = domain.PropertyRequest{}
	m.LastContext = nil
	m.CallTimestamps = nil
}
