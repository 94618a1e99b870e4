package engine

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/go-thermofom/internal/domain"
	"github.com/ahrav/go-thermofom/internal/ports"
)

// metricsEngine records request counts and latency.
type metricsEngine struct {
	next      CoreEngine
	collector ports.MetricsCollector
}

// MetricsMiddleware creates middleware that records engine_requests_total
// and engine_latency_seconds, labeled by engine and status.
func MetricsMiddleware(collector ports.MetricsCollector) Middleware {
	return func(next CoreEngine) CoreEngine {
		return &metricsEngine{
			next:      next,
			collector: collector,
		}
	}
}

// Estimate executes the request while collecting metrics.
func (m *metricsEngine) Estimate(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error) {
	start := time.Now()
	props, err := m.next.Estimate(ctx, req)

	if m.collector != nil {
		labels := map[string]string{
			"engine": m.next.Name(),
			"status": requestStatus(err),
		}
		m.collector.RecordHistogram("engine_latency_seconds", time.Since(start).Seconds(), labels)
		m.collector.RecordCounter("engine_requests_total", 1, labels)
	}

	return props, err
}

// requestStatus maps an Estimate result to a metric label.
func requestStatus(err error) string {
	var provErr *ProviderError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domain.ErrPropertyLookup):
		return "lookup_error"
	case errors.Is(err, ErrCircuitOpen):
		return "circuit_open"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.As(err, &provErr) && provErr.Type == ErrorTypeTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// Name returns the wrapped provider's name.
func (m *metricsEngine) Name() string { return m.next.Name() }
