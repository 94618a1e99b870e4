// Package ports defines the interfaces that form the contract between the
// domain/application layers and the infrastructure layer. They enable
// dependency inversion and keep the figure of merit core testable with
// stub engines.
package ports

import (
	"context"
	"time"

	"github.com/ahrav/go-thermofom/internal/domain"
)

// PropertyEngine estimates mixture thermophysical properties. It is the
// external collaborator of the calculator: correlations, databases and
// remote services all live behind it.
type PropertyEngine interface {
	// EstimateProperties returns density, viscosity, thermal conductivity
	// and heat capacity of the mixture described by req at req.State.
	//
	// When a component cannot be resolved, or a property cannot be
	// estimated, implementations return a *domain.PropertyLookupError
	// naming the failing components and property. They must never return
	// a placeholder vector alongside a nil error.
	//
	// The call may block on network or disk I/O and should honor ctx.
	EstimateProperties(ctx context.Context, req domain.PropertyRequest) (domain.PropertyVector, error)

	// Name identifies the engine for logging and metrics.
	Name() string
}

// MetricsCollector defines the interface for collecting operational metrics.
// Implementations integrate with observability platforms like Prometheus.
type MetricsCollector interface {
	// RecordLatency records the execution time of an operation.
	// The labels map provides additional context for the metric.
	RecordLatency(operation string, duration time.Duration, labels map[string]string)

	// RecordCounter increments a counter metric.
	RecordCounter(metric string, value float64, labels map[string]string)

	// RecordGauge sets the current value of a gauge metric.
	RecordGauge(metric string, value float64, labels map[string]string)

	// RecordHistogram records a value in a histogram.
	RecordHistogram(metric string, value float64, labels map[string]string)
}
