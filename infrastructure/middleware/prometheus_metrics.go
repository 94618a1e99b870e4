// Package middleware provides cross-cutting infrastructure shared by the
// engine client and the batch evaluator.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/go-thermofom/internal/ports"
)

// PrometheusMetrics implements ports.MetricsCollector using Prometheus.
// Known metric names map onto dedicated vectors; anything else lands in the
// generic operation vectors keyed by a "metric" label.
type PrometheusMetrics struct {
	engineRequests     *prometheus.CounterVec
	engineLatency      *prometheus.HistogramVec
	circuitState       *prometheus.GaugeVec
	circuitTrips       *prometheus.CounterVec
	circuitResults     *prometheus.CounterVec
	mixtureEvaluations *prometheus.CounterVec
	fomValue           prometheus.Histogram

	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
	genericHistogram *prometheus.HistogramVec
}

// NewPrometheusMetrics creates the metric vectors and registers them with
// reg. A nil reg uses the default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &PrometheusMetrics{
		engineRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_requests_total",
				Help: "Property engine requests by engine and outcome.",
			},
			[]string{"engine", "status"},
		),
		engineLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "engine_latency_seconds",
				Help:    "Property engine request latency.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"engine", "status"},
		),
		circuitState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "engine_circuit_state",
				Help: "Circuit breaker state (0 closed, 1 open, 2 half-open).",
			},
			[]string{"engine"},
		),
		circuitTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_circuit_trips_total",
				Help: "Requests rejected by an open circuit breaker.",
			},
			[]string{"engine"},
		),
		circuitResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "engine_circuit_results_total",
				Help: "Requests that passed the circuit breaker, by result.",
			},
			[]string{"engine", "result"},
		),
		mixtureEvaluations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mixture_evaluations_total",
				Help: "Mixture evaluations by outcome.",
			},
			[]string{"status"},
		),
		fomValue: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fom_value",
				Help:    "Distribution of computed figures of merit.",
				Buckets: prometheus.ExponentialBuckets(1e3, 10, 10),
			},
		),

		operationLatency: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "operation_duration_seconds",
				Help:    "Duration of named operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		operationCounter: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "operations_total",
				Help: "Counters recorded under names without a dedicated metric.",
			},
			[]string{"metric"},
		),
		systemGauges: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "system_state",
				Help: "Gauges recorded under names without a dedicated metric.",
			},
			[]string{"metric"},
		),
		genericHistogram: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "observations",
				Help:    "Histograms recorded under names without a dedicated metric.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"metric"},
		),
	}
}

// RecordLatency records duration under the operation label.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter adds value to the named counter.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case "engine_requests_total":
		pm.engineRequests.WithLabelValues(label(labels, "engine"), label(labels, "status")).Add(value)
	case "engine_circuit_trips_total":
		pm.circuitTrips.WithLabelValues(label(labels, "engine")).Add(value)
	case "engine_circuit_results_total":
		pm.circuitResults.WithLabelValues(label(labels, "engine"), label(labels, "result")).Add(value)
	case "mixture_evaluations_total":
		pm.mixtureEvaluations.WithLabelValues(label(labels, "status")).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge sets the named gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case "engine_circuit_state":
		pm.circuitState.WithLabelValues(label(labels, "engine")).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram observes value in the named histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case "engine_latency_seconds":
		pm.engineLatency.WithLabelValues(label(labels, "engine"), label(labels, "status")).Observe(value)
	case "fom_value":
		pm.fomValue.Observe(value)
	default:
		pm.genericHistogram.WithLabelValues(metric).Observe(value)
	}
}

func label(labels map[string]string, key string) string {
	if v, ok := labels[key]; ok && v != "" {
		return v
	}
	return "unknown"
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)
