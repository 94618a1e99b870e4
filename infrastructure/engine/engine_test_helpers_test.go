package engine

import (
	"sync"
	"time"

	"github.com/ahrav/go-thermofom/internal/domain"
)

// recordedMetric is one call captured by recordingCollector.
type recordedMetric struct {
	name   string
	value  float64
	labels map[string]string
}

// recordingCollector is a ports.MetricsCollector that keeps every call.
type recordingCollector struct {
	mu         sync.Mutex
	counters   []recordedMetric
	gauges     []recordedMetric
	histograms []recordedMetric
}

func (c *recordingCollector) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	c.RecordHistogram(operation, duration.Seconds(), labels)
}

func (c *recordingCollector) RecordCounter(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.counters = append(c.counters, recordedMetric{metric, value, copyLabels(labels)})
}

func (c *recordingCollector) RecordGauge(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.gauges = append(c.gauges, recordedMetric{metric, value, copyLabels(labels)})
}

func (c *recordingCollector) RecordHistogram(metric string, value float64, labels map[string]string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.histograms = append(c.histograms, recordedMetric{metric, value, copyLabels(labels)})
}

func (c *recordingCollector) countersNamed(name string) []recordedMetric {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []recordedMetric
	for _, m := range c.counters {
		if m.name == name {
			out = append(out, m)
		}
	}
	return out
}

func copyLabels(labels map[string]string) map[string]string {
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// waterEthanolRequest is a 50/50 mass mixture at the reference state.
func waterEthanolRequest() domain.PropertyRequest {
	return domain.PropertyRequest{
		Components:    []string{"water", "ethanol"},
		MassFractions: []float64{0.5, 0.5},
		State:         domain.ReferenceState(),
	}
}
