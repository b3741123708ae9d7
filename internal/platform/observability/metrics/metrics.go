package metrics

import (
	"fmt"
	"sync"
	"time"
)

// Metrics is the interface services use to record operational counters
type Metrics interface {
	IncrementCounter(name string, labels map[string]string)
	RecordValue(name string, value float64, labels map[string]string)
	RecordDuration(name string, duration time.Duration, labels map[string]string)
	SetGauge(name string, value float64, labels map[string]string)
}

// InMemoryMetrics keeps metrics in process memory. Suitable for
// development and for exposing a debug snapshot endpoint; swap for a
// Prometheus-backed implementation in production.
type InMemoryMetrics struct {
	serviceName string
	counters    map[string]*Counter
	gauges      map[string]*Gauge
	histograms  map[string]*Histogram
	mu          sync.RWMutex
}

// Counter is a monotonically increasing metric
type Counter struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
	Value  int64             `json:"value"`
}

// Gauge is a point-in-time metric
type Gauge struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
	Value  float64           `json:"value"`
}

// Histogram tracks the count and sum of observed values
type Histogram struct {
	Name   string            `json:"name"`
	Labels map[string]string `json:"labels"`
	Count  int64             `json:"count"`
	Sum    float64           `json:"sum"`
}

// NewMetrics creates an in-memory metrics collector
func NewMetrics(serviceName string) (Metrics, error) {
	return &InMemoryMetrics{
		serviceName: serviceName,
		counters:    make(map[string]*Counter),
		gauges:      make(map[string]*Gauge),
		histograms:  make(map[string]*Histogram),
	}, nil
}

func (m *InMemoryMetrics) IncrementCounter(name string, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := metricKey(name, labels)
	if counter, exists := m.counters[key]; exists {
		counter.Value++
		return
	}
	m.counters[key] = &Counter{Name: name, Labels: copyLabels(labels), Value: 1}
}

func (m *InMemoryMetrics) RecordValue(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := metricKey(name, labels)
	if histogram, exists := m.histograms[key]; exists {
		histogram.Count++
		histogram.Sum += value
		return
	}
	m.histograms[key] = &Histogram{Name: name, Labels: copyLabels(labels), Count: 1, Sum: value}
}

func (m *InMemoryMetrics) RecordDuration(name string, duration time.Duration, labels map[string]string) {
	m.RecordValue(name, duration.Seconds(), labels)
}

func (m *InMemoryMetrics) SetGauge(name string, value float64, labels map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := metricKey(name, labels)
	m.gauges[key] = &Gauge{Name: name, Labels: copyLabels(labels), Value: value}
}

// Snapshot returns a copy of all collected metrics for debug endpoints
func (m *InMemoryMetrics) Snapshot() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	counters := make(map[string]Counter, len(m.counters))
	for k, v := range m.counters {
		counters[k] = Counter{Name: v.Name, Labels: copyLabels(v.Labels), Value: v.Value}
	}
	gauges := make(map[string]Gauge, len(m.gauges))
	for k, v := range m.gauges {
		gauges[k] = Gauge{Name: v.Name, Labels: copyLabels(v.Labels), Value: v.Value}
	}
	histograms := make(map[string]Histogram, len(m.histograms))
	for k, v := range m.histograms {
		histograms[k] = Histogram{Name: v.Name, Labels: copyLabels(v.Labels), Count: v.Count, Sum: v.Sum}
	}

	return map[string]interface{}{
		"service":    m.serviceName,
		"counters":   counters,
		"gauges":     gauges,
		"histograms": histograms,
	}
}

func metricKey(name string, labels map[string]string) string {
	key := name
	for k, v := range labels {
		key += fmt.Sprintf("_%s_%s", k, v)
	}
	return key
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}

// NoOpMetrics discards all observations; used in tests
type NoOpMetrics struct{}

// NewNoOpMetrics creates a no-op metrics collector
func NewNoOpMetrics() Metrics {
	return &NoOpMetrics{}
}

func (n *NoOpMetrics) IncrementCounter(name string, labels map[string]string)            {}
func (n *NoOpMetrics) RecordValue(name string, value float64, labels map[string]string)  {}
func (n *NoOpMetrics) RecordDuration(name string, d time.Duration, l map[string]string)  {}
func (n *NoOpMetrics) SetGauge(name string, value float64, labels map[string]string)     {}

// Timer measures the duration of a single operation
type Timer struct {
	metrics Metrics
	name    string
	labels  map[string]string
	start   time.Time
}

// StartTimer starts a new timer
func StartTimer(metrics Metrics, name string, labels map[string]string) *Timer {
	return &Timer{metrics: metrics, name: name, labels: labels, start: time.Now()}
}

// Stop records the elapsed duration
func (t *Timer) Stop() {
	t.metrics.RecordDuration(t.name, time.Since(t.start), t.labels)
}
