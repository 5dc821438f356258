// Package middleware provides concrete cross-cutting collaborators for the
// provider layer, currently the Prometheus-backed metrics collector.
package middleware

import (
	"sort"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/solumlabs/aibridge/internal/ports"
)

// PrometheusMetrics implements ports.MetricsCollector on a Prometheus
// registerer. Metric vectors are created lazily on first observation, with
// the label key set captured at that point; later observations of the same
// metric must use the same label keys.
type PrometheusMetrics struct {
	registerer prometheus.Registerer
	namespace  string

	mu         sync.Mutex
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec
	gauges     map[string]*prometheus.GaugeVec
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics creates a collector registering metrics under the
// given namespace. A nil registerer uses the default global registry.
func NewPrometheusMetrics(namespace string, registerer prometheus.Registerer) *PrometheusMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &PrometheusMetrics{
		registerer: registerer,
		namespace:  namespace,
		counters:   make(map[string]*prometheus.CounterVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
	}
}

// RecordCounter implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	vec, ok := pm.counters[metric]
	if !ok {
		vec = prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: pm.namespace,
			Name:      metric,
			Help:      metric,
		}, labelKeys(labels))
		pm.registerer.MustRegister(vec)
		pm.counters[metric] = vec
	}
	pm.mu.Unlock()

	vec.With(labels).Add(value)
}

// RecordHistogram implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	vec, ok := pm.histograms[metric]
	if !ok {
		vec = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: pm.namespace,
			Name:      metric,
			Help:      metric,
			Buckets:   prometheus.DefBuckets,
		}, labelKeys(labels))
		pm.registerer.MustRegister(vec)
		pm.histograms[metric] = vec
	}
	pm.mu.Unlock()

	vec.With(labels).Observe(value)
}

// RecordGauge implements ports.MetricsCollector.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	pm.mu.Lock()
	vec, ok := pm.gauges[metric]
	if !ok {
		vec = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: pm.namespace,
			Name:      metric,
			Help:      metric,
		}, labelKeys(labels))
		pm.registerer.MustRegister(vec)
		pm.gauges[metric] = vec
	}
	pm.mu.Unlock()

	vec.With(labels).Set(value)
}

func labelKeys(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
