// Package metrics exposes node statistics to Prometheus.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oshokin/sensor-node/internal/domain/alarm"
	"github.com/oshokin/sensor-node/internal/domain/sensor"
)

const namespace = "sensor_node"

// Metrics owns a dedicated registry and the node collectors.
type Metrics struct {
	registry *prometheus.Registry

	samples       *prometheus.CounterVec
	readings      *prometheus.GaugeVec
	evaluations   *prometheus.CounterVec
	status        *prometheus.GaugeVec
	notifications *prometheus.CounterVec
	observers     prometheus.Gauge
}

// New registers the node collectors plus Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		samples: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sensor_samples_total",
			Help:      "Total sensor samples by sensor",
		}, []string{"sensor"}),
		readings: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sensor_value",
			Help:      "Last sampled sensor value",
		}, []string{"sensor"}),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alarm_evaluations_total",
			Help:      "Total alarm ticks by alarm and outcome",
		}, []string{"alarm", "outcome"}),
		status: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "alarm_status",
			Help:      "Current alarm status (0 inactive, 1 active)",
		}, []string{"alarm"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Total observe notifications by resource",
		}, []string{"resource"}),
		observers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "observers",
			Help:      "Active observe subscriptions",
		}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.samples,
		m.readings,
		m.evaluations,
		m.status,
		m.notifications,
		m.observers,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Sampled records one sensor sample.
func (m *Metrics) Sampled(name string, value float64) {
	m.samples.WithLabelValues(name).Inc()
	m.readings.WithLabelValues(name).Set(value)
}

// Evaluated records one alarm tick and the resulting status.
func (m *Metrics) Evaluated(name string, outcome alarm.Outcome, status alarm.Status) {
	m.evaluations.WithLabelValues(name, outcome.String()).Inc()
	m.status.WithLabelValues(name).Set(float64(status))
}

// Notified records one notification dispatch.
func (m *Metrics) Notified(name string, _ int) {
	m.notifications.WithLabelValues(name).Inc()
}

// Observers records the number of active subscriptions.
func (m *Metrics) Observers(count int) {
	m.observers.Set(float64(count))
}

// Instrument wraps a sampler so each sample is recorded.
func (m *Metrics) Instrument(s sensor.Sampler) sensor.Sampler {
	return &instrumented{Sampler: s, metrics: m}
}

// instrumented records every Sample call of the embedded sampler.
type instrumented struct {
	sensor.Sampler

	metrics *Metrics
}

// Sample implements sensor.Sampler.
func (i *instrumented) Sample() float64 {
	v := i.Sampler.Sample()
	i.metrics.Sampled(i.Name(), v)

	return v
}
