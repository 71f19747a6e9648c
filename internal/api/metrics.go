package api

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metric names as constants for consistency.
const (
	MetricStreamsCreated   = "streams_created_total"
	MetricIngressesCreated = "ingresses_created_total"
	MetricStreamJoins      = "stream_joins_total"
	MetricStreamsStopped   = "streams_stopped_total"
	MetricStageTransitions = "stage_transitions_total"
)

// Metrics contains Prometheus metrics for the control-plane handlers.
// All operations are thread-safe.
type Metrics struct {
	streamsCreated   prometheus.Counter
	ingressesCreated *prometheus.CounterVec
	streamJoins      prometheus.Counter
	streamsStopped   prometheus.Counter
	stageTransitions *prometheus.CounterVec
}

// NewMetrics creates and returns a new Metrics instance with all collectors initialized.
// The metrics are not registered; call Register to register them with a registry.
func NewMetrics() *Metrics {
	return &Metrics{
		streamsCreated: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricStreamsCreated,
				Help: "Total number of streams (rooms) created",
			},
		),
		ingressesCreated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricIngressesCreated,
				Help: "Total number of ingresses created by type",
			},
			[]string{"type"},
		),
		streamJoins: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricStreamJoins,
				Help: "Total number of successful stream joins",
			},
		),
		streamsStopped: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: MetricStreamsStopped,
				Help: "Total number of streams stopped by their creator",
			},
		),
		stageTransitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: MetricStageTransitions,
				Help: "Total number of stage permission transitions by kind",
			},
			[]string{"transition"},
		),
	}
}

// Register registers all metrics with the given registry.
// Returns an error if registration fails.
func (m *Metrics) Register(reg prometheus.Registerer) error {
	for _, c := range m.Collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// IncStreamsCreated increments the streams created counter.
func (m *Metrics) IncStreamsCreated() {
	m.streamsCreated.Inc()
}

// IncIngressesCreated increments the ingresses created counter for the given type.
func (m *Metrics) IncIngressesCreated(ingressType string) {
	m.ingressesCreated.WithLabelValues(ingressType).Inc()
}

// IncStreamJoins increments the stream joins counter.
func (m *Metrics) IncStreamJoins() {
	m.streamJoins.Inc()
}

// IncStreamsStopped increments the streams stopped counter.
func (m *Metrics) IncStreamsStopped() {
	m.streamsStopped.Inc()
}

// IncStageTransitions increments the stage transitions counter for the given transition.
func (m *Metrics) IncStageTransitions(transition string) {
	m.stageTransitions.WithLabelValues(transition).Inc()
}

// Collectors returns all Prometheus collectors for testing.
func (m *Metrics) Collectors() []prometheus.Collector {
	return []prometheus.Collector{
		m.streamsCreated,
		m.ingressesCreated,
		m.streamJoins,
		m.streamsStopped,
		m.stageTransitions,
	}
}
