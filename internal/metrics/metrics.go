// Package metrics exposes Prometheus metrics for the ingestion core:
// per-stage flow counters, persistence latency, fanout connection state,
// and emitter queue pressure.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/telehealth/core/internal/model"
)

// Ingest holds every metric instrument for one core process. It is
// constructed once in main and passed to the components that record into
// it; the registry is private to the instance so tests can build as many
// as they need without duplicate-registration panics.
type Ingest struct {
	registry *prometheus.Registry

	MessagesReceived      *prometheus.CounterVec
	StageOutcomes         *prometheus.CounterVec
	ObservationsPersisted *prometheus.CounterVec
	DuplicatesSuppressed  *prometheus.CounterVec
	EmergenciesPersisted  *prometheus.CounterVec
	PersistDuration       *prometheus.HistogramVec
}

// NewIngest creates and registers all instruments on a fresh registry.
func NewIngest() *Ingest {
	reg := prometheus.NewRegistry()

	m := &Ingest{
		registry: reg,

		MessagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telehealth_messages_received_total",
			Help: "Inbound bus messages, by device family and topic",
		}, []string{"family", "topic"}),

		StageOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telehealth_stage_outcomes_total",
			Help: "Flow events, by device family, processing step, and status",
		}, []string{"family", "step", "status"}),

		ObservationsPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telehealth_observations_persisted_total",
			Help: "Observations written to history, by family and observation type",
		}, []string{"family", "observation_type"}),

		DuplicatesSuppressed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telehealth_duplicates_suppressed_total",
			Help: "Observations skipped by the duplicate check, by family and observation type",
		}, []string{"family", "observation_type"}),

		EmergenciesPersisted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "telehealth_emergencies_persisted_total",
			Help: "Emergency events written, by kind",
		}, []string{"kind"}),

		PersistDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "telehealth_persist_duration_seconds",
			Help:    "Wall-clock time of a full PersistObservation call",
			Buckets: prometheus.DefBuckets,
		}, []string{"observation_type", "outcome"}),
	}

	reg.MustRegister(
		m.MessagesReceived,
		m.StageOutcomes,
		m.ObservationsPersisted,
		m.DuplicatesSuppressed,
		m.EmergenciesPersisted,
		m.PersistDuration,
	)

	return m
}

// ObserveFlowEvent records a flow event into the stage counters. Wired as
// the flow emitter's observer so every event any stage emits is counted
// exactly once, with no per-stage instrumentation calls.
func (m *Ingest) ObserveFlowEvent(event model.FlowEvent) {
	if event.Step == model.StepReceived {
		m.MessagesReceived.WithLabelValues(string(event.DeviceFamily), event.Topic).Inc()
	}
	m.StageOutcomes.WithLabelValues(string(event.DeviceFamily), string(event.Step), string(event.Status)).Inc()
}

// ObservePersist records one PersistObservation call. Implements the
// persister's metrics hook.
func (m *Ingest) ObservePersist(family model.DeviceFamily, obsType model.ObservationType, outcome string, elapsed time.Duration) {
	m.PersistDuration.WithLabelValues(string(obsType), outcome).Observe(elapsed.Seconds())
	switch outcome {
	case "persisted":
		m.ObservationsPersisted.WithLabelValues(string(family), string(obsType)).Inc()
	case "duplicate_suppressed":
		m.DuplicatesSuppressed.WithLabelValues(string(family), string(obsType)).Inc()
	}
}

// ObserveEmergency records one persisted emergency event.
func (m *Ingest) ObserveEmergency(kind model.EmergencyKind) {
	m.EmergenciesPersisted.WithLabelValues(string(kind)).Inc()
}

// RegisterFanoutGauges registers live gauges over the fanout hub's
// connection bookkeeping. The callbacks are evaluated at scrape time.
func (m *Ingest) RegisterFanoutGauges(connections, degraded func() int) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "telehealth_fanout_connections",
		Help: "Live dashboard WebSocket connections",
	}, func() float64 { return float64(connections()) }))

	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "telehealth_fanout_degraded_connections",
		Help: "Connections that have overflowed their outbound buffer at least once",
	}, func() float64 { return float64(degraded()) }))
}

// RegisterEmitterGauges registers depth/drop gauges over one flow
// emitter's queue, labeled by the emitter's source name.
func (m *Ingest) RegisterEmitterGauges(source string, depth, drops func() int64) {
	labels := prometheus.Labels{"source": source}

	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "telehealth_emitter_queue_depth",
		Help:        "Flow events waiting in the emitter queue",
		ConstLabels: labels,
	}, func() float64 { return float64(depth()) }))

	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name:        "telehealth_emitter_dropped_total",
		Help:        "Flow events dropped by the emitter's drop-oldest policy",
		ConstLabels: labels,
	}, func() float64 { return float64(drops()) }))
}

// Handler returns the scrape endpoint for this instance's registry.
func (m *Ingest) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry, for tests that gather the
// exposition directly.
func (m *Ingest) Registry() *prometheus.Registry {
	return m.registry
}
