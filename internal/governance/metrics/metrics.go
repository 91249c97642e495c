package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	EvaluationDuration   prometheus.Histogram
	PhaseTransitions     *prometheus.CounterVec
	LabelFallbacks       *prometheus.CounterVec
	Offenders            prometheus.Gauge
	ActiveSessions       prometheus.Gauge
	TelemetrySamples     *prometheus.CounterVec
	RecorderDropped      prometheus.Counter
	SnapshotPublishFails prometheus.Counter
}

// New registers the governance metrics with the default registry.
func New() *Metrics {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the governance metrics with reg.
func NewWithRegisterer(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		EvaluationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "pulsegate_governance_evaluation_duration_seconds",
			Help:    "Time spent in a single governance evaluation",
			Buckets: []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025},
		}),
		PhaseTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsegate_governance_phase_transitions_total",
			Help: "Total number of governance phase transitions",
		}, []string{"from", "to"}),
		LabelFallbacks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsegate_governance_label_fallback_total",
			Help: "Total number of zone labels that fell back to the last-resort string",
		}, []string{"zone_id"}),
		Offenders: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pulsegate_governance_offenders",
			Help: "Participants currently flagged as offenders across sessions",
		}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "pulsegate_governance_active_sessions",
			Help: "Number of configured governance sessions",
		}),
		TelemetrySamples: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pulsegate_telemetry_samples_total",
			Help: "Total heart-rate samples ingested, by source",
		}, []string{"source"}),
		RecorderDropped: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulsegate_governance_recorder_dropped_total",
			Help: "Governance changes dropped because the recorder queue was full",
		}),
		SnapshotPublishFails: factory.NewCounter(prometheus.CounterOpts{
			Name: "pulsegate_governance_snapshot_publish_failures_total",
			Help: "Snapshot publish attempts that failed",
		}),
	}
}

func (m *Metrics) ObserveEvaluation(d time.Duration) {
	if m == nil {
		return
	}
	m.EvaluationDuration.Observe(d.Seconds())
}

func (m *Metrics) IncrementTransition(from, to string) {
	if m == nil {
		return
	}
	m.PhaseTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncrementLabelFallback(zoneID string) {
	if m == nil {
		return
	}
	m.LabelFallbacks.WithLabelValues(zoneID).Inc()
}

// AddOffenders moves the offender gauge by delta; sessions report the
// difference between their previous and current offender counts.
func (m *Metrics) AddOffenders(delta int) {
	if m == nil || delta == 0 {
		return
	}
	m.Offenders.Add(float64(delta))
}

func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(n))
}

func (m *Metrics) IncrementTelemetry(source string) {
	if m == nil {
		return
	}
	m.TelemetrySamples.WithLabelValues(source).Inc()
}

func (m *Metrics) IncrementRecorderDropped() {
	if m == nil {
		return
	}
	m.RecorderDropped.Inc()
}

func (m *Metrics) IncrementSnapshotPublishFailure() {
	if m == nil {
		return
	}
	m.SnapshotPublishFails.Inc()
}
