package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the decision engine.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// Image analysis latency by requested feature set
	ExtractionLatency *prometheus.HistogramVec

	// Decisions by operation and outcome
	Decisions *prometheus.CounterVec

	// Fail-open / fallback responses by operation
	Degraded *prometheus.CounterVec

	// Mediation actions proposed by the completer
	MediationActions *prometheus.CounterVec
}

// New registers all engine metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ExtractionLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "trust_engine_extraction_duration_seconds",
			Help:    "Duration of image analysis calls by feature set",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"feature"}), // feature: "text", "full"

		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_engine_decisions_total",
			Help: "Total decisions by operation and outcome",
		}, []string{"operation", "outcome"}),

		Degraded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_engine_degraded_total",
			Help: "Responses served from a neutral default because a collaborator failed",
		}, []string{"operation"}),

		MediationActions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "trust_engine_mediation_actions_total",
			Help: "Mediation actions by kind",
		}, []string{"action"}),
	}
}

// ObserveExtraction records the duration of one image analysis call.
func (m *Metrics) ObserveExtraction(feature string, d time.Duration) {
	if m != nil {
		m.ExtractionLatency.WithLabelValues(feature).Observe(d.Seconds())
	}
}

func (m *Metrics) IncDecision(operation, outcome string) {
	if m != nil {
		m.Decisions.WithLabelValues(operation, outcome).Inc()
	}
}

func (m *Metrics) IncDegraded(operation string) {
	if m != nil {
		m.Degraded.WithLabelValues(operation).Inc()
	}
}

func (m *Metrics) IncMediationAction(action string) {
	if m != nil {
		m.MediationActions.WithLabelValues(action).Inc()
	}
}
