package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// PromMetrics is the Prometheus-backed Metrics implementation.
type PromMetrics struct {
	entitiesPerMail *prometheus.HistogramVec
	latency         *prometheus.HistogramVec
	errorsTotal     *prometheus.CounterVec
	nerSkipTotal    *prometheus.CounterVec
	pipelineRuns    *prometheus.CounterVec
}

// NewPrometheus registers the pipeline metrics on reg and returns the
// backend. Pass prometheus.DefaultRegisterer for the process-wide
// registry, or a private registry in tests.
func NewPrometheus(reg prometheus.Registerer) (*PromMetrics, error) {
	m := &PromMetrics{
		entitiesPerMail: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ner_entities_per_mail",
			Help:    "Number of entities extracted per mail, by entity type",
			Buckets: []float64{0, 1, 2, 5, 10, 20, 50},
		}, []string{"entity_type"}),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ner_extraction_latency_seconds",
			Help:    "Per-component extraction latency in seconds",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"component"}),
		errorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ner_errors_total",
			Help: "Total extraction errors by kind (soft/hard) and component",
		}, []string{"kind", "component"}),
		nerSkipTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ner_ner_skip_total",
			Help: "Count of NER engine skips, by reason",
		}, []string{"reason"}),
		pipelineRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ner_pipeline_runs_total",
			Help: "Total pipeline runs by outcome (ok/failed)",
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{
		m.entitiesPerMail, m.latency, m.errorsTotal, m.nerSkipTotal, m.pipelineRuns,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *PromMetrics) ObserveEntityCount(entityType string, count int) {
	m.entitiesPerMail.WithLabelValues(entityType).Observe(float64(count))
}

func (m *PromMetrics) ObserveLatency(component string, elapsed time.Duration) {
	m.latency.WithLabelValues(component).Observe(elapsed.Seconds())
}

func (m *PromMetrics) IncError(kind, component string) {
	m.errorsTotal.WithLabelValues(kind, component).Inc()
}

func (m *PromMetrics) IncNERSkip(reason string) {
	m.nerSkipTotal.WithLabelValues(SkipLabel(reason)).Inc()
}

func (m *PromMetrics) IncRun(outcome string) {
	m.pipelineRuns.WithLabelValues(outcome).Inc()
}
