package pipeline

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes guard decision counters for the pipeline.
type Metrics struct {
	decisions *prometheus.CounterVec
	duration  prometheus.Histogram
}

// NewMetrics registers the pipeline metrics on reg. Passing nil uses the
// default registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "docguard",
			Name:      "guard_decisions_total",
			Help:      "Guard decisions by component and outcome.",
		}, []string{"guard", "decision"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "docguard",
			Name:      "pipeline_duration_seconds",
			Help:      "Wall time of full pipeline evaluations.",
			Buckets:   prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(m.decisions, m.duration)

	return m
}

func (m *Metrics) allow(guard string) {
	if m != nil {
		m.decisions.WithLabelValues(guard, "allow").Inc()
	}
}

func (m *Metrics) deny(guard string) {
	if m != nil {
		m.decisions.WithLabelValues(guard, "deny").Inc()
	}
}

func (m *Metrics) observeDuration(seconds float64) {
	if m != nil {
		m.duration.Observe(seconds)
	}
}
