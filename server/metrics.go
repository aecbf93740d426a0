package server

import "github.com/prometheus/client_golang/prometheus"

// Loop outcomes recorded per answered question.
const (
	OutcomeAnswer  = "answer"
	OutcomeTooLong = "too_long"
	OutcomeError   = "error"
)

// Metrics counts questions by loop outcome.
type Metrics struct {
	Questions *prometheus.CounterVec
}

// NewMetrics registers the question counter with reg when it is non-nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Questions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fpagent_questions_total",
			Help: "Questions processed, labeled by loop outcome.",
		}, []string{"outcome"}),
	}
	if reg != nil {
		reg.MustRegister(m.Questions)
	}
	return m
}

// Record increments the counter for one outcome.
func (m *Metrics) Record(outcome string) {
	m.Questions.WithLabelValues(outcome).Inc()
}
