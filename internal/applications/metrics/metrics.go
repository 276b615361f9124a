package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Submitted          *prometheus.CounterVec
	IntakeBlocked      *prometheus.CounterVec
	Transitions        *prometheus.CounterVec
	TransitionRejected *prometheus.CounterVec
	ReferenceIssued    *prometheus.CounterVec
	ReferenceRetries   prometheus.Counter
	Deleted            prometheus.Counter
	TransitionDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Submitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_applications_submitted_total",
			Help: "Applications accepted at intake by service",
		}, []string{"service"}),
		IntakeBlocked: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_applications_intake_blocked_total",
			Help: "Applications refused by the limits guard by service",
		}, []string{"service"}),
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_applications_transitions_total",
			Help: "Committed status transitions by action",
		}, []string{"action"}),
		TransitionRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_applications_transitions_rejected_total",
			Help: "Transition requests refused, by error code",
		}, []string{"code"}),
		ReferenceIssued: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_applications_references_issued_total",
			Help: "Reference numbers written on approval by service",
		}, []string{"service"}),
		ReferenceRetries: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_applications_reference_collisions_total",
			Help: "Reference number candidates discarded because they were taken",
		}),
		Deleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_applications_deleted_total",
			Help: "Applications removed by bulk delete",
		}),
		TransitionDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "portal_applications_transition_duration_seconds",
			Help:    "Time spent committing a status transition",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
	}
}

func (m *Metrics) IncrementSubmitted(service string) {
	if m == nil {
		return
	}
	m.Submitted.WithLabelValues(service).Inc()
}

func (m *Metrics) IncrementIntakeBlocked(service string) {
	if m == nil {
		return
	}
	m.IntakeBlocked.WithLabelValues(service).Inc()
}

func (m *Metrics) IncrementTransition(action string) {
	if m == nil {
		return
	}
	m.Transitions.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementTransitionRejected(code string) {
	if m == nil {
		return
	}
	m.TransitionRejected.WithLabelValues(code).Inc()
}

func (m *Metrics) IncrementReferenceIssued(service string) {
	if m == nil {
		return
	}
	m.ReferenceIssued.WithLabelValues(service).Inc()
}

func (m *Metrics) IncrementReferenceRetries() {
	if m == nil {
		return
	}
	m.ReferenceRetries.Inc()
}

func (m *Metrics) AddDeleted(n int) {
	if m == nil {
		return
	}
	m.Deleted.Add(float64(n))
}

func (m *Metrics) ObserveTransitionDuration(seconds float64) {
	if m == nil {
		return
	}
	m.TransitionDuration.Observe(seconds)
}
