package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Denied        *prometheus.CounterVec
	AuthFailures  prometheus.Counter
	AuthLockouts  prometheus.Counter
	StoreDegraded prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Denied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_ratelimit_denied_total",
			Help: "Requests denied by the rate limiter by action",
		}, []string{"action"}),
		AuthFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_ratelimit_auth_failures_recorded_total",
			Help: "Total number of auth failures recorded for rate limiting",
		}),
		AuthLockouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_ratelimit_auth_lockouts_total",
			Help: "Total number of login attempts refused because the caller is locked out",
		}),
		StoreDegraded: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "portal_ratelimit_store_degraded",
			Help: "1 while the rate limiter answers from the in-memory fallback",
		}),
	}
}

func (m *Metrics) IncrementDenied(action string) {
	if m == nil {
		return
	}
	m.Denied.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementAuthFailures() {
	if m == nil {
		return
	}
	m.AuthFailures.Inc()
}

func (m *Metrics) IncrementAuthLockouts() {
	if m == nil {
		return
	}
	m.AuthLockouts.Inc()
}

func (m *Metrics) SetDegraded(degraded bool) {
	if m == nil {
		return
	}
	if degraded {
		m.StoreDegraded.Set(1)
		return
	}
	m.StoreDegraded.Set(0)
}
