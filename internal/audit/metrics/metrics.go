package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Recorded       *prometheus.CounterVec
	RecordFailures prometheus.Counter
	Relayed        prometheus.Counter
	RelayFailures  prometheus.Counter
	OutboxBacklog  prometheus.Gauge
}

func New() *Metrics {
	return &Metrics{
		Recorded: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "portal_audit_entries_recorded_total",
			Help: "Audit entries appended, by action",
		}, []string{"action"}),
		RecordFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_audit_record_failures_total",
			Help: "Audit entries that could not be stored after a committed transition",
		}),
		Relayed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_audit_outbox_relayed_total",
			Help: "Outbox records published to Kafka",
		}),
		RelayFailures: promauto.NewCounter(prometheus.CounterOpts{
			Name: "portal_audit_outbox_relay_failures_total",
			Help: "Outbox records that failed to publish and will be retried",
		}),
		OutboxBacklog: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "portal_audit_outbox_batch_size",
			Help: "Unpublished outbox records fetched by the last relay run",
		}),
	}
}

func (m *Metrics) IncrementRecorded(action string) {
	if m == nil {
		return
	}
	m.Recorded.WithLabelValues(action).Inc()
}

func (m *Metrics) IncrementRecordFailures() {
	if m == nil {
		return
	}
	m.RecordFailures.Inc()
}

func (m *Metrics) AddRelayed(n int) {
	if m == nil {
		return
	}
	m.Relayed.Add(float64(n))
}

func (m *Metrics) AddRelayFailures(n int) {
	if m == nil {
		return
	}
	m.RelayFailures.Add(float64(n))
}

func (m *Metrics) SetBacklog(n int) {
	if m == nil {
		return
	}
	m.OutboxBacklog.Set(float64(n))
}
