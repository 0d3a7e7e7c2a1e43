package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/costcoplus/offline-relay/internal/domain"
	"github.com/costcoplus/offline-relay/internal/queue"
	"github.com/costcoplus/offline-relay/internal/worker"
)

// Metrics groups all Prometheus instruments used across the application.
// Registered once at startup via New(); passed by pointer wherever needed.
type Metrics struct {
	MutationsEnqueued *prometheus.CounterVec
	MutationsSent     *prometheus.CounterVec
	MutationsRetained *prometheus.CounterVec
	MutationsDropped  *prometheus.CounterVec
	SendLatency       *prometheus.HistogramVec
	QueueDepth        prometheus.Gauge
	DrainCycles       *prometheus.CounterVec
	DrainSkipped      *prometheus.CounterVec
}

// New registers all instruments with the given Prometheus registerer and
// returns the populated Metrics struct.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		MutationsEnqueued: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offline_mutations_enqueued_total",
			Help: "Mutations parked in the offline queue.",
		}, []string{"kind"}),

		MutationsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offline_mutations_sent_total",
			Help: "Queued mutations delivered to the remote API.",
		}, []string{"kind"}),

		MutationsRetained: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offline_mutations_retained_total",
			Help: "Send attempts that failed transiently and left the record queued.",
		}, []string{"kind"}),

		MutationsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offline_mutations_dropped_total",
			Help: "Queued mutations discarded after a permanent failure.",
		}, []string{"kind"}),

		SendLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "offline_mutation_send_seconds",
			Help:    "Remote call latency for successfully replayed mutations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"kind"}),

		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "offline_queue_depth",
			Help: "Current number of records in the offline queue.",
		}),

		DrainCycles: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offline_drain_cycles_total",
			Help: "Drain cycles that walked the queue, by trigger.",
		}, []string{"trigger"}),

		DrainSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "offline_drain_skipped_total",
			Help: "Drain cycles that did not run, by reason.",
		}, []string{"reason"}),
	}

	reg.MustRegister(
		m.MutationsEnqueued,
		m.MutationsSent,
		m.MutationsRetained,
		m.MutationsDropped,
		m.SendLatency,
		m.QueueDepth,
		m.DrainCycles,
		m.DrainSkipped,
	)

	return m
}

// QueueHooks returns the callbacks expected by queue.Hooks.
func (m *Metrics) QueueHooks() queue.Hooks {
	return queue.Hooks{
		OnEnqueued: func(k domain.Kind) {
			m.MutationsEnqueued.WithLabelValues(string(k)).Inc()
		},
		OnDepth: func(depth int) {
			m.QueueDepth.Set(float64(depth))
		},
	}
}

// WorkerHooks returns the metric callback functions expected by worker.MetricHooks.
// Centralises the prometheus observation calls so the drainer stays import-free.
func (m *Metrics) WorkerHooks() worker.MetricHooks {
	return worker.MetricHooks{
		OnSent: func(k domain.Kind, latency time.Duration) {
			m.MutationsSent.WithLabelValues(string(k)).Inc()
			m.SendLatency.WithLabelValues(string(k)).Observe(latency.Seconds())
		},
		OnRetained: func(k domain.Kind) {
			m.MutationsRetained.WithLabelValues(string(k)).Inc()
		},
		OnDropped: func(k domain.Kind) {
			m.MutationsDropped.WithLabelValues(string(k)).Inc()
		},
		OnCycle: func(r worker.DrainReport) {
			if r.Skipped {
				m.DrainSkipped.WithLabelValues(r.Reason).Inc()
				return
			}
			m.DrainCycles.WithLabelValues(string(r.Trigger)).Inc()
		},
	}
}
