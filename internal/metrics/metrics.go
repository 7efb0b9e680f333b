// Package metrics holds the prometheus instruments of the submission engine.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every instrument. A nil *Metrics is valid and records nothing.
type Metrics struct {
	Broadcasts   *prometheus.CounterVec
	Escalations  prometheus.Counter
	Outcomes     *prometheus.CounterVec
	Attempts     prometheus.Histogram
	ConfirmWait  prometheus.Histogram
	BatchJobs    *prometheus.CounterVec
	RPCThrottled prometheus.Counter
}

// New registers the instruments on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Broadcasts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "batchwallet_broadcasts_total",
			Help: "Raw transaction submissions by node answer.",
		}, []string{"result"}),
		Escalations: f.NewCounter(prometheus.CounterOpts{
			Name: "batchwallet_fee_escalations_total",
			Help: "Times fees were raised for a resubmission.",
		}),
		Outcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "batchwallet_send_outcomes_total",
			Help: "Final outcome of logical transactions.",
		}, []string{"status", "kind"}),
		Attempts: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "batchwallet_send_attempts",
			Help:    "Broadcast attempts per logical transaction.",
			Buckets: []float64{1, 2, 3, 4, 5, 8, 13},
		}),
		ConfirmWait: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "batchwallet_confirm_wait_seconds",
			Help:    "Time spent waiting for a receipt per attempt.",
			Buckets: []float64{1, 3, 5, 10, 15, 30, 60},
		}),
		BatchJobs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "batchwallet_batch_jobs_total",
			Help: "Batch jobs by result.",
		}, []string{"status"}),
		RPCThrottled: f.NewCounter(prometheus.CounterOpts{
			Name: "batchwallet_rpc_throttled_total",
			Help: "Read calls retried after provider throttling.",
		}),
	}
}

func (m *Metrics) Broadcast(result string) {
	if m == nil {
		return
	}
	m.Broadcasts.WithLabelValues(result).Inc()
}

func (m *Metrics) Escalated() {
	if m == nil {
		return
	}
	m.Escalations.Inc()
}

func (m *Metrics) Outcome(status, kind string, attempts int) {
	if m == nil {
		return
	}
	m.Outcomes.WithLabelValues(status, kind).Inc()
	m.Attempts.Observe(float64(attempts))
}

func (m *Metrics) Waited(seconds float64) {
	if m == nil {
		return
	}
	m.ConfirmWait.Observe(seconds)
}

func (m *Metrics) Job(status string) {
	if m == nil {
		return
	}
	m.BatchJobs.WithLabelValues(status).Inc()
}

func (m *Metrics) Throttled() {
	if m == nil {
		return
	}
	m.RPCThrottled.Inc()
}

// Handler serves reg in the prometheus text format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}
