package jobs

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics groups the generation-job collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	created         prometheus.Counter
	replayed        prometheus.Counter
	finished        *prometheus.CounterVec
	charges         *prometheus.CounterVec
	claims          *prometheus.CounterVec
	acks            *prometheus.CounterVec
	swept           *prometheus.CounterVec
	executeDuration prometheus.Histogram
}

// NewMetrics registers the collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		created: factory.NewCounter(prometheus.CounterOpts{
			Name: "tripgen_jobs_created_total",
			Help: "Generation jobs inserted into the job table",
		}),
		replayed: factory.NewCounter(prometheus.CounterOpts{
			Name: "tripgen_jobs_replayed_total",
			Help: "Create calls answered with an existing job for the same client request id",
		}),
		finished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripgen_jobs_finished_total",
			Help: "Generation jobs that reached a terminal status",
		}, []string{"status", "billing_status"}),
		charges: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripgen_charges_total",
			Help: "Ledger charge attempts by outcome",
		}, []string{"outcome"}),
		claims: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripgen_claims_total",
			Help: "Claim attempts by outcome",
		}, []string{"outcome"}),
		acks: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripgen_acks_total",
			Help: "Ack attempts by outcome",
		}, []string{"outcome"}),
		swept: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tripgen_sweeper_jobs_total",
			Help: "Jobs touched by the maintenance sweeper",
		}, []string{"action"}),
		executeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "tripgen_execute_duration_seconds",
			Help:    "Wall time of one execution pipeline run",
			Buckets: prometheus.ExponentialBuckets(1, 2, 10),
		}),
	}
}

func (m *Metrics) jobCreated(created bool) {
	if m == nil {
		return
	}
	if created {
		m.created.Inc()
		return
	}
	m.replayed.Inc()
}

func (m *Metrics) jobFinished(status, billing string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.finished.WithLabelValues(status, billing).Inc()
	m.executeDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) charge(outcome string) {
	if m == nil {
		return
	}
	m.charges.WithLabelValues(outcome).Inc()
}

func (m *Metrics) claim(outcome string) {
	if m == nil {
		return
	}
	m.claims.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ack(outcome string) {
	if m == nil {
		return
	}
	m.acks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) sweep(report PurgeReport) {
	if m == nil {
		return
	}
	m.swept.WithLabelValues("purged").Add(float64(report.Purged))
	m.swept.WithLabelValues("claim_released").Add(float64(report.ReleasedClaims))
	m.swept.WithLabelValues("timed_out").Add(float64(report.TimedOut))
}

func (m *Metrics) recovered(n int) {
	if m == nil {
		return
	}
	m.swept.WithLabelValues("interrupted").Add(float64(n))
}
