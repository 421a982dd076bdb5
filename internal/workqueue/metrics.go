package workqueue

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	outcomeSucceeded = "succeeded"
	outcomeFailed    = "failed"
	outcomePanicked  = "panicked"
)

// Metrics contains the Prometheus collectors for pool activity.
type Metrics struct {
	JobsSubmitted *prometheus.CounterVec
	JobsRejected  *prometheus.CounterVec
	JobsCompleted *prometheus.CounterVec
	JobDuration   *prometheus.HistogramVec
	JobsInFlight  prometheus.Gauge
	QueueDepth    prometheus.Gauge
}

// NewMetrics creates the pool collectors and registers them with registry.
func NewMetrics(registry prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		JobsSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cellar_jobs_submitted_total",
				Help: "Background jobs accepted by the worker pool.",
			},
			[]string{"kind"},
		),
		JobsRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cellar_jobs_rejected_total",
				Help: "Background jobs refused because the queue was full or stopped.",
			},
			[]string{"kind", "reason"},
		),
		JobsCompleted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cellar_jobs_completed_total",
				Help: "Background jobs finished, partitioned by outcome.",
			},
			[]string{"kind", "outcome"},
		),
		JobDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "cellar_job_duration_seconds",
				Help:    "Time spent running background jobs.",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
			},
			[]string{"kind"},
		),
		JobsInFlight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cellar_jobs_in_flight",
				Help: "Background jobs currently running.",
			},
		),
		QueueDepth: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "cellar_job_queue_depth",
				Help: "Background jobs waiting for a worker.",
			},
		),
	}
	if registry != nil {
		if err := registry.Register(m); err != nil {
			return nil, fmt.Errorf("register workqueue metrics: %w", err)
		}
	}
	return m, nil
}

// Describe implements prometheus.Collector.
func (m *Metrics) Describe(ch chan<- *prometheus.Desc) {
	m.JobsSubmitted.Describe(ch)
	m.JobsRejected.Describe(ch)
	m.JobsCompleted.Describe(ch)
	m.JobDuration.Describe(ch)
	m.JobsInFlight.Describe(ch)
	m.QueueDepth.Describe(ch)
}

// Collect implements prometheus.Collector.
func (m *Metrics) Collect(ch chan<- prometheus.Metric) {
	m.JobsSubmitted.Collect(ch)
	m.JobsRejected.Collect(ch)
	m.JobsCompleted.Collect(ch)
	m.JobDuration.Collect(ch)
	m.JobsInFlight.Collect(ch)
	m.QueueDepth.Collect(ch)
}

func (m *Metrics) submitted(kind string) {
	if m == nil {
		return
	}
	m.JobsSubmitted.WithLabelValues(kind).Inc()
	m.QueueDepth.Inc()
}

func (m *Metrics) rejected(kind, reason string) {
	if m == nil {
		return
	}
	m.JobsRejected.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) started() {
	if m == nil {
		return
	}
	m.QueueDepth.Dec()
	m.JobsInFlight.Inc()
}

func (m *Metrics) finished(kind, outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.JobsInFlight.Dec()
	m.JobsCompleted.WithLabelValues(kind, outcome).Inc()
	m.JobDuration.WithLabelValues(kind).Observe(seconds)
}
