// Package metrics exposes Prometheus collectors for reminder passes.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/X1ag/ReminderEngine/internal/domain"
)

const namespace = "reminderd"

// Metrics holds the collectors updated after every pass.
type Metrics struct {
	passes         *prometheus.CounterVec
	passDuration   prometheus.Histogram
	passesSkipped  *prometheus.CounterVec
	candidates     *prometheus.CounterVec
	deliveries     *prometheus.CounterVec
	commitFailures prometheus.Counter
	queryFailures  *prometheus.CounterVec
	lastPass       prometheus.Gauge
}

var (
	defaultOnce sync.Once
	shared      *Metrics
)

// Default returns the instance registered with the global registry. It is
// created once so repeated construction does not panic on duplicate
// registration.
func Default() *Metrics {
	defaultOnce.Do(func() {
		shared = MustNew(prometheus.DefaultRegisterer)
	})
	return shared
}

// MustNew builds and registers collectors on reg. Registration errors panic.
func MustNew(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	m := &Metrics{
		passes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "total",
			Help:      "Reminder passes by outcome (ok, partial, aborted).",
		}, []string{"outcome"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "duration_seconds",
			Help:      "Wall-clock duration of a reminder pass.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}),
		passesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "skipped_total",
			Help:      "Triggers that did not start a pass because one was in flight.",
		}, []string{"reason"}),
		candidates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "candidates_total",
			Help:      "Candidates processed by policy and status.",
		}, []string{"policy", "status"}),
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "endpoint_sends_total",
			Help:      "Individual endpoint sends by result.",
		}, []string{"result"}),
		commitFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "commit_failures_total",
			Help:      "Candidates whose reminder state could not be written.",
		}),
		queryFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "query_failures_total",
			Help:      "Failed candidate queries by query name.",
		}, []string{"query"}),
		lastPass: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pass",
			Name:      "last_completed_timestamp_seconds",
			Help:      "Unix time the last pass finished.",
		}),
	}

	reg.MustRegister(
		m.passes, m.passDuration, m.passesSkipped, m.candidates,
		m.deliveries, m.commitFailures, m.queryFailures, m.lastPass,
	)
	return m
}

// ObservePass records the outcome of a finished pass.
func (m *Metrics) ObservePass(report *domain.Report, duration time.Duration) {
	if m == nil || report == nil {
		return
	}

	outcome := "ok"
	switch {
	case report.Aborted:
		outcome = "aborted"
	case len(report.QueryFailures) > 0 || report.TotalFailures > 0 || report.CommitFailures > 0:
		outcome = "partial"
	}
	m.passes.WithLabelValues(outcome).Inc()
	m.passDuration.Observe(duration.Seconds())
	m.lastPass.Set(float64(report.StartedAt.Add(duration).Unix()))

	for _, q := range report.QueryFailures {
		m.queryFailures.WithLabelValues(q.Query).Inc()
	}
	for _, d := range report.Details {
		m.candidates.WithLabelValues(d.Policy, string(d.Status)).Inc()
		m.deliveries.WithLabelValues("success").Add(float64(d.Delivery.Succeeded))
		m.deliveries.WithLabelValues("failure").Add(float64(d.Delivery.Failed))
	}
	m.commitFailures.Add(float64(report.CommitFailures))
}

// ObserveSkipped records a trigger that found a pass already running.
func (m *Metrics) ObserveSkipped(reason string) {
	if m == nil {
		return
	}
	m.passesSkipped.WithLabelValues(reason).Inc()
}
