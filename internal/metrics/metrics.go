// Package metrics exposes the daemon's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SchedulesTotal prometheus.Counter
	CancelsTotal   prometheus.Counter
	AttemptsTotal  *prometheus.CounterVec // labels: platform, kind, outcome
	CycleSeconds   prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SchedulesTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tablesniper_schedules_total",
			Help: "Timers scheduled.",
		}),
		CancelsTotal: f.NewCounter(prometheus.CounterOpts{
			Name: "tablesniper_cancels_total",
			Help: "Timers cancelled.",
		}),
		AttemptsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Name: "tablesniper_attempts_total",
			Help: "Adapter booking attempts.",
		}, []string{"platform", "kind", "outcome"}),
		CycleSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "tablesniper_cycle_duration_seconds",
			Help:    "Duration of one attempt cycle from fire to terminal status.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		}),
	}
}

// Attempt records one adapter invocation outcome. Nil-safe so callers
// can run without a registry (tests).
func (m *Metrics) Attempt(platform, kind string, success bool) {
	if m == nil {
		return
	}
	outcome := "failure"
	if success {
		outcome = "success"
	}
	m.AttemptsTotal.WithLabelValues(platform, kind, outcome).Inc()
}

func (m *Metrics) Schedule() {
	if m == nil {
		return
	}
	m.SchedulesTotal.Inc()
}

func (m *Metrics) Cancel() {
	if m == nil {
		return
	}
	m.CancelsTotal.Inc()
}

func (m *Metrics) Cycle(seconds float64) {
	if m == nil {
		return
	}
	m.CycleSeconds.Observe(seconds)
}
