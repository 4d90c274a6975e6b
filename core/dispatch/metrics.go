package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	passesTotal          *prometheus.CounterVec
	volunteersDispatched prometheus.Counter
	passDuration         prometheus.Histogram
	candidatesGauge      prometheus.Gauge
	needyGauge           prometheus.Gauge
	commitFailures       *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.CounterVec, prometheus.Counter, prometheus.Histogram, prometheus.Gauge, prometheus.Gauge, *prometheus.CounterVec) {
	passes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_dispatch_passes_total",
			Help: "Number of dispatch passes by result",
		},
		[]string{"result"},
	)
	dispatched := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "volunteers_dispatched_total",
			Help: "Number of volunteers sent to facilities",
		},
	)
	dur := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "volunteer_dispatch_pass_duration_seconds",
			Help:    "Wall clock duration of a dispatch pass",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		},
	)
	cands := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "volunteer_candidates",
			Help: "Eligible candidates found by the last pass",
		},
	)
	needy := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "volunteer_needy_facilities",
			Help: "Underserviced facilities found by the last pass",
		},
	)
	fails := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_dispatch_commit_failures_total",
			Help: "Matched pairs that could not be committed",
		},
		[]string{"reason"},
	)
	return passes, dispatched, dur, cands, needy, fails
}

func init() {
	passesTotal, volunteersDispatched, passDuration, candidatesGauge, needyGauge, commitFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(passesTotal, volunteersDispatched, passDuration, candidatesGauge, needyGauge, commitFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	passesTotal, volunteersDispatched, passDuration, candidatesGauge, needyGauge, commitFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
