package tracking

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	trackedGauge     prometheus.Gauge
	prunedTotal      prometheus.Counter
	completionsTotal *prometheus.CounterVec
	stepFailures     *prometheus.CounterVec
)

// newCollectors creates new metric collectors.
func newCollectors() (prometheus.Gauge, prometheus.Counter, *prometheus.CounterVec, *prometheus.CounterVec) {
	tracked := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "volunteer_tracked_assignments",
			Help: "Live assignments sampled by the last monitor cycle",
		},
	)
	pruned := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "volunteer_assignments_pruned_total",
			Help: "Assignments dropped because the agent lost its marker",
		},
	)
	done := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_completions_total",
			Help: "Resolved assignments by outcome and reason",
		},
		[]string{"outcome", "reason"},
	)
	fails := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "volunteer_resolution_step_failures_total",
			Help: "Best-effort resolution steps that could not be applied",
		},
		[]string{"step"},
	)
	return tracked, pruned, done, fails
}

func init() {
	trackedGauge, prunedTotal, completionsTotal, stepFailures = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers tracking metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(trackedGauge, prunedTotal, completionsTotal, stepFailures)
}

// ResetMetrics reinitializes metrics collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	trackedGauge, prunedTotal, completionsTotal, stepFailures = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
