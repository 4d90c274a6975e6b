package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	coremetrics "github.com/kilianp07/volunteer/core/metrics"
)

// PromSink records pass and completion records in Prometheus metrics.
type PromSink struct {
	passes      *prometheus.CounterVec
	matched     prometheus.Histogram
	completions *prometheus.CounterVec
	travel      *prometheus.HistogramVec
	tracked     prometheus.Gauge
}

// NewPromSink registers the sink metrics on the default Prometheus registerer.
// The /metrics endpoint is served separately by StartPromServer.
func NewPromSink() (*PromSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (*PromSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	passes := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "volunteer_pass_records_total",
		Help: "Dispatch passes recorded by the metrics sink",
	}, []string{"status"})
	matched := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "volunteer_pass_matched_pairs",
		Help:    "Matched pairs per dispatch pass",
		Buckets: []float64{0, 1, 2, 3, 5, 8, 13, 21},
	})
	completions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "volunteer_completion_records_total",
		Help: "Resolved assignments recorded by the metrics sink",
	}, []string{"outcome", "reason"})
	travel := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "volunteer_assignment_ticks",
		Help:    "Ticks between dispatch and resolution",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"outcome"})
	tracked := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "volunteer_monitor_tracked",
		Help: "Assignments tracked by the last recorded monitor cycle",
	})

	var err error
	if passes, err = register(reg, passes); err != nil {
		return nil, err
	}
	if matched, err = register(reg, matched); err != nil {
		return nil, err
	}
	if completions, err = register(reg, completions); err != nil {
		return nil, err
	}
	if travel, err = register(reg, travel); err != nil {
		return nil, err
	}
	if tracked, err = register(reg, tracked); err != nil {
		return nil, err
	}
	return &PromSink{passes: passes, matched: matched, completions: completions, travel: travel, tracked: tracked}, nil
}

// register returns the already registered collector when c was registered before.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// RecordPass counts the pass by status and observes its matched pairs.
func (s *PromSink) RecordPass(rec coremetrics.PassRecord) error {
	status := "ok"
	if rec.Err != "" {
		status = "error"
	}
	s.passes.WithLabelValues(status).Inc()
	s.matched.Observe(float64(rec.Matched))
	return nil
}

// RecordCompletion counts the outcome and observes the assignment duration.
func (s *PromSink) RecordCompletion(rec coremetrics.CompletionRecord) error {
	reason := rec.Reason
	if reason == "" {
		reason = "none"
	}
	s.completions.WithLabelValues(rec.Outcome, reason).Inc()
	s.travel.WithLabelValues(rec.Outcome).Observe(float64(rec.TravelTicks))
	return nil
}

// RecordMonitor sets the tracked assignments gauge.
func (s *PromSink) RecordMonitor(rec coremetrics.MonitorRecord) error {
	s.tracked.Set(float64(rec.Tracked))
	return nil
}
