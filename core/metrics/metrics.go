package metrics

import (
	"time"
)

// PassRecord summarizes one dispatch pass.
type PassRecord struct {
	PassID     string
	Tick       uint64
	Time       time.Time
	Candidates int
	Needy      int
	Matched    int
	Dispatched int
	Duration   time.Duration
	// Err is set when the pass was abandoned.
	Err string
}

// MetricsSink records dispatch passes for observability purposes.
type MetricsSink interface {
	RecordPass(rec PassRecord) error
}

// CompletionRecord describes a resolved assignment.
type CompletionRecord struct {
	Agent    string
	Facility string
	Outcome  string
	Reason   string
	Tick     uint64
	Time     time.Time
	// TravelTicks is the number of ticks between dispatch and resolution.
	TravelTicks uint64
}

// CompletionRecorder records resolved assignments.
type CompletionRecorder interface {
	RecordCompletion(rec CompletionRecord) error
}

// MonitorRecord summarizes one progress monitor cycle.
type MonitorRecord struct {
	Tick    uint64
	Time    time.Time
	Tracked int
	Pruned  int
	Events  int
}

// MonitorRecorder records monitor cycles.
type MonitorRecorder interface {
	RecordMonitor(rec MonitorRecord) error
}

// NopSink implements every recorder with no-op methods.
type NopSink struct{}

func (NopSink) RecordPass(PassRecord) error             { return nil }
func (NopSink) RecordCompletion(CompletionRecord) error { return nil }
func (NopSink) RecordMonitor(MonitorRecord) error       { return nil }
