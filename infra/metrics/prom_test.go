package metrics

import (
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	coremetrics "github.com/kilianp07/volunteer/core/metrics"
)

func TestPromSink_RecordPassAndCompletion(t *testing.T) {
	reg := prometheus.NewRegistry()
	sink, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	now := time.Now()
	if err := sink.RecordPass(coremetrics.PassRecord{PassID: "p1", Time: now, Matched: 2, Dispatched: 2}); err != nil {
		t.Fatalf("record pass: %v", err)
	}
	if err := sink.RecordPass(coremetrics.PassRecord{PassID: "p2", Time: now, Err: "panic: boom"}); err != nil {
		t.Fatalf("record pass: %v", err)
	}
	if err := sink.RecordCompletion(coremetrics.CompletionRecord{Outcome: "arrived", TravelTicks: 3}); err != nil {
		t.Fatalf("record completion: %v", err)
	}
	if err := sink.RecordCompletion(coremetrics.CompletionRecord{Outcome: "abandoned", Reason: "got_job", TravelTicks: 1}); err != nil {
		t.Fatalf("record completion: %v", err)
	}

	expected := `
# HELP volunteer_pass_records_total Dispatch passes recorded by the metrics sink
# TYPE volunteer_pass_records_total counter
volunteer_pass_records_total{status="error"} 1
volunteer_pass_records_total{status="ok"} 1
`
	if err := testutil.CollectAndCompare(sink.passes, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	expected = `
# HELP volunteer_completion_records_total Resolved assignments recorded by the metrics sink
# TYPE volunteer_completion_records_total counter
volunteer_completion_records_total{outcome="abandoned",reason="got_job"} 1
volunteer_completion_records_total{outcome="arrived",reason="none"} 1
`
	if err := testutil.CollectAndCompare(sink.completions, strings.NewReader(expected)); err != nil {
		t.Errorf("unexpected metrics: %v", err)
	}
	if n := testutil.CollectAndCount(sink.travel); n != 2 {
		t.Errorf("expected two travel series, got %d", n)
	}
}

func TestPromSink_RecordMonitor(t *testing.T) {
	sink, err := NewPromSinkWithRegistry(prometheus.NewRegistry())
	if err != nil {
		t.Fatalf("create sink: %v", err)
	}
	_ = sink.RecordMonitor(coremetrics.MonitorRecord{Tracked: 7})
	if v := testutil.ToFloat64(sink.tracked); v != 7 {
		t.Fatalf("expected 7 got %v", v)
	}
}

func TestPromSink_ReusesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("first sink: %v", err)
	}
	second, err := NewPromSinkWithRegistry(reg)
	if err != nil {
		t.Fatalf("second sink: %v", err)
	}
	_ = second.RecordPass(coremetrics.PassRecord{})
	if v := testutil.ToFloat64(first.passes.WithLabelValues("ok")); v != 1 {
		t.Fatalf("expected shared collector, got %v", v)
	}
}
