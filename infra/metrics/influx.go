package metrics

import (
	"context"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	coremetrics "github.com/kilianp07/volunteer/core/metrics"
	"github.com/kilianp07/volunteer/infra/logger"
)

// InfluxSink writes engine records to an InfluxDB instance using the official client.
type InfluxSink struct {
	client   influxdb2.Client
	writeAPI api.WriteAPIBlocking
	log      logger.Logger
}

// NewInfluxSink creates a new sink configured for the given InfluxDB endpoint.
func NewInfluxSink(url, token, org, bucket string) *InfluxSink {
	base := strings.TrimSuffix(url, "/api/v2/write")
	client := influxdb2.NewClientWithOptions(base, token,
		influxdb2.DefaultOptions().SetHTTPClient(&http.Client{Timeout: 5 * time.Second}))
	return &InfluxSink{
		client:   client,
		writeAPI: client.WriteAPIBlocking(org, bucket),
		log:      logger.New("influx-sink"),
	}
}

// NewInfluxSinkWithFallback tries to ping the InfluxDB instance and
// returns a NopSink if the health check fails.
func NewInfluxSinkWithFallback(url, token, org, bucket string) coremetrics.MetricsSink {
	sink := NewInfluxSink(url, token, org, bucket)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	health, err := sink.client.Health(ctx)
	if err != nil || health.Status != "pass" {
		if err != nil {
			sink.log.Errorf("influx health check error: %v", err)
		} else {
			sink.log.Errorf("influx health status: %s", health.Status)
		}
		sink.client.Close()
		return coremetrics.NopSink{}
	}
	return sink
}

// RecordPass writes a dispatch pass as a line protocol point.
func (s *InfluxSink) RecordPass(rec coremetrics.PassRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("dispatch_pass").
		AddTag("pass_id", rec.PassID).
		AddTag("failed", strconv.FormatBool(rec.Err != "")).
		AddTag("component", "dispatch_manager").
		AddField("tick", int64(rec.Tick)).
		AddField("candidates", rec.Candidates).
		AddField("needy", rec.Needy).
		AddField("matched", rec.Matched).
		AddField("dispatched", rec.Dispatched).
		AddField("duration_ms", round3(float64(rec.Duration)/float64(time.Millisecond))).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordCompletion writes a resolved assignment.
func (s *InfluxSink) RecordCompletion(rec coremetrics.CompletionRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("assignment_resolved").
		AddTag("agent", rec.Agent).
		AddTag("facility", rec.Facility).
		AddTag("outcome", rec.Outcome).
		AddTag("component", "resolver")
	if rec.Reason != "" {
		p = p.AddTag("reason", rec.Reason)
	}
	p = p.AddField("tick", int64(rec.Tick)).
		AddField("travel_ticks", int64(rec.TravelTicks)).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordMonitor writes a progress monitor cycle.
func (s *InfluxSink) RecordMonitor(rec coremetrics.MonitorRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("monitor_cycle").
		AddTag("component", "monitor").
		AddField("tick", int64(rec.Tick)).
		AddField("tracked", rec.Tracked).
		AddField("pruned", rec.Pruned).
		AddField("events", rec.Events).
		SetTime(rec.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// Close releases the underlying client.
func (s *InfluxSink) Close() {
	s.client.Close()
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
