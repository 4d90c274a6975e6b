package metrics

import (
	coremetrics "github.com/kilianp07/volunteer/core/metrics"
	"github.com/kilianp07/volunteer/infra/logger"
)

// LogSink writes records as structured debug logs.
type LogSink struct {
	log logger.Logger
}

func NewLogSink(log logger.Logger) *LogSink {
	if log == nil {
		log = logger.New("metrics")
	}
	return &LogSink{log: log}
}

func (s *LogSink) RecordPass(rec coremetrics.PassRecord) error {
	s.log.Debugw("dispatch pass", map[string]any{
		"pass_id":    rec.PassID,
		"tick":       rec.Tick,
		"candidates": rec.Candidates,
		"needy":      rec.Needy,
		"matched":    rec.Matched,
		"dispatched": rec.Dispatched,
		"duration":   rec.Duration.String(),
		"error":      rec.Err,
	})
	return nil
}

func (s *LogSink) RecordCompletion(rec coremetrics.CompletionRecord) error {
	s.log.Debugw("assignment resolved", map[string]any{
		"agent":        rec.Agent,
		"facility":     rec.Facility,
		"outcome":      rec.Outcome,
		"reason":       rec.Reason,
		"tick":         rec.Tick,
		"travel_ticks": rec.TravelTicks,
	})
	return nil
}

func (s *LogSink) RecordMonitor(rec coremetrics.MonitorRecord) error {
	s.log.Debugw("monitor cycle", map[string]any{
		"tick":    rec.Tick,
		"tracked": rec.Tracked,
		"pruned":  rec.Pruned,
		"events":  rec.Events,
	})
	return nil
}
