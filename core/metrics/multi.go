package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordPass forwards the record to all sinks, returning the first error encountered.
func (m *MultiSink) RecordPass(rec PassRecord) error {
	for _, s := range m.Sinks {
		if err := s.RecordPass(rec); err != nil {
			return err
		}
	}
	return nil
}

// RecordCompletion forwards completions to sinks that support them.
func (m *MultiSink) RecordCompletion(rec CompletionRecord) error {
	for _, s := range m.Sinks {
		if cr, ok := s.(CompletionRecorder); ok {
			if err := cr.RecordCompletion(rec); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordMonitor forwards monitor cycles to sinks that support them.
func (m *MultiSink) RecordMonitor(rec MonitorRecord) error {
	for _, s := range m.Sinks {
		if mr, ok := s.(MonitorRecorder); ok {
			if err := mr.RecordMonitor(rec); err != nil {
				return err
			}
		}
	}
	return nil
}
