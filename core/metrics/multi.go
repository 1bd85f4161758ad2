package metrics

// MultiSink fans records out to multiple sinks.
type MultiSink struct {
	Sinks []MetricsSink
}

// NewMultiSink creates a MultiSink with the provided sinks.
func NewMultiSink(sinks ...MetricsSink) *MultiSink {
	return &MultiSink{Sinks: sinks}
}

// RecordDeliveryResult forwards the results to all sinks, returning the first
// error encountered.
func (m *MultiSink) RecordDeliveryResult(res []DeliveryResult) error {
	for _, s := range m.Sinks {
		if err := s.RecordDeliveryResult(res); err != nil {
			return err
		}
	}
	return nil
}

// RecordBroadcast forwards broadcast cycles to sinks that support them.
func (m *MultiSink) RecordBroadcast(ev BroadcastEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(BroadcastRecorder); ok {
			if err := rec.RecordBroadcast(ev); err != nil {
				return err
			}
		}
	}
	return nil
}

// RecordIngest forwards bridge consumption events to sinks that support them.
func (m *MultiSink) RecordIngest(ev IngestEvent) error {
	for _, s := range m.Sinks {
		if rec, ok := s.(IngestRecorder); ok {
			if err := rec.RecordIngest(ev); err != nil {
				return err
			}
		}
	}
	return nil
}
