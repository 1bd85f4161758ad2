package metrics

import "testing"

// TestMultiSink ensures records are forwarded to all sinks.

type recordSink struct {
	deliveries int
	broadcasts int
}

func (r *recordSink) RecordDeliveryResult([]DeliveryResult) error {
	r.deliveries++
	return nil
}

func (r *recordSink) RecordBroadcast(BroadcastEvent) error {
	r.broadcasts++
	return nil
}

// plainSink implements only the base interface.
type plainSink struct{ deliveries int }

func (p *plainSink) RecordDeliveryResult([]DeliveryResult) error {
	p.deliveries++
	return nil
}

func TestMultiSink(t *testing.T) {
	s1 := &recordSink{}
	s2 := &recordSink{}
	m := NewMultiSink(s1, s2)
	if err := m.RecordDeliveryResult(nil); err != nil {
		t.Fatalf("record delivery: %v", err)
	}
	if err := m.RecordBroadcast(BroadcastEvent{}); err != nil {
		t.Fatalf("record broadcast: %v", err)
	}
	if s1.deliveries != 1 || s2.deliveries != 1 || s1.broadcasts != 1 || s2.broadcasts != 1 {
		t.Fatalf("records not forwarded: %+v %+v", s1, s2)
	}
}

func TestMultiSink_SkipsUnsupportedRecorders(t *testing.T) {
	p := &plainSink{}
	m := NewMultiSink(p)
	if err := m.RecordBroadcast(BroadcastEvent{RideID: "r1"}); err != nil {
		t.Fatalf("record broadcast: %v", err)
	}
	if err := m.RecordIngest(IngestEvent{Source: "kafka"}); err != nil {
		t.Fatalf("record ingest: %v", err)
	}
	if p.deliveries != 0 {
		t.Fatalf("unexpected delivery records: %d", p.deliveries)
	}
}
