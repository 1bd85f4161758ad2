package metrics

import (
	"time"

	"github.com/devsmilefactory/moversfinder-sub010/core/model"
)

// DeliveryResult represents a per-recipient push delivery to be recorded.
type DeliveryResult struct {
	RideID           string
	NotificationID   string
	NotificationType string
	RecipientID      string
	Priority         model.Priority
	Delivered        bool
	Skipped          bool
	Duplicate        bool
	Error            string
	Latency          time.Duration
	Time             time.Time
}

// MetricsSink records delivery results for observability purposes.
type MetricsSink interface {
	RecordDeliveryResult(results []DeliveryResult) error
}

// BroadcastEvent captures one nearby-driver broadcast cycle: how many
// candidates the finder returned, how many survived eligibility filtering and
// how many were actually notified.
type BroadcastEvent struct {
	RideID      string
	ServiceType string
	TotalNearby int
	Eligible    int
	Notified    int
	RadiusKm    float64
	Time        time.Time
}

// BroadcastRecorder is implemented by sinks able to record broadcast cycles.
type BroadcastRecorder interface {
	RecordBroadcast(ev BroadcastEvent) error
}

// IngestEvent records a ride event consumed from a broker bridge.
type IngestEvent struct {
	Source string
	RideID string
	Status string
	Error  string
	Time   time.Time
}

// IngestRecorder is implemented by sinks able to record bridge consumption.
type IngestRecorder interface {
	RecordIngest(ev IngestEvent) error
}

// NopSink implements MetricsSink with no-op methods.
type NopSink struct{}

func (NopSink) RecordDeliveryResult([]DeliveryResult) error { return nil }

// Ensure NopSink implements the optional recorders as well.
func (NopSink) RecordBroadcast(BroadcastEvent) error { return nil }
func (NopSink) RecordIngest(IngestEvent) error       { return nil }
