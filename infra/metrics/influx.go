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

	coremetrics "github.com/devsmilefactory/moversfinder-sub010/core/metrics"
	"github.com/devsmilefactory/moversfinder-sub010/infra/logger"
)

// InfluxSink writes delivery events to an InfluxDB instance using the
// official client.
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

// RecordDeliveryResult writes each per-recipient outcome as one point.
func (s *InfluxSink) RecordDeliveryResult(res []coremetrics.DeliveryResult) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	for _, r := range res {
		p := write.NewPointWithMeasurement("notification_delivery").
			AddTag("notification_type", r.NotificationType).
			AddTag("recipient_id", r.RecipientID).
			AddTag("ride_id", r.RideID).
			AddTag("priority", string(r.Priority)).
			AddTag("outcome", deliveryOutcome(r)).
			AddTag("component", "notification_dispatcher").
			AddField("latency_ms", round3(r.Latency.Seconds()*1000)).
			AddField("errors", r.Error).
			SetTime(r.Time)
		if err := s.writeAPI.WritePoint(ctx, p); err != nil {
			return err
		}
	}
	return nil
}

// RecordBroadcast persists the funnel counts of one broadcast cycle.
func (s *InfluxSink) RecordBroadcast(ev coremetrics.BroadcastEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("ride_broadcast").
		AddTag("ride_id", ev.RideID).
		AddTag("service_type", ev.ServiceType).
		AddTag("component", "notification_dispatcher").
		AddField("total_nearby", ev.TotalNearby).
		AddField("eligible", ev.Eligible).
		AddField("notified", ev.Notified).
		AddField("radius_km", round3(ev.RadiusKm)).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

// RecordIngest writes one consumed broker payload.
func (s *InfluxSink) RecordIngest(ev coremetrics.IngestEvent) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p := write.NewPointWithMeasurement("ride_event_ingested").
		AddTag("source", ev.Source).
		AddTag("status", ev.Status).
		AddTag("ok", strconv.FormatBool(ev.Error == "")).
		AddField("ride_id", ev.RideID).
		AddField("errors", ev.Error).
		SetTime(ev.Time)
	return s.writeAPI.WritePoint(ctx, p)
}

func round3(f float64) float64 {
	return math.Round(f*1000) / 1000
}
