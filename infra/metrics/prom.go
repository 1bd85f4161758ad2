package metrics

import (
	coremetrics "github.com/devsmilefactory/moversfinder-sub010/core/metrics"
	"github.com/prometheus/client_golang/prometheus"
)

// PromSink records delivery outcomes in Prometheus metrics.
type PromSink struct {
	deliveries *prometheus.CounterVec
	latency    *prometheus.HistogramVec
	eligible   prometheus.Gauge
	ingested   *prometheus.CounterVec
}

// NewPromSink registers delivery metrics on the default Prometheus registerer.
// The exporter endpoint is served separately by StartPromServer.
func NewPromSink() (coremetrics.MetricsSink, error) {
	return NewPromSinkWithRegistry(prometheus.DefaultRegisterer)
}

// NewPromSinkWithRegistry registers metrics on the provided registerer.
// A nil registerer defaults to the global Prometheus registerer.
func NewPromSinkWithRegistry(reg prometheus.Registerer) (coremetrics.MetricsSink, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	deliveries := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "push_deliveries_total",
		Help: "Per-recipient push delivery attempts by outcome",
	}, []string{"notification_type", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "push_delivery_seconds",
		Help:    "Time from intent resolution to recorded delivery outcome",
		Buckets: prometheus.DefBuckets,
	}, []string{"notification_type"})
	eligible := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "broadcast_eligible_drivers",
		Help: "Eligible drivers in the most recent new-ride broadcast",
	})
	ingested := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "ride_events_ingested_total",
		Help: "Ride status events consumed from broker bridges",
	}, []string{"source", "outcome"})

	if err := reg.Register(deliveries); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			deliveries = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(latency); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			latency = are.ExistingCollector.(*prometheus.HistogramVec)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(eligible); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			eligible = are.ExistingCollector.(prometheus.Gauge)
		} else {
			return nil, err
		}
	}
	if err := reg.Register(ingested); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			ingested = are.ExistingCollector.(*prometheus.CounterVec)
		} else {
			return nil, err
		}
	}

	return &PromSink{deliveries: deliveries, latency: latency, eligible: eligible, ingested: ingested}, nil
}

// RecordDeliveryResult increments the outcome counters and observes latency.
func (s *PromSink) RecordDeliveryResult(res []coremetrics.DeliveryResult) error {
	for _, r := range res {
		s.deliveries.WithLabelValues(r.NotificationType, deliveryOutcome(r)).Inc()
		s.latency.WithLabelValues(r.NotificationType).Observe(r.Latency.Seconds())
	}
	return nil
}

// RecordBroadcast sets the gauge to the eligible candidate count.
func (s *PromSink) RecordBroadcast(ev coremetrics.BroadcastEvent) error {
	if s.eligible != nil {
		s.eligible.Set(float64(ev.Eligible))
	}
	return nil
}

// RecordIngest counts one consumed broker payload.
func (s *PromSink) RecordIngest(ev coremetrics.IngestEvent) error {
	out := "ok"
	if ev.Error != "" {
		out = "error"
	}
	s.ingested.WithLabelValues(ev.Source, out).Inc()
	return nil
}

func deliveryOutcome(r coremetrics.DeliveryResult) string {
	switch {
	case r.Duplicate:
		return "duplicate"
	case r.Skipped:
		return "skipped"
	case r.Delivered:
		return "delivered"
	default:
		return "failed"
	}
}
