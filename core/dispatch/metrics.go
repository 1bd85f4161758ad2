package dispatch

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	deliveryLatency     *prometheus.HistogramVec
	notificationsTotal  *prometheus.CounterVec
	deliveryRate        *prometheus.GaugeVec
	pushSuccess         prometheus.Counter
	pushFailure         prometheus.Counter
	broadcastCandidates *prometheus.GaugeVec
)

// newCollectors creates new metric collectors.
func newCollectors() (*prometheus.HistogramVec, *prometheus.CounterVec, *prometheus.GaugeVec, prometheus.Counter, prometheus.Counter, *prometheus.GaugeVec) {
	lat := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "notification_delivery_latency_seconds",
			Help:    "Latency from dispatch start to push gateway response",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"type"},
	)
	total := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_dispatched_total",
			Help: "Number of notification dispatch attempts",
		},
		[]string{"type"},
	)
	rate := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "notification_delivery_rate",
			Help: "Delivered fraction of the most recent fan-out",
		},
		[]string{"category"},
	)
	suc := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_send_success_total",
			Help: "Number of pushes accepted by the gateway",
		},
	)
	fail := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "push_send_failure_total",
			Help: "Number of pushes rejected by the gateway",
		},
	)
	cand := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "broadcast_candidates",
			Help: "Candidate counts observed by the most recent broadcast",
		},
		[]string{"stage"},
	)
	return lat, total, rate, suc, fail, cand
}

func init() {
	deliveryLatency, notificationsTotal, deliveryRate, pushSuccess, pushFailure, broadcastCandidates = newCollectors()
	MustRegisterMetrics(nil)
}

// MustRegisterMetrics registers dispatch metrics on the provided registry.
// If reg is nil, prometheus.DefaultRegisterer is used.
func MustRegisterMetrics(reg prometheus.Registerer) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(deliveryLatency, notificationsTotal, deliveryRate, pushSuccess, pushFailure, broadcastCandidates)
}

// ResetMetrics reinitializes metric collectors for testing purposes and
// registers them on the provided registry if not nil.
func ResetMetrics(reg prometheus.Registerer) {
	deliveryLatency, notificationsTotal, deliveryRate, pushSuccess, pushFailure, broadcastCandidates = newCollectors()
	if reg != nil {
		MustRegisterMetrics(reg)
	}
}
