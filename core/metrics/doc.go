// Package metrics defines interfaces and implementations for recording
// notification delivery observability data. Sinks like the Prometheus and
// InfluxDB implementations under infra/metrics record per-recipient delivery
// results and broadcast funnel events, and can be combined with NewMultiSink.
// The factory helpers return a MultiSink automatically when multiple sinks
// are configured and a NopSink when none are.
package metrics
