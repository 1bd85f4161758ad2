package config

import "time"

// DispatchConfig tunes the fan-out pipeline.
type DispatchConfig struct {
	// DefaultRadiusKm is the broadcast search radius when a request does not
	// carry its own.
	DefaultRadiusKm float64 `json:"default_radius_km"`
	// DeliveryTimeoutSeconds bounds each per-recipient delivery.
	DeliveryTimeoutSeconds int `json:"delivery_timeout_seconds"`
	// BroadcastStatuses lists the ride statuses that trigger candidate
	// discovery instead of the routing table.
	BroadcastStatuses []string `json:"broadcast_statuses"`
}

// SetDefaults applies sane defaults.
func (c *DispatchConfig) SetDefaults() {
	if c.DefaultRadiusKm <= 0 {
		c.DefaultRadiusKm = 5
	}
	if c.DeliveryTimeoutSeconds <= 0 {
		c.DeliveryTimeoutSeconds = 10
	}
	if len(c.BroadcastStatuses) == 0 {
		c.BroadcastStatuses = []string{"pending"}
	}
}

func (c DispatchConfig) DeliveryTimeout() time.Duration {
	return time.Duration(c.DeliveryTimeoutSeconds) * time.Second
}
