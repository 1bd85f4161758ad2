package main

import (
	"fmt"
	"time"
)

// Config holds parameters for the simulator.
type Config struct {
	Broker    string
	Topic     string
	Rides     int
	Interval  time.Duration
	CancelPct float64
	CenterLat float64
	CenterLng float64
	Seed      int64
	Verbose   bool
}

// Validate checks flag combinations before any ride starts.
func (c *Config) Validate() error {
	if c.Broker == "" {
		return fmt.Errorf("broker is required")
	}
	if c.Topic == "" {
		return fmt.Errorf("topic is required")
	}
	if c.Rides <= 0 {
		return fmt.Errorf("rides must be positive")
	}
	if c.CancelPct < 0 || c.CancelPct > 1 {
		return fmt.Errorf("cancel-pct must be between 0 and 1")
	}
	if c.Interval < 0 {
		return fmt.Errorf("interval must not be negative")
	}
	return nil
}
