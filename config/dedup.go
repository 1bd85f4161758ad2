package config

import (
	"fmt"
	"time"
)

// DedupConfig enables the guard that suppresses repeat deliveries when the
// upstream re-sends a ride event.
type DedupConfig struct {
	Enabled bool `json:"enabled"`
	// Backend selects the guard implementation: "redis" (shared across
	// instances) or "memory" (single instance, lost on restart).
	Backend  string `json:"backend"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	// TTLSeconds is how long a (ride, type, recipient) claim is held.
	TTLSeconds int `json:"ttl_seconds"`
}

// SetDefaults applies sane defaults.
func (c *DedupConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "redis"
	}
	if c.TTLSeconds <= 0 {
		c.TTLSeconds = 6 * 3600
	}
}

// Validate checks mandatory fields.
func (c DedupConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	switch c.Backend {
	case "redis":
		if c.Addr == "" {
			return fmt.Errorf("dedup.addr is required when dedup uses redis")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown dedup backend %q", c.Backend)
	}
	return nil
}

func (c DedupConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}
