package config

import (
	"fmt"

	"github.com/devsmilefactory/moversfinder-sub010/infra/ingest"
)

// IngestConfig selects the optional broker bridge that feeds ride events into
// the dispatcher alongside the HTTP API.
type IngestConfig struct {
	// Source is "none" (default), "mqtt" or "kafka".
	Source string             `json:"source"`
	MQTT   ingest.MQTTConfig  `json:"mqtt"`
	Kafka  ingest.KafkaConfig `json:"kafka"`
}

// Validate checks the selected source.
func (c IngestConfig) Validate() error {
	switch c.Source {
	case "", "none", "mqtt", "kafka":
		return nil
	}
	return fmt.Errorf("unknown ingest source %s", c.Source)
}
