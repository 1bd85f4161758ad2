package config

import (
	"fmt"
	"time"
)

// PushConfig locates the push gateway credential and tunes delivery.
type PushConfig struct {
	// CredentialsFile is the service account key file used for the token
	// exchange. The gateway project id is read from the file itself.
	CredentialsFile string `json:"credentials_file"`
	// SendEndpoint overrides the gateway base URL, mainly for tests.
	SendEndpoint string `json:"send_endpoint"`
	// TimeoutSeconds bounds a single delivery attempt.
	TimeoutSeconds int `json:"timeout_seconds"`
}

// SetDefaults applies sane defaults.
func (c *PushConfig) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 10
	}
}

// Validate checks mandatory fields.
func (c PushConfig) Validate() error {
	if c.CredentialsFile == "" {
		return fmt.Errorf("push.credentials_file is required")
	}
	return nil
}

func (c PushConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}
