package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/devsmilefactory/moversfinder-sub010/core/metrics"
	"github.com/devsmilefactory/moversfinder-sub010/infra/store"
)

type Config struct {
	HTTP     HTTPConfig     `json:"http"`
	Database store.Config   `json:"database"`
	Push     PushConfig     `json:"push"`
	Dispatch DispatchConfig `json:"dispatch"`
	Dedup    DedupConfig    `json:"dedup"`
	Ingest   IngestConfig   `json:"ingest"`
	Metrics  metrics.Config `json:"metrics"`
	Logging  LoggingConfig  `json:"logging"`
	Sentry   SentryConfig   `json:"sentry"`
}

// Load reads a yaml or json configuration file and applies MF_-prefixed
// environment overrides (MF_PUSH__CREDENTIALS_FILE maps to push.credentials_file).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("MF_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "mf_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.HTTP.SetDefaults()
	cfg.Database.SetDefaults()
	cfg.Push.SetDefaults()
	cfg.Dispatch.SetDefaults()
	cfg.Dedup.SetDefaults()
	cfg.Metrics.SetDefaults()
	cfg.Logging.SetDefaults()
	if err := cfg.Push.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Dedup.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Ingest.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
