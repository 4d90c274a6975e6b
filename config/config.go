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

	"github.com/kilianp07/volunteer/core/dispatch"
	"github.com/kilianp07/volunteer/core/factory"
	"github.com/kilianp07/volunteer/core/journal"
	"github.com/kilianp07/volunteer/core/metrics"
	"github.com/kilianp07/volunteer/core/tracking"
)

type Config struct {
	Dispatch   dispatch.Config      `json:"dispatch"`
	Monitor    tracking.Config      `json:"monitor"`
	Metrics    metrics.Config       `json:"metrics"`
	Journal    journal.Config       `json:"journal"`
	Notify     factory.ModuleConfig `json:"notify"`
	API        APIConfig            `json:"api"`
	Simulation SimulationConfig     `json:"simulation"`
	Logging    LoggingConfig        `json:"logging"`
	Sentry     SentryConfig         `json:"sentry"`
}

// Load reads path and applies K_ prefixed environment overrides, where a
// double underscore separates nested keys (K_DISPATCH__INTERVAL_MINUTES).
// An empty path loads defaults and environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
		var parser koanf.Parser
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			parser = yaml.Parser()
		case ".json":
			parser = json.Parser()
		default:
			return nil, fmt.Errorf("unsupported config format: %s", filepath.Ext(path))
		}
		if err := k.Load(file.Provider(path), parser); err != nil {
			return nil, err
		}
	}
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Dispatch.SetDefaults()
	c.Monitor.SetDefaults()
	c.Journal.SetDefaults()
	c.API.SetDefaults()
	c.Simulation.SetDefaults()
	c.Logging.SetDefaults()
	c.Sentry.SetDefaults()
}

// Validate checks every section and prefixes errors with the section name.
func (c Config) Validate() error {
	checks := []struct {
		name string
		fn   func() error
	}{
		{"dispatch", c.Dispatch.Validate},
		{"monitor", c.Monitor.Validate},
		{"journal", c.Journal.Validate},
		{"api", c.API.Validate},
		{"simulation", c.Simulation.Validate},
		{"logging", c.Logging.Validate},
	}
	for _, ch := range checks {
		if err := ch.fn(); err != nil {
			return fmt.Errorf("%s: %w", ch.name, err)
		}
	}
	return nil
}
