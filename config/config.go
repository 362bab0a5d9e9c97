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

	"github.com/capaplan/capaplan/core/metrics"
)

// Config is the top-level service configuration.
type Config struct {
	Plan    PlanConfig     `json:"plan"`
	Metrics metrics.Config `json:"metrics"`
	Logging LoggingConfig  `json:"logging"`
}

// PlanConfig locates the planning input and controls the output.
type PlanConfig struct {
	// Input is the path of the plan file (YAML or JSON).
	Input string `json:"input"`
	// Output receives the computed plan; empty means stdout.
	Output string `json:"output"`
	// Format selects the output encoding: "json" or "csv".
	Format string `json:"format"`
	// Watch keeps the service running and recomputes on every input change.
	Watch bool `json:"watch"`
}

// SetDefaults applies sane defaults.
func (c *PlanConfig) SetDefaults() {
	if c.Format == "" {
		c.Format = "json"
	}
}

// Validate checks mandatory fields.
func (c PlanConfig) Validate() error {
	if c.Input == "" {
		return fmt.Errorf("plan input path is required")
	}
	if c.Format != "json" && c.Format != "csv" {
		return fmt.Errorf("unknown plan format %s", c.Format)
	}
	return nil
}

// Load reads the configuration from a JSON or YAML file, with optional
// CAPAPLAN_-prefixed environment overrides (double underscores become dots).
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
	// The callback rewrites double underscores into the koanf delimiter, so
	// the provider must be given "." or the keys stay flat and never merge.
	if err := k.Load(env.Provider("CAPAPLAN_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "capaplan_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Plan.SetDefaults()
	cfg.Logging.SetDefaults()
	cfg.Metrics.SetDefaults()
	if err := cfg.Plan.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Logging.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
