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

	"github.com/kilianp07/smartcharge/core/advicelog"
	"github.com/kilianp07/smartcharge/core/forecast"
	"github.com/kilianp07/smartcharge/core/metrics"
	"github.com/kilianp07/smartcharge/core/profile"
	"github.com/kilianp07/smartcharge/infra/mqtt"
)

// EnvPrefix marks environment overrides. K_MQTT__BROKER sets mqtt.broker.
const EnvPrefix = "K_"

type Config struct {
	Forecaster forecast.Config  `json:"forecaster"`
	MQTT       mqtt.Config      `json:"mqtt"`
	HTTP       HTTPConfig       `json:"http"`
	Metrics    metrics.Config   `json:"metrics"`
	AdviceLog  advicelog.Config `json:"advice_log"`
	KPI        KPIConfig        `json:"kpi"`
	Profiles   profile.Config   `json:"profiles"`
	Sentry     SentryConfig     `json:"sentry"`
}

// SetDefaults applies the defaults of every section.
func (c *Config) SetDefaults() {
	c.Forecaster.SetDefaults()
	c.MQTT.SetDefaults()
	c.HTTP.SetDefaults()
	c.AdviceLog.SetDefaults()
	c.KPI.SetDefaults()
	c.Profiles.SetDefaults()
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Forecaster.Validate(); err != nil {
		return fmt.Errorf("forecaster: %w", err)
	}
	if c.MQTT.Enabled() {
		if err := c.MQTT.Validate(); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}
	if err := c.HTTP.Validate(); err != nil {
		return fmt.Errorf("http: %w", err)
	}
	if err := c.AdviceLog.Validate(); err != nil {
		return fmt.Errorf("advice_log: %w", err)
	}
	if err := c.KPI.Validate(); err != nil {
		return fmt.Errorf("kpi: %w", err)
	}
	if err := c.Profiles.Validate(); err != nil {
		return fmt.Errorf("profiles: %w", err)
	}
	return nil
}

// Load reads a yaml or json file, applies K_ environment overrides, then
// defaults, and validates the result. An empty path loads from the
// environment only.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
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
	}
	if err := k.Load(env.Provider(EnvPrefix, "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), strings.ToLower(EnvPrefix))
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
