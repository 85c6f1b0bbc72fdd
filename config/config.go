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
	"github.com/rs/zerolog"

	"github.com/kilianp07/fieldplan/core/metrics"
	"github.com/kilianp07/fieldplan/core/planning"
	"github.com/kilianp07/fieldplan/infra/mqtt"
	"github.com/kilianp07/fieldplan/infra/sqlstore"
)

// EnvPrefix marks environment overrides: FP_HTTP__ADDR sets http.addr.
const EnvPrefix = "FP_"

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `json:"addr"`
	// Token, when set, is required as a Bearer token on every request.
	Token string `json:"token"`
}

type Config struct {
	Store    sqlstore.Config `json:"store"`
	Planning planning.Config `json:"planning"`
	HTTP     HTTPConfig      `json:"http"`
	Metrics  metrics.Config  `json:"metrics"`
	MQTT     mqtt.Config     `json:"mqtt"`
	Audit    AuditConfig     `json:"audit"`
	Sentry   SentryConfig    `json:"sentry"`
	LogLevel string          `json:"log_level"`
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Store.SetDefaults()
	c.Planning.SetDefaults()
	c.Audit.SetDefaults()
	c.Sentry.SetDefaults()
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8080"
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
}

// Validate checks every section.
func (c Config) Validate() error {
	if err := c.Store.Validate(); err != nil {
		return err
	}
	if err := c.Planning.Validate(); err != nil {
		return err
	}
	if err := c.Audit.Validate(); err != nil {
		return err
	}
	if err := c.Sentry.Validate(); err != nil {
		return err
	}
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
		return fmt.Errorf("log_level: %w", err)
	}
	return nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	var cfg Config
	cfg.SetDefaults()
	return &cfg
}

// Load reads path (yaml or json), applies FP_ environment overrides and
// validates the result. An empty path loads defaults and environment only.
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
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
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
