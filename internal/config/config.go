// Package config loads and saves toolmeter settings and alert rules.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/theirongolddev/toolmeter/internal/model"
)

// Environment overrides.
const (
	EnvDB   = "TOOLMETER_DB"
	EnvAddr = "TOOLMETER_ADDR"
)

// Config holds all toolmeter configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Logging    LoggingConfig    `toml:"logging"`
	Appearance AppearanceConfig `toml:"appearance"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
	Pricing    []PriceConfig    `toml:"pricing,omitempty"`
	Alerts     []RuleConfig     `toml:"alerts,omitempty"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	DefaultDays   int    `toml:"default_days"`
	RetentionDays int    `toml:"retention_days,omitempty"`
	DBPath        string `toml:"db_path,omitempty"`
	LogDir        string `toml:"log_dir,omitempty"`
	RulesFile     string `toml:"rules_file,omitempty"`
}

// DaemonConfig holds settings for the background service.
type DaemonConfig struct {
	Addr          string `toml:"addr"`
	CheckInterval string `toml:"check_interval"`
	EventsBuffer  int    `toml:"events_buffer"`
}

// LoggingConfig selects log verbosity and encoding.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// TelemetryConfig selects the metrics exporter.
type TelemetryConfig struct {
	Provider      string `toml:"provider"`
	StatsdAddress string `toml:"statsd_address,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			DefaultDays: 30,
		},
		Daemon: DaemonConfig{
			Addr:          "127.0.0.1:8787",
			CheckInterval: "15s",
			EventsBuffer:  200,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
		Telemetry: TelemetryConfig{
			Provider: "prometheus",
		},
	}
}

// Interval parses the daemon check interval, falling back to 15s.
func (d DaemonConfig) Interval() time.Duration {
	iv, err := time.ParseDuration(d.CheckInterval)
	if err != nil || iv <= 0 {
		return 15 * time.Second
	}
	return iv
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "toolmeter")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "toolmeter")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
func Load() (Config, error) {
	return LoadFrom(ConfigPath())
}

// LoadFrom reads the config at path, returning defaults if it doesn't exist.
// Alert rules and pricing entries are validated. The result is what the file
// says; call WithEnv for the runtime view.
func LoadFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // path is the user's config file
	switch {
	case os.IsNotExist(err):
	case err != nil:
		return cfg, fmt.Errorf("reading config: %w", err)
	default:
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	if _, err := cfg.Rules(); err != nil {
		return cfg, err
	}
	if _, err := NewPriceTable(cfg.Pricing); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// WithEnv returns a copy of c with environment overrides applied.
// The result must not be saved, or the overrides would become permanent.
func (c Config) WithEnv() Config {
	if v := os.Getenv(EnvDB); v != "" {
		c.General.DBPath = v
	}
	if v := os.Getenv(EnvAddr); v != "" {
		c.Daemon.Addr = v
	}
	return c
}

// Rules converts the [[alerts]] entries into validated alert rules.
func (c Config) Rules() ([]model.AlertRule, error) {
	return toRules(c.Alerts, "config")
}

// AllRules returns the inline rules followed by those in the rules file,
// if one is configured.
func (c Config) AllRules() ([]model.AlertRule, error) {
	rules, err := c.Rules()
	if err != nil {
		return nil, err
	}
	if c.General.RulesFile == "" {
		return rules, nil
	}
	extra, err := LoadRules(c.General.RulesFile)
	if err != nil {
		return nil, err
	}
	return append(rules, extra...), nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	return SaveTo(ConfigPath(), cfg)
}

// SaveTo writes the config to path.
func SaveTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // user config path
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}
