// Package config provides YAML-based configuration loading for the netplay client.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root application configuration.
type Config struct {
	// Log holds logging configuration
	Log LogConfig `mapstructure:"log" json:"log"`

	// Session is the default session to join
	Session SessionConfig `mapstructure:"session" json:"session"`

	// Net holds transport and timing options
	Net NetConfig `mapstructure:"net" json:"net"`

	// Metrics controls the local status/metrics HTTP endpoint
	Metrics MetricsConfig `mapstructure:"metrics" json:"metrics"`
}

// LogConfig defines logger settings.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `mapstructure:"level" json:"level" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
	// Format: console or json
	Format string `mapstructure:"format" json:"format" jsonschema:"enum=console,enum=json"`
	// Outputs: list of outputs: stdout, stderr, or file paths
	Outputs []string `mapstructure:"outputs" json:"outputs"`

	// Rotation controls file rotation when writing to files
	Rotation RotationConfig `mapstructure:"rotation" json:"rotation"`
	// Development toggles development-friendly logging options
	Development bool `mapstructure:"development" json:"development"`
}

// RotationConfig controls log file rotation for file outputs.
type RotationConfig struct {
	Enable     bool   `mapstructure:"enable" json:"enable"`
	Filename   string `mapstructure:"filename" json:"filename"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups" json:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days" json:"max_age_days"`
	Compress   bool   `mapstructure:"compress" json:"compress"`
}

// MetricsConfig controls the HTTP endpoint serving /metrics and /status.
type MetricsConfig struct {
	// Listen address, empty disables the endpoint
	Listen string `mapstructure:"listen" json:"listen"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Log: LogConfig{
			Level:       "info",
			Format:      "console",
			Outputs:     []string{"stdout"},
			Development: true,
			Rotation: RotationConfig{
				Enable:     false,
				Filename:   "logs/netplay.log",
				MaxSizeMB:  50,
				MaxBackups: 3,
				MaxAgeDays: 28,
				Compress:   true,
			},
		},
		Session: SessionConfig{
			Host:       "localhost",
			Port:       DefaultPort,
			PlayerName: "Player",
		},
		Net: NetConfig{
			Transport:        "tcp",
			ConnectTimeoutMS: 3000,
			PollIntervalMS:   1,
			PingIntervalMS:   1000,
			InputIntervalMS:  5,
			SendRetries:      15,
			SendBackoffMS:    10,
		},
		Metrics: MetricsConfig{Listen: ""},
	}
}

// Load reads configuration from the provided path (if non-empty),
// otherwise it searches common locations and supports environment overrides.
// Environment variables use the prefix NETPLAY and `.`/`-` are replaced with `_`.
// Example: NETPLAY_LOG_LEVEL=debug
func Load(path string) (*Config, error) {
	cfg := Default()

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("NETPLAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	// seed defaults for viper so env-only configs work
	v.SetDefault("log.level", cfg.Log.Level)
	v.SetDefault("log.format", cfg.Log.Format)
	v.SetDefault("log.outputs", cfg.Log.Outputs)
	v.SetDefault("log.development", cfg.Log.Development)
	v.SetDefault("log.rotation.enable", cfg.Log.Rotation.Enable)
	v.SetDefault("log.rotation.filename", cfg.Log.Rotation.Filename)
	v.SetDefault("log.rotation.max_size_mb", cfg.Log.Rotation.MaxSizeMB)
	v.SetDefault("log.rotation.max_backups", cfg.Log.Rotation.MaxBackups)
	v.SetDefault("log.rotation.max_age_days", cfg.Log.Rotation.MaxAgeDays)
	v.SetDefault("log.rotation.compress", cfg.Log.Rotation.Compress)
	// Session defaults
	v.SetDefault("session.host", cfg.Session.Host)
	v.SetDefault("session.port", cfg.Session.Port)
	v.SetDefault("session.player_name", cfg.Session.PlayerName)
	v.SetDefault("session.password", cfg.Session.Password)
	v.SetDefault("session.spectator", cfg.Session.Spectator)
	// Net defaults
	v.SetDefault("net.transport", cfg.Net.Transport)
	v.SetDefault("net.connect_timeout_ms", cfg.Net.ConnectTimeoutMS)
	v.SetDefault("net.poll_interval_ms", cfg.Net.PollIntervalMS)
	v.SetDefault("net.ping_interval_ms", cfg.Net.PingIntervalMS)
	v.SetDefault("net.input_interval_ms", cfg.Net.InputIntervalMS)
	v.SetDefault("net.send_retries", cfg.Net.SendRetries)
	v.SetDefault("net.send_backoff_ms", cfg.Net.SendBackoffMS)
	// Metrics defaults
	v.SetDefault("metrics.listen", cfg.Metrics.Listen)

	// Choose config file
	if path == "" {
		// Allow override via env var
		if envPath := os.Getenv("NETPLAY_CONFIG"); envPath != "" {
			path = envPath
		}
	}

	if path != "" {
		v.SetConfigFile(path)
	} else {
		// Search common locations with base name `netplay`
		v.SetConfigName("netplay")
		v.AddConfigPath(".")
		v.AddConfigPath("./configs")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".netplay"))
		}
	}

	// Read config file if present; if not found, continue with defaults/env
	if err := v.ReadInConfig(); err != nil {
		var viperConfigFileNotFound viper.ConfigFileNotFoundError
		if !errors.As(err, &viperConfigFileNotFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	lvl := strings.ToLower(strings.TrimSpace(c.Log.Level))
	switch lvl {
	case "debug", "info", "warn", "warning", "error":
		// ok
	default:
		return fmt.Errorf("invalid log.level: %q", c.Log.Level)
	}

	if c.Log.Format == "" {
		c.Log.Format = "console"
	}
	if len(c.Log.Outputs) == 0 {
		c.Log.Outputs = []string{"stdout"}
	}
	if err := c.Session.Validate(); err != nil {
		return err
	}
	return c.Net.normalize()
}

// MustLoad is a convenience that panics on error.
func MustLoad(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err)
	}
	return cfg
}

// ms converts a millisecond count from config into a Duration.
func ms(n int) time.Duration { return time.Duration(n) * time.Millisecond }
