// Package config provides application configuration with multi-source priority.
//
// Configuration sources (highest to lowest priority):
//  1. Environment variables (FILEM_*)
//  2. Config file (~/.filem/config.yaml)
//  3. Default values
//
// Validation uses sentinel errors so callers can check categories with
// errors.Is().
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

var (
	// ErrMissingAPIKey indicates the model API key is not set.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrInvalidModelName indicates the model name is empty or malformed.
	ErrInvalidModelName = errors.New("invalid model name")

	// ErrInvalidMaxTurns indicates the turn limit is out of range.
	ErrInvalidMaxTurns = errors.New("invalid max turns")

	// ErrInvalidWorkspace indicates no usable workspace root is configured.
	ErrInvalidWorkspace = errors.New("invalid workspace root")

	// ErrInvalidAddr indicates the listen address is malformed.
	ErrInvalidAddr = errors.New("invalid listen address")
)

const (
	// DefaultAddr is the default HTTP listen address.
	// Port matches the original server deployment.
	DefaultAddr = "127.0.0.1:5321"

	// DefaultModelName is the default chat model.
	DefaultModelName = "deepseek-chat"

	// DefaultMaxTurns bounds the orchestrator's tool-call cycles per turn.
	DefaultMaxTurns = 8

	// MaxAllowedTurns is the absolute ceiling for MaxTurns.
	MaxAllowedTurns = 64

	// DefaultRatePerSecond is the sustained model-call rate.
	DefaultRatePerSecond = 10

	// DefaultRateBurst is the model-call burst size.
	DefaultRateBurst = 30
)

// Trace holds OpenTelemetry export settings.
type Trace struct {
	Enabled     bool   `mapstructure:"enabled"`
	Endpoint    string `mapstructure:"endpoint"`     // OTLP HTTP endpoint, host:port
	ServiceName string `mapstructure:"service_name"` // service tag, default "filem"
	Environment string `mapstructure:"environment"`  // deployment.environment tag
}

// Config stores application configuration.
type Config struct {
	// Model access. BaseURL targets any OpenAI-compatible endpoint; the
	// original deployment used DeepSeek.
	ModelName string `mapstructure:"model_name"`
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`

	// Orchestration.
	MaxTurns      int     `mapstructure:"max_turns"`
	RatePerSecond float64 `mapstructure:"rate_per_second"`
	RateBurst     int     `mapstructure:"rate_burst"`

	// Transport.
	Addr string `mapstructure:"addr"`

	// Workspace roots tool paths are confined to. Empty means the process
	// working directory only.
	WorkspaceRoots []string `mapstructure:"workspace_roots"`

	// Logging.
	LogLevel string `mapstructure:"log_level"`
	LogJSON  bool   `mapstructure:"log_json"`

	// Tracing.
	Trace Trace `mapstructure:"trace"`
}

// Dir returns the config directory (~/.filem), creating it if needed.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	dir := filepath.Join(home, ".filem")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("creating config directory: %w", err)
	}
	return dir, nil
}

// Load reads configuration from defaults, the config file, and environment
// variables, in ascending priority.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("addr", DefaultAddr)
	v.SetDefault("model_name", DefaultModelName)
	v.SetDefault("api_key", "")
	v.SetDefault("base_url", "")
	v.SetDefault("workspace_roots", []string{})
	v.SetDefault("max_turns", DefaultMaxTurns)
	v.SetDefault("rate_per_second", DefaultRatePerSecond)
	v.SetDefault("rate_burst", DefaultRateBurst)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_json", false)
	v.SetDefault("trace.enabled", false)
	v.SetDefault("trace.endpoint", "localhost:4318")
	v.SetDefault("trace.service_name", "filem")
	v.SetDefault("trace.environment", "dev")

	if dir, err := Dir(); err == nil {
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config file: %w", err)
			}
		}
	}

	v.SetEnvPrefix("FILEM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}

// Validate checks fields required by every mode.
func (c *Config) Validate() error {
	if c.ModelName == "" {
		return fmt.Errorf("%w: model name is empty", ErrInvalidModelName)
	}
	if c.MaxTurns <= 0 || c.MaxTurns > MaxAllowedTurns {
		return fmt.Errorf("%w: %d (must be 1..%d)", ErrInvalidMaxTurns, c.MaxTurns, MaxAllowedTurns)
	}
	for _, root := range c.WorkspaceRoots {
		if strings.TrimSpace(root) == "" {
			return fmt.Errorf("%w: empty workspace root entry", ErrInvalidWorkspace)
		}
	}
	return nil
}

// ValidateServe checks fields required by the HTTP server mode, which needs
// model access on top of the base validation.
func (c *Config) ValidateServe() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: set FILEM_API_KEY or api_key in config", ErrMissingAPIKey)
	}
	if c.Addr == "" || !strings.Contains(c.Addr, ":") {
		return fmt.Errorf("%w: %q", ErrInvalidAddr, c.Addr)
	}
	return nil
}
