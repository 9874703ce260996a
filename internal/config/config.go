// ABOUTME: Configuration loading and parsing for market-hub
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete market-hub configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database"`
	Stores    StoresConfig    `yaml:"stores"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
}

// DatabaseConfig selects and locates the persistence backend.
// Driver "file" keeps one JSON document per collection under Path (a
// directory); driver "sqlite" keeps them in an embedded database at Path
// (a file).
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// StoresConfig holds store liveness and sync timing configuration
type StoresConfig struct {
	LivenessThreshold time.Duration `yaml:"-"`
	SyncTimeout       time.Duration `yaml:"-"`

	// Raw string values for YAML unmarshaling
	LivenessThresholdRaw string `yaml:"liveness_threshold"`
	SyncTimeoutRaw       string `yaml:"sync_timeout"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The HTTP address is required unless Tailscale provides the listener
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	switch c.Database.Driver {
	case "", "file", "sqlite":
	default:
		return fmt.Errorf("database.driver must be \"file\" or \"sqlite\", got %q", c.Database.Driver)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Stores.LivenessThresholdRaw != "" {
		cfg.Stores.LivenessThreshold, err = time.ParseDuration(cfg.Stores.LivenessThresholdRaw)
		if err != nil {
			return fmt.Errorf("parsing liveness_threshold %q: %w", cfg.Stores.LivenessThresholdRaw, err)
		}
	}

	if cfg.Stores.SyncTimeoutRaw != "" {
		cfg.Stores.SyncTimeout, err = time.ParseDuration(cfg.Stores.SyncTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing sync_timeout %q: %w", cfg.Stores.SyncTimeoutRaw, err)
		}
	}

	return nil
}
