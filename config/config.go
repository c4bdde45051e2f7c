package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/kastheco/opsdash/log"
)

const (
	ConfigFileName = "config.toml"
	AuditFileName  = "audit.db"

	defaultRequestTimeout = 30 * time.Second
)

// Environment variables that override the file.
const (
	EnvAPIURL   = "OPSDASH_API_URL"
	EnvAPIToken = "OPSDASH_API_TOKEN"
)

// ErrNoAPIURL is returned by Validate when no backend is configured.
var ErrNoAPIURL = errors.New("no api_url configured (set it in config.toml or " + EnvAPIURL + ")")

// GetConfigDir returns ~/.config/opsdash.
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get config home directory: %w", err)
	}
	return filepath.Join(homeDir, ".config", "opsdash"), nil
}

// Config represents the application configuration
type Config struct {
	// APIURL is the base URL of the project backend that fronts the planner integration.
	APIURL string `toml:"api_url"`
	// APIToken is sent as a bearer token on every request.
	APIToken string `toml:"api_token,omitempty"`
	// RequestTimeout is a duration string such as "30s".
	RequestTimeout string `toml:"request_timeout,omitempty"`
	// TelemetryEnabled controls whether crash reporting via Sentry is active.
	// Defaults to true when not set.
	TelemetryEnabled *bool `toml:"telemetry_enabled"`
	// SentryDSN is where crash reports go. Reporting is off when empty.
	SentryDSN string `toml:"sentry_dsn,omitempty"`
	// AuditDB is the sqlite file recording connection lifecycle events.
	// An explicit empty string disables the audit log.
	AuditDB string `toml:"audit_db"`
	// DefaultProject is used when a command is given no project id.
	DefaultProject string `toml:"default_project,omitempty"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	trueVal := true
	cfg := &Config{
		RequestTimeout:   defaultRequestTimeout.String(),
		TelemetryEnabled: &trueVal,
	}
	if dir, err := GetConfigDir(); err == nil {
		cfg.AuditDB = filepath.Join(dir, AuditFileName)
	} else {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
	}
	return cfg
}

// IsTelemetryEnabled returns whether Sentry telemetry is enabled.
// Defaults to true when the field is not set.
func (c *Config) IsTelemetryEnabled() bool {
	if c.TelemetryEnabled == nil {
		return true
	}
	return *c.TelemetryEnabled
}

// Timeout parses RequestTimeout, falling back to 30s when unset or invalid.
func (c *Config) Timeout() time.Duration {
	if strings.TrimSpace(c.RequestTimeout) == "" {
		return defaultRequestTimeout
	}
	d, err := time.ParseDuration(c.RequestTimeout)
	if err != nil || d <= 0 {
		log.WarningLog.Printf("invalid request_timeout %q, using %s", c.RequestTimeout, defaultRequestTimeout)
		return defaultRequestTimeout
	}
	return d
}

// Validate reports settings that make the client unusable.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIURL) == "" {
		return ErrNoAPIURL
	}
	return nil
}

// ResolveProject returns arg, or the configured default project when arg is empty.
func (c *Config) ResolveProject(arg string) (string, error) {
	if arg != "" {
		return arg, nil
	}
	if c.DefaultProject != "" {
		return c.DefaultProject, nil
	}
	return "", errors.New("no project given and no default_project configured")
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvAPIURL); v != "" {
		c.APIURL = v
	}
	if v := os.Getenv(EnvAPIToken); v != "" {
		c.APIToken = v
	}
}

// LoadConfig reads config.toml from the config directory. It never fails:
// problems are logged and defaults used. Environment overrides are applied last.
func LoadConfig() *Config {
	configDir, err := GetConfigDir()
	if err != nil {
		log.ErrorLog.Printf("failed to get config directory: %v", err)
		cfg := DefaultConfig()
		cfg.applyEnv()
		return cfg
	}

	configPath := filepath.Join(configDir, ConfigFileName)
	cfg, err := LoadTOMLConfigFrom(configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			// Create and save default config if file doesn't exist
			cfg = DefaultConfig()
			if saveErr := SaveTOMLConfigTo(cfg, configPath); saveErr != nil {
				log.WarningLog.Printf("failed to save default config: %v", saveErr)
			}
		} else {
			log.ErrorLog.Printf("failed to load config file: %v", err)
			cfg = DefaultConfig()
		}
	}

	cfg.applyEnv()
	return cfg
}
