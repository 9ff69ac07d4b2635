// Package config loads gateway configuration from a .env file, environment
// variables, and an optional JSONC config file. Configuration is read once
// at startup; environment variables win over the file.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/tidwall/jsonc"
)

// Duration wraps time.Duration so config files can carry values like "5s".
type Duration time.Duration

// UnmarshalJSON parses a Go duration string.
func (d *Duration) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalJSON renders the duration as a string.
func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// Std returns the wrapped time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// Config holds all external configuration.
type Config struct {
	// SessionID names the logical session and keys its credential record.
	SessionID string `json:"session"`
	// Port is the HTTP listen port.
	Port int `json:"port"`
	// AdminSecret gates the pairing and event endpoints. Empty disables
	// them.
	AdminSecret string `json:"adminSecret"`
	// Transport names the registered transport dialer to use.
	Transport string `json:"transport"`
	// StateDir is where durable state (credential records) lives.
	StateDir string `json:"stateDir"`
	// CountryCode is prepended to bare national numbers.
	CountryCode string `json:"countryCode"`
	// LogLevel is DEBUG, INFO, WARN, ERROR or FATAL.
	LogLevel string `json:"logLevel"`
	// PrettyLogs switches to human-readable console output.
	PrettyLogs bool `json:"prettyLogs"`

	// RequestTimeout bounds recipient checks and dispatch calls.
	RequestTimeout Duration `json:"requestTimeout"`
	// ReconnectInterval is the initial delay before reconnecting after a
	// recoverable close.
	ReconnectInterval Duration `json:"reconnectInterval"`
	// DialRetryInterval is the initial delay after a pre-connect failure.
	DialRetryInterval Duration `json:"dialRetryInterval"`
}

// fileName is the optional config file looked up in the state directory and
// the working directory.
const fileName = "msggate.jsonc"

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		SessionID:         "default",
		Port:              8080,
		Transport:         "loopback",
		CountryCode:       "966",
		LogLevel:          "INFO",
		RequestTimeout:    Duration(40 * time.Second),
		ReconnectInterval: Duration(5 * time.Second),
		DialRetryInterval: Duration(10 * time.Second),
	}
}

// Load builds the configuration: defaults, then the optional JSONC file,
// then environment variables (a .env file in the working directory is read
// into the environment first). stateDir overrides the state directory and
// wins over MSGGATE_STATE_DIR; empty means resolve the default.
func Load(stateDir string) (*Config, error) {
	// Missing .env is the normal case.
	_ = godotenv.Load()

	cfg := Default()
	cfg.StateDir = DefaultStateDir()

	// An explicit state dir must be known before the file lookup.
	if dir := os.Getenv("MSGGATE_STATE_DIR"); dir != "" {
		cfg.StateDir = dir
	}
	if stateDir != "" {
		cfg.StateDir = stateDir
	}

	for _, path := range []string{
		filepath.Join(cfg.StateDir, fileName),
		fileName,
	} {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	applyEnv(cfg)
	if stateDir != "" {
		cfg.StateDir = stateDir
	}

	if cfg.Port <= 0 || cfg.Port > 65535 {
		return nil, fmt.Errorf("invalid port %d", cfg.Port)
	}
	return cfg, nil
}

// loadFile merges a single JSONC config file if it exists.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

// applyEnv overrides config fields from MSGGATE_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MSGGATE_SESSION"); v != "" {
		cfg.SessionID = v
	}
	if v := os.Getenv("MSGGATE_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Port = port
		}
	}
	if v := os.Getenv("MSGGATE_ADMIN_SECRET"); v != "" {
		cfg.AdminSecret = v
	}
	if v := os.Getenv("MSGGATE_TRANSPORT"); v != "" {
		cfg.Transport = v
	}
	if v := os.Getenv("MSGGATE_STATE_DIR"); v != "" {
		cfg.StateDir = v
	}
	if v := os.Getenv("MSGGATE_COUNTRY_CODE"); v != "" {
		cfg.CountryCode = v
	}
	if v := os.Getenv("MSGGATE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("MSGGATE_PRETTY_LOGS"); v != "" {
		cfg.PrettyLogs = v == "1" || v == "true"
	}
	applyEnvDuration("MSGGATE_REQUEST_TIMEOUT", &cfg.RequestTimeout)
	applyEnvDuration("MSGGATE_RECONNECT_INTERVAL", &cfg.ReconnectInterval)
	applyEnvDuration("MSGGATE_DIAL_RETRY_INTERVAL", &cfg.DialRetryInterval)
}

func applyEnvDuration(key string, dst *Duration) {
	v := os.Getenv(key)
	if v == "" {
		return
	}
	if parsed, err := time.ParseDuration(v); err == nil {
		*dst = Duration(parsed)
	}
}

// StoragePath returns the directory the key-value store is rooted at.
func (c *Config) StoragePath() string {
	return filepath.Join(c.StateDir, "storage")
}

// EnsureStateDir creates the state directory tree.
func (c *Config) EnsureStateDir() error {
	return os.MkdirAll(c.StoragePath(), 0700)
}
