package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittochat/pkg/adapter/websocket"
	"github.com/spf13/viper"
)

// Config represents the complete DittoChat configuration.
//
// This structure captures all configurable aspects of the DittoChat server including:
//   - Logging configuration
//   - Chat server settings (bind address, capacity, timers)
//   - Journal store selection and configuration (store-specific)
//   - Optional protocol adapters
//   - Metrics endpoint
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOCHAT_*)
//  3. Configuration file (YAML or TOML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each journal store defines its own configuration type. The Config struct
// contains type-specific sections (e.g., journal.file, journal.s3) and only
// the section matching the selected type is used.
type Config struct {
	// Logging controls operational log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// Server contains the chat server settings and the TCP listener
	Server ServerConfig `mapstructure:"server"`

	// Journal specifies where the chat log is kept
	Journal JournalConfig `mapstructure:"journal"`

	// Adapters contains optional protocol adapter configurations
	Adapters AdaptersConfig `mapstructure:"adapters"`

	// Metrics controls the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// ServerConfig contains the chat server settings.
type ServerConfig struct {
	// Host is the TCP bind address
	Host string `mapstructure:"host" validate:"required"`

	// Port is the TCP port
	Port int `mapstructure:"port" validate:"min=1,max=65535"`

	// MaxClients bounds the number of connected clients across all adapters
	MaxClients int `mapstructure:"max_clients" validate:"required,gt=0"`

	// TickRate is the number of housekeeping ticks per second
	TickRate int `mapstructure:"tick_rate" validate:"required,gt=0,lte=1000"`

	// InactivityTimeout is how long a client may stay silent before it is kicked
	InactivityTimeout time.Duration `mapstructure:"inactivity_timeout" validate:"required,gt=0"`

	// AcceptTimeout bounds a single accept wait
	AcceptTimeout time.Duration `mapstructure:"accept_timeout" validate:"required,gt=0"`

	// WriteTimeout is the deadline for each line written to a client
	WriteTimeout time.Duration `mapstructure:"write_timeout" validate:"required,gt=0"`

	// MaxLineLength is the largest accepted inbound line in bytes
	MaxLineLength int `mapstructure:"max_line_length" validate:"required,gt=0"`

	// OutboundQueueSize bounds the broadcast lines pending per client
	OutboundQueueSize int `mapstructure:"outbound_queue_size" validate:"required,gt=0"`

	// ShutdownTimeout is the maximum time to wait for graceful shutdown
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0"`
}

// JournalConfig specifies journal store configuration.
//
// The Type field determines which store implementation is used.
// Only the corresponding type-specific configuration section is used.
type JournalConfig struct {
	// Type specifies which journal store implementation to use
	// Valid values: memory, file, badger, s3
	Type string `mapstructure:"type" validate:"required,oneof=memory file badger s3"`

	// Quiet stops mirroring journal lines to the operational logger
	Quiet bool `mapstructure:"quiet"`

	// File contains file-specific configuration
	// Only used when Type = "file"
	File map[string]any `mapstructure:"file"`

	// Badger contains BadgerDB-specific configuration
	// Only used when Type = "badger"
	Badger map[string]any `mapstructure:"badger"`

	// S3 contains S3-specific configuration
	// Only used when Type = "s3"
	S3 map[string]any `mapstructure:"s3"`
}

// AdaptersConfig contains optional protocol adapter configurations.
// The TCP adapter is always enabled and configured by ServerConfig.
type AdaptersConfig struct {
	// WebSocket uses the websocket.WebSocketConfig type directly to avoid duplication.
	WebSocket websocket.WebSocketConfig `mapstructure:"websocket"`
}

// MetricsConfig controls the Prometheus HTTP endpoint.
type MetricsConfig struct {
	// Enabled starts the metrics server
	Enabled bool `mapstructure:"enabled"`

	// Port is the HTTP port for /metrics and /healthz
	Port int `mapstructure:"port" validate:"min=0,max=65535"`
}

// Load loads configuration from file, environment, and defaults.
//
// Configuration precedence (highest to lowest):
//  1. Environment variables (DITTOCHAT_*)
//  2. Configuration file
//  3. Default values
//
// Parameters:
//   - configPath: Path to config file (empty string uses default location)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: Configuration loading or validation error
func Load(configPath string) (*Config, error) {
	cfg, err := LoadUnvalidated(configPath)
	if err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadUnvalidated is Load without the validation step. The CLI uses it so
// that flag overrides are applied before the configuration is validated.
func LoadUnvalidated(configPath string) (*Config, error) {
	v := viper.New()

	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)
	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use DITTOCHAT_ prefix and underscores
	// Example: DITTOCHAT_SERVER_MAX_CLIENTS=10
	v.SetEnvPrefix("DITTOCHAT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only affects keys viper already knows about
	for _, key := range envKeys {
		_ = v.BindEnv(key)
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittochat/config.{yaml,toml}
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// envKeys are the scalar settings that can be set from the environment
// without a config file.
var envKeys = []string{
	"logging.level",
	"logging.format",
	"logging.output",
	"server.host",
	"server.port",
	"server.max_clients",
	"server.tick_rate",
	"server.inactivity_timeout",
	"server.accept_timeout",
	"server.write_timeout",
	"server.max_line_length",
	"server.outbound_queue_size",
	"server.shutdown_timeout",
	"journal.type",
	"journal.quiet",
	"adapters.websocket.enabled",
	"adapters.websocket.host",
	"adapters.websocket.port",
	"adapters.websocket.path",
	"metrics.enabled",
	"metrics.port",
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || errors.Is(err, fs.ErrNotExist) {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittochat")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	return filepath.Join(home, ".config", "dittochat")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
