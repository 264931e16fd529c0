package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marmos91/dittochat/pkg/adapter/websocket"
	"github.com/marmos91/dittochat/pkg/journal/file"
)

// Defaults shared with the CLI flag definitions.
const (
	DefaultHost        = "0.0.0.0"
	DefaultPort        = 5000
	DefaultMaxClients  = 5
	DefaultTickRate    = 30
	DefaultMetricsPort = 9090
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", false, nil) are replaced with defaults
//   - Explicit values are preserved
//   - Every journal section gets its defaults, so generated files show them all
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyServerDefaults(&cfg.Server)
	applyJournalDefaults(&cfg.Journal)
	applyWebSocketDefaults(&cfg.Adapters.WebSocket, &cfg.Server)
	applyMetricsDefaults(&cfg.Metrics)
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

// applyServerDefaults sets chat server defaults.
func applyServerDefaults(cfg *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.MaxClients == 0 {
		cfg.MaxClients = DefaultMaxClients
	}
	if cfg.TickRate == 0 {
		cfg.TickRate = DefaultTickRate
	}
	if cfg.InactivityTimeout == 0 {
		cfg.InactivityTimeout = 300 * time.Second
	}
	if cfg.AcceptTimeout == 0 {
		cfg.AcceptTimeout = 2 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		cfg.WriteTimeout = 10 * time.Second
	}
	if cfg.MaxLineLength == 0 {
		cfg.MaxLineLength = 1024
	}
	if cfg.OutboundQueueSize == 0 {
		cfg.OutboundQueueSize = 64
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 30 * time.Second
	}
}

// applyJournalDefaults sets journal store defaults.
func applyJournalDefaults(cfg *JournalConfig) {
	if cfg.Type == "" {
		cfg.Type = "file"
	}

	// Initialize maps if nil
	if cfg.File == nil {
		cfg.File = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}

	setDefault(cfg.File, "dir", os.TempDir())
	setDefault(cfg.File, "prefix", file.DefaultPrefix)
	setDefault(cfg.Badger, "db_path", filepath.Join(os.TempDir(), "dittochat-journal"))
	setDefault(cfg.S3, "region", "us-east-1")
	setDefault(cfg.S3, "key_prefix", "dittochat/journal/")
	setDefault(cfg.S3, "flush_interval", "10s")
}

func setDefault(options map[string]any, key string, value any) {
	if _, ok := options[key]; !ok {
		options[key] = value
	}
}

// applyWebSocketDefaults sets WebSocket adapter defaults. The adapter stays
// disabled unless enabled explicitly.
func applyWebSocketDefaults(cfg *websocket.WebSocketConfig, server *ServerConfig) {
	if cfg.Host == "" {
		cfg.Host = server.Host
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.Path == "" {
		cfg.Path = "/chat"
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = DefaultMetricsPort
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Testing
//   - Documentation
func GetDefaultConfig() *Config {
	cfg := &Config{}
	ApplyDefaults(cfg)
	return cfg
}
