package config

import (
	"os"
	"testing"
	"time"
)

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Server.Port != DefaultPort {
		t.Errorf("Expected port %d, got %d", DefaultPort, cfg.Server.Port)
	}
	if cfg.Server.MaxClients != DefaultMaxClients {
		t.Errorf("Expected max_clients %d, got %d", DefaultMaxClients, cfg.Server.MaxClients)
	}
	if cfg.Server.WriteTimeout != 10*time.Second {
		t.Errorf("Expected write_timeout 10s, got %v", cfg.Server.WriteTimeout)
	}
	if cfg.Server.MaxLineLength != 1024 {
		t.Errorf("Expected max_line_length 1024, got %d", cfg.Server.MaxLineLength)
	}
	if cfg.Server.OutboundQueueSize != 64 {
		t.Errorf("Expected outbound_queue_size 64, got %d", cfg.Server.OutboundQueueSize)
	}
	if cfg.Metrics.Port != DefaultMetricsPort {
		t.Errorf("Expected metrics port %d, got %d", DefaultMetricsPort, cfg.Metrics.Port)
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Logging: LoggingConfig{Level: "debug", Format: "json", Output: "stderr"},
		Server: ServerConfig{
			Host:              "127.0.0.1",
			Port:              7000,
			MaxClients:        50,
			InactivityTimeout: time.Minute,
		},
		Journal: JournalConfig{
			Type: "file",
			File: map[string]any{"dir": "/srv/chat"},
		},
	}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected level normalized to 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Output != "stderr" {
		t.Errorf("Expected output 'stderr', got %q", cfg.Logging.Output)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 7000 || cfg.Server.MaxClients != 50 {
		t.Errorf("Explicit server values were overwritten: %+v", cfg.Server)
	}
	if cfg.Server.InactivityTimeout != time.Minute {
		t.Errorf("Expected inactivity_timeout 1m, got %v", cfg.Server.InactivityTimeout)
	}
	if cfg.Journal.File["dir"] != "/srv/chat" {
		t.Errorf("Expected journal dir preserved, got %v", cfg.Journal.File["dir"])
	}
}

func TestApplyDefaults_JournalSections(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Journal.Type != "file" {
		t.Errorf("Expected journal type 'file', got %q", cfg.Journal.Type)
	}
	if cfg.Journal.File["dir"] != os.TempDir() {
		t.Errorf("Expected journal dir %q, got %v", os.TempDir(), cfg.Journal.File["dir"])
	}
	if cfg.Journal.File["prefix"] != "dittochat" {
		t.Errorf("Expected journal prefix 'dittochat', got %v", cfg.Journal.File["prefix"])
	}
	if _, ok := cfg.Journal.Badger["db_path"]; !ok {
		t.Error("Expected badger db_path default")
	}
	if cfg.Journal.S3["flush_interval"] != "10s" {
		t.Errorf("Expected S3 flush_interval '10s', got %v", cfg.Journal.S3["flush_interval"])
	}
}

func TestApplyDefaults_WebSocketInheritsHost(t *testing.T) {
	cfg := &Config{Server: ServerConfig{Host: "10.1.2.3"}}
	ApplyDefaults(cfg)

	ws := cfg.Adapters.WebSocket
	if ws.Host != "10.1.2.3" {
		t.Errorf("Expected WebSocket host inherited from server, got %q", ws.Host)
	}
	if ws.Port != 8080 {
		t.Errorf("Expected WebSocket port 8080, got %d", ws.Port)
	}
	if ws.Path != "/chat" {
		t.Errorf("Expected WebSocket path '/chat', got %q", ws.Path)
	}
	if ws.Enabled {
		t.Error("WebSocket adapter must stay disabled unless enabled explicitly")
	}
}
