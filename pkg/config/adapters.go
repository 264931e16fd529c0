package config

import (
	"fmt"

	"github.com/marmos91/dittochat/pkg/adapter"
	"github.com/marmos91/dittochat/pkg/adapter/tcp"
	"github.com/marmos91/dittochat/pkg/adapter/websocket"
	"github.com/marmos91/dittochat/pkg/chat"
	"github.com/marmos91/dittochat/pkg/metrics"
	"github.com/marmos91/dittochat/pkg/server"
)

// CreateAdapters creates all enabled protocol adapters from the configuration.
//
// The TCP adapter is always created from the server section. Optional
// adapters are appended when enabled and inherit the line limits and write
// timeout of the server section.
//
// Parameters:
//   - cfg: The complete DittoChat configuration
//
// Returns:
//   - []adapter.Adapter: Adapters ready to be added to the server
//   - error: Any error during adapter creation
func CreateAdapters(cfg *Config) ([]adapter.Adapter, error) {
	adapters := []adapter.Adapter{
		tcp.New(tcp.TCPConfig{
			Host:          cfg.Server.Host,
			Port:          cfg.Server.Port,
			AcceptTimeout: cfg.Server.AcceptTimeout,
			WriteTimeout:  cfg.Server.WriteTimeout,
			MaxLineLength: cfg.Server.MaxLineLength,
		}),
	}

	if cfg.Adapters.WebSocket.Enabled {
		wsCfg := cfg.Adapters.WebSocket
		wsCfg.WriteTimeout = cfg.Server.WriteTimeout
		wsCfg.MaxLineLength = cfg.Server.MaxLineLength
		adapters = append(adapters, websocket.New(wsCfg))
	}

	return adapters, nil
}

// ChatServerConfig converts the server section to a server.Config.
func ChatServerConfig(cfg *ServerConfig) server.Config {
	return server.Config{
		Host:              cfg.Host,
		Port:              cfg.Port,
		MaxClients:        cfg.MaxClients,
		TickRate:          cfg.TickRate,
		InactivityTimeout: cfg.InactivityTimeout,
		OutboundQueueSize: cfg.OutboundQueueSize,
		ShutdownTimeout:   cfg.ShutdownTimeout,
	}
}

// CreateServer builds a ChatServer with every enabled adapter attached.
func CreateServer(cfg *Config, j chat.Journal, m metrics.ChatMetrics) (*server.ChatServer, error) {
	adapters, err := CreateAdapters(cfg)
	if err != nil {
		return nil, err
	}

	srv := server.New(ChatServerConfig(&cfg.Server), j, m)
	for _, a := range adapters {
		if err := srv.AddAdapter(a); err != nil {
			return nil, fmt.Errorf("failed to add %s adapter: %w", a.Protocol(), err)
		}
	}
	return srv, nil
}
