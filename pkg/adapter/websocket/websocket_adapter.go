// Package websocket serves the chat protocol over WebSocket. One text frame
// carries one line in each direction; everything else (greeting, login,
// commands, capacity bound) is identical to the TCP transport because both
// feed the same server.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/marmos91/dittochat/internal/logger"
	"github.com/marmos91/dittochat/pkg/adapter"
)

// WebSocketConfig holds configuration parameters for the WebSocket transport.
type WebSocketConfig struct {
	// Enabled controls whether the WebSocket adapter is started.
	Enabled bool `mapstructure:"enabled"`

	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the HTTP port to listen on. 0 picks a free port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// Path is the route upgraded to WebSocket.
	Path string `mapstructure:"path"`

	// WriteTimeout is the deadline applied to each outbound frame.
	WriteTimeout time.Duration `mapstructure:"-"`

	// MaxLineLength is the largest accepted inbound frame in bytes.
	MaxLineLength int `mapstructure:"-"`
}

func (c *WebSocketConfig) applyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.Path == "" {
		c.Path = "/chat"
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = 1024
	}
}

// WebSocketAdapter implements adapter.Adapter on top of an HTTP server.
//
// The chi router exposes a single upgrade route at Path. After the upgrade
// the HTTP handler returns immediately: the hijacked connection is handed to
// the Admitter and owned by the chat server from then on, so http.Server
// shutdown never waits on chat sessions.
type WebSocketAdapter struct {
	config   WebSocketConfig
	upgrader websocket.Upgrader

	mu       sync.Mutex
	listener net.Listener
	server   *http.Server
	admitter adapter.Admitter

	shutdownOnce sync.Once
	shutdown     chan struct{}
}

var _ adapter.Adapter = (*WebSocketAdapter)(nil)

// New creates a WebSocket adapter. The adapter does not bind until Listen.
func New(config WebSocketConfig) *WebSocketAdapter {
	config.applyDefaults()

	a := &WebSocketAdapter{
		config: config,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Chat clients are not browsers sharing cookies with another origin
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		shutdown: make(chan struct{}),
	}

	a.server = &http.Server{
		Handler:           a.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return a
}

// Router returns the HTTP routes served by the adapter.
func (a *WebSocketAdapter) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get(a.config.Path, a.handleUpgrade)
	return r
}

func (a *WebSocketAdapter) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	a.mu.Lock()
	admitter := a.admitter
	a.mu.Unlock()

	if admitter == nil {
		http.Error(w, "chat server not running", http.StatusServiceUnavailable)
		return
	}

	ws, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already replied to the client
		logger.Debug("WebSocket upgrade from %s failed: %v", r.RemoteAddr, err)
		return
	}

	logger.Debug("WebSocket connection accepted from %s", r.RemoteAddr)
	admitter.Admit(NewWebSocketConnection(ws, a.config.WriteTimeout, a.config.MaxLineLength))
}

// Listen binds the HTTP listener.
func (a *WebSocketAdapter) Listen() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	select {
	case <-a.shutdown:
		return errors.New("WebSocket adapter is stopped")
	default:
	}
	if a.listener != nil {
		return nil
	}

	addr := net.JoinHostPort(a.config.Host, strconv.Itoa(a.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create WebSocket listener on %s: %w", addr, err)
	}
	a.listener = ln
	logger.Info("WebSocket chat listener bound on ws://%s%s", ln.Addr(), a.config.Path)
	return nil
}

// Serve runs the HTTP server until ctx is cancelled or Stop is called.
func (a *WebSocketAdapter) Serve(ctx context.Context, admitter adapter.Admitter) error {
	if err := a.Listen(); err != nil {
		return err
	}

	a.mu.Lock()
	a.admitter = admitter
	ln := a.listener
	a.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			logger.Debug("WebSocket shutdown signal received: %v", ctx.Err())
			_ = a.Stop()
		case <-a.shutdown:
		}
	}()

	err := a.server.Serve(ln)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("WebSocket server failed: %w", err)
	}
	return nil
}

// Stop shuts the HTTP server down. Already admitted connections are not
// affected.
func (a *WebSocketAdapter) Stop() error {
	var err error
	a.shutdownOnce.Do(func() {
		close(a.shutdown)

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if serr := a.server.Shutdown(ctx); serr != nil {
			err = fmt.Errorf("WebSocket server shutdown error: %w", serr)
		}

		// Shutdown only closes listeners passed to Serve
		a.mu.Lock()
		if a.listener != nil {
			_ = a.listener.Close()
		}
		a.mu.Unlock()
	})
	return err
}

// Addr returns the bound address, or nil before Listen.
func (a *WebSocketAdapter) Addr() net.Addr {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.listener == nil {
		return nil
	}
	return a.listener.Addr()
}

// Port returns the bound port, or the configured one before Listen.
func (a *WebSocketAdapter) Port() int {
	if addr, ok := a.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return a.config.Port
}

// Protocol returns "WebSocket".
func (a *WebSocketAdapter) Protocol() string {
	return "WebSocket"
}
