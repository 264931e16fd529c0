package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/marmos91/dittochat/internal/logger"
	"github.com/marmos91/dittochat/pkg/adapter"
)

// TCPAdapter implements the adapter.Adapter interface for the raw TCP line
// protocol.
//
// Architecture:
// TCPAdapter owns the TCP listener. Each accepted socket is wrapped in a
// TCPConnection (newline framing, write deadlines, forced shutdown) and handed
// to the Admitter. Capacity checks, registration and per-session goroutines
// are the server's business, so the adapter keeps no per-connection state.
//
// Shutdown flow:
//  1. Context cancelled or Stop() called
//  2. shutdown channel closed and listener closed
//  3. A pending Accept fails (or its deadline fires) and Serve returns nil
//
// Thread safety:
// All methods are safe for concurrent use. Shutdown uses sync.Once so Stop()
// may be called multiple times.
type TCPAdapter struct {
	// config holds the listener configuration
	config TCPConfig

	// mu guards listener between Listen and initiateShutdown
	mu       sync.Mutex
	listener *net.TCPListener

	// shutdownOnce ensures shutdown is only initiated once
	shutdownOnce sync.Once

	// shutdown is closed by initiateShutdown and monitored by Serve
	shutdown chan struct{}
}

// TCPConfig holds configuration parameters for the TCP transport.
//
// Default values (applied by New if zero):
//   - Host: 0.0.0.0
//   - AcceptTimeout: 2s
//   - WriteTimeout: 10s
//   - MaxLineLength: 1024
type TCPConfig struct {
	// Host is the bind address.
	Host string `mapstructure:"host"`

	// Port is the TCP port to listen on. 0 picks a free port.
	Port int `mapstructure:"port" validate:"min=0,max=65535"`

	// AcceptTimeout bounds a single Accept call so the loop observes
	// shutdown even when no client connects.
	AcceptTimeout time.Duration `mapstructure:"accept_timeout"`

	// WriteTimeout is the deadline applied to each outbound line. A peer that
	// stops reading fails its writes instead of stalling its session.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// MaxLineLength is the largest accepted inbound line in bytes.
	MaxLineLength int `mapstructure:"max_line_length"`
}

func (c *TCPConfig) applyDefaults() {
	if c.Host == "" {
		c.Host = "0.0.0.0"
	}
	if c.AcceptTimeout <= 0 {
		c.AcceptTimeout = 2 * time.Second
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.MaxLineLength <= 0 {
		c.MaxLineLength = 1024
	}
}

// New creates a new TCPAdapter. The adapter does not bind until Listen.
func New(config TCPConfig) *TCPAdapter {
	config.applyDefaults()

	return &TCPAdapter{
		config:   config,
		shutdown: make(chan struct{}),
	}
}

var _ adapter.Adapter = (*TCPAdapter)(nil)

// Listen binds the TCP listener.
//
// Returns an error if the address cannot be bound. This is the only fatal
// transport error and callers abort startup on it.
func (s *TCPAdapter) Listen() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	select {
	case <-s.shutdown:
		return errors.New("TCP adapter is stopped")
	default:
	}
	if s.listener != nil {
		return nil
	}

	addr := net.JoinHostPort(s.config.Host, strconv.Itoa(s.config.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create TCP listener on %s: %w", addr, err)
	}

	s.listener = ln.(*net.TCPListener)
	logger.Info("TCP chat listener bound on %s", s.listener.Addr())
	logger.Debug("TCP config: accept_timeout=%v write_timeout=%v max_line_length=%d",
		s.config.AcceptTimeout, s.config.WriteTimeout, s.config.MaxLineLength)
	return nil
}

// Serve accepts connections until ctx is cancelled or Stop is called.
//
// Every Accept is bounded by AcceptTimeout. A deadline expiry is not an error:
// the loop re-checks for shutdown and waits again. Transient accept errors are
// logged and the loop continues.
//
// Parameters:
//   - ctx: Controls the accept loop lifecycle
//   - admitter: Receives every accepted connection
//
// Returns:
//   - nil on shutdown
//   - error if the listener could not be bound
func (s *TCPAdapter) Serve(ctx context.Context, admitter adapter.Admitter) error {
	if err := s.Listen(); err != nil {
		return err
	}

	s.mu.Lock()
	ln := s.listener
	s.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			logger.Debug("TCP shutdown signal received: %v", ctx.Err())
			s.initiateShutdown()
		case <-s.shutdown:
		}
	}()

	for {
		select {
		case <-s.shutdown:
			logger.Debug("TCP accept loop stopped")
			return nil
		default:
		}

		if err := ln.SetDeadline(time.Now().Add(s.config.AcceptTimeout)); err != nil {
			// Fails only once the listener is closed
			select {
			case <-s.shutdown:
				return nil
			default:
				return fmt.Errorf("failed to set accept deadline: %w", err)
			}
		}

		tcpConn, err := ln.AcceptTCP()
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				continue
			}

			select {
			case <-s.shutdown:
				logger.Debug("TCP accept loop stopped")
				return nil
			default:
				logger.Debug("Error accepting TCP connection: %v", err)
				continue
			}
		}

		logger.Debug("TCP connection accepted from %s", tcpConn.RemoteAddr())
		admitter.Admit(NewTCPConnection(tcpConn, s.config.WriteTimeout, s.config.MaxLineLength))
	}
}

// initiateShutdown closes the shutdown channel and the listener.
//
// Thread safety:
// Safe to call multiple times and from multiple goroutines.
func (s *TCPAdapter) initiateShutdown() {
	s.shutdownOnce.Do(func() {
		logger.Debug("TCP shutdown initiated")
		close(s.shutdown)

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.listener != nil {
			if err := s.listener.Close(); err != nil {
				logger.Debug("Error closing TCP listener: %v", err)
			}
		}
	})
}

// Stop closes the listener; a running Serve returns shortly after.
func (s *TCPAdapter) Stop() error {
	s.initiateShutdown()
	return nil
}

// Addr returns the bound address, or nil before Listen.
func (s *TCPAdapter) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Port returns the bound port, or the configured one before Listen.
func (s *TCPAdapter) Port() int {
	if addr, ok := s.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return s.config.Port
}

// Protocol returns "TCP".
func (s *TCPAdapter) Protocol() string {
	return "TCP"
}
