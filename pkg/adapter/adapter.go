package adapter

import (
	"context"

	"github.com/marmos91/dittochat/pkg/chat"
)

// Admitter receives every connection an adapter accepts.
//
// The chat server implements Admitter: it applies the capacity bound, registers
// the session and starts its protocol handler. Admit must not block for long;
// adapters call it from their accept loop.
type Admitter interface {
	Admit(conn chat.Conn)
}

// Adapter represents a transport that feeds connections into the ChatServer.
//
// Each adapter implements one wire transport (raw TCP, WebSocket) and hands
// accepted connections to the shared Admitter, so every transport shares the
// same registry, capacity bound and broadcast queue.
//
// Lifecycle:
//  1. Creation: Adapter is created with transport-specific configuration
//  2. Listen: Listen() binds the socket; failures abort server startup
//  3. Serve: Serve() runs the accept loop and blocks until shutdown
//  4. Shutdown: Stop() closes the listener; Serve() then returns
//
// Adapters own their listener only. Accepted connections belong to the
// server once admitted and are never closed by the adapter.
//
// Thread safety:
// Implementations must be safe for concurrent use. Stop() may be called
// concurrently with Serve().
type Adapter interface {
	// Listen binds the listening socket.
	//
	// It is called once, before Serve, so that a bind failure is reported
	// before any goroutine is started.
	Listen() error

	// Serve accepts connections until the context is cancelled or Stop is
	// called, handing each to admitter.
	//
	// The accept call waits a bounded time so cancellation is observed
	// promptly even when no client connects.
	//
	// Returns:
	//   - nil on shutdown
	//   - error if the listener fails unrecoverably
	Serve(ctx context.Context, admitter Admitter) error

	// Stop closes the listener. Safe to call multiple times and concurrently
	// with Serve.
	Stop() error

	// Protocol returns the human-readable transport name for logging.
	//
	// Examples: "TCP", "WebSocket"
	Protocol() string

	// Port returns the port the adapter is bound to. Before Listen it returns
	// the configured port; afterwards the actual one (relevant for port 0).
	Port() int
}
