package chat

import "errors"

// ErrCapacityExceeded is returned by Registry.TryAdd when the registry is full.
var ErrCapacityExceeded = errors.New("chat: capacity exceeded")

// ErrLineTooLong is returned by transports when an inbound line exceeds the
// configured maximum length. The over-long line is discarded and the
// connection stays readable.
var ErrLineTooLong = errors.New("chat: line too long")

// Conn is a line-oriented, bidirectional client connection.
//
// Transports (TCP, WebSocket) adapt their native connection to this
// interface. Implementations must allow Shutdown and Close to be called
// concurrently with a blocked ReadLine; both must cause that read to fail.
// WriteLine is never called concurrently with itself (Session serializes
// writers).
type Conn interface {
	// ReadLine blocks until one full line is available and returns it without
	// the line terminator.
	ReadLine() (string, error)

	// WriteLine writes line followed by the transport's line terminator.
	WriteLine(line string) error

	// Shutdown forcibly shuts the connection down in both directions so that
	// pending reads and writes fail. The handle still needs Close.
	Shutdown() error

	// Close releases the connection.
	Close() error

	// RemoteAddr returns the peer address in host:port form.
	RemoteAddr() string
}
