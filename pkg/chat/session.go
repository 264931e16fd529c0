package chat

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittochat/internal/logger"
)

// SessionID identifies a session for its whole lifetime. IDs are never reused
// within a process.
type SessionID uint64

// DefaultOutboundQueueSize is used when NewSession is given a non-positive size.
const DefaultOutboundQueueSize = 64

// Session represents one connected peer.
//
// Ownership:
//   - The Handler running the session is the only writer of the username.
//   - Activity is refreshed on every successful read and write.
//   - Any goroutine may call Shutdown or Deliver.
//   - Only the server tick loop removes a session from the Registry and
//     calls Close.
type Session struct {
	id   SessionID
	conn Conn
	addr string

	username   atomic.Pointer[string]
	lastActive atomic.Int64
	evicted    atomic.Bool

	// writeMu serializes writers on conn (handler replies and the outbound pump)
	writeMu sync.Mutex

	// outbound holds broadcast lines waiting to be written by the pump
	outbound chan string

	// quit stops the outbound pump; done is closed once the handler exited
	quit chan struct{}
	done chan struct{}

	quitOnce     sync.Once
	doneOnce     sync.Once
	shutdownOnce sync.Once
	closeOnce    sync.Once
}

// NewSession wraps conn. outboundSize bounds the number of broadcast lines
// that may be pending for this peer before deliveries start failing.
func NewSession(id SessionID, conn Conn, outboundSize int) *Session {
	if outboundSize <= 0 {
		outboundSize = DefaultOutboundQueueSize
	}

	s := &Session{
		id:       id,
		conn:     conn,
		addr:     conn.RemoteAddr(),
		outbound: make(chan string, outboundSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	s.touch()
	return s
}

func (s *Session) ID() SessionID { return s.id }

func (s *Session) Addr() string { return s.addr }

// Username returns the negotiated username, or "" before login completed.
func (s *Session) Username() string {
	if name := s.username.Load(); name != nil {
		return *name
	}
	return ""
}

func (s *Session) setUsername(name string) {
	s.username.Store(&name)
}

// LastActive returns the time of the last successful read or write.
func (s *Session) LastActive() time.Time {
	return time.Unix(0, s.lastActive.Load())
}

// IdleFor returns how long the session has been inactive at now.
func (s *Session) IdleFor(now time.Time) time.Duration {
	return now.Sub(s.LastActive())
}

func (s *Session) touch() {
	s.lastActive.Store(time.Now().UnixNano())
}

// ReadLine reads one line from the peer and refreshes activity on success.
func (s *Session) ReadLine() (string, error) {
	line, err := s.conn.ReadLine()
	if err != nil {
		if errors.Is(err, ErrLineTooLong) {
			s.touch()
		}
		return "", err
	}
	s.touch()
	return line, nil
}

// Send writes line to the peer synchronously and refreshes activity on success.
func (s *Session) Send(line string) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	if err := s.conn.WriteLine(line); err != nil {
		return err
	}
	s.touch()
	return nil
}

// Deliver queues a broadcast line without blocking. It returns false when the
// outbound queue is full; the caller treats that as a delivery failure.
func (s *Session) Deliver(line string) bool {
	select {
	case s.outbound <- line:
		return true
	default:
		return false
	}
}

// startPump starts the goroutine writing queued broadcast lines. The returned
// channel is closed when the pump exits.
func (s *Session) startPump() <-chan struct{} {
	exited := make(chan struct{})
	go func() {
		defer close(exited)
		for {
			select {
			case <-s.quit:
				return
			case line := <-s.outbound:
				if err := s.Send(line); err != nil {
					logger.Debug("Outbound write to %s failed: %v", s.addr, err)
					s.Shutdown()
					return
				}
			}
		}
	}()
	return exited
}

func (s *Session) stopPump() {
	s.quitOnce.Do(func() { close(s.quit) })
}

// Shutdown forcibly shuts the connection down so a blocked read returns.
// Safe to call many times from any goroutine.
func (s *Session) Shutdown() {
	s.shutdownOnce.Do(func() {
		if err := s.conn.Shutdown(); err != nil {
			logger.Debug("Shutdown of %s: %v", s.addr, err)
		}
	})
}

// Close releases the underlying connection. Safe to call many times.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		if err := s.conn.Close(); err != nil {
			logger.Debug("Close of %s: %v", s.addr, err)
		}
	})
}

// Done is closed once the session's handler has returned.
func (s *Session) Done() <-chan struct{} { return s.done }

// Finished reports whether the handler has returned.
func (s *Session) Finished() bool {
	select {
	case <-s.done:
		return true
	default:
		return false
	}
}

func (s *Session) finish() {
	s.doneOnce.Do(func() { close(s.done) })
}

// MarkEvicted records that the inactivity sweep has shut this session down.
// It returns true only for the first call.
func (s *Session) MarkEvicted() bool {
	return s.evicted.CompareAndSwap(false, true)
}

// Evicted reports whether MarkEvicted was called.
func (s *Session) Evicted() bool {
	return s.evicted.Load()
}
