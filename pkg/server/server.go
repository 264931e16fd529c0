package server

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/dittochat/internal/logger"
	"github.com/marmos91/dittochat/pkg/adapter"
	"github.com/marmos91/dittochat/pkg/chat"
	"github.com/marmos91/dittochat/pkg/metrics"
)

// MaxTickRate caps Config.TickRate.
const MaxTickRate = 1000

// Config holds the chat engine settings.
//
// Default values (applied by New if zero):
//   - MaxClients: 5
//   - TickRate: 30 ticks per second, capped at MaxTickRate
//   - InactivityTimeout: 300s
//   - OutboundQueueSize: 64
//   - ShutdownTimeout: 30s
type Config struct {
	// Host and Port are reported in the startup journal entry. Binding is
	// done by the adapters.
	Host string
	Port int

	// MaxClients bounds the number of registered sessions across all adapters.
	MaxClients int

	// TickRate is the number of housekeeping ticks per second.
	TickRate int

	// InactivityTimeout is how long a session may go without a successful
	// read or write before it is kicked.
	InactivityTimeout time.Duration

	// OutboundQueueSize bounds the broadcast lines pending per session.
	OutboundQueueSize int

	// ShutdownTimeout bounds the wait for handlers and acceptors on stop.
	ShutdownTimeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.MaxClients <= 0 {
		c.MaxClients = 5
	}
	if c.TickRate <= 0 {
		c.TickRate = 30
	}
	if c.TickRate > MaxTickRate {
		c.TickRate = MaxTickRate
	}
	if c.InactivityTimeout <= 0 {
		c.InactivityTimeout = 300 * time.Second
	}
	if c.OutboundQueueSize <= 0 {
		c.OutboundQueueSize = chat.DefaultOutboundQueueSize
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// ChatServer coordinates transports, the session registry, the broadcast
// queue and the housekeeping tick loop.
//
// Architecture:
// Adapters accept connections and hand them to Admit, which applies the
// capacity bound and starts one handler goroutine per session. A single tick
// loop, owned by Run, sweeps idle sessions, delivers queued broadcasts and reaps
// sessions whose handler has exited. Only the tick loop (and the final
// teardown) removes sessions from the registry.
//
// Lifecycle:
//  1. New: construct with config, journal and optional metrics
//  2. AddAdapter: register one or more transports
//  3. Run: bind every adapter, start acceptors, run the tick loop
//  4. Stop (or cancellation of Run's context): the tick loop exits and
//     teardown closes every session and joins every goroutine
//
// Thread safety:
// Admit, Stop and ActiveSessions are safe for concurrent use. Run may only be
// called once.
type ChatServer struct {
	config  Config
	journal chat.Journal
	metrics metrics.ChatMetrics

	registry *chat.Registry
	queue    *chat.BroadcastQueue
	handler  *chat.Handler

	// mu protects adapters and served
	mu       sync.Mutex
	adapters []adapter.Adapter
	served   bool

	// ctx is the server-wide cancellation signal; cancel flips it once
	ctx      context.Context
	cancel   context.CancelFunc
	stopOnce sync.Once

	// admitMu orders Admit against teardown: once closing is set no new
	// handler is added to handlers
	admitMu  sync.RWMutex
	closing  bool
	handlers sync.WaitGroup

	nextID atomic.Uint64
}

// New creates a ChatServer.
//
// Parameters:
//   - config: Engine settings; zero values are replaced with defaults
//   - journal: Chat log collaborator (required)
//   - m: Optional metrics collector (nil for no metrics)
//
// Panics if journal is nil.
func New(config Config, journal chat.Journal, m metrics.ChatMetrics) *ChatServer {
	if journal == nil {
		panic("journal cannot be nil")
	}
	if m == nil {
		m = metrics.NewNoopChatMetrics()
	}
	config.applyDefaults()

	queue := chat.NewBroadcastQueue()
	ctx, cancel := context.WithCancel(context.Background())

	return &ChatServer{
		config:   config,
		journal:  journal,
		metrics:  m,
		registry: chat.NewRegistry(config.MaxClients),
		queue:    queue,
		handler:  chat.NewHandler(queue, journal, m),
		adapters: make([]adapter.Adapter, 0, 2),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// AddAdapter registers a transport.
//
// Returns an error if an adapter for the same protocol or on the same
// non-zero port is already registered.
//
// Panics if called after Run.
func (s *ChatServer) AddAdapter(a adapter.Adapter) error {
	if a == nil {
		panic("adapter cannot be nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.served {
		panic("cannot add adapter after Run() has been called")
	}

	protocol := a.Protocol()
	port := a.Port()

	for _, existing := range s.adapters {
		if existing.Protocol() == protocol {
			return fmt.Errorf("adapter for protocol %s already registered", protocol)
		}
		if port != 0 && existing.Port() == port {
			return fmt.Errorf("port %d already in use by %s adapter", port, existing.Protocol())
		}
	}

	s.adapters = append(s.adapters, a)
	logger.Info("Registered %s adapter on port %d", protocol, port)
	return nil
}

// Run binds every adapter, starts the acceptors and runs the tick loop until
// Stop is called or ctx is cancelled. It returns once every session is closed
// and every goroutine it started has exited (or ShutdownTimeout elapsed).
//
// Returns:
//   - nil on a clean stop
//   - error if no adapter is registered or an adapter fails to bind; nothing
//     is started in that case
//   - error if an adapter failed while serving or teardown timed out
func (s *ChatServer) Run(ctx context.Context) error {
	s.mu.Lock()
	if s.served {
		s.mu.Unlock()
		return errors.New("Run() has already been called on this server instance")
	}
	s.served = true
	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	s.mu.Unlock()

	if len(adapters) == 0 {
		return fmt.Errorf("no adapters registered; call AddAdapter() before Run()")
	}

	for i, a := range adapters {
		if err := a.Listen(); err != nil {
			for _, bound := range adapters[:i] {
				_ = bound.Stop()
			}
			s.cancel()
			return fmt.Errorf("%s adapter: %w", a.Protocol(), err)
		}
	}

	s.journal.Log("Chatserver initialized with host={}, port={}, max_clients={}",
		s.config.Host, s.config.Port, s.config.MaxClients)

	stopOnParent := context.AfterFunc(ctx, s.Stop)
	defer stopOnParent()

	var (
		acceptors  sync.WaitGroup
		serveErrMu sync.Mutex
		serveErr   error
	)
	for _, a := range adapters {
		acceptors.Add(1)
		go func(a adapter.Adapter) {
			defer acceptors.Done()

			logger.Info("Starting %s acceptor on port %d", a.Protocol(), a.Port())
			if err := a.Serve(s.ctx, s); err != nil {
				logger.Error("%s adapter failed: %v - stopping server", a.Protocol(), err)
				serveErrMu.Lock()
				if serveErr == nil {
					serveErr = fmt.Errorf("%s adapter error: %w", a.Protocol(), err)
				}
				serveErrMu.Unlock()
				s.Stop()
				return
			}
			logger.Debug("%s acceptor stopped", a.Protocol())
		}(a)
	}

	s.tickLoop()

	teardownErr := s.teardown(adapters, &acceptors)

	serveErrMu.Lock()
	defer serveErrMu.Unlock()
	if serveErr != nil {
		return serveErr
	}
	return teardownErr
}

// tickLoop runs housekeeping at TickRate until the server is stopped.
func (s *ChatServer) tickLoop() {
	ticker := time.NewTicker(time.Second / time.Duration(s.config.TickRate))
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case now := <-ticker.C:
			s.tick(now)
			s.metrics.RecordTick(time.Since(now))
		}
	}
}

// tick performs one housekeeping pass.
func (s *ChatServer) tick(now time.Time) {
	s.sweepInactive(now)
	s.deliverBroadcasts()
	s.reapFinished()
}

// sweepInactive shuts down sessions idle for longer than InactivityTimeout.
// Evicted sessions stay registered until their handler exits and the reap
// step removes them.
func (s *ChatServer) sweepInactive(now time.Time) {
	for _, sess := range s.registry.Snapshot() {
		if sess.Finished() || sess.IdleFor(now) <= s.config.InactivityTimeout {
			continue
		}
		if !sess.MarkEvicted() {
			continue
		}
		s.journal.Log("Kicking {} due to inactivity.", sess.Addr())
		s.metrics.RecordEviction()
		sess.Shutdown()
	}
}

// deliverBroadcasts drains the queue and fans every message out to all
// registered sessions but its origin. A full outbound queue counts as a
// delivery failure: the recipient is shut down and delivery continues.
func (s *ChatServer) deliverBroadcasts() {
	for _, b := range s.queue.DrainAll() {
		s.journal.Log("Chatroom: {}", b.Message)

		recipients := 0
		for _, sess := range s.registry.Snapshot() {
			if sess == b.Origin {
				continue
			}
			recipients++
			if !sess.Deliver(b.Message) {
				s.journal.Log("Unable to send message to {}.", sess.Addr())
				s.metrics.RecordDeliveryFailure()
				sess.Shutdown()
			}
		}
		s.metrics.RecordBroadcast(recipients)
	}
}

// reapFinished removes sessions whose handler has exited, closes them and
// announces the departure of logged-in users.
func (s *ChatServer) reapFinished() {
	for _, sess := range s.registry.Snapshot() {
		if !sess.Finished() {
			continue
		}
		if !s.registry.Remove(sess.ID()) {
			continue
		}

		sess.Close()
		s.journal.Log("Client {} disconnected.", sess.Addr())
		s.metrics.RecordConnectionClosed()
		s.metrics.SetActiveSessions(s.registry.Len())

		if name := sess.Username(); name != "" {
			s.queue.Enqueue(chat.LeaveAnnouncement(name), nil)
		}
	}
}

// Admit implements adapter.Admitter.
//
// Over capacity, the peer gets the "server full" notice (best effort) and is
// closed without being registered. Otherwise a session is registered and its
// handler started.
func (s *ChatServer) Admit(conn chat.Conn) {
	addr := conn.RemoteAddr()

	s.admitMu.RLock()
	if s.closing {
		s.admitMu.RUnlock()
		logger.Debug("Dropping connection from %s: server is stopping", addr)
		_ = conn.Close()
		return
	}

	s.journal.Log("Accepted connection from {}", addr)

	sess := chat.NewSession(chat.SessionID(s.nextID.Add(1)), conn, s.config.OutboundQueueSize)
	if err := s.registry.TryAdd(sess); err != nil {
		s.admitMu.RUnlock()
		s.reject(conn)
		return
	}
	s.handlers.Add(1)
	s.admitMu.RUnlock()

	s.metrics.RecordConnectionAccepted()
	s.metrics.SetActiveSessions(s.registry.Len())

	go func() {
		defer s.handlers.Done()
		s.handler.Run(s.ctx, sess)
	}()
}

func (s *ChatServer) reject(conn chat.Conn) {
	addr := conn.RemoteAddr()

	if err := conn.WriteLine(chat.ServerFullMessage); err != nil {
		logger.Debug("Server full notice to %s failed: %v", addr, err)
		s.journal.Log("Unable to notify {} that server is full.", addr)
	}
	s.journal.Log("Rejecting client {} (server full).", addr)
	s.metrics.RecordConnectionRejected()
	_ = conn.Close()
}

// teardown closes every session and waits for handlers and acceptors.
func (s *ChatServer) teardown(adapters []adapter.Adapter, acceptors *sync.WaitGroup) error {
	s.admitMu.Lock()
	s.closing = true
	s.admitMu.Unlock()

	for i := len(adapters) - 1; i >= 0; i-- {
		if err := adapters[i].Stop(); err != nil {
			logger.Error("Error stopping %s adapter: %v", adapters[i].Protocol(), err)
		}
	}

	sessions := s.registry.Snapshot()
	logger.Info("Shutting down %d session(s) (timeout: %v)", len(sessions), s.config.ShutdownTimeout)
	for _, sess := range sessions {
		sess.Shutdown()
	}

	done := make(chan struct{})
	go func() {
		s.handlers.Wait()
		acceptors.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
		logger.Info("All sessions and acceptors stopped")
	case <-time.After(s.config.ShutdownTimeout):
		err = fmt.Errorf("shutdown timeout: goroutines still running after %v", s.config.ShutdownTimeout)
		logger.Warn("%v - forcing connection closure", err)
	}

	for _, sess := range s.registry.Snapshot() {
		s.registry.Remove(sess.ID())
		sess.Close()
	}
	s.metrics.SetActiveSessions(0)

	logger.Info("ChatServer stopped")
	return err
}

// Stop requests shutdown. It logs the request, cancels the server context and
// returns without waiting; Run performs the teardown. Safe to call many times
// and from any goroutine.
func (s *ChatServer) Stop() {
	s.stopOnce.Do(func() {
		s.journal.Log("Stopping server.")
		s.cancel()
	})
}

// ActiveSessions returns the number of registered sessions.
func (s *ChatServer) ActiveSessions() int {
	return s.registry.Len()
}

// Adapters returns a copy of the registered adapters.
func (s *ChatServer) Adapters() []adapter.Adapter {
	s.mu.Lock()
	defer s.mu.Unlock()

	adapters := make([]adapter.Adapter, len(s.adapters))
	copy(adapters, s.adapters)
	return adapters
}
