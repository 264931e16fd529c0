package chat

import (
	"context"
	"errors"
	"strings"

	"github.com/marmos91/dittochat/internal/logger"
	"github.com/marmos91/dittochat/pkg/metrics"
)

// Journal is the chat log collaborator used by the engine.
//
// Log appends one timestamped entry; each "{}" in message is replaced by the
// next argument taken as literal text. Dump returns everything logged so far.
type Journal interface {
	Log(message string, args ...any)
	Dump() (string, error)
}

type state int

const (
	stateGreeting state = iota
	stateUsernameNegotiation
	stateActive
	stateTerminated
)

func (s state) String() string {
	switch s {
	case stateGreeting:
		return "greeting"
	case stateUsernameNegotiation:
		return "username-negotiation"
	case stateActive:
		return "active"
	case stateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

// Handler drives the per-connection protocol.
//
// A Handler holds no per-session state and is shared by all sessions of a
// server. It never touches the Registry: once Run returns, the server tick loop
// notices Session.Done and reaps the session.
type Handler struct {
	queue   *BroadcastQueue
	journal Journal
	metrics metrics.ChatMetrics
}

// NewHandler creates a Handler. A nil m disables metrics.
func NewHandler(queue *BroadcastQueue, journal Journal, m metrics.ChatMetrics) *Handler {
	if m == nil {
		m = metrics.NewNoopChatMetrics()
	}
	return &Handler{
		queue:   queue,
		journal: journal,
		metrics: m,
	}
}

// Run serves s until the peer quits, the connection fails or ctx is cancelled.
// It closes s.Done on return.
func (h *Handler) Run(ctx context.Context, s *Session) {
	pumpExited := s.startPump()

	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic in session handler for %s: %v", s.Addr(), r)
		}
		s.stopPump()
		<-pumpExited
		s.finish()
	}()

	st := stateGreeting
	for st != stateTerminated {
		next := h.step(ctx, s, st)
		if next != st {
			logger.Debug("Session %d (%s): %s -> %s", s.ID(), s.Addr(), st, next)
		}
		st = next
	}
}

func (h *Handler) step(ctx context.Context, s *Session, st state) state {
	switch st {
	case stateGreeting:
		return h.greet(s)
	case stateUsernameNegotiation:
		return h.negotiate(s)
	case stateActive:
		return h.serveActive(ctx, s)
	default:
		return stateTerminated
	}
}

func (h *Handler) greet(s *Session) state {
	if err := s.Send(WelcomeBanner); err != nil {
		return stateTerminated
	}
	if err := s.Send(UsernamePrompt); err != nil {
		return stateTerminated
	}
	return stateUsernameNegotiation
}

// negotiate reads username attempts until one is valid. There is no retry cap.
func (h *Handler) negotiate(s *Session) state {
	for {
		name, ok := readTrimmed(s)
		if !ok {
			return stateTerminated
		}

		if !ValidUsername(name) {
			if err := s.Send(InvalidUsernamePrompt); err != nil {
				return stateTerminated
			}
			continue
		}

		s.setUsername(name)
		if err := s.Send(WelcomeUserMessage(name)); err != nil {
			return stateTerminated
		}
		if err := s.Send(HelpHint); err != nil {
			return stateTerminated
		}

		h.journal.Log("Client {} logged in as {}.", s.Addr(), name)
		h.metrics.RecordLogin()
		h.queue.Enqueue(JoinAnnouncement(name), s)
		return stateActive
	}
}

func (h *Handler) serveActive(ctx context.Context, s *Session) state {
	for {
		if ctx.Err() != nil {
			return stateTerminated
		}

		line, ok := readTrimmed(s)
		if !ok {
			return stateTerminated
		}

		if strings.HasPrefix(line, "/") {
			if quit := h.dispatch(s, line); quit {
				return stateTerminated
			}
			continue
		}

		h.queue.Enqueue(ChatLine(s.Username(), line), s)
	}
}

// dispatch runs a slash command and reports whether the session should end.
// Reply send failures are ignored here: the next read on a broken connection
// fails and terminates the session.
func (h *Handler) dispatch(s *Session, line string) bool {
	cmd := strings.Fields(line)[0]

	switch cmd {
	case CommandQuit:
		h.metrics.RecordCommand(cmd)
		return true
	case CommandHelp:
		h.metrics.RecordCommand(cmd)
		_ = s.Send(HelpMessage)
	case CommandLogs:
		h.metrics.RecordCommand(cmd)
		h.sendLogs(s)
	default:
		h.metrics.RecordCommand("unknown")
		_ = s.Send(UnknownCommandMessage)
	}
	return false
}

func (h *Handler) sendLogs(s *Session) {
	if err := s.Send(SendingLogsMessage); err != nil {
		return
	}

	text, err := h.journal.Dump()
	if err != nil {
		logger.Warn("Unable to dump journal for %s: %v", s.Addr(), err)
		_ = s.Send(LogsUnavailableMessage)
		return
	}

	text = strings.TrimSuffix(text, "\n")
	if err := s.Send(text); err != nil {
		return
	}
	_ = s.Send(LogsTrailer)
}

// readTrimmed reads a line and trims surrounding whitespace. A failed read or
// a blank line both count as the peer going away. An over-long line is
// answered with a notice and skipped.
func readTrimmed(s *Session) (string, bool) {
	for {
		line, err := s.ReadLine()
		if errors.Is(err, ErrLineTooLong) {
			logger.Debug("Discarded over-long line from %s", s.Addr())
			if serr := s.Send(LineTooLongMessage); serr != nil {
				return "", false
			}
			continue
		}
		if err != nil {
			logger.Debug("Read from %s ended: %v", s.Addr(), err)
			return "", false
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return "", false
		}
		return line, true
	}
}
