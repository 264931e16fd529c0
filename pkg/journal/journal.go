// Package journal implements the chat log: a timestamped, append-only record of
// server events and relayed messages that clients can read back with /logs.
//
// Entries are formatted by substituting each "{}" placeholder with the literal
// text of the next argument. Neither the message nor the arguments are ever
// interpreted: chat text and usernames come from untrusted peers.
package journal

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/dittochat/internal/logger"
)

// TimestampFormat is the layout of the prefix of every journal line.
const TimestampFormat = "2006-01-02 15:04:05"

// Placeholder is substituted in order with the journal arguments.
const Placeholder = "{}"

// storeTimeout bounds every store call issued by Log and Dump.
const storeTimeout = 10 * time.Second

// ErrStoreClosed is returned by stores used after Close.
var ErrStoreClosed = errors.New("journal store is closed")

// Store persists journal lines.
//
// Lines are passed without a trailing newline. Dump returns every appended
// line in order, each terminated by "\n".
type Store interface {
	Append(ctx context.Context, line string) error
	Dump(ctx context.Context) (string, error)
	Close() error
}

// Option configures a Journal.
type Option func(*Journal)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(j *Journal) { j.now = now }
}

// WithEcho enables or disables echoing every entry to the operational logger.
// Echo is on by default.
func WithEcho(echo bool) Option {
	return func(j *Journal) { j.echo = echo }
}

// Journal formats entries and appends them to a Store.
//
// Thread safety: Log and Dump are serialized by a mutex so a dump never
// observes a half-written entry.
type Journal struct {
	mu    sync.Mutex
	store Store
	now   func() time.Time
	echo  bool
}

// New creates a Journal writing to store.
func New(store Store, opts ...Option) *Journal {
	j := &Journal{
		store: store,
		now:   time.Now,
		echo:  true,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Log appends one timestamped entry. Store failures are reported on the
// operational logger and never returned: a broken journal must not take
// chat sessions down with it.
func (j *Journal) Log(message string, args ...any) {
	line := fmt.Sprintf("[%s] %s", j.now().Format(TimestampFormat), Format(message, args...))

	j.mu.Lock()
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	if err := j.store.Append(ctx, line); err != nil {
		logger.Warn("Journal append failed: %v", err)
	}
	if j.echo {
		logger.Info("%s", line)
	}
}

// Dump returns the whole journal text.
func (j *Journal) Dump() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	text, err := j.store.Dump(ctx)
	if err != nil {
		return "", fmt.Errorf("dump journal: %w", err)
	}
	return text, nil
}

// Close closes the underlying store.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.store.Close()
}

// Format replaces each "{}" in message with the string form of the next
// argument. Arguments beyond the placeholders are appended after the message;
// placeholders beyond the arguments are dropped. Substituted text is never
// rescanned, so an argument containing "{}" stays as is.
func Format(message string, args ...any) string {
	parts := strings.Split(message, Placeholder)

	var b strings.Builder
	b.Grow(len(message))

	for i, part := range parts {
		b.WriteString(part)
		if i < len(parts)-1 && i < len(args) {
			b.WriteString(stringify(args[i]))
		}
	}
	for i := len(parts) - 1; i < len(args); i++ {
		b.WriteString(stringify(args[i]))
	}
	return b.String()
}

func stringify(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case fmt.Stringer:
		return x.String()
	case error:
		return x.Error()
	default:
		return fmt.Sprint(v)
	}
}
