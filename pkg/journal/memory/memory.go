package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/marmos91/dittochat/pkg/journal"
)

// Store keeps journal lines in process memory. Lines are lost on restart.
type Store struct {
	mu     sync.RWMutex
	lines  []string
	closed bool
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{}
}

func (s *Store) Append(ctx context.Context, line string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return journal.ErrStoreClosed
	}
	s.lines = append(s.lines, line)
	return nil
}

func (s *Store) Dump(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return "", journal.ErrStoreClosed
	}

	var b strings.Builder
	for _, line := range s.lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return b.String(), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Len returns the number of stored lines.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}
