// Package file stores the chat journal in a plain text file on local disk.
package file

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/marmos91/dittochat/pkg/journal"
)

// DefaultPrefix is the base name of generated log files.
const DefaultPrefix = "dittochat"

// Config configures the file store.
type Config struct {
	// Path is the log file. When empty, a fresh file is picked in Dir with
	// ResolveLogPath.
	Path string `mapstructure:"path"`

	// Dir is used when Path is empty. Defaults to os.TempDir().
	Dir string `mapstructure:"dir"`

	// Prefix is the generated file name prefix. Defaults to DefaultPrefix.
	Prefix string `mapstructure:"prefix"`
}

// Store appends journal lines to a file.
//
// The file is opened in append mode, so restarting with an explicit Path
// keeps the previous history. Dump re-reads the file from disk.
type Store struct {
	mu     sync.Mutex
	path   string
	f      *os.File
	closed bool
}

// New opens (creating if needed) the journal file described by cfg.
func New(cfg Config) (*Store, error) {
	path := cfg.Path
	if path == "" {
		dir := cfg.Dir
		if dir == "" {
			dir = os.TempDir()
		}
		prefix := cfg.Prefix
		if prefix == "" {
			prefix = DefaultPrefix
		}
		path = ResolveLogPath(dir, prefix, time.Now())
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create journal directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal file %s: %w", path, err)
	}

	return &Store{path: path, f: f}, nil
}

// ResolveLogPath returns "<dir>/<prefix>-<YYYY-MM-DD>.log", or the first
// "<prefix>-<YYYY-MM-DD>(<n>).log" with n >= 1 that does not exist yet.
func ResolveLogPath(dir, prefix string, date time.Time) string {
	day := date.Format("2006-01-02")

	path := filepath.Join(dir, fmt.Sprintf("%s-%s.log", prefix, day))
	for n := 1; exists(path); n++ {
		path = filepath.Join(dir, fmt.Sprintf("%s-%s(%d).log", prefix, day, n))
	}
	return path
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Path returns the file the store writes to.
func (s *Store) Path() string {
	return s.path
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
	if _, err := s.f.WriteString(line + "\n"); err != nil {
		return fmt.Errorf("failed to write journal file: %w", err)
	}
	return nil
}

func (s *Store) Dump(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return "", journal.ErrStoreClosed
	}

	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", fmt.Errorf("failed to read journal file: %w", err)
	}
	return string(data), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.f.Close()
}
