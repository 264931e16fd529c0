// Package badger stores the chat journal in BadgerDB so history survives
// restarts.
//
// Key layout:
//
//	"l:" + big-endian uint64 sequence -> line bytes
//
// Big-endian sequences sort lexicographically in append order, so a prefix
// scan returns the journal in order.
package badger

import (
	"context"
	"encoding/binary"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"
	"github.com/marmos91/dittochat/pkg/journal"
)

const prefixLine = "l:"

// Config configures the BadgerDB store.
type Config struct {
	// DBPath is the BadgerDB directory. Required unless InMemory is set.
	DBPath string `mapstructure:"db_path"`

	// InMemory runs BadgerDB without touching disk (tests only).
	InMemory bool `mapstructure:"in_memory"`
}

// Store is a BadgerDB-backed journal store.
type Store struct {
	db *badger.DB

	// mu guards next and closed
	mu     sync.Mutex
	next   uint64
	closed bool
}

// New opens the BadgerDB at cfg.DBPath and positions the sequence after the
// last stored line.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if cfg.DBPath == "" && !cfg.InMemory {
		return nil, fmt.Errorf("badger journal: db_path is required")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.DBPath)
	}
	opts = opts.WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open BadgerDB at %s: %w", cfg.DBPath, err)
	}

	s := &Store{db: db}
	last, found, err := s.lastSequence()
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	if found {
		s.next = last + 1
	}
	return s, nil
}

func keyLine(seq uint64) []byte {
	key := make([]byte, len(prefixLine)+8)
	copy(key, prefixLine)
	binary.BigEndian.PutUint64(key[len(prefixLine):], seq)
	return key
}

func (s *Store) lastSequence() (uint64, bool, error) {
	var (
		last  uint64
		found bool
	)

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixLine)

		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the largest key <= seek
		it.Seek(keyLine(^uint64(0)))
		if it.ValidForPrefix(opts.Prefix) {
			key := it.Item().Key()
			last = binary.BigEndian.Uint64(key[len(prefixLine):])
			found = true
		}
		return nil
	})
	if err != nil {
		return 0, false, fmt.Errorf("failed to scan journal: %w", err)
	}
	return last, found, nil
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

	seq := s.next
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(keyLine(seq), []byte(line))
	})
	if err != nil {
		return fmt.Errorf("failed to append journal line: %w", err)
	}
	s.next++
	return nil
}

func (s *Store) Dump(ctx context.Context) (string, error) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed {
		return "", journal.ErrStoreClosed
	}

	var b strings.Builder
	count := 0

	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(prefixLine)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			count++
			if count%1000 == 0 {
				if err := ctx.Err(); err != nil {
					return err
				}
			}

			err := it.Item().Value(func(val []byte) error {
				b.Write(val)
				b.WriteByte('\n')
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("failed to read journal: %w", err)
	}
	return b.String(), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}
