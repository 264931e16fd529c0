package journal_test

import (
	"bytes"
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/marmos91/dittochat/internal/logger"
	"github.com/marmos91/dittochat/pkg/journal"
	"github.com/marmos91/dittochat/pkg/journal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		name    string
		message string
		args    []any
		want    string
	}{
		{"no placeholders", "Stopping server.", nil, "Stopping server."},
		{"in order", "Client {} logged in as {}.", []any{"1.2.3.4:5", "alice"}, "Client 1.2.3.4:5 logged in as alice."},
		{"ints", "host={}, port={}, max_clients={}", []any{"0.0.0.0", 5000, 5}, "host=0.0.0.0, port=5000, max_clients=5"},
		{"missing args", "a={} b={}", []any{1}, "a=1 b="},
		{"extra args appended", "x={}", []any{1, 2, 3}, "x=123"},
		{"argument not rescanned", "Chatroom: {}", []any{"{} {}"}, "Chatroom: {} {}"},
		{"expression syntax is literal", "Chatroom: {}", []any{"${__import__('os').system('id')}"}, "Chatroom: ${__import__('os').system('id')}"},
		{"message expression is literal", "${1+1} {}", []any{"x"}, "${1+1} x"},
		{"error arg", "failed: {}", []any{errors.New("boom")}, "failed: boom"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, journal.Format(tt.message, tt.args...))
		})
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 3, 9, 14, 5, 7, 0, time.UTC)
}

func TestJournalLogAndDump(t *testing.T) {
	store := memory.New()
	j := journal.New(store, journal.WithClock(fixedClock), journal.WithEcho(false))

	j.Log("Accepted connection from {}", "127.0.0.1:5555")
	j.Log("Chatroom: {}", "alice: hi")

	text, err := j.Dump()
	require.NoError(t, err)
	assert.Equal(t,
		"[2024-03-09 14:05:07] Accepted connection from 127.0.0.1:5555\n"+
			"[2024-03-09 14:05:07] Chatroom: alice: hi\n",
		text)
}

func TestJournalEchoesToLogger(t *testing.T) {
	var buf bytes.Buffer
	logger.SetOutput(&buf)
	logger.SetLevel("INFO")
	t.Cleanup(func() { logger.SetOutput(os.Stdout) })

	j := journal.New(memory.New(), journal.WithClock(fixedClock))
	j.Log("Stopping server.")

	assert.Contains(t, buf.String(), "[2024-03-09 14:05:07] Stopping server.")
}

type failingStore struct{}

func (failingStore) Append(context.Context, string) error { return errors.New("append failed") }
func (failingStore) Dump(context.Context) (string, error) { return "", errors.New("dump failed") }
func (failingStore) Close() error { return nil }

func TestJournalStoreFailures(t *testing.T) {
	j := journal.New(failingStore{}, journal.WithEcho(false))

	assert.NotPanics(t, func() { j.Log("still fine") })

	_, err := j.Dump()
	assert.ErrorContains(t, err, "dump failed")
}
