package chat

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// fakeConn is an in-memory Conn. Lines pushed with send are returned by
// ReadLine; lines written by the session are collected on out.
type fakeConn struct {
	in       chan string
	out      chan string
	closed   chan struct{}
	once     sync.Once
	failSend atomic.Bool
	closes   atomic.Int32
}

// overLongLine makes fakeConn.ReadLine report ErrLineTooLong.
const overLongLine = "\x00over-long"

func newFakeConn() *fakeConn {
	return &fakeConn{
		in:     make(chan string, 16),
		out:    make(chan string, 256),
		closed: make(chan struct{}),
	}
}

func (c *fakeConn) ReadLine() (string, error) {
	select {
	case line, ok := <-c.in:
		if !ok {
			return "", io.EOF
		}
		if line == overLongLine {
			return "", ErrLineTooLong
		}
		return line, nil
	case <-c.closed:
		return "", io.EOF
	}
}

func (c *fakeConn) WriteLine(line string) error {
	if c.failSend.Load() {
		return errors.New("broken pipe")
	}
	select {
	case <-c.closed:
		return io.ErrClosedPipe
	default:
	}
	c.out <- line
	return nil
}

func (c *fakeConn) Shutdown() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

func (c *fakeConn) Close() error {
	c.closes.Add(1)
	return c.Shutdown()
}

func (c *fakeConn) RemoteAddr() string { return "10.0.0.1:4242" }

func (c *fakeConn) send(line string) { c.in <- line }

func (c *fakeConn) expect(t *testing.T, want string) {
	t.Helper()
	select {
	case got := <-c.out:
		if got != want {
			t.Fatalf("expected line %q, got %q", want, got)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for %q", want)
	}
}

func (c *fakeConn) expectNothing(t *testing.T) {
	t.Helper()
	select {
	case got := <-c.out:
		t.Fatalf("unexpected line %q", got)
	case <-time.After(50 * time.Millisecond):
	}
}

// fakeJournal records formatted entries in memory.
type fakeJournal struct {
	mu      sync.Mutex
	entries []string
	dumpErr error
}

func (j *fakeJournal) Log(message string, args ...any) {
	for _, a := range args {
		message = strings.Replace(message, "{}", fmt.Sprint(a), 1)
	}
	j.mu.Lock()
	j.entries = append(j.entries, message)
	j.mu.Unlock()
}

func (j *fakeJournal) Dump() (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.dumpErr != nil {
		return "", j.dumpErr
	}
	var b strings.Builder
	for _, e := range j.entries {
		b.WriteString(e)
		b.WriteString("\n")
	}
	return b.String(), nil
}

func (j *fakeJournal) Entries() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}
