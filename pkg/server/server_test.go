package server

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/marmos91/dittochat/pkg/adapter/tcp"
	"github.com/marmos91/dittochat/pkg/chat"
	"github.com/marmos91/dittochat/pkg/journal"
	"github.com/marmos91/dittochat/pkg/journal/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const ioTimeout = 3 * time.Second

type testServer struct {
	srv     *ChatServer
	tcp     *tcp.TCPAdapter
	journal *journal.Journal
	done    chan error
}

func startServer(t *testing.T, cfg Config) *testServer {
	t.Helper()

	j := journal.New(memory.New(), journal.WithEcho(false))
	srv := New(cfg, j, nil)

	a := tcp.New(tcp.TCPConfig{Host: "127.0.0.1", AcceptTimeout: 50 * time.Millisecond})
	require.NoError(t, srv.AddAdapter(a))

	ts := &testServer{srv: srv, tcp: a, journal: j, done: make(chan error, 1)}
	go func() { ts.done <- srv.Run(context.Background()) }()

	require.Eventually(t, func() bool { return a.Addr() != nil }, ioTimeout, 5*time.Millisecond)

	t.Cleanup(func() {
		srv.Stop()
		select {
		case <-ts.done:
		case <-time.After(ioTimeout):
			t.Error("server did not stop")
		}
	})
	return ts
}

func (ts *testServer) waitStopped(t *testing.T) error {
	t.Helper()
	select {
	case err := <-ts.done:
		ts.done <- err
		return err
	case <-time.After(ioTimeout):
		t.Fatal("Run did not return")
		return nil
	}
}

func (ts *testServer) journalText(t *testing.T) string {
	t.Helper()
	text, err := ts.journal.Dump()
	require.NoError(t, err)
	return text
}

// join logs name in on c and waits until the join announcement has been
// relayed, so later clients never see it interleaved with their greeting.
func (ts *testServer) join(t *testing.T, c *client, name string) {
	t.Helper()
	c.login(t, name)
	require.Eventually(t, func() bool {
		text, err := ts.journal.Dump()
		return err == nil && strings.Contains(text, "Chatroom: "+name+" has joined the chatroom.")
	}, ioTimeout, 5*time.Millisecond)
}

type client struct {
	conn net.Conn
	r    *bufio.Reader
}

func (ts *testServer) connect(t *testing.T) *client {
	t.Helper()
	conn, err := net.Dial("tcp", ts.tcp.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return &client{conn: conn, r: bufio.NewReader(conn)}
}

func (c *client) readLine(timeout time.Duration) (string, error) {
	_ = c.conn.SetReadDeadline(time.Now().Add(timeout))
	line, err := c.r.ReadString('\n')
	return strings.TrimSuffix(line, "\n"), err
}

func (c *client) expect(t *testing.T, want string) {
	t.Helper()
	got, err := c.readLine(ioTimeout)
	require.NoError(t, err, "waiting for %q", want)
	assert.Equal(t, want, got)
}

func (c *client) expectLines(t *testing.T, text string) {
	t.Helper()
	for _, line := range strings.Split(text, "\n") {
		c.expect(t, line)
	}
}

func (c *client) expectSilence(t *testing.T) {
	t.Helper()
	got, err := c.readLine(150 * time.Millisecond)
	if err == nil {
		t.Fatalf("unexpected line %q", got)
	}
	var netErr net.Error
	require.ErrorAs(t, err, &netErr)
	require.True(t, netErr.Timeout(), "expected timeout, got %v", err)
}

func (c *client) expectClosed(t *testing.T) {
	t.Helper()
	deadline := time.Now().Add(ioTimeout)
	for time.Now().Before(deadline) {
		_, err := c.readLine(ioTimeout)
		if err == nil {
			// Drain lines sent before the close
			continue
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			t.Fatal("connection still open")
		}
		return
	}
	t.Fatal("connection still open")
}

func (c *client) send(t *testing.T, line string) {
	t.Helper()
	_, err := c.conn.Write([]byte(line + "\n"))
	require.NoError(t, err)
}

func (c *client) login(t *testing.T, name string) {
	t.Helper()
	c.expect(t, chat.WelcomeBanner)
	c.expect(t, chat.UsernamePrompt)
	c.send(t, name)
	c.expect(t, chat.WelcomeUserMessage(name))
	c.expect(t, chat.HelpHint)
}

func TestServerFullRejectsExtraClient(t *testing.T) {
	ts := startServer(t, Config{Host: "127.0.0.1", MaxClients: 1})

	alice := ts.connect(t)
	ts.join(t, alice, "alice")

	bob := ts.connect(t)
	bob.expect(t, chat.ServerFullMessage)
	bob.expectClosed(t)

	assert.Equal(t, 1, ts.srv.ActiveSessions())
	alice.send(t, "/help")
	alice.expectLines(t, chat.HelpMessage)

	text := ts.journalText(t)
	assert.Contains(t, text, "(server full).")
	assert.Contains(t, text, "Chatserver initialized with host=127.0.0.1, port=0, max_clients=1")
}

func TestServerUsernameRetry(t *testing.T) {
	ts := startServer(t, Config{})

	c := ts.connect(t)
	c.expect(t, chat.WelcomeBanner)
	c.expect(t, chat.UsernamePrompt)

	c.send(t, "ab")
	c.expect(t, chat.InvalidUsernamePrompt)
	c.send(t, "alice123")
	c.expect(t, "Welcome, alice123!")
	c.expect(t, chat.HelpHint)
}

func TestServerBroadcastExcludesOrigin(t *testing.T) {
	ts := startServer(t, Config{})

	alice := ts.connect(t)
	ts.join(t, alice, "alice")
	bob := ts.connect(t)
	ts.join(t, bob, "bob")

	alice.expect(t, "bob has joined the chatroom.")

	alice.send(t, "hello")
	bob.expect(t, "alice: hello")
	alice.expectSilence(t)

	assert.Contains(t, ts.journalText(t), "Chatroom: alice: hello")
}

func TestServerBroadcastOrder(t *testing.T) {
	ts := startServer(t, Config{})

	alice := ts.connect(t)
	ts.join(t, alice, "alice")
	bob := ts.connect(t)
	ts.join(t, bob, "bob")
	alice.expect(t, "bob has joined the chatroom.")

	for _, msg := range []string{"one", "two", "three", "four"} {
		alice.send(t, msg)
	}
	for _, msg := range []string{"one", "two", "three", "four"} {
		bob.expect(t, "alice: "+msg)
	}
}

func TestServerOverLongLineKeepsSession(t *testing.T) {
	ts := startServer(t, Config{})

	alice := ts.connect(t)
	ts.join(t, alice, "alice")
	bob := ts.connect(t)
	ts.join(t, bob, "bob")
	alice.expect(t, "bob has joined the chatroom.")

	alice.send(t, strings.Repeat("x", 1100))
	alice.expect(t, chat.LineTooLongMessage)
	bob.expectSilence(t)

	alice.send(t, "still here")
	bob.expect(t, "alice: still here")
	assert.Equal(t, 2, ts.srv.ActiveSessions())
	assert.NotContains(t, ts.journalText(t), "alice has left the chat.")
}

func TestConfigTickRateCapped(t *testing.T) {
	cfg := Config{TickRate: 2_000_000_000}
	cfg.applyDefaults()
	assert.Equal(t, MaxTickRate, cfg.TickRate)

	ts := startServer(t, Config{TickRate: 2_000_000_000})
	c := ts.connect(t)
	c.login(t, "alice")
}

func TestServerEvictsIdleClient(t *testing.T) {
	ts := startServer(t, Config{InactivityTimeout: 300 * time.Millisecond})

	alice := ts.connect(t)
	ts.join(t, alice, "alice")
	bob := ts.connect(t)
	ts.join(t, bob, "bob")
	alice.expect(t, "bob has joined the chatroom.")

	// Keep bob active with command replies, which are not broadcast
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				_, _ = bob.conn.Write([]byte("/help\n"))
			}
		}
	}()

	alice.expectClosed(t)

	deadline := time.Now().Add(ioTimeout)
	for {
		require.True(t, time.Now().Before(deadline), "no leave announcement")
		line, err := bob.readLine(ioTimeout)
		require.NoError(t, err)
		if line == "alice has left the chat." {
			break
		}
	}

	text := ts.journalText(t)
	assert.Contains(t, text, "due to inactivity.")
	assert.Equal(t, 1, strings.Count(text, "due to inactivity."))
	assert.Contains(t, text, "disconnected.")
}

func TestServerLogsAndUnknownCommand(t *testing.T) {
	ts := startServer(t, Config{})

	c := ts.connect(t)
	ts.join(t, c, "alice")

	// Nothing else is journaled until the next command
	snapshot := strings.TrimSuffix(ts.journalText(t), "\n")

	c.send(t, "/logs")
	c.expect(t, chat.SendingLogsMessage)
	c.expectLines(t, snapshot)
	c.expect(t, chat.LogsTrailer)

	c.send(t, "/bogus")
	c.expect(t, chat.UnknownCommandMessage)
}

func TestServerQuitAnnouncesLeave(t *testing.T) {
	ts := startServer(t, Config{})

	alice := ts.connect(t)
	ts.join(t, alice, "alice")
	bob := ts.connect(t)
	ts.join(t, bob, "bob")
	alice.expect(t, "bob has joined the chatroom.")

	bob.send(t, "/quit")
	bob.expectClosed(t)
	alice.expect(t, "bob has left the chat.")

	require.Eventually(t, func() bool { return ts.srv.ActiveSessions() == 1 }, ioTimeout, 5*time.Millisecond)
}

func TestServerUnnamedDisconnectIsSilent(t *testing.T) {
	ts := startServer(t, Config{})

	alice := ts.connect(t)
	ts.join(t, alice, "alice")

	anon := ts.connect(t)
	anon.expect(t, chat.WelcomeBanner)
	anon.expect(t, chat.UsernamePrompt)
	require.NoError(t, anon.conn.Close())

	require.Eventually(t, func() bool { return ts.srv.ActiveSessions() == 1 }, ioTimeout, 5*time.Millisecond)
	alice.expectSilence(t)
}

func TestServerStopClosesAllClients(t *testing.T) {
	ts := startServer(t, Config{MaxClients: 3})

	clients := make([]*client, 3)
	for i, name := range []string{"alice", "bob", "carol"} {
		clients[i] = ts.connect(t)
		ts.join(t, clients[i], name)
	}
	require.Eventually(t, func() bool { return ts.srv.ActiveSessions() == 3 }, ioTimeout, 5*time.Millisecond)

	start := time.Now()
	ts.srv.Stop()
	ts.srv.Stop()
	require.NoError(t, ts.waitStopped(t))
	assert.Less(t, time.Since(start), time.Second)

	for _, c := range clients {
		c.expectClosed(t)
	}
	assert.Zero(t, ts.srv.ActiveSessions())
	assert.Contains(t, ts.journalText(t), "Stopping server.")
}

func TestServerStopsOnContextCancel(t *testing.T) {
	j := journal.New(memory.New(), journal.WithEcho(false))
	srv := New(Config{}, j, nil)
	require.NoError(t, srv.AddAdapter(tcp.New(tcp.TCPConfig{Host: "127.0.0.1", AcceptTimeout: 50 * time.Millisecond})))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(ioTimeout):
		t.Fatal("Run did not return after cancellation")
	}
	assert.Error(t, srv.Run(context.Background()))
}

func TestServerRunRequiresAdapter(t *testing.T) {
	srv := New(Config{}, journal.New(memory.New(), journal.WithEcho(false)), nil)
	assert.Error(t, srv.Run(context.Background()))
}

func TestServerRunBindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	srv := New(Config{}, journal.New(memory.New(), journal.WithEcho(false)), nil)
	port := ln.Addr().(*net.TCPAddr).Port
	require.NoError(t, srv.AddAdapter(tcp.New(tcp.TCPConfig{Host: "127.0.0.1", Port: port})))

	assert.ErrorContains(t, srv.Run(context.Background()), "TCP adapter")
}

func TestAddAdapterRejectsDuplicates(t *testing.T) {
	srv := New(Config{}, journal.New(memory.New(), journal.WithEcho(false)), nil)

	require.NoError(t, srv.AddAdapter(tcp.New(tcp.TCPConfig{Port: 5000})))
	assert.Error(t, srv.AddAdapter(tcp.New(tcp.TCPConfig{Port: 5001})))
	assert.Len(t, srv.Adapters(), 1)
}
