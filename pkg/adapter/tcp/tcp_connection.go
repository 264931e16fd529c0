package tcp

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"time"

	"github.com/marmos91/dittochat/pkg/chat"
)

// TCPConnection adapts a TCP socket to chat.Conn with newline framing.
//
// ReadLine is called only by the session handler. WriteLine is serialized by
// the session. Shutdown and Close may be called from any goroutine.
type TCPConnection struct {
	conn          net.Conn
	reader        *bufio.Reader
	maxLineLength int
	writeTimeout  time.Duration
	addr          string
}

var _ chat.Conn = (*TCPConnection)(nil)

// NewTCPConnection wraps conn. Lines longer than maxLineLength bytes fail the
// read with chat.ErrLineTooLong and are skipped up to the next newline.
func NewTCPConnection(conn net.Conn, writeTimeout time.Duration, maxLineLength int) *TCPConnection {
	// Room for the line plus its "\r\n" terminator
	return &TCPConnection{
		conn:          conn,
		reader:        bufio.NewReaderSize(conn, maxLineLength+2),
		maxLineLength: maxLineLength,
		writeTimeout:  writeTimeout,
		addr:          conn.RemoteAddr().String(),
	}
}

// ReadLine returns the next line without its terminator. A trailing "\r" is
// dropped. io.EOF is returned once the peer closes the stream.
func (c *TCPConnection) ReadLine() (string, error) {
	line, err := c.reader.ReadSlice('\n')
	if errors.Is(err, bufio.ErrBufferFull) {
		return "", c.discardLine()
	}
	if err != nil && (len(line) == 0 || !errors.Is(err, io.EOF)) {
		return "", err
	}

	text := strings.TrimSuffix(strings.TrimSuffix(string(line), "\n"), "\r")
	if len(text) > c.maxLineLength {
		return "", chat.ErrLineTooLong
	}
	return text, nil
}

// discardLine drops the rest of an over-long line.
func (c *TCPConnection) discardLine() error {
	for {
		_, err := c.reader.ReadSlice('\n')
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return err
		}
		return chat.ErrLineTooLong
	}
}

// WriteLine writes line followed by "\n" within the write timeout.
func (c *TCPConnection) WriteLine(line string) error {
	if c.writeTimeout > 0 {
		if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	_, err := io.WriteString(c.conn, line+"\n")
	return err
}

// Shutdown unblocks a pending ReadLine and sends FIN to the peer. The socket
// stays allocated until Close.
func (c *TCPConnection) Shutdown() error {
	// An expired deadline fails a blocked Read immediately
	err := c.conn.SetReadDeadline(time.Now())

	if tcp, ok := c.conn.(*net.TCPConn); ok {
		if cerr := tcp.CloseWrite(); cerr != nil && err == nil {
			err = cerr
		}
		return err
	}

	return c.conn.Close()
}

func (c *TCPConnection) Close() error {
	return c.conn.Close()
}

func (c *TCPConnection) RemoteAddr() string {
	return c.addr
}
