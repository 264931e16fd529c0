package websocket

import (
	"errors"
	"io"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/marmos91/dittochat/pkg/chat"
)

// closeGrace bounds the close frame written by Shutdown.
const closeGrace = time.Second

// WebSocketConnection adapts a WebSocket to chat.Conn, one frame per line.
type WebSocketConnection struct {
	ws            *websocket.Conn
	maxLineLength int
	writeTimeout  time.Duration
	addr          string
}

var _ chat.Conn = (*WebSocketConnection)(nil)

// NewWebSocketConnection wraps ws. Frames larger than maxLineLength bytes fail
// the read with chat.ErrLineTooLong and are discarded.
func NewWebSocketConnection(ws *websocket.Conn, writeTimeout time.Duration, maxLineLength int) *WebSocketConnection {
	return &WebSocketConnection{
		ws:            ws,
		maxLineLength: maxLineLength,
		writeTimeout:  writeTimeout,
		addr:          ws.RemoteAddr().String(),
	}
}

// ReadLine returns the payload of the next data frame with any trailing line
// terminator removed. A close frame from the peer yields io.EOF.
func (c *WebSocketConnection) ReadLine() (string, error) {
	_, r, err := c.ws.NextReader()
	if err != nil {
		return "", c.readErr(err)
	}

	// Two extra bytes for a trailing "\r\n"
	data, err := io.ReadAll(io.LimitReader(r, int64(c.maxLineLength)+3))
	if err != nil {
		return "", c.readErr(err)
	}
	if len(data) > c.maxLineLength+2 {
		if _, err := io.Copy(io.Discard, r); err != nil {
			return "", c.readErr(err)
		}
		return "", chat.ErrLineTooLong
	}

	text := strings.TrimRight(string(data), "\r\n")
	if len(text) > c.maxLineLength {
		return "", chat.ErrLineTooLong
	}
	return text, nil
}

func (c *WebSocketConnection) readErr(err error) error {
	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		return io.EOF
	}
	return err
}

// WriteLine sends line as one text frame.
func (c *WebSocketConnection) WriteLine(line string) error {
	if c.writeTimeout > 0 {
		if err := c.ws.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
			return err
		}
	}
	return c.ws.WriteMessage(websocket.TextMessage, []byte(line))
}

// Shutdown sends a close frame and fails any pending ReadLine.
func (c *WebSocketConnection) Shutdown() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	err := c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGrace))
	if derr := c.ws.UnderlyingConn().SetReadDeadline(time.Now()); derr != nil && err == nil {
		err = derr
	}
	return err
}

func (c *WebSocketConnection) Close() error {
	return c.ws.Close()
}

func (c *WebSocketConnection) RemoteAddr() string {
	return c.addr
}
