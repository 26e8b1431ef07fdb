// Package transport adapts gorilla/websocket connections to the session's
// frame interface.
package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// ErrMessageTooLarge is returned by Read when a frame exceeds
// Config.ReadLimit. The peer has been sent a 1009 close and the connection
// cannot be read again.
var ErrMessageTooLarge = errors.New("message exceeds read limit")

// Kind is the WebSocket message type of a frame.
type Kind int

const (
	KindText Kind = iota
	KindBinary
)

func (k Kind) String() string {
	if k == KindBinary {
		return "binary"
	}
	return "text"
}

// Frame is one inbound message.
type Frame struct {
	Kind Kind
	Data []byte
}

// Config bounds a single connection.
type Config struct {
	ReadLimit    int64         // max inbound message size in bytes
	WriteTimeout time.Duration // deadline for each outbound frame
}

// DefaultConfig allows 1 MiB messages, enough for ~16 s of hex-encoded
// 16 kHz PCM16 in one envelope.
func DefaultConfig() Config {
	return Config{
		ReadLimit:    1 << 20,
		WriteTimeout: 5 * time.Second,
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 4 * 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // loopback service, browser clients on any origin
	},
}

// Upgrade switches an HTTP request to a WebSocket connection.
func Upgrade(w http.ResponseWriter, r *http.Request, cfg Config) (*Conn, error) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, err
	}
	return NewConn(ws, cfg), nil
}

// Conn wraps a websocket.Conn. Read must be called from a single goroutine
// and Write from one goroutine at a time; Close is safe from anywhere.
type Conn struct {
	ws        *websocket.Conn
	cfg       Config
	closeOnce sync.Once
	closeErr  error
}

// NewConn wraps an established connection.
func NewConn(ws *websocket.Conn, cfg Config) *Conn {
	if cfg.ReadLimit > 0 {
		ws.SetReadLimit(cfg.ReadLimit)
	}
	return &Conn{ws: ws, cfg: cfg}
}

// RemoteAddr returns the peer address.
func (c *Conn) RemoteAddr() string {
	return c.ws.RemoteAddr().String()
}

// Read blocks for the next data frame. A close by the peer, including a
// dropped TCP connection (1006), is reported as io.EOF. A frame over the
// read limit ends the connection with ErrMessageTooLarge. ctx is not
// consulted while blocked; Close unblocks a pending Read.
func (c *Conn) Read(ctx context.Context) (Frame, error) {
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseNoStatusReceived,
			websocket.CloseAbnormalClosure) {
			return Frame{}, io.EOF
		}
		if errors.Is(err, websocket.ErrReadLimit) {
			return Frame{}, ErrMessageTooLarge
		}
		return Frame{}, err
	}
	kind := KindText
	if mt == websocket.BinaryMessage {
		kind = KindBinary
	}
	return Frame{Kind: kind, Data: data}, nil
}

// Write sends payload as one text frame. The write deadline is the earlier
// of the configured timeout and ctx's deadline.
func (c *Conn) Write(ctx context.Context, payload []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	deadline := time.Time{}
	if c.cfg.WriteTimeout > 0 {
		deadline = time.Now().Add(c.cfg.WriteTimeout)
	}
	if d, ok := ctx.Deadline(); ok && (deadline.IsZero() || d.Before(deadline)) {
		deadline = d
	}
	if err := c.ws.SetWriteDeadline(deadline); err != nil {
		return err
	}
	return c.ws.WriteMessage(websocket.TextMessage, payload)
}

// Close sends a close frame and closes the socket. Subsequent calls return
// the first result.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
		_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(time.Second))
		c.closeErr = c.ws.Close()
		if errors.Is(c.closeErr, net.ErrClosed) {
			c.closeErr = nil
		}
	})
	return c.closeErr
}
