// Package ws carries bus envelopes over a websocket to the gateway process.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"github.com/fuad-daoud/discord-relay/bus"
	"github.com/fuad-daoud/discord-relay/logger/dlog"
	"github.com/gorilla/websocket"
	"log/slog"
	"net/http"
	"sync"
	"time"
)

var ErrClosed = errors.New("ws: connection closed")

const writeTimeout = 10 * time.Second

// Frame is one websocket message. Outbound frames name the queue the
// envelope is for; inbound frames leave it empty.
type Frame struct {
	Queue    string          `json:"queue,omitempty"`
	Envelope json.RawMessage `json:"envelope"`
}

// Conn publishes envelopes as frames and reads inbound frames until closed.
// Writes are serialized; reads happen only in Listen.
type Conn struct {
	conn *websocket.Conn
	log  *slog.Logger

	writeMu sync.Mutex
	once    sync.Once
	closed  chan struct{}
}

func Dial(ctx context.Context, url string, header http.Header, logger *slog.Logger) (*Conn, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	c := NewConn(conn, logger)
	c.log.Info("Connected to gateway", "url", url)
	return c, nil
}

// NewConn wraps an established websocket connection.
func NewConn(conn *websocket.Conn, logger *slog.Logger) *Conn {
	if logger == nil {
		logger = dlog.Discard()
	}
	return &Conn{conn: conn, log: logger, closed: make(chan struct{})}
}

func (c *Conn) Publish(ctx context.Context, queue string, env bus.Envelope) error {
	raw, err := bus.Marshal(env)
	if err != nil {
		return err
	}
	frame, err := json.Marshal(Frame{Queue: queue, Envelope: raw})
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}

	select {
	case <-c.closed:
		return ErrClosed
	default:
	}
	deadline := time.Now().Add(writeTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("publish %s: %w", env.Type, err)
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
		return fmt.Errorf("publish %s: %w", env.Type, err)
	}
	return nil
}

// Listen reads frames and hands each envelope to deliver until ctx ends or
// the connection fails. Undecodable frames are logged and skipped; deliver
// errors are logged. The connection stays open for writes after Listen
// returns so queued replies can still be published before Close.
func (c *Conn) Listen(ctx context.Context, deliver func(context.Context, bus.Envelope) error) error {
	stop := context.AfterFunc(ctx, func() { _ = c.conn.SetReadDeadline(time.Now()) })
	defer stop()

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			select {
			case <-c.closed:
				return ErrClosed
			default:
			}
			return fmt.Errorf("read: %w", err)
		}

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			c.log.WarnContext(ctx, "Dropping undecodable frame", "err", err)
			continue
		}
		env, err := bus.Unmarshal(frame.Envelope)
		if err != nil {
			c.log.WarnContext(ctx, "Dropping undecodable envelope", "err", err)
			continue
		}
		if err := deliver(ctx, env); err != nil {
			c.log.ErrorContext(ctx, "Delivery failed", "type", env.Type, "err", err)
		}
	}
}

// Close sends a close frame and closes the connection. It is safe to call
// more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		close(c.closed)
		c.writeMu.Lock()
		_ = c.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
		c.writeMu.Unlock()
		err = c.conn.Close()
	})
	return err
}

var _ bus.Publisher = (*Conn)(nil)
