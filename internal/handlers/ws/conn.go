package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/shashankxrm/deskdrop/internal/session"
	"go.uber.org/zap"
)

var ErrConnClosed = errors.New("websocket connection closed")

// Transport is the part of *websocket.Conn a Conn drives.
type Transport interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteJSON(v interface{}) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPongHandler(h func(appData string) error)
	Close() error
}

var _ Transport = (*websocket.Conn)(nil)

// Options controls keepalive and write behaviour.
type Options struct {
	PingInterval time.Duration
	PongTimeout  time.Duration
	WriteTimeout time.Duration
}

func (o Options) withDefaults() Options {
	if o.PingInterval <= 0 {
		o.PingInterval = 30 * time.Second
	}
	if o.PongTimeout <= 0 {
		o.PongTimeout = 90 * time.Second
	}
	if o.WriteTimeout <= 0 {
		o.WriteTimeout = 10 * time.Second
	}
	return o
}

// Conn is a session.Channel over one websocket connection. Writes are
// serialized; a failed write or a missed pong closes it.
type Conn struct {
	id        string
	transport Transport
	opts      Options
	log       *zap.Logger

	writeMu   sync.Mutex
	closeOnce sync.Once
	done      chan struct{}
}

var _ session.Channel = (*Conn)(nil)

func NewConn(t Transport, opts Options, log *zap.Logger) *Conn {
	if log == nil {
		log = zap.NewNop()
	}
	c := &Conn{
		id:        uuid.NewString(),
		transport: t,
		opts:      opts.withDefaults(),
		done:      make(chan struct{}),
	}
	c.log = log.With(zap.String("binding_id", c.id))
	return c
}

func (c *Conn) ID() string { return c.id }

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} { return c.done }

func (c *Conn) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

func (c *Conn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		err = c.transport.Close()
	})
	return err
}

// Push sends a link-received event.
func (c *Conn) Push(ctx context.Context, ev session.LinkEvent) error {
	return c.Send(ctx, Envelope{Type: MsgLinkReceived, Payload: LinkReceived{
		URL:       ev.URL,
		LinkID:    ev.LinkID,
		Timestamp: ev.Timestamp,
	}})
}

// Send writes one JSON frame, bounded by the write timeout or ctx's deadline.
func (c *Conn) Send(ctx context.Context, v interface{}) error {
	if !c.Alive() {
		return ErrConnClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	deadline := time.Now().Add(c.opts.WriteTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	if err := c.transport.SetWriteDeadline(deadline); err != nil {
		_ = c.Close()
		return err
	}
	if err := c.transport.WriteJSON(v); err != nil {
		c.log.Debug("write failed, closing", zap.Error(err))
		_ = c.Close()
		return err
	}
	return nil
}

// keepalive arms the read deadline, extends it on every pong and pings at
// PingInterval until the connection closes.
func (c *Conn) keepalive() {
	c.extendReadDeadline()
	c.transport.SetPongHandler(func(string) error {
		c.extendReadDeadline()
		return nil
	})

	go func() {
		ticker := time.NewTicker(c.opts.PingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-c.done:
				return
			case <-ticker.C:
				deadline := time.Now().Add(c.opts.WriteTimeout)
				if err := c.transport.WriteControl(websocket.PingMessage, nil, deadline); err != nil {
					c.log.Debug("ping failed, closing", zap.Error(err))
					_ = c.Close()
					return
				}
			}
		}
	}()
}

func (c *Conn) extendReadDeadline() {
	_ = c.transport.SetReadDeadline(time.Now().Add(c.opts.PongTimeout))
}

// Events starts the keepalive and read loops and returns the connection's
// lifecycle: one EventConnected, an EventMessage per inbound frame, and a
// final EventClosed, after which the channel is closed.
func (c *Conn) Events(deviceID string) <-chan session.Event {
	events := make(chan session.Event, 16)
	c.keepalive()

	go func() {
		defer close(events)
		events <- session.Event{Kind: session.EventConnected, DeviceID: deviceID, Channel: c}
		for {
			_, data, err := c.transport.ReadMessage()
			if err != nil {
				_ = c.Close()
				events <- session.Event{Kind: session.EventClosed, DeviceID: deviceID, Channel: c, Err: err}
				return
			}
			c.extendReadDeadline()
			events <- session.Event{Kind: session.EventMessage, DeviceID: deviceID, Channel: c, Data: data}
		}
	}()
	return events
}
