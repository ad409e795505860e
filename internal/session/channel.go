package session

import (
	"context"
	"time"
)

// LinkEvent is the payload pushed to a receiving device for one delivered link.
type LinkEvent struct {
	URL       string    `json:"url"`
	LinkID    string    `json:"linkId"`
	Timestamp time.Time `json:"timestamp"`
}

// Channel is a live bidirectional connection to one device, independent of transport.
type Channel interface {
	// ID identifies this binding. A reconnect of the same device gets a new ID.
	ID() string
	// Push sends one link event. A nil error means the frame was written.
	Push(ctx context.Context, ev LinkEvent) error
	// Alive is false once the channel has been closed by either side.
	Alive() bool
	// Close terminates the channel. It is safe to call more than once.
	Close() error
}

// EventKind enumerates per-connection lifecycle events.
type EventKind int

const (
	EventConnected EventKind = iota
	EventMessage
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventConnected:
		return "connected"
	case EventMessage:
		return "message"
	case EventClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Event is one item in a connection's dispatch loop. Events of one connection
// are consumed by a single goroutine, in order.
type Event struct {
	Kind     EventKind
	DeviceID string
	Channel  Channel
	Data     []byte
	Err      error
}
