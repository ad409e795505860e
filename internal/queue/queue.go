// Package queue holds undelivered links in per-target FIFO lists.
//
// Keys live in two namespaces, queue:device:{deviceId} and queue:user:{userId}.
// Entries are appended at the tail and removed from the head, so a drained
// snapshot of n entries is always the first n entries of the list even while
// new entries are being appended.
package queue

import (
	"context"
	"strings"
	"time"
)

const (
	devicePrefix = "queue:device:"
	userPrefix   = "queue:user:"
)

// Key names one queue.
type Key string

// DeviceKey is the queue for links addressed to one receiving device.
func DeviceKey(deviceID string) Key {
	return Key(devicePrefix + deviceID)
}

// UserKey is the queue for links submitted before the user paired any device.
func UserKey(userID string) Key {
	return Key(userPrefix + userID)
}

func (k Key) String() string {
	return string(k)
}

// IsUser reports whether k is in the per-user namespace.
func (k Key) IsUser() bool {
	return strings.HasPrefix(string(k), userPrefix)
}

// Entry is one queued link.
type Entry struct {
	URL       string    `json:"url"`
	LinkID    string    `json:"linkId"`
	UserID    string    `json:"userId"`
	Timestamp time.Time `json:"timestamp"`

	// Invalid marks a stored item that could not be decoded. It still occupies
	// a position in the list and must be counted when acknowledging.
	Invalid bool `json:"-"`
}

// Store is the durable queue. Implementations must keep per-key FIFO order.
type Store interface {
	// Append adds e at the tail of key.
	Append(ctx context.Context, key Key, e Entry) error
	// Drain reads every entry of key in order without removing anything.
	// A missing key is an empty queue.
	Drain(ctx context.Context, key Key) ([]Entry, error)
	// Ack removes the first n entries of key, which must be a prefix
	// previously returned by Drain.
	Ack(ctx context.Context, key Key, n int) error
	// Clear drops key entirely, including entries appended after any Drain.
	Clear(ctx context.Context, key Key) error
	// Len returns the number of entries under key.
	Len(ctx context.Context, key Key) (int64, error)
}
