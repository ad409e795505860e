package testutil

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"github.com/shashankxrm/deskdrop/internal/session"
)

var ErrChannelClosed = errors.New("channel closed")

// FakeChannel is an in-memory session.Channel that records pushed events.
type FakeChannel struct {
	id string

	mu        sync.Mutex
	closed    bool
	pushed    []session.LinkEvent
	failAfter int // pushes allowed before failing; negative means never fail
}

func NewFakeChannel() *FakeChannel {
	return &FakeChannel{id: uuid.NewString(), failAfter: -1}
}

// FailAfter makes the channel die after n more successful pushes.
func (c *FakeChannel) FailAfter(n int) *FakeChannel {
	c.mu.Lock()
	c.failAfter = n
	c.mu.Unlock()
	return c
}

func (c *FakeChannel) ID() string { return c.id }

func (c *FakeChannel) Push(_ context.Context, ev session.LinkEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrChannelClosed
	}
	if c.failAfter == 0 {
		c.closed = true
		return ErrChannelClosed
	}
	if c.failAfter > 0 {
		c.failAfter--
	}
	c.pushed = append(c.pushed, ev)
	return nil
}

func (c *FakeChannel) Alive() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

func (c *FakeChannel) Close() error {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	return nil
}

// Pushed returns a copy of the events pushed so far.
func (c *FakeChannel) Pushed() []session.LinkEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]session.LinkEvent, len(c.pushed))
	copy(out, c.pushed)
	return out
}

// PushedIDs returns the link ids pushed so far, in order.
func (c *FakeChannel) PushedIDs() []string {
	events := c.Pushed()
	ids := make([]string, len(events))
	for i, ev := range events {
		ids[i] = ev.LinkID
	}
	return ids
}
