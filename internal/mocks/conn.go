package mocks

import (
	"errors"
	"sync"
	"time"

	"room-chat/internal/models"
)

var ErrConnRejected = errors.New("connection rejected event")

// RecordingConn is a chat.Conn that records every delivered event.
type RecordingConn struct {
	id       string
	identity models.Identity

	mu     sync.Mutex
	events []models.RoomEvent
	closed bool
	reject bool
	notify chan struct{}
}

func NewRecordingConn(id string, identity models.Identity) *RecordingConn {
	return &RecordingConn{id: id, identity: identity, notify: make(chan struct{}, 1)}
}

func (c *RecordingConn) ID() string                { return c.id }
func (c *RecordingConn) Identity() models.Identity { return c.identity }

func (c *RecordingConn) Deliver(evt models.RoomEvent) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed || c.reject {
		return ErrConnRejected
	}
	c.events = append(c.events, evt)
	select {
	case c.notify <- struct{}{}:
	default:
	}
	return nil
}

func (c *RecordingConn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Reject makes every following Deliver fail.
func (c *RecordingConn) Reject() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reject = true
}

func (c *RecordingConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *RecordingConn) Events() []models.RoomEvent {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.RoomEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Messages returns the bodies of received receive-message events in order.
func (c *RecordingConn) Messages() []string {
	var bodies []string
	for _, evt := range c.Events() {
		if p, ok := evt.Payload.(models.MessagePayload); ok {
			bodies = append(bodies, p.Message.Body)
		}
	}
	return bodies
}

// Histories returns every previous-messages payload received.
func (c *RecordingConn) Histories() []models.HistoryPayload {
	var out []models.HistoryPayload
	for _, evt := range c.Events() {
		if p, ok := evt.Payload.(models.HistoryPayload); ok {
			out = append(out, p)
		}
	}
	return out
}

// WaitForEvents blocks until at least n events were delivered or timeout elapses.
func (c *RecordingConn) WaitForEvents(n int, timeout time.Duration) bool {
	deadline := time.After(timeout)
	for {
		c.mu.Lock()
		got := len(c.events)
		c.mu.Unlock()
		if got >= n {
			return true
		}
		select {
		case <-c.notify:
		case <-deadline:
			return false
		}
	}
}
