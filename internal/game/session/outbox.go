// Package session tracks live client connections and their outbound message
// queues. It is the transport-facing registry: the coordinator owns lobby
// membership, this package owns delivery.
package session

import (
	"fmt"
	"sync"
)

// Outbox is a per-connection outbound message queue, bridging the
// coordinator's fire-and-forget broadcasts to the WebSocket write pump.
type Outbox struct {
	connID string
	events chan []byte
	mu     sync.Mutex
	closed bool
}

// NewOutbox creates an Outbox for the given connection ID.
//
// Precondition: connID must be non-empty.
// Postcondition: Returns an Outbox with an open events channel.
func NewOutbox(connID string, bufferSize int) *Outbox {
	if bufferSize <= 0 {
		bufferSize = 64
	}
	return &Outbox{
		connID: connID,
		events: make(chan []byte, bufferSize),
	}
}

// ConnID returns the owning connection's identifier.
func (o *Outbox) ConnID() string {
	return o.connID
}

// Push enqueues data for delivery. Delivery is best-effort: a full queue is
// reported as an error and the message is dropped, never blocking the caller.
//
// Precondition: data must be a non-nil byte slice.
// Postcondition: Data is enqueued, or an error if the outbox is closed or full.
func (o *Outbox) Push(data []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.closed {
		return fmt.Errorf("outbox %s is closed", o.connID)
	}
	select {
	case o.events <- data:
		return nil
	default:
		return fmt.Errorf("outbox %s buffer full", o.connID)
	}
}

// Events returns the read-only delivery channel.
// The write pump goroutine drains this channel onto the socket.
func (o *Outbox) Events() <-chan []byte {
	return o.events
}

// Close marks the outbox as closed and closes the events channel.
//
// Postcondition: The events channel is closed. Further Push calls return an error.
func (o *Outbox) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if !o.closed {
		o.closed = true
		close(o.events)
	}
	return nil
}

// IsClosed reports whether the outbox has been closed.
func (o *Outbox) IsClosed() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.closed
}
