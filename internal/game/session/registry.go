package session

import (
	"fmt"
	"sync"
)

// DefaultName is the display name assigned to a connection until a
// create_lobby command provides one.
const DefaultName = "anon"

// Conn is a live transport connection known to the registry.
type Conn struct {
	// ID is the opaque connection identifier assigned on accept.
	ID string
	// Name is the display name, set once via a lobby command.
	Name string
	// Outbox is the connection's outbound message queue.
	Outbox *Outbox
}

// Registry tracks all live connections.
// All methods are safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	conns map[string]*Conn
}

// NewRegistry creates an empty connection Registry.
func NewRegistry() *Registry {
	return &Registry{
		conns: make(map[string]*Conn),
	}
}

// Add registers a new connection and allocates its outbox.
//
// Precondition: connID must be non-empty.
// Postcondition: Returns the created Conn, or an error if the ID is already registered.
func (r *Registry) Add(connID string) (*Conn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.conns[connID]; exists {
		return nil, fmt.Errorf("connection %q already registered", connID)
	}

	c := &Conn{
		ID:     connID,
		Name:   DefaultName,
		Outbox: NewOutbox(connID, 64),
	}
	r.conns[connID] = c
	return c, nil
}

// Remove deregisters a connection and closes its outbox.
//
// Postcondition: Returns an error if the connection is unknown; the outbox is
// closed otherwise.
func (r *Registry) Remove(connID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return fmt.Errorf("connection %q not registered", connID)
	}
	delete(r.conns, connID)
	return c.Outbox.Close()
}

// Get returns the connection with the given ID, or nil if unknown.
func (r *Registry) Get(connID string) *Conn {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.conns[connID]
}

// SetName records the display name for a connection.
//
// Precondition: name must be non-empty.
// Postcondition: Returns an error if the connection is unknown.
func (r *Registry) SetName(connID, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.conns[connID]
	if !ok {
		return fmt.Errorf("connection %q not registered", connID)
	}
	c.Name = name
	return nil
}

// Name returns the display name for a connection, or DefaultName if unknown.
func (r *Registry) Name(connID string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if c, ok := r.conns[connID]; ok {
		return c.Name
	}
	return DefaultName
}

// Send enqueues data to one connection's outbox.
//
// Postcondition: Returns an error if the connection is unknown or its outbox
// rejected the message.
func (r *Registry) Send(connID string, data []byte) error {
	r.mu.RLock()
	c, ok := r.conns[connID]
	r.mu.RUnlock()

	if !ok {
		return fmt.Errorf("connection %q not registered", connID)
	}
	return c.Outbox.Push(data)
}

// Broadcast enqueues data to every registered connection. Full or closed
// outboxes are skipped; delivery is at-most-once per connection.
//
// Postcondition: Returns the number of connections the message was enqueued to.
func (r *Registry) Broadcast(data []byte) int {
	r.mu.RLock()
	conns := make([]*Conn, 0, len(r.conns))
	for _, c := range r.conns {
		conns = append(conns, c)
	}
	r.mu.RUnlock()

	sent := 0
	for _, c := range conns {
		if err := c.Outbox.Push(data); err == nil {
			sent++
		}
	}
	return sent
}

// Count returns the number of registered connections.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.conns)
}
