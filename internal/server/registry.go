// Package server tracks the authoritative set of online users through the
// Registry type, which guards the username-to-client map behind one mutex.
package server

import (
	"errors"
	"sort"
	"sync"
)

// Registration and lookup failures reported by the Registry.
var (
	// ErrNameTaken is returned by Register when the username is already
	// bound to a live connection.
	ErrNameTaken = errors.New("username already taken")
	// ErrNotFound is returned by Lookup when no connection is registered
	// under the username.
	ErrNotFound = errors.New("user not found")
)

// Registry maps usernames to their clients. It is the only shared mutable
// state in the relay; every operation is safe under arbitrary concurrent
// invocation. The lock is never held across a network write: callers that
// deliver messages take a snapshot first and write after the lock is
// released.
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client
}

// NewRegistry creates an empty Registry ready for concurrent use.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
	}
}

// Register atomically checks that name is free and inserts the client.
// It returns ErrNameTaken without overwriting when the name is present.
func (r *Registry) Register(name string, client *Client) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.clients[name]; exists {
		return ErrNameTaken
	}
	r.clients[name] = client
	return nil
}

// Unregister removes the entry for name. Removing an absent name is a no-op
// so that idempotent teardown paths stay cheap.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.clients, name)
}

// Lookup resolves name to its client, or ErrNotFound.
func (r *Registry) Lookup(name string) (*Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	client, exists := r.clients[name]
	if !exists {
		return nil, ErrNotFound
	}
	return client, nil
}

// Names returns a sorted point-in-time view of the registered usernames.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.clients))
	for name := range r.clients {
		names = append(names, name)
	}
	r.mu.RUnlock()

	sort.Strings(names)
	return names
}

// Snapshot returns a point-in-time view of the registered clients. Delivery
// iterates the snapshot so a slow or failing write to one recipient cannot
// block registry access for unrelated sessions.
func (r *Registry) Snapshot() []*Client {
	r.mu.RLock()
	defer r.mu.RUnlock()

	clients := make([]*Client, 0, len(r.clients))
	for _, client := range r.clients {
		clients = append(clients, client)
	}
	return clients
}

// Count reports the number of registered users.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.clients)
}
