// Package server routes messages: broadcast fan-out over a registry snapshot
// and directed delivery to one named recipient.
package server

import (
	"errors"
	"log"
)

// Router resolves a message's destinations against the registry and performs
// delivery. Delivery is best-effort: a failure to reach one recipient never
// aborts delivery to the others and never fails the sender's read loop.
type Router struct {
	registry *Registry
}

// NewRouter creates a Router backed by the given registry.
func NewRouter(registry *Registry) *Router {
	return &Router{registry: registry}
}

// Broadcast delivers body to every registered user except excludeName.
// The registry snapshot is taken under the lock; the writes happen after it
// is released, so one slow recipient cannot stall unrelated sessions.
func (rt *Router) Broadcast(body, excludeName string) {
	for _, client := range rt.registry.Snapshot() {
		if client.Name() == excludeName {
			continue
		}
		if err := client.Send(body); err != nil {
			if !isExpectedCloseError(err) {
				log.Printf("Broadcast to %s failed: %v", client.Name(), err)
			}
		}
	}
}

// Direct relays body from sender to the named target. An unknown target is
// reported back to the sender. A write failure means the target's transport
// outlived its registry entry: the stale entry is removed and the transport
// closed, with no retry.
func (rt *Router) Direct(sender *Client, target, body string) {
	targetClient, err := rt.registry.Lookup(target)
	if errors.Is(err, ErrNotFound) {
		if sendErr := sender.Send(notFoundMessage(target)); sendErr != nil {
			log.Printf("Failed to notify %s about unknown target %q: %v", sender.Name(), target, sendErr)
		}
		return
	}

	if err := targetClient.Send(relayMessage(sender.Name(), body)); err != nil {
		log.Printf("Removing unreachable user %q: %v", target, err)
		rt.registry.Unregister(target)
		_ = targetClient.Close()
	}
}
