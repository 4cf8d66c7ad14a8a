// Package server represents one accepted connection as a Client: the
// transport handle, a per-connection id for logging, and the negotiated
// username.
package server

import (
	"errors"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

// errClientClosed is returned by Send after Close has been called.
var errClientClosed = errors.New("client connection closed")

// Client pairs a transport with its negotiated username. The username is set
// exactly once, on successful registration. Writes are serialized so that
// concurrent deliveries from the router and session replies cannot
// interleave inside one message.
type Client struct {
	id        string
	transport transport

	nameMu sync.RWMutex
	name   string

	writeMu sync.Mutex
	closed  atomic.Bool
}

func newClient(t transport) *Client {
	return &Client{
		id:        uuid.NewString(),
		transport: t,
	}
}

// ID returns the connection id assigned at accept time, before a username
// is known.
func (c *Client) ID() string {
	return c.id
}

// Name returns the negotiated username, or "" while the session is still
// awaiting one.
func (c *Client) Name() string {
	c.nameMu.RLock()
	defer c.nameMu.RUnlock()
	return c.name
}

func (c *Client) setName(name string) {
	c.nameMu.Lock()
	c.name = name
	c.nameMu.Unlock()
}

// Addr returns the remote address for logging.
func (c *Client) Addr() string {
	return c.transport.RemoteAddr()
}

// Send delivers one protocol message to the peer. It is safe for concurrent
// use and fails once the client has been closed.
func (c *Client) Send(msg string) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if c.closed.Load() {
		return errClientClosed
	}
	return c.transport.WriteLine(msg)
}

// Close shuts the transport down and marks the client dead. It does not wait
// for in-flight writes, so a force-close during shutdown cannot be stalled by
// a slow peer. Closing twice is safe; the second call is a no-op.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	return c.transport.Close()
}
