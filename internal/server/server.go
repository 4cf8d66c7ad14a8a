// Package server supervises the TCP listener: it accepts connections, spawns
// one tracked session goroutine per connection, and coordinates shutdown.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"sync"
	"time"

	"github.com/tevino/abool"
)

// Server accepts transport streams and runs one session per connection.
// Sessions are tracked so that Shutdown can force-close every outstanding
// connection and wait for all session goroutines deterministically.
type Server struct {
	registry *Registry
	router   *Router

	accepting *abool.AtomicBool
	wg        sync.WaitGroup

	mu       sync.Mutex
	listener net.Listener
	sessions map[*Client]struct{}
}

// NewServer creates a Server with an empty registry, ready to serve.
func NewServer() *Server {
	registry := NewRegistry()
	return &Server{
		registry:  registry,
		router:    NewRouter(registry),
		accepting: abool.New(),
		sessions:  make(map[*Client]struct{}),
	}
}

// Registry exposes the online-user set for gateway handlers and tests.
func (s *Server) Registry() *Registry {
	return s.registry
}

// ListenAndServe binds the configured TCP address and serves until Shutdown.
// A bind failure is fatal and returned to the caller.
func (s *Server) ListenAndServe() error {
	cfg := currentConfig()
	listener, err := net.Listen("tcp", cfg.ListenAddr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", cfg.ListenAddr, err)
	}
	return s.Serve(listener)
}

// Serve accepts connections on listener until it is closed by Shutdown.
// Each accepted connection gets its own session goroutine; the accept loop
// never blocks on a session's lifetime.
func (s *Server) Serve(listener net.Listener) error {
	s.mu.Lock()
	s.listener = listener
	s.mu.Unlock()
	s.accepting.Set()

	log.Printf("Chat relay listening on %s", listener.Addr())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if !s.accepting.IsSet() || isExpectedCloseError(err) {
				return nil
			}
			log.Printf("Accept error: %v", err)
			continue
		}
		s.startSession(newTCPTransport(conn, currentConfig().MaxMessageSize))
	}
}

// startSession wraps the transport in a client and runs its session in a
// tracked goroutine. Both the TCP accept loop and the WebSocket gateway feed
// connections through here.
func (s *Server) startSession(t transport) {
	client := newClient(t)
	session := newSession(client, s.registry, s.router)

	s.mu.Lock()
	s.sessions[client] = struct{}{}
	s.mu.Unlock()

	log.Printf("New connection %s from %s", client.ID(), client.Addr())

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		session.run()

		s.mu.Lock()
		delete(s.sessions, client)
		s.mu.Unlock()
	}()
}

// Shutdown stops accepting, closes the listener, and force-closes every live
// connection, which fails each session's blocked read and drives it into its
// closing path. It then waits for all session goroutines up to timeout and is
// safe to invoke concurrently with ongoing accepts and in-flight sessions.
func (s *Server) Shutdown(timeout time.Duration) error {
	log.Println("Initiating chat relay shutdown...")
	s.accepting.UnSet()

	s.mu.Lock()
	listener := s.listener
	clients := make([]*Client, 0, len(s.sessions))
	for client := range s.sessions {
		clients = append(clients, client)
	}
	s.mu.Unlock()

	if listener != nil {
		if err := listener.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing listener: %v", err)
		}
	}

	for _, client := range clients {
		if err := client.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Error closing connection %s: %v", client.ID(), err)
		}
	}
	log.Printf("Closed %d client connections", len(clients))

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Println("Chat relay shutdown completed")
		return nil
	case <-time.After(timeout):
		log.Println("Chat relay shutdown timeout reached, some sessions may still be running")
		return context.DeadlineExceeded
	}
}
