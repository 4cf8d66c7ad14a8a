// Package server drives one connection through the session state machine:
// username negotiation, the active message loop, and exactly-once teardown.
package server

import (
	"errors"
	"io"
	"log"
	"sync"
)

// Session owns one client for its whole lifetime. The reading goroutine is
// the only one that transitions the state machine; teardown may additionally
// be triggered by the supervisor force-closing the transport, which fails the
// blocked read and drives the session into its closing path.
type Session struct {
	client   *Client
	registry *Registry
	router   *Router

	teardown sync.Once
}

func newSession(client *Client, registry *Registry, router *Router) *Session {
	return &Session{
		client:   client,
		registry: registry,
		router:   router,
	}
}

// run executes the session to completion. Teardown is guaranteed on every
// exit path, including registration rejections and transport errors.
func (s *Session) run() {
	defer s.close()

	if !s.negotiateUsername() {
		return
	}
	s.messageLoop()
}

// negotiateUsername reads exactly one line as the candidate username and
// validates it. On success the client is registered, welcomed, and announced
// to the other users. Any rejection is reported to the peer and ends the
// session.
func (s *Session) negotiateUsername() bool {
	candidate, err := s.client.transport.ReadLine()
	if err != nil {
		if errors.Is(err, errMalformedMessage) {
			s.reply(reservedUsernameReply)
		} else if !errors.Is(err, io.EOF) && !isExpectedCloseError(err) {
			log.Printf("Connection %s: error reading username: %v", s.client.ID(), err)
		}
		return false
	}

	if rejection := validateUsername(candidate); rejection != "" {
		s.reply(rejection)
		return false
	}

	if err := s.registry.Register(candidate, s.client); err != nil {
		s.reply(takenUsernameReply)
		return false
	}
	s.client.setName(candidate)
	log.Printf("%s connected from %s (connection %s)", candidate, s.client.Addr(), s.client.ID())

	if err := s.client.Send(welcomeMessage(candidate)); err != nil {
		return false
	}

	s.router.Broadcast(joinMessage(candidate), candidate)
	return true
}

// messageLoop reads lines until quit, EOF, or a fatal transport error.
// Malformed messages are transient: logged and skipped.
func (s *Session) messageLoop() {
	for {
		line, err := s.client.transport.ReadLine()
		if err != nil {
			if errors.Is(err, errMalformedMessage) {
				log.Printf("%s sent a malformed message; discarding", s.client.Name())
				continue
			}
			if !errors.Is(err, io.EOF) && !isExpectedCloseError(err) {
				log.Printf("%s: read error: %v", s.client.Name(), err)
			}
			return
		}

		switch {
		case isCommand(line, quitCommand):
			return

		case isCommand(line, listCommand):
			s.reply(activeUsersMessage(s.registry.Names()))

		default:
			if target, body, ok := splitDirected(line); ok {
				s.router.Direct(s.client, target, body)
			} else {
				s.reply(usageReply)
			}
		}
	}
}

// reply writes a message back to this session's own peer, logging delivery
// failures instead of propagating them.
func (s *Session) reply(msg string) {
	if err := s.client.Send(msg); err != nil {
		if !isExpectedCloseError(err) {
			log.Printf("Connection %s: failed to write reply: %v", s.client.ID(), err)
		}
	}
}

// close runs the teardown sequence exactly once regardless of which path
// triggered it: unregister, announce the departure to the remaining users,
// and release the transport. The leave broadcast is skipped when the session
// never registered.
func (s *Session) close() {
	s.teardown.Do(func() {
		name := s.client.Name()
		if name != "" {
			s.registry.Unregister(name)
			s.router.Broadcast(leaveMessage(name), name)
			log.Printf("%s disconnected", name)
		}

		if err := s.client.Close(); err != nil && !isExpectedCloseError(err) {
			log.Printf("Connection %s: error closing transport: %v", s.client.ID(), err)
		}
	})
}
