package server

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"
)

type sessionFixture struct {
	peer     net.Conn
	received <-chan string
	done     <-chan struct{}
	session  *Session
}

// startTestSession runs a session against one end of an in-memory pipe and
// returns the peer end plus channels to observe replies and termination.
func startTestSession(t *testing.T, registry *Registry, router *Router) *sessionFixture {
	t.Helper()

	serverSide, peerSide := net.Pipe()
	client := newClient(newTCPTransport(serverSide, 512))
	session := newSession(client, registry, router)

	done := make(chan struct{})
	go func() {
		session.run()
		close(done)
	}()

	received := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(peerSide)
		for scanner.Scan() {
			received <- scanner.Text()
		}
		close(received)
	}()

	t.Cleanup(func() { _ = peerSide.Close() })

	return &sessionFixture{
		peer:     peerSide,
		received: received,
		done:     done,
		session:  session,
	}
}

func (f *sessionFixture) send(t *testing.T, line string) {
	t.Helper()
	if _, err := fmt.Fprintf(f.peer, "%s\n", line); err != nil {
		t.Fatalf("Failed to send %q: %v", line, err)
	}
}

func (f *sessionFixture) waitDone(t *testing.T) {
	t.Helper()
	select {
	case <-f.done:
	case <-time.After(time.Second):
		t.Fatal("Session did not terminate")
	}
}

// TestSessionWelcomesValidUsername verifies the happy registration path: one
// line in, a welcome containing "Welcome" out, and a registry entry.
func TestSessionWelcomesValidUsername(t *testing.T) {
	registry := NewRegistry()
	fixture := startTestSession(t, registry, NewRouter(registry))

	fixture.send(t, "alice")

	welcome := expectLine(t, fixture.received)
	if !strings.Contains(welcome, "Welcome") {
		t.Errorf("Welcome reply %q does not contain %q", welcome, "Welcome")
	}
	if !strings.Contains(welcome, "alice") {
		t.Errorf("Welcome reply %q does not contain the username", welcome)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected 1 registered user, got %d", registry.Count())
	}
}

// TestSessionRejectsEmptyUsername verifies that a whitespace-only candidate
// is rejected and the session closes.
func TestSessionRejectsEmptyUsername(t *testing.T) {
	registry := NewRegistry()
	fixture := startTestSession(t, registry, NewRouter(registry))

	fixture.send(t, "   ")

	if got := expectLine(t, fixture.received); got != "Username cannot be empty" {
		t.Errorf("Reply = %q, want %q", got, "Username cannot be empty")
	}
	fixture.waitDone(t)
	if registry.Count() != 0 {
		t.Errorf("Registry should be empty, has %d entries", registry.Count())
	}
}

// TestSessionRejectsReservedUsername verifies that the list-command token is
// not usable as a username, regardless of case.
func TestSessionRejectsReservedUsername(t *testing.T) {
	registry := NewRegistry()
	fixture := startTestSession(t, registry, NewRouter(registry))

	fixture.send(t, "/LIST")

	if got := expectLine(t, fixture.received); got != "Invalid username" {
		t.Errorf("Reply = %q, want %q", got, "Invalid username")
	}
	fixture.waitDone(t)
}

// TestSessionRejectsTakenUsername verifies the AlreadyTaken path.
func TestSessionRejectsTakenUsername(t *testing.T) {
	registry := NewRegistry()
	registerTestClient(t, registry, "alice")

	fixture := startTestSession(t, registry, NewRouter(registry))
	fixture.send(t, "alice")

	if got := expectLine(t, fixture.received); got != "Username already taken" {
		t.Errorf("Reply = %q, want %q", got, "Username already taken")
	}
	fixture.waitDone(t)
	if registry.Count() != 1 {
		t.Errorf("Expected only the original entry, got %d", registry.Count())
	}
}

// TestSessionJoinBroadcastExcludesSelf verifies that other users hear about a
// join and the joining user does not.
func TestSessionJoinBroadcastExcludesSelf(t *testing.T) {
	registry := NewRegistry()
	router := NewRouter(registry)
	_, bobReceived := registerTestClient(t, registry, "bob")

	fixture := startTestSession(t, registry, router)
	fixture.send(t, "alice")
	expectLine(t, fixture.received) // welcome

	if got := expectLine(t, bobReceived); got != "User alice has entered the chat." {
		t.Errorf("Bob received %q", got)
	}
	expectSilence(t, fixture.received, 100*time.Millisecond)
}

// TestSessionListCommand verifies the /list reply goes to the sender only and
// reflects the current registry.
func TestSessionListCommand(t *testing.T) {
	registry := NewRegistry()
	router := NewRouter(registry)
	_, bobReceived := registerTestClient(t, registry, "bob")

	fixture := startTestSession(t, registry, router)
	fixture.send(t, "alice")
	expectLine(t, fixture.received) // welcome
	expectLine(t, bobReceived)      // join notification

	fixture.send(t, "/list")

	if got := expectLine(t, fixture.received); got != "Active users: alice, bob" {
		t.Errorf("List reply = %q, want %q", got, "Active users: alice, bob")
	}
	expectSilence(t, bobReceived, 100*time.Millisecond)
}

// TestSessionUsageError verifies that a line with no separator and no command
// earns a usage hint and keeps the session alive.
func TestSessionUsageError(t *testing.T) {
	registry := NewRegistry()
	fixture := startTestSession(t, registry, NewRouter(registry))

	fixture.send(t, "alice")
	expectLine(t, fixture.received) // welcome

	fixture.send(t, "hello everyone")
	if got := expectLine(t, fixture.received); got != "Use '/list' or 'user: message'" {
		t.Errorf("Reply = %q", got)
	}

	// Session must still be responsive.
	fixture.send(t, "/list")
	if got := expectLine(t, fixture.received); got != "Active users: alice" {
		t.Errorf("List reply = %q", got)
	}
}

// TestSessionSkipsMalformedMessage verifies that invalid encoding on one read
// is transient: the line is discarded and the loop continues.
func TestSessionSkipsMalformedMessage(t *testing.T) {
	registry := NewRegistry()
	fixture := startTestSession(t, registry, NewRouter(registry))

	fixture.send(t, "alice")
	expectLine(t, fixture.received) // welcome

	if _, err := fixture.peer.Write([]byte{0xff, 0xfe, 0xfd, '\n'}); err != nil {
		t.Fatalf("Failed to send malformed bytes: %v", err)
	}

	fixture.send(t, "/list")
	if got := expectLine(t, fixture.received); got != "Active users: alice" {
		t.Errorf("List reply after malformed message = %q", got)
	}
}

// TestSessionQuitTearsDown verifies the graceful /quit path: unregister,
// leave broadcast to the others, connection closed.
func TestSessionQuitTearsDown(t *testing.T) {
	registry := NewRegistry()
	router := NewRouter(registry)
	_, bobReceived := registerTestClient(t, registry, "bob")

	fixture := startTestSession(t, registry, router)
	fixture.send(t, "alice")
	expectLine(t, fixture.received) // welcome
	expectLine(t, bobReceived)      // join notification

	fixture.send(t, "/QUIT")
	fixture.waitDone(t)

	if got := expectLine(t, bobReceived); got != "User alice has left the chat." {
		t.Errorf("Bob received %q", got)
	}
	if registry.Count() != 1 {
		t.Errorf("Expected only bob to remain, got %d entries", registry.Count())
	}
}

// TestSessionTeardownIdempotent verifies that running teardown twice does not
// double-broadcast the leave notification or disturb the registry.
func TestSessionTeardownIdempotent(t *testing.T) {
	registry := NewRegistry()
	router := NewRouter(registry)
	_, bobReceived := registerTestClient(t, registry, "bob")

	fixture := startTestSession(t, registry, router)
	fixture.send(t, "alice")
	expectLine(t, fixture.received) // welcome
	expectLine(t, bobReceived)      // join notification

	// Force a read failure, then invoke teardown again directly.
	_ = fixture.peer.Close()
	fixture.waitDone(t)
	fixture.session.close()

	if got := expectLine(t, bobReceived); got != "User alice has left the chat." {
		t.Errorf("Bob received %q", got)
	}
	expectSilence(t, bobReceived, 100*time.Millisecond)
	if registry.Count() != 1 {
		t.Errorf("Expected only bob to remain, got %d entries", registry.Count())
	}
}
