package server

import (
	"bufio"
	"net"
	"testing"
	"time"
)

// newTestClient builds a Client over one end of an in-memory pipe and drains
// the peer end into a channel so writes never block.
func newTestClient(t *testing.T) (*Client, <-chan string) {
	t.Helper()

	serverSide, peerSide := net.Pipe()

	received := make(chan string, 64)
	go func() {
		scanner := bufio.NewScanner(peerSide)
		for scanner.Scan() {
			received <- scanner.Text()
		}
		close(received)
	}()

	client := newClient(newTCPTransport(serverSide, 512))
	t.Cleanup(func() {
		_ = client.Close()
		_ = peerSide.Close()
	})

	return client, received
}

// registerTestClient registers a named test client as if its session had
// completed username negotiation.
func registerTestClient(t *testing.T, registry *Registry, name string) (*Client, <-chan string) {
	t.Helper()

	client, received := newTestClient(t)
	if err := registry.Register(name, client); err != nil {
		t.Fatalf("Failed to register %q: %v", name, err)
	}
	client.setName(name)
	return client, received
}

// expectLine waits for the next line on ch, failing the test on timeout or a
// closed connection.
func expectLine(t *testing.T, ch <-chan string) string {
	t.Helper()

	select {
	case line, ok := <-ch:
		if !ok {
			t.Fatal("Connection closed before a line arrived")
		}
		return line
	case <-time.After(time.Second):
		t.Fatal("Timed out waiting for a line")
	}
	return ""
}

// expectSilence asserts that no line arrives on ch within the window.
func expectSilence(t *testing.T, ch <-chan string, window time.Duration) {
	t.Helper()

	select {
	case line, ok := <-ch:
		if ok {
			t.Fatalf("Expected no message but received %q", line)
		}
	case <-time.After(window):
	}
}
