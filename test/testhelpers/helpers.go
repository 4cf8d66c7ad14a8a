// Package testhelpers provides common utilities for integration-testing the
// chat relay: starting a relay on an ephemeral port, and a line-oriented TCP
// test client with expect-style assertions.
package testhelpers

import (
	"bufio"
	"fmt"
	"net"
	"strings"
	"testing"
	"time"

	"chat-relay/internal/server"
)

// DefaultWait bounds how long Expect waits for a matching line.
const DefaultWait = 2 * time.Second

// StartRelay starts a relay server on an ephemeral loopback port and returns
// it together with the address to dial. The relay is shut down when the test
// finishes.
func StartRelay(t *testing.T) (*server.Server, string) {
	t.Helper()

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Failed to listen: %v", err)
	}

	relay := server.NewServer()
	go func() {
		_ = relay.Serve(listener)
	}()

	t.Cleanup(func() {
		_ = relay.Shutdown(2 * time.Second)
	})

	return relay, listener.Addr().String()
}

// ChatClient is a line-oriented TCP client for driving relay sessions in
// tests. Received lines are buffered on a channel by a background reader.
type ChatClient struct {
	t     *testing.T
	conn  net.Conn
	lines chan string
}

// Dial connects a ChatClient to the relay at addr.
func Dial(t *testing.T, addr string) *ChatClient {
	t.Helper()

	conn, err := net.Dial("tcp", addr)
	if err != nil {
		t.Fatalf("Failed to dial %s: %v", addr, err)
	}

	client := &ChatClient{
		t:     t,
		conn:  conn,
		lines: make(chan string, 64),
	}

	go func() {
		scanner := bufio.NewScanner(conn)
		for scanner.Scan() {
			client.lines <- scanner.Text()
		}
		close(client.lines)
	}()

	t.Cleanup(client.Close)
	return client
}

// Close terminates the client's connection. Safe to call more than once.
func (c *ChatClient) Close() {
	_ = c.conn.Close()
}

// Send writes one protocol line to the relay.
func (c *ChatClient) Send(line string) {
	c.t.Helper()
	if _, err := fmt.Fprintf(c.conn, "%s\n", line); err != nil {
		c.t.Fatalf("Failed to send %q: %v", line, err)
	}
}

// Register submits name as the username and waits for the welcome reply.
func (c *ChatClient) Register(name string) {
	c.t.Helper()
	c.Send(name)
	c.Expect("Welcome")
}

// Expect waits for a line containing substr and returns it. Non-matching
// lines (such as interleaved join notifications) are consumed and skipped.
func (c *ChatClient) Expect(substr string) string {
	c.t.Helper()

	deadline := time.After(DefaultWait)
	for {
		select {
		case line, ok := <-c.lines:
			if !ok {
				c.t.Fatalf("Connection closed while waiting for %q", substr)
			}
			if strings.Contains(line, substr) {
				return line
			}
		case <-deadline:
			c.t.Fatalf("Timed out waiting for a line containing %q", substr)
		}
	}
}

// ExpectClosed waits for the server to close this client's connection.
func (c *ChatClient) ExpectClosed() {
	c.t.Helper()

	deadline := time.After(DefaultWait)
	for {
		select {
		case _, ok := <-c.lines:
			if !ok {
				return
			}
		case <-deadline:
			c.t.Fatal("Timed out waiting for the connection to close")
		}
	}
}

// Drain discards any lines already buffered, after a short settle delay, so
// a following ExpectSilence observes only new traffic.
func (c *ChatClient) Drain() {
	time.Sleep(100 * time.Millisecond)
	for {
		select {
		case <-c.lines:
		default:
			return
		}
	}
}

// ExpectSilence asserts that no line arrives within the window.
func (c *ChatClient) ExpectSilence(window time.Duration) {
	c.t.Helper()

	select {
	case line, ok := <-c.lines:
		if ok {
			c.t.Fatalf("Expected no message but received %q", line)
		}
	case <-time.After(window):
	}
}
