// Package server abstracts the byte stream under a session as a line
// transport so the same engine serves plain TCP sockets and WebSocket
// connections.
package server

import (
	"bufio"
	"errors"
	"io"
	"net"
	"strings"
	"unicode/utf8"

	"github.com/gorilla/websocket"
)

// errMalformedMessage marks a single unreadable message (invalid encoding or
// an unexpected frame type). It is recoverable: the session logs it and keeps
// reading.
var errMalformedMessage = errors.New("malformed message encoding")

// transport frames one protocol message per call. ReadLine blocks until a
// message, EOF, or a transport error arrives; implementations trim
// surrounding whitespace.
type transport interface {
	ReadLine() (string, error)
	WriteLine(msg string) error
	Close() error
	RemoteAddr() string
}

// tcpTransport frames messages as newline-delimited text lines, so message
// boundaries survive TCP coalescing and fragmentation. The framing decision
// is recorded in DESIGN.md.
type tcpTransport struct {
	conn    net.Conn
	scanner *bufio.Scanner
}

func newTCPTransport(conn net.Conn, maxMessageSize int64) *tcpTransport {
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 256), int(maxMessageSize))
	return &tcpTransport{conn: conn, scanner: scanner}
}

func (t *tcpTransport) ReadLine() (string, error) {
	if !t.scanner.Scan() {
		if err := t.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}

	line := t.scanner.Bytes()
	if !utf8.Valid(line) {
		return "", errMalformedMessage
	}
	return strings.TrimSpace(string(line)), nil
}

func (t *tcpTransport) WriteLine(msg string) error {
	_, err := t.conn.Write(append([]byte(msg), '\n'))
	return err
}

func (t *tcpTransport) Close() error {
	return t.conn.Close()
}

func (t *tcpTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// wsTransport frames one protocol message per WebSocket text frame.
type wsTransport struct {
	conn *websocket.Conn
}

func newWSTransport(conn *websocket.Conn, maxMessageSize int64) *wsTransport {
	conn.SetReadLimit(maxMessageSize)
	return &wsTransport{conn: conn}
}

func (t *wsTransport) ReadLine() (string, error) {
	messageType, data, err := t.conn.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err,
			websocket.CloseNormalClosure,
			websocket.CloseGoingAway,
			websocket.CloseAbnormalClosure) {
			return "", io.EOF
		}
		return "", err
	}

	if messageType != websocket.TextMessage || !utf8.Valid(data) {
		return "", errMalformedMessage
	}
	return strings.TrimSpace(string(data)), nil
}

func (t *wsTransport) WriteLine(msg string) error {
	return t.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

func (t *wsTransport) Close() error {
	return t.conn.Close()
}

func (t *wsTransport) RemoteAddr() string {
	return t.conn.RemoteAddr().String()
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "connection reset by peer") ||
		strings.Contains(errStr, "closed pipe") ||
		strings.Contains(errStr, "broken pipe")
}
