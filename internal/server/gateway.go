// Package server exposes the HTTP surface: a health check and the WebSocket
// gateway that attaches browser clients to the same chat engine as TCP
// clients.
package server

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     checkOrigin,
}

// WebSocketHandler upgrades the request and hands the socket to the relay as
// a regular session. One text frame carries one protocol message, so a
// WebSocket client speaks the same protocol as a TCP client, starting with
// its username.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed. WebSocket endpoint only accepts GET requests.", http.StatusMethodNotAllowed)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	s.startSession(newWSTransport(conn, currentConfig().MaxMessageSize))
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprintf(w, "Chat relay is running!")
}

// SetupRoutes configures and returns an HTTP ServeMux with the health check
// and WebSocket gateway routes bound to the given relay.
func SetupRoutes(s *Server) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.HandleFunc("/ws", s.WebSocketHandler)
	return mux
}

// CreateHTTPServer creates and configures the gateway HTTP server with the
// specified address and handler. It sets reasonable timeout values for
// production use; upgraded WebSocket connections are hijacked and unaffected
// by them.
func CreateHTTPServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
}

// ShutdownHTTPServer gracefully shuts down the gateway HTTP server, waiting
// for active connections to close or until the timeout is reached.
func ShutdownHTTPServer(server *http.Server, timeout time.Duration) error {
	log.Println("Shutting down HTTP gateway...")

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Printf("HTTP gateway shutdown error: %v", err)
		return err
	}

	log.Println("HTTP gateway shutdown completed")
	return nil
}
