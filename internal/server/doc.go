// Package server implements the core connection lifecycle and message-routing
// engine for the chat relay.
//
// The implementation is organized into specialized files for configuration,
// the client registry, per-connection sessions, routing, the TCP supervisor,
// and the WebSocket gateway to keep the codebase maintainable and testable as
// the project grows.
package server
