package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"chat-relay/internal/server"
)

func main() {
	log.Println("Starting chat relay...")

	cfg := server.NewConfigFromEnv()
	server.SetConfig(cfg)

	relay := server.NewServer()

	mux := server.SetupRoutes(relay)
	gateway := server.CreateHTTPServer(cfg.HTTPAddr, mux)
	go func() {
		log.Printf("HTTP gateway listening on %s", gateway.Addr)
		if err := gateway.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("HTTP gateway error: %v", err)
		}
	}()

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- relay.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-shutdown:
		log.Printf("Received %v, shutting down", sig)
	case err := <-serveErr:
		if err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
		return
	}

	_ = server.ShutdownHTTPServer(gateway, 5*time.Second)
	if err := relay.Shutdown(10 * time.Second); err != nil {
		log.Printf("Shutdown incomplete: %v", err)
	}
}
