// Package server provides configuration helpers that define runtime defaults
// and validation for the chat relay service.
package server

import (
	"os"
	"strconv"
	"strings"
	"sync"
)

// Config holds the relay configuration settings for both the TCP listener and
// the HTTP/WebSocket gateway.
type Config struct {
	// ListenAddr is the address of the primary TCP chat listener.
	ListenAddr string
	// HTTPAddr is the address of the HTTP server hosting the health check
	// and the WebSocket gateway.
	HTTPAddr string
	// AllowedOrigins lists the origins accepted by the WebSocket gateway.
	// A single "*" entry allows any origin.
	AllowedOrigins []string
	// MaxMessageSize bounds one protocol message (one TCP line or one
	// WebSocket frame) in bytes.
	MaxMessageSize int64
}

var (
	configMu        sync.RWMutex
	activeConfig    Config
	allowedOrigins  map[string]struct{}
	allowAllOrigins bool
)

func init() {
	SetConfig(nil)
}

func defaultConfig() Config {
	return Config{
		ListenAddr: "localhost:8080",
		HTTPAddr:   ":8081",
		AllowedOrigins: []string{
			"http://localhost:8081",
		},
		MaxMessageSize: 512,
	}
}

func sanitizeConfig(cfg Config) Config {
	if cfg.ListenAddr == "" {
		cfg.ListenAddr = "localhost:8080"
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8081"
	}

	if cfg.MaxMessageSize <= 0 {
		cfg.MaxMessageSize = 512
	}

	normalizedOrigins, allowAll := normalizeOrigins(cfg.AllowedOrigins)
	cfg.AllowedOrigins = normalizedOrigins

	configMu.Lock()
	defer configMu.Unlock()

	activeConfig = cfg
	allowAllOrigins = allowAll
	allowedOrigins = make(map[string]struct{}, len(normalizedOrigins))
	for _, origin := range normalizedOrigins {
		allowedOrigins[origin] = struct{}{}
	}

	return cfg
}

// SetConfig applies the provided configuration. Passing nil resets to defaults.
func SetConfig(cfg *Config) {
	if cfg == nil {
		defaultCfg := defaultConfig()
		sanitizeConfig(defaultCfg)
		return
	}

	sanitized := Config{
		ListenAddr:     cfg.ListenAddr,
		HTTPAddr:       cfg.HTTPAddr,
		AllowedOrigins: append([]string(nil), cfg.AllowedOrigins...),
		MaxMessageSize: cfg.MaxMessageSize,
	}
	sanitizeConfig(sanitized)
}

func currentConfig() Config {
	configMu.RLock()
	defer configMu.RUnlock()

	cfg := activeConfig
	cfg.AllowedOrigins = append([]string(nil), cfg.AllowedOrigins...)
	return cfg
}

// NewConfig creates a Config instance populated with default values for all settings.
func NewConfig() *Config {
	cfg := defaultConfig()
	return &cfg
}

// NewConfigFromEnv creates a Config instance from environment variables.
// Falls back to default values if environment variables are not set.
func NewConfigFromEnv() *Config {
	cfg := defaultConfig()

	// Load CHAT_ADDR
	if addr := os.Getenv("CHAT_ADDR"); addr != "" {
		cfg.ListenAddr = addr
	}

	// Load HTTP_ADDR
	if addr := os.Getenv("HTTP_ADDR"); addr != "" {
		cfg.HTTPAddr = addr
	}

	// Load ALLOWED_ORIGINS
	if origins := os.Getenv("ALLOWED_ORIGINS"); origins != "" {
		cfg.AllowedOrigins = parseOrigins(origins)
	}

	// Load MAX_MESSAGE_SIZE
	if maxSize := os.Getenv("MAX_MESSAGE_SIZE"); maxSize != "" {
		cfg.MaxMessageSize = parseMaxMessageSize(maxSize, cfg.MaxMessageSize)
	}

	return &cfg
}

func parseOrigins(origins string) []string {
	parts := strings.Split(origins, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

func parseMaxMessageSize(value string, defaultValue int64) int64 {
	if size, err := strconv.ParseInt(value, 10, 64); err == nil && size > 0 {
		return size
	}
	return defaultValue
}
