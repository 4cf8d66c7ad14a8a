// Package server normalizes and validates HTTP origins for the WebSocket
// gateway to enforce the configured allow-list.
package server

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

func normalizeOrigins(origins []string) ([]string, bool) {
	if len(origins) == 0 {
		return nil, false
	}

	normalized := make([]string, 0, len(origins))
	allowAll := false

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}

		if trimmed == "*" {
			allowAll = true
			continue
		}

		normalizedOrigin, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}

		normalized = append(normalized, normalizedOrigin)
	}

	return normalized, allowAll
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil || parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

// checkOrigin is the upgrader's origin policy: the request origin must
// normalize to an entry of the configured allow-list, unless "*" is
// configured.
func checkOrigin(r *http.Request) bool {
	originHeader := r.Header.Get("Origin")
	normalizedOrigin, ok := normalizeOrigin(originHeader)
	if !ok {
		log.Printf("Blocked WebSocket connection with invalid origin: %q", originHeader)
		return false
	}

	configMu.RLock()
	defer configMu.RUnlock()

	if allowAllOrigins {
		return true
	}
	if _, exists := allowedOrigins[normalizedOrigin]; exists {
		return true
	}

	log.Printf("Blocked WebSocket connection from disallowed origin: %q", originHeader)
	return false
}
