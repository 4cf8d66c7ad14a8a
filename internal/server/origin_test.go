package server

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func requestWithOrigin(origin string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/ws", nil)
	if origin != "" {
		req.Header.Set("Origin", origin)
	}
	return req
}

// TestCheckOriginAllowList verifies that only configured origins pass.
func TestCheckOriginAllowList(t *testing.T) {
	resetConfig(t)
	SetConfig(&Config{AllowedOrigins: []string{"http://example.com"}})

	if !checkOrigin(requestWithOrigin("http://example.com")) {
		t.Error("Configured origin was rejected")
	}
	if !checkOrigin(requestWithOrigin("HTTP://EXAMPLE.COM")) {
		t.Error("Origin matching should be case-insensitive")
	}
	if checkOrigin(requestWithOrigin("http://evil.example.com")) {
		t.Error("Unlisted origin was accepted")
	}
	if checkOrigin(requestWithOrigin("")) {
		t.Error("Missing origin header was accepted")
	}
}

// TestCheckOriginWildcard verifies that "*" allows any well-formed origin.
func TestCheckOriginWildcard(t *testing.T) {
	resetConfig(t)
	SetConfig(&Config{AllowedOrigins: []string{"*"}})

	if !checkOrigin(requestWithOrigin("http://anywhere.example.com")) {
		t.Error("Wildcard configuration rejected a valid origin")
	}
	if checkOrigin(requestWithOrigin("not a url")) {
		t.Error("Malformed origin was accepted")
	}
}

// TestNormalizeOrigin verifies scheme/host normalization.
func TestNormalizeOrigin(t *testing.T) {
	tests := []struct {
		origin string
		want   string
		wantOK bool
	}{
		{"http://Example.com", "http://example.com", true},
		{"https://example.com:8081", "https://example.com:8081", true},
		{"example.com", "", false},
		{"", "", false},
	}

	for _, tt := range tests {
		got, ok := normalizeOrigin(tt.origin)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("normalizeOrigin(%q) = (%q, %v), want (%q, %v)",
				tt.origin, got, ok, tt.want, tt.wantOK)
		}
	}
}
