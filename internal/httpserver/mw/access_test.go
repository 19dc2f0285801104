package mw

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrSnakeDoc/clashfun/internal/logger"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
}

func TestMatchHost(t *testing.T) {
	tests := []struct {
		host, pattern string
		want          bool
	}{
		{"localhost:7891", "localhost:7891", true},
		{"localhost:7891", "localhost", true},
		{"LOCALHOST:1", "localhost", true},
		{"127.0.0.1:7891", "127.0.0.1", true},
		{"[::1]:7891", "::1", true},
		{"evil.example:7891", "localhost", false},
		{"localhost:9999", "localhost:7891", false},
		{"api.home.lan:80", "*.home.lan", true},
		{"home.lan", "*.home.lan", false},
		{"[::1]:7891", "[::1]", true},
		{"[::1]", "[::1]", true},
		{"evil.example", "*", true},
	}
	for _, tt := range tests {
		t.Run(tt.host+"/"+tt.pattern, func(t *testing.T) {
			if got := matchHost(tt.host, tt.pattern); got != tt.want {
				t.Errorf("matchHost(%q, %q) = %v, want %v", tt.host, tt.pattern, got, tt.want)
			}
		})
	}
}

func TestEnforceHost(t *testing.T) {
	log := logger.NewNop()
	h := EnforceHost([]string{"localhost", "127.0.0.1"}, log)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/api/status", nil)
	req.Host = "127.0.0.1:7891"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("allowed host got %d", rec.Code)
	}

	req.Host = "attacker.example"
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("rebound host got %d", rec.Code)
	}

	pass := EnforceHost(nil, log)(okHandler())
	rec = httptest.NewRecorder()
	pass.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("empty list must pass through, got %d", rec.Code)
	}
}

func TestAllowOnlyCIDRS(t *testing.T) {
	h := AllowOnlyCIDRS([]string{"10.0.0.0/8", "192.168.1.5"}, true, logger.NewNop())(okHandler())
	tests := []struct {
		name   string
		remote string
		xff    string
		want   int
	}{
		{"cidr", "10.1.2.3:5000", "", http.StatusNoContent},
		{"exact", "192.168.1.5:5000", "", http.StatusNoContent},
		{"denied", "8.8.8.8:5000", "", http.StatusForbidden},
		{"forwarded", "127.0.0.1:5000", "10.9.9.9, 1.1.1.1", http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
			req.RemoteAddr = tt.remote
			if tt.xff != "" {
				req.Header.Set("X-Forwarded-For", tt.xff)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("got %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestRequireNonSimple(t *testing.T) {
	h := RequireNonSimple(logger.NewNop())(okHandler())
	tests := []struct {
		name        string
		method      string
		contentType string
		client      string
		want        int
	}{
		{"get passes", http.MethodGet, "", "", http.StatusNoContent},
		{"json post", http.MethodPost, "application/json; charset=utf-8", "", http.StatusNoContent},
		{"text post with client header", http.MethodPost, "text/plain", "cli", http.StatusNoContent},
		{"text post", http.MethodPost, "text/plain", "", http.StatusForbidden},
		{"form post", http.MethodPost, "application/x-www-form-urlencoded", "", http.StatusForbidden},
		{"bare post", http.MethodPost, "", "", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/subscription", strings.NewReader("ss://x"))
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}
			if tt.client != "" {
				req.Header.Set(ClientHeader, tt.client)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Fatalf("status %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
