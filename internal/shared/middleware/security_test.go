package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

func TestIsHostAllowed(t *testing.T) {
	tests := []struct {
		name    string
		host    string
		allowed []string
		want    bool
	}{
		{name: "nothing configured", host: "anything.dev", want: true},
		{name: "exact", host: "api.budget.dev:8443", allowed: []string{"api.budget.dev:8443"}, want: true},
		{name: "port on request only", host: "api.budget.dev:8443", allowed: []string{"api.budget.dev"}, want: true},
		{name: "port on allowed only", host: "api.budget.dev", allowed: []string{"api.budget.dev:443"}, want: true},
		{name: "mixed case and padding", host: " API.Budget.dev ", allowed: []string{"api.budget.dev  "}, want: true},
		{name: "second entry", host: "admin.budget.dev", allowed: []string{"api.budget.dev", "admin.budget.dev"}, want: true},
		{name: "ipv6 bracketed", host: "[::1]:8080", allowed: []string{"::1"}, want: true},
		{name: "ipv6 bare against bracketed", host: "::1", allowed: []string{"[::1]:8080"}, want: true},
		{name: "other ipv6", host: "[::2]:8080", allowed: []string{"[::1]:8080"}, want: false},
		{name: "subdomain", host: "evil.api.budget.dev", allowed: []string{"api.budget.dev"}, want: false},
		{name: "suffix trick", host: "api.budget.dev.evil.com", allowed: []string{"api.budget.dev"}, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHostAllowed(tt.host, tt.allowed); got != tt.want {
				t.Errorf("IsHostAllowed(%q, %v) = %v, want %v", tt.host, tt.allowed, got, tt.want)
			}
		})
	}
}

func TestRedirectHTTPS(t *testing.T) {
	tests := []struct {
		name         string
		target       string
		host         string
		wantStatus   int
		wantLocation string
	}{
		{
			name:         "keeps path and query",
			target:       "http://api.budget.dev/api/expenses?month=2026-03",
			wantStatus:   http.StatusMovedPermanently,
			wantLocation: "https://api.budget.dev/api/expenses?month=2026-03",
		},
		{
			name:         "origin form target",
			target:       "/api/pending/p1/confirm?x=1",
			host:         "api.budget.dev",
			wantStatus:   http.StatusMovedPermanently,
			wantLocation: "https://api.budget.dev/api/pending/p1/confirm?x=1",
		},
		{
			name:       "foreign host",
			target:     "http://evil.com/api/expenses",
			wantStatus: http.StatusBadRequest,
		},
	}

	handler := RedirectHTTPS([]string{"api.budget.dev"})
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.target, nil)
			if tt.host != "" {
				req.Host = tt.host
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)

			if rr.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rr.Code, tt.wantStatus)
			}
			if got := rr.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
		})
	}
}

func TestHSTS(t *testing.T) {
	handler := HSTS(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/pending", nil))

	if rr.Code != http.StatusAccepted {
		t.Errorf("status = %d, want 202", rr.Code)
	}
	if rr.Header().Get("Strict-Transport-Security") == "" {
		t.Error("missing Strict-Transport-Security")
	}
	if got := rr.Header().Get("X-Content-Type-Options"); got != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q, want nosniff", got)
	}
}

func TestRoutePattern(t *testing.T) {
	var got string
	r := chi.NewRouter()
	r.Post("/api/pending/{id}/confirm", func(w http.ResponseWriter, req *http.Request) {
		got = routePattern(req)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/api/pending/t1_2026-03-01/confirm", nil))

	if got != "/api/pending/{id}/confirm" {
		t.Errorf("routePattern = %q, want the chi pattern", got)
	}

	if p := routePattern(httptest.NewRequest(http.MethodGet, "/health", nil)); p != "/health" {
		t.Errorf("routePattern without chi = %q, want the raw path", p)
	}
}
