package trace

import (
	"bytes"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"fintrack/internal/log"
)

func TestMiddlewareAssignsRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(log.Config{Level: slog.LevelInfo, Component: log.ComponentHTTP, Output: &buf})
	m := NewMiddleware(logger, func(*http.Request) string { return "10.0.0.9" })

	var seen string
	h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		log.FromContext(r.Context()).Info("handled")
		http.NotFound(w, r)
	}))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/missing", nil))

	if !strings.HasPrefix(seen, "req_") {
		t.Fatalf("request id = %q", seen)
	}
	if rr.Header().Get(Header) != seen {
		t.Fatalf("response header %q != context id %q", rr.Header().Get(Header), seen)
	}
	out := buf.String()
	if strings.Count(out, "request_id="+seen) != 2 {
		t.Fatalf("expected id on handler and completion lines: %q", out)
	}
	if !strings.Contains(out, "status_code=404") || !strings.Contains(out, "client_ip=10.0.0.9") {
		t.Fatalf("completion line missing fields: %q", out)
	}
	if m.Total() != 1 {
		t.Fatalf("Total = %d", m.Total())
	}
}

func TestMiddlewareReusesIncomingID(t *testing.T) {
	m := NewMiddleware(log.New(log.Config{Output: &bytes.Buffer{}}), nil)
	tests := []struct {
		in   string
		keep bool
	}{
		{"abc-123_X", true},
		{"", false},
		{"has space", false},
		{strings.Repeat("a", 65), false},
	}
	for _, tt := range tests {
		var seen string
		h := m.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = GetRequestID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(Header, tt.in)
		h.ServeHTTP(httptest.NewRecorder(), req)

		if got := seen == tt.in; got != tt.keep {
			t.Errorf("incoming %q: kept=%v, want %v (got %q)", tt.in, got, tt.keep, seen)
		}
	}
}
