package ratelimit

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func TestAllowWindow(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: 2})
	rl.now = c.now

	if !rl.Allow("a") || !rl.Allow("a") {
		t.Fatal("first two requests should pass")
	}
	if rl.Allow("a") {
		t.Fatal("third request in window should be limited")
	}
	if !rl.Allow("b") {
		t.Fatal("other clients have their own budget")
	}

	// Requests inside the window do not extend it.
	c.t = c.t.Add(30 * time.Second)
	rl.Allow("a")
	c.t = c.t.Add(30 * time.Second)
	if !rl.Allow("a") {
		t.Fatal("new window should reset the budget")
	}
}

func TestCleanup(t *testing.T) {
	c := &clock{t: time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)}
	rl := NewLimiter(Config{RequestsPerMinute: 5, StaleAfter: time.Minute})
	rl.now = c.now

	rl.Allow("old")
	c.t = c.t.Add(2 * time.Minute)
	rl.Allow("new")

	if n := rl.Cleanup(); n != 1 {
		t.Fatalf("Cleanup removed %d, want 1", n)
	}
	if rl.ActiveClients() != 1 {
		t.Fatalf("ActiveClients = %d", rl.ActiveClients())
	}
}

func TestMiddleware(t *testing.T) {
	rl := NewLimiter(Config{RequestsPerMinute: 1})
	h := rl.Middleware(func(*http.Request) string { return "1.2.3.4" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusCreated) }))

	codes := []int{http.StatusCreated, http.StatusTooManyRequests}
	for i, want := range codes {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/transactions", nil))
		if rr.Code != want {
			t.Fatalf("request %d: status %d, want %d", i, rr.Code, want)
		}
		if want == http.StatusTooManyRequests {
			if rr.Header().Get("Retry-After") != "60" {
				t.Fatalf("Retry-After = %q", rr.Header().Get("Retry-After"))
			}
			if body := rr.Body.String(); body != `{"error":"rate limit exceeded"}`+"\n" {
				t.Fatalf("body = %q", body)
			}
		}
	}
}
