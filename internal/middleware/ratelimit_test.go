package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func hit(h http.Handler, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/", http.NoBody)
	req.RemoteAddr = ip + ":4711"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func fixedClock(rl *RateLimiter) *time.Time {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl.now = func() time.Time { return now }
	return &now
}

func TestRateLimiterAllowsUnderLimit(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	fixedClock(rl)
	handler := rl.Handler(okHandler())

	for i := range 10 {
		if rec := hit(handler, "192.168.1.1"); rec.Code != http.StatusOK {
			t.Errorf("request %d: expected 200, got %d", i+1, rec.Code)
		}
	}
}

func TestRateLimiterRejectsOverLimit(t *testing.T) {
	rl := NewRateLimiter(10, 5)
	fixedClock(rl)
	handler := rl.Handler(okHandler())

	for range 5 {
		hit(handler, "192.168.1.1")
	}

	rec := hit(handler, "192.168.1.1")
	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("expected 429, got %d", rec.Code)
	}
	if rec.Header().Get("Retry-After") != "1" {
		t.Errorf("expected Retry-After 1, got %q", rec.Header().Get("Retry-After"))
	}
	if rec.Body.String() != `{"error":"rate limit exceeded"}` {
		t.Errorf("unexpected body %q", rec.Body.String())
	}
}

func TestRateLimiterRefills(t *testing.T) {
	rl := NewRateLimiter(1, 1)
	now := fixedClock(rl)
	handler := rl.Handler(okHandler())

	if rec := hit(handler, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec := hit(handler, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rec.Code)
	}

	*now = now.Add(time.Second)
	if rec := hit(handler, "10.0.0.1"); rec.Code != http.StatusOK {
		t.Fatalf("expected 200 after refill, got %d", rec.Code)
	}
}

func TestRateLimiterSetsHeaders(t *testing.T) {
	rl := NewRateLimiter(10, 10)
	fixedClock(rl)
	rec := hit(rl.Handler(okHandler()), "192.168.1.1")

	if rec.Header().Get("X-RateLimit-Remaining") != "9" {
		t.Errorf("expected 9 remaining, got %q", rec.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestRateLimiterPerIP(t *testing.T) {
	rl := NewRateLimiter(10, 2)
	fixedClock(rl)
	handler := rl.Handler(okHandler())

	for range 2 {
		hit(handler, "10.0.0.1")
	}

	if rec := hit(handler, "10.0.0.1"); rec.Code != http.StatusTooManyRequests {
		t.Errorf("IP 10.0.0.1: expected 429, got %d", rec.Code)
	}
	if rec := hit(handler, "10.0.0.2"); rec.Code != http.StatusOK {
		t.Errorf("IP 10.0.0.2: expected 200, got %d", rec.Code)
	}
}

func TestRateLimiterCleanup(t *testing.T) {
	rl := NewRateLimiter(10, 2)
	now := fixedClock(rl)
	handler := rl.Handler(okHandler())

	hit(handler, "10.0.0.1")
	*now = now.Add(time.Minute)
	hit(handler, "10.0.0.2")

	rl.cleanup(30 * time.Second)
	if rl.Len() != 1 {
		t.Fatalf("expected 1 tracked IP after cleanup, got %d", rl.Len())
	}
}

func TestRateLimiterCapacity(t *testing.T) {
	rl := NewRateLimiter(10, 2)
	fixedClock(rl)
	rl.maxVisitor = 1
	handler := rl.Handler(okHandler())

	hit(handler, "10.0.0.1")
	if rec := hit(handler, "10.0.0.2"); rec.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429 at capacity, got %d", rec.Code)
	}
}
