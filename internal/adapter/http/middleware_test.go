package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Strob0t/clickbridge/internal/logger"
)

func TestResponseWriterKeepsFirstStatus(t *testing.T) {
	inner := httptest.NewRecorder()
	rw := &responseWriter{ResponseWriter: inner, status: http.StatusOK}

	rw.WriteHeader(http.StatusCreated)
	rw.WriteHeader(http.StatusInternalServerError)

	if rw.status != http.StatusCreated {
		t.Errorf("expected first status to be recorded, got %d", rw.status)
	}
	if rw.Unwrap() != inner {
		t.Error("Unwrap must return the wrapped writer")
	}
}

func TestLoggerOmitsQueryString(t *testing.T) {
	var buf bytes.Buffer
	prev := slog.Default()
	slog.SetDefault(slog.New(slog.NewJSONHandler(&buf, nil)))
	t.Cleanup(func() { slog.SetDefault(prev) })

	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=secret-code&state=s", nil)
	req = req.WithContext(logger.WithRequestID(req.Context(), "req-1"))
	h.ServeHTTP(httptest.NewRecorder(), req)

	if strings.Contains(buf.String(), "secret-code") {
		t.Fatalf("query string leaked into logs: %s", buf.String())
	}
	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatal(err)
	}
	if entry["path"] != "/auth/callback" || entry["status"] != float64(http.StatusTeapot) || entry["request_id"] != "req-1" {
		t.Errorf("unexpected log entry %v", entry)
	}
}

func TestSecurityHeaders(t *testing.T) {
	rec := httptest.NewRecorder()
	SecurityHeaders(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/auth/start", nil))

	for _, h := range []string{"X-Content-Type-Options", "X-Frame-Options", "Content-Security-Policy"} {
		if rec.Header().Get(h) == "" {
			t.Errorf("missing %s", h)
		}
	}
}
