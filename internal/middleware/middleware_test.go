package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequestLogger(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	h := RequestLogger(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("missing"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/members/9", nil)
	req.RemoteAddr = "127.0.0.1:5000"
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	id := rec.Header().Get("X-Request-ID")
	if len(id) != 36 {
		t.Errorf("request id = %q, want a generated uuid", id)
	}
	if !strings.Contains(buf.String(), "request_id="+id) {
		t.Errorf("log %q missing request id", buf.String())
	}

	out := buf.String()
	for _, want := range []string{"level=WARN", "method=GET", "path=/api/members/9", "status=404", "bytes=7", "remote=127.0.0.1"} {
		if !strings.Contains(out, want) {
			t.Errorf("log %q missing %q", out, want)
		}
	}
}

func TestRequestLoggerKeepsCallerRequestID(t *testing.T) {
	h := RequestLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "ui-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != "ui-42" {
		t.Errorf("request id = %q, want ui-42", got)
	}
}

func TestLocalOnly(t *testing.T) {
	h := LocalOnly(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		remote string
		host   string
		want   int
	}{
		{"ipv4 loopback", "127.0.0.1:5000", "127.0.0.1:8080", http.StatusNoContent},
		{"ipv6 loopback", "[::1]:5000", "[::1]:8080", http.StatusNoContent},
		{"localhost name", "127.0.0.1:5000", "localhost:8080", http.StatusNoContent},
		{"remote client", "192.168.1.20:5000", "127.0.0.1:8080", http.StatusForbidden},
		{"rebinding host", "127.0.0.1:5000", "evil.example.com", http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/health", nil)
			req.RemoteAddr = tt.remote
			req.Host = tt.host
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}
