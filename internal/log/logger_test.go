package log

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	Configure(Config{}) // ensure the once has fired before overriding
	var buf bytes.Buffer
	saved := base
	base = zerolog.New(&buf).With().Timestamp().Logger()
	t.Cleanup(func() { base = saved })
	return &buf
}

func TestWithComponentField(t *testing.T) {
	buf := captureOutput(t)

	logger := WithComponent("watchdog")
	logger.Info().Str("event", "tick.start").Msg("tick started")

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	if entry["component"] != "watchdog" {
		t.Errorf("expected component watchdog, got %v", entry["component"])
	}
	if entry["event"] != "tick.start" {
		t.Errorf("expected event tick.start, got %v", entry["event"])
	}
}

func TestMiddlewareAccessLog(t *testing.T) {
	buf := captureOutput(t)

	handler := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/state", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTeapot {
		t.Fatalf("expected handler status to pass through, got %d", rec.Code)
	}

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	if entry["event"] != "http.request" {
		t.Errorf("expected event http.request, got %v", entry["event"])
	}
	if entry["method"] != "GET" {
		t.Errorf("expected method GET, got %v", entry["method"])
	}
	if entry["path"] != "/api/state" {
		t.Errorf("expected path /api/state, got %v", entry["path"])
	}
	if status, ok := entry["status"].(float64); !ok || int(status) != http.StatusTeapot {
		t.Errorf("expected status 418, got %v", entry["status"])
	}
	if size, ok := entry["bytes"].(float64); !ok || int(size) != len("short and stout") {
		t.Errorf("expected bytes %d, got %v", len("short and stout"), entry["bytes"])
	}
}

func TestMiddlewareIncludesRequestID(t *testing.T) {
	buf := captureOutput(t)

	handler := Middleware()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(ContextWithRequestID(req.Context(), "req-789"))
	handler.ServeHTTP(httptest.NewRecorder(), req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	if entry["request_id"] != "req-789" {
		t.Errorf("expected request_id req-789, got %v", entry["request_id"])
	}
}
