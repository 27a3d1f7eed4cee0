package telemetry

import (
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestHTTPAttributes(t *testing.T) {
	attrs := HTTPAttributes("GET", "/api/state", "http://localhost:8000/api/state", 200)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, HTTPMethodKey, "GET")
	verifyAttribute(t, attrs, HTTPRouteKey, "/api/state")
	verifyAttribute(t, attrs, HTTPURLKey, "http://localhost:8000/api/state")
	verifyIntAttribute(t, attrs, HTTPStatusCodeKey, 200)
}

func TestTickAttributes(t *testing.T) {
	attrs := TickAttributes("tick-1", true, 12, 2)

	if len(attrs) != 4 {
		t.Fatalf("Expected 4 attributes, got %d", len(attrs))
	}

	verifyAttribute(t, attrs, TickIDKey, "tick-1")
	verifyIntAttribute(t, attrs, TickContainersKey, 12)
	verifyIntAttribute(t, attrs, TickRestartsKey, 2)
}

func TestContainerAttributes(t *testing.T) {
	tests := []struct {
		name    string
		id      string
		cname   string
		role    string
		state   string
		wantLen int
	}{
		{
			name:    "all fields",
			id:      "abc123",
			cname:   "/btc-node",
			role:    "btc",
			state:   "exited",
			wantLen: 4,
		},
		{
			name:    "only role",
			role:    "miningcore",
			wantLen: 1,
		},
		{
			name:    "empty",
			wantLen: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attrs := ContainerAttributes(tt.id, tt.cname, tt.role, tt.state)
			if len(attrs) != tt.wantLen {
				t.Errorf("ContainerAttributes() len = %d, want %d", len(attrs), tt.wantLen)
			}
		})
	}
}

func TestErrorAttributes(t *testing.T) {
	err := errors.New("dial tcp: connection refused")
	attrs := ErrorAttributes(err, "network_error")

	if len(attrs) != 2 {
		t.Fatalf("Expected 2 attributes, got %d", len(attrs))
	}

	verifyBoolAttribute(t, attrs, ErrorKey, true)
	verifyAttribute(t, attrs, ErrorTypeKey, "network_error")
}

func verifyAttribute(t *testing.T, attrs []attribute.KeyValue, key, want string) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsString() != want {
				t.Errorf("attribute %s = %q, want %q", key, attr.Value.AsString(), want)
			}
			return
		}
	}
	t.Errorf("attribute %s not found", key)
}

func verifyIntAttribute(t *testing.T, attrs []attribute.KeyValue, key string, want int64) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsInt64() != want {
				t.Errorf("attribute %s = %d, want %d", key, attr.Value.AsInt64(), want)
			}
			return
		}
	}
	t.Errorf("attribute %s not found", key)
}

func verifyBoolAttribute(t *testing.T, attrs []attribute.KeyValue, key string, want bool) {
	t.Helper()
	for _, attr := range attrs {
		if string(attr.Key) == key {
			if attr.Value.AsBool() != want {
				t.Errorf("attribute %s = %v, want %v", key, attr.Value.AsBool(), want)
			}
			return
		}
	}
	t.Errorf("attribute %s not found", key)
}
