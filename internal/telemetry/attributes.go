// Package telemetry provides OpenTelemetry tracing utilities for the agent.
package telemetry

import (
	"go.opentelemetry.io/otel/attribute"
)

// Common attribute keys for consistent tracing across the application.
const (
	// HTTP attributes
	HTTPMethodKey     = "http.method"
	HTTPStatusCodeKey = "http.status_code"
	HTTPRouteKey      = "http.route"
	HTTPURLKey        = "http.url"

	// Tick attributes
	TickIDKey         = "tick.id"
	TickArmedKey      = "tick.armed"
	TickContainersKey = "tick.containers"
	TickRestartsKey   = "tick.restarts"
	TickDurationKey   = "tick.duration_ms"

	// Container attributes
	ContainerIDKey    = "container.id"
	ContainerNameKey  = "container.name"
	ContainerRoleKey  = "container.role"
	ContainerStateKey = "container.state"

	// Error attributes
	ErrorKey     = "error"
	ErrorTypeKey = "error.type"
)

// HTTPAttributes creates common HTTP span attributes.
func HTTPAttributes(method, route, url string, statusCode int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(HTTPMethodKey, method),
		attribute.String(HTTPRouteKey, route),
		attribute.String(HTTPURLKey, url),
		attribute.Int(HTTPStatusCodeKey, statusCode),
	}
}

// TickAttributes creates reconciliation tick span attributes.
func TickAttributes(tickID string, armed bool, containers, restarts int) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String(TickIDKey, tickID),
		attribute.Bool(TickArmedKey, armed),
		attribute.Int(TickContainersKey, containers),
		attribute.Int(TickRestartsKey, restarts),
	}
}

// ContainerAttributes creates container-related span attributes.
func ContainerAttributes(id, name, role, state string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, 4)
	if id != "" {
		attrs = append(attrs, attribute.String(ContainerIDKey, id))
	}
	if name != "" {
		attrs = append(attrs, attribute.String(ContainerNameKey, name))
	}
	if role != "" {
		attrs = append(attrs, attribute.String(ContainerRoleKey, role))
	}
	if state != "" {
		attrs = append(attrs, attribute.String(ContainerStateKey, state))
	}
	return attrs
}

// ErrorAttributes creates error-related span attributes.
func ErrorAttributes(_ error, errorType string) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.Bool(ErrorKey, true),
		attribute.String(ErrorTypeKey, errorType),
	}
}
