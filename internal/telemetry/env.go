package telemetry

import (
	"github.com/wiktac/node-agent/internal/config"
)

// FromEnv builds the telemetry configuration from environment variables.
// Tracing is disabled unless WIKTAC_TELEMETRY_ENABLED is set.
func FromEnv(serviceVersion string) Config {
	return Config{
		Enabled:        config.ParseBool("WIKTAC_TELEMETRY_ENABLED", false),
		ServiceName:    config.ParseString("WIKTAC_SERVICE_NAME", "wiktac-agent"),
		ServiceVersion: serviceVersion,
		Environment:    config.ParseString("WIKTAC_ENVIRONMENT", "production"),
		ExporterType:   config.ParseString("WIKTAC_TELEMETRY_EXPORTER", "grpc"),
		Endpoint:       config.ParseString("WIKTAC_OTLP_ENDPOINT", "localhost:4317"),
		SamplingRate:   config.ParseFloat("WIKTAC_SAMPLING_RATE", 1.0),
	}
}
