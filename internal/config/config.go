// Package config resolves agent configuration from the environment.
//
// Primary variables carry the WIKTAC_ prefix. A handful of unprefixed legacy
// names are accepted as aliases so deployments of earlier agent releases keep
// working unchanged.
package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	// DefaultProxyURL is the docker socket proxy reachable from the agent container.
	DefaultProxyURL = "http://dockerproxy:2375"

	// DefaultDataDir holds the state and allowlist files.
	DefaultDataDir = "/data"

	// DefaultTickInterval is the pause between reconciliation ticks.
	DefaultTickInterval = 30 * time.Second

	// DefaultProxyTimeout bounds a single docker proxy call.
	DefaultProxyTimeout = 10 * time.Second

	// StateFilename is the state document inside the data dir.
	StateFilename = "state.json"

	// AllowlistFilename is the payout allowlist inside the data dir.
	AllowlistFilename = "allowed-payouts.yml"
)

// Config is the resolved agent configuration.
type Config struct {
	// DataDir holds state.json and allowed-payouts.yml.
	DataDir string

	// TickInterval is the pause between reconciliation ticks.
	TickInterval time.Duration

	// Armed enables restart actions. When false the agent only observes.
	Armed bool

	// ProxyURL is the base URL of the docker socket proxy.
	ProxyURL string

	// ProxyTimeout bounds a single docker proxy call.
	ProxyTimeout time.Duration

	// ProxyRateLimit is the sustained request rate towards the proxy in
	// requests per second. Zero disables client-side limiting.
	ProxyRateLimit float64

	// ProxyRateBurst is the burst size for the proxy rate limiter.
	ProxyRateBurst int

	// FailsafeStopMining refuses miningcore restarts while the payout
	// allowlist is empty.
	FailsafeStopMining bool

	// LogLevel is the zerolog level name.
	LogLevel string

	// MetricsEnabled exposes Prometheus metrics on MetricsAddr.
	MetricsEnabled bool

	// MetricsAddr is the dedicated metrics listen address.
	MetricsAddr string

	// AllowedOrigins enables CORS for the listed origins when non-empty.
	AllowedOrigins []string

	// RateLimitEnabled applies per-IP rate limiting on the API.
	RateLimitEnabled bool

	// RateLimitRPM is the per-IP request budget per minute.
	RateLimitRPM int
}

// FromEnv resolves the configuration from environment variables.
func FromEnv() Config {
	cfg := Config{
		DataDir:            strings.TrimSpace(ParseString("WIKTAC_DATA", DefaultDataDir)),
		TickInterval:       parseTickInterval(),
		Armed:              ParseBoolWithAlias("WIKTAC_ARMED", "ARMED_MODE", false),
		ProxyURL:           strings.TrimSpace(ParseStringWithAlias("WIKTAC_DOCKER_PROXY_URL", "DOCKER_PROXY_URL", DefaultProxyURL)),
		ProxyTimeout:       ParseDuration("WIKTAC_PROXY_TIMEOUT", DefaultProxyTimeout),
		ProxyRateLimit:     ParseFloat("WIKTAC_PROXY_RATE_LIMIT", 10),
		ProxyRateBurst:     ParseInt("WIKTAC_PROXY_RATE_BURST", 20),
		FailsafeStopMining: ParseBoolWithAlias("WIKTAC_FAILSAFE_STOP_MINING", "FAILSAFE_STOP_MINING", true),
		LogLevel:           ParseStringWithAlias("WIKTAC_LOG_LEVEL", "LOG_LEVEL", "info"),
		MetricsEnabled:     ParseBool("WIKTAC_METRICS", false),
		MetricsAddr:        strings.TrimSpace(ParseString("WIKTAC_METRICS_ADDR", ":9090")),
		RateLimitEnabled:   ParseBool("WIKTAC_RATE_LIMIT", true),
		RateLimitRPM:       ParseInt("WIKTAC_RATE_LIMIT_RPM", 300),
	}

	if origins := strings.TrimSpace(ParseString("WIKTAC_ALLOWED_ORIGINS", "")); origins != "" {
		for _, origin := range strings.Split(origins, ",") {
			if o := strings.TrimSpace(origin); o != "" {
				cfg.AllowedOrigins = append(cfg.AllowedOrigins, o)
			}
		}
	}

	return cfg
}

// parseTickInterval resolves the tick interval. The legacy TICK_SECONDS
// variable is an integer number of seconds, not a duration string.
func parseTickInterval() time.Duration {
	if v, ok := os.LookupEnv("WIKTAC_TICK_INTERVAL"); ok && v != "" {
		return ParseDuration("WIKTAC_TICK_INTERVAL", DefaultTickInterval)
	}
	if v, ok := os.LookupEnv("TICK_SECONDS"); ok && v != "" {
		secs := ParseInt("TICK_SECONDS", int(DefaultTickInterval/time.Second))
		if secs > 0 {
			return time.Duration(secs) * time.Second
		}
	}
	return DefaultTickInterval
}

// Validate checks the configuration for values the agent cannot run with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("data dir must not be empty")
	}
	if c.TickInterval < time.Second {
		return fmt.Errorf("tick interval %s is below the 1s minimum", c.TickInterval)
	}
	u, err := url.Parse(c.ProxyURL)
	if err != nil {
		return fmt.Errorf("invalid docker proxy URL %q: %w", c.ProxyURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("docker proxy URL %q must use http or https", c.ProxyURL)
	}
	if u.Host == "" {
		return fmt.Errorf("docker proxy URL %q has no host", c.ProxyURL)
	}
	if c.ProxyTimeout <= 0 {
		return fmt.Errorf("proxy timeout must be positive, got %s", c.ProxyTimeout)
	}
	if c.RateLimitEnabled && c.RateLimitRPM <= 0 {
		return fmt.Errorf("rate limit RPM must be positive, got %d", c.RateLimitRPM)
	}
	return nil
}

// StatePath returns the absolute path of the state document.
func (c Config) StatePath() string {
	return filepath.Join(c.DataDir, StateFilename)
}

// AllowlistPath returns the absolute path of the payout allowlist.
func (c Config) AllowlistPath() string {
	return filepath.Join(c.DataDir, AllowlistFilename)
}
