// Package health provides health and readiness checks for the agent.
// It supports Docker HEALTHCHECK probes with detailed component status.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/wiktac/node-agent/internal/log"
)

// Status represents the overall health/readiness status
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult represents the result of a component health check
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse represents the full health check response
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Uptime    int64                  `json:"uptime_seconds"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse represents the readiness check response
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker defines the interface for health checks
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager manages health and readiness checks
type Manager struct {
	version  string
	started  time.Time
	checkers []Checker
}

// NewManager creates a new health check manager
func NewManager(version string) *Manager {
	return &Manager{
		version:  version,
		started:  time.Now(),
		checkers: make([]Checker, 0),
	}
}

// RegisterChecker adds a health checker to the manager
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

// Health performs a health check (liveness probe)
// Returns 200 if the process is alive, regardless of service state
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Uptime:    int64(time.Since(m.started).Seconds()),
		Timestamp: time.Now(),
	}

	// If verbose, include component checks
	if verbose && len(m.checkers) > 0 {
		resp.Checks = make(map[string]CheckResult)
		hasUnhealthy := false
		hasDegraded := false

		for _, checker := range m.checkers {
			result := checker.Check(ctx)
			resp.Checks[checker.Name()] = result

			switch result.Status {
			case StatusUnhealthy:
				hasUnhealthy = true
			case StatusDegraded:
				hasDegraded = true
			}
		}

		if hasUnhealthy {
			resp.Status = StatusUnhealthy
		} else if hasDegraded {
			resp.Status = StatusDegraded
		}
	}

	return resp
}

// Ready performs a readiness check (readiness probe)
// Returns 200 once the agent's dependencies are reachable. Degraded
// components keep the agent ready; only unhealthy ones take it out.
func (m *Manager) Ready(ctx context.Context, _ bool) ReadinessResponse {
	resp := ReadinessResponse{
		Ready:     true,
		Status:    StatusHealthy,
		Timestamp: time.Now(),
	}

	if len(m.checkers) == 0 {
		// No checkers registered - consider ready
		return resp
	}

	resp.Checks = make(map[string]CheckResult)
	hasUnhealthy := false
	hasDegraded := false

	for _, checker := range m.checkers {
		result := checker.Check(ctx)
		resp.Checks[checker.Name()] = result

		switch result.Status {
		case StatusUnhealthy:
			hasUnhealthy = true
			resp.Ready = false
		case StatusDegraded:
			hasDegraded = true
		}
	}

	if hasUnhealthy {
		resp.Status = StatusUnhealthy
	} else if hasDegraded {
		resp.Status = StatusDegraded
	}

	return resp
}

// ServeHealth handles HTTP health check requests
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK) // Always 200 for liveness

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}

	logger.Debug().
		Str("event", "health.checked").
		Str("status", string(resp.Status)).
		Bool("verbose", verbose).
		Msg("health check performed")
}

// ServeReady handles HTTP readiness check requests
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")
	verbose := r.URL.Query().Get("verbose") == "true"

	resp := m.Ready(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str("event", "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Bool("verbose", verbose).
		Msg("readiness check performed")
}

// ProxyChecker probes the docker proxy with a short timeout. The agent is
// useless without the proxy, so an unreachable proxy takes readiness down.
type ProxyChecker struct {
	ping    func(ctx context.Context) error
	timeout time.Duration
}

// NewProxyChecker creates a checker around a ping function, typically
// dockerproxy.Client.Ping.
func NewProxyChecker(ping func(ctx context.Context) error) *ProxyChecker {
	return &ProxyChecker{
		ping:    ping,
		timeout: 2 * time.Second,
	}
}

func (c *ProxyChecker) Name() string {
	return "docker_proxy"
}

func (c *ProxyChecker) Check(ctx context.Context) CheckResult {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: "proxy unreachable",
		}
	}
	return CheckResult{
		Status:  StatusHealthy,
		Message: "proxy reachable",
	}
}

// DataDirChecker verifies the state directory accepts writes. Both the state
// document and the allowlist live there.
type DataDirChecker struct {
	dir string
}

// NewDataDirChecker creates a write-probe checker for the given directory.
func NewDataDirChecker(dir string) *DataDirChecker {
	return &DataDirChecker{dir: dir}
}

func (c *DataDirChecker) Name() string {
	return "data_dir"
}

func (c *DataDirChecker) Check(_ context.Context) CheckResult {
	f, err := os.CreateTemp(c.dir, ".wiktac-probe-*")
	if err != nil {
		return CheckResult{
			Status:  StatusUnhealthy,
			Error:   err.Error(),
			Message: "data dir not writable",
		}
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)

	return CheckResult{
		Status:  StatusHealthy,
		Message: "data dir writable",
	}
}

// LastTickChecker reports on the agent loop's cadence. A silent loop only
// degrades: readiness stays up so operators can still reach the API and the
// state document while investigating.
type LastTickChecker struct {
	lastTick func() time.Time
	interval time.Duration
}

// NewLastTickChecker creates a staleness checker. lastTick reports when the
// loop last completed a tick, successful or not.
func NewLastTickChecker(lastTick func() time.Time, interval time.Duration) *LastTickChecker {
	return &LastTickChecker{
		lastTick: lastTick,
		interval: interval,
	}
}

func (c *LastTickChecker) Name() string {
	return "agent_loop"
}

func (c *LastTickChecker) Check(_ context.Context) CheckResult {
	last := c.lastTick()
	if last.IsZero() {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "no tick completed yet",
		}
	}

	age := time.Since(last)
	if age > 5*c.interval {
		return CheckResult{
			Status:  StatusDegraded,
			Message: fmt.Sprintf("last tick %s ago", age.Round(time.Second)),
		}
	}

	return CheckResult{
		Status:  StatusHealthy,
		Message: "ticking",
	}
}
