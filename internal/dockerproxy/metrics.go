package dockerproxy

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	proxyRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wiktac_agent_proxy_requests_total",
		Help: "Requests to the docker socket proxy by operation and outcome",
	}, []string{"operation", "outcome", "status"})

	proxyRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wiktac_agent_proxy_request_duration_seconds",
		Help:    "Docker socket proxy request latencies in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})
)

// observeRequest records one proxy request attempt.
func observeRequest(operation string, status int, duration time.Duration, err error) {
	outcome := "success"
	if err != nil || status >= 400 {
		outcome = "error"
	}
	statusLabel := "0"
	if status > 0 {
		statusLabel = strconv.Itoa(status)
	}
	proxyRequestsTotal.WithLabelValues(operation, outcome, statusLabel).Inc()
	proxyRequestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}
