package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	tickDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "wiktac_agent_tick_duration_seconds",
			Help:    "Duration of watchdog ticks in seconds.",
			Buckets: prometheus.DefBuckets,
		},
	)

	ticksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiktac_agent_ticks_total",
			Help: "Completed watchdog ticks by result.",
		},
		[]string{"result"},
	)

	containersSeen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wiktac_agent_containers_seen",
			Help: "Containers reported by the proxy in the last successful listing.",
		},
	)

	rolePresent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wiktac_agent_role_present",
			Help: "Whether a container currently fills the role (1 or 0).",
		},
		[]string{"role"},
	)

	restartsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "wiktac_agent_restarts_total",
			Help: "Containers restarted by the watchdog, by role.",
		},
		[]string{"role"},
	)

	failsafeTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "wiktac_agent_failsafe_engaged_total",
			Help: "Times the failsafe blocked a miningcore restart.",
		},
	)

	armedGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wiktac_agent_armed",
			Help: "Whether the watchdog is armed to restart containers (1 or 0).",
		},
	)

	lastTickGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wiktac_agent_last_tick_timestamp_seconds",
			Help: "Unix timestamp of the last completed tick.",
		},
	)
)
