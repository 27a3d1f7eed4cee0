package allowlist

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	addressesGauge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "wiktac_agent_allowlist_addresses",
			Help: "Number of allowed payout addresses per currency.",
		},
		[]string{"currency"},
	)

	presentGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "wiktac_agent_allowlist_present",
			Help: "Whether any currency has at least one allowed payout address (1 or 0).",
		},
	)
)

func observeAllowlist(a Allowlist) {
	for currency, n := range a.Counts() {
		addressesGauge.WithLabelValues(currency).Set(float64(n))
	}
	if a.HasAny() {
		presentGauge.Set(1)
	} else {
		presentGauge.Set(0)
	}
}
