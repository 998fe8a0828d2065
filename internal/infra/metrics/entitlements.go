package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		entitlementsExpiredTotal,
		trialsStartedTotal,
		gateDecisionsTotal,
	)
}

var (
	entitlementsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "entitlements_expired_total",
			Help: "Lapsed entitlements flipped to inactive by the lazy-expiration observer.",
		},
	)

	trialsStartedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "trials_started_total",
			Help: "Trial windows granted.",
		},
	)

	gateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gate_decisions_total",
			Help: "Access gate decisions by kind (allow/redirect_activation/redirect_home/redirect_login).",
		},
		[]string{"decision"},
	)
)

func IncEntitlementExpired() { entitlementsExpiredTotal.Inc() }

func IncTrialStarted() { trialsStartedTotal.Inc() }

func IncGateDecision(decision string) {
	gateDecisionsTotal.WithLabelValues(norm(decision)).Inc()
}
