package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		redemptionsTotal,
		checkoutIntentsTotal,
		webhookNotificationsTotal,
		revenueTotal,
	)
}

var (
	redemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redemptions_total",
			Help: "Redemption attempts by result (succeeded/failed).",
		},
		[]string{"result"},
	)

	checkoutIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_intents_total",
			Help: "Checkout sessions requested from the provider, by result.",
		},
		[]string{"result"},
	)

	webhookNotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_notifications_total",
			Help: "Inbound payment notifications by outcome (applied/duplicate/ignored/invalid/failed).",
		},
		[]string{"outcome"},
	)

	revenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_revenue_total",
			Help: "Total monetary value of applied payments, labeled by currency.",
		},
		[]string{"currency"},
	)
)

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

func IncRedemption(result string) {
	redemptionsTotal.WithLabelValues(norm(result)).Inc()
}

func IncCheckoutIntent(result string) {
	checkoutIntentsTotal.WithLabelValues(norm(result)).Inc()
}

func IncWebhook(outcome string) {
	webhookNotificationsTotal.WithLabelValues(norm(outcome)).Inc()
}

func AddRevenue(currency string, amount int64) {
	revenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}
