package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmbilling_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "crmbilling_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmbilling_payments_total",
			Help: "Payments by method and resulting status",
		},
		[]string{"method", "status"},
	)

	WalletOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmbilling_wallet_operations_total",
			Help: "Wallet balance operations by type and result",
		},
		[]string{"type", "result"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmbilling_webhook_events_total",
			Help: "Gateway webhook deliveries by outcome",
		},
		[]string{"outcome"},
	)

	SubscriptionSweepTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crmbilling_subscription_sweep_total",
			Help: "Per-user subscription sweep outcomes",
		},
		[]string{"outcome"},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordPayment(method, status string) {
	PaymentsTotal.WithLabelValues(method, status).Inc()
}

func RecordWalletOperation(opType, result string) {
	WalletOperationsTotal.WithLabelValues(opType, result).Inc()
}

func RecordWebhook(outcome string) {
	WebhookEventsTotal.WithLabelValues(outcome).Inc()
}

func RecordSweep(outcome string, n int) {
	if n <= 0 {
		return
	}
	SubscriptionSweepTotal.WithLabelValues(outcome).Add(float64(n))
}
