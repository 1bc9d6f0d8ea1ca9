package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	webhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Total number of webhook deliveries handled, by event type and HTTP outcome",
		},
		[]string{"event_type", "status"},
	)

	webhookDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webhook_handle_duration_seconds",
			Help:    "Duration of webhook handling in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"event_type"},
	)

	orderStatusTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "order_status_transitions_total",
			Help: "Total number of webhook-driven order status transitions",
		},
		[]string{"from", "to"},
	)

	invoicesCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invoices_created_total",
			Help: "Total number of invoices created on the payment processor",
		},
	)

	invoicesReusedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "invoices_reused_total",
			Help: "Total number of checkout requests answered with an existing valid invoice",
		},
	)

	pullPaymentsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pull_payments_created_total",
			Help: "Total number of refund pull payments created",
		},
	)
)

// RecordWebhookEvent records one handled webhook delivery
func RecordWebhookEvent(eventType, status string, duration time.Duration) {
	if eventType == "" {
		eventType = "unknown"
	}
	webhookEventsTotal.WithLabelValues(eventType, status).Inc()
	webhookDuration.WithLabelValues(eventType).Observe(duration.Seconds())
}

// RecordStatusTransition records one applied order status transition
func RecordStatusTransition(from, to string) {
	orderStatusTransitionsTotal.WithLabelValues(from, to).Inc()
}

// RecordInvoiceCreated counts a newly created processor invoice
func RecordInvoiceCreated() {
	invoicesCreatedTotal.Inc()
}

// RecordInvoiceReused counts an idempotent invoice reuse
func RecordInvoiceReused() {
	invoicesReusedTotal.Inc()
}

// RecordPullPaymentCreated counts a created refund pull payment
func RecordPullPaymentCreated() {
	pullPaymentsCreatedTotal.Inc()
}
