package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus metrics for monitoring pipeline health.
var (
	EventsReceivedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_events_received_total",
			Help: "Total telemetry events received, by type",
		},
		[]string{"type"},
	)

	EventsDuplicateTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_events_duplicate_total",
			Help: "Total telemetry events dropped as idempotent duplicates",
		},
	)

	InvalidTransitionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shipment_invalid_transitions_total",
			Help: "Attempts to mutate a shipment already in a terminal status",
		},
	)

	WebhooksSentTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webhooks_sent_total",
			Help: "Webhook deliveries that reached a 2xx response, by type",
		},
		[]string{"type"},
	)

	WebhooksDeadLetteredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhooks_dead_lettered_total",
			Help: "Webhook deliveries that exhausted their retry budget",
		},
	)

	CircuitOpenRejectionsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "webhook_circuit_open_rejections_total",
			Help: "Webhook attempts rejected locally by an open circuit breaker",
		},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path", "method", "status"},
	)
)

// Register registers all metrics on the default registry.
func Register() {
	prometheus.MustRegister(
		EventsReceivedTotal,
		EventsDuplicateTotal,
		InvalidTransitionsTotal,
		WebhooksSentTotal,
		WebhooksDeadLetteredTotal,
		CircuitOpenRejectionsTotal,
		HTTPRequestDuration,
	)
}
