// Package metrics registers the Prometheus collectors exposed on /metrics,
// extending the teacher's own request counter/histogram pair with webhook
// dispatcher and idempotency-outcome instrumentation (SPEC_FULL §2).
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts HTTP requests by route and status, the teacher's
	// own pattern from cmd/api/main.go.
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_http_requests_total",
		Help: "Total HTTP requests served, labeled by route and status code.",
	}, []string{"route", "status"})

	// RequestDuration times handler execution by route.
	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ledger_http_request_duration_seconds",
		Help:    "HTTP handler latency in seconds, labeled by route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})

	// WebhookEventsDelivered counts successful deliveries.
	WebhookEventsDelivered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_webhook_events_delivered_total",
		Help: "Total webhook events successfully delivered.",
	})

	// WebhookEventsFailed counts events that exhausted their retry budget.
	WebhookEventsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ledger_webhook_events_failed_total",
		Help: "Total webhook events that permanently failed after exhausting retries.",
	})

	// WebhookDispatchDuration times each delivery attempt.
	WebhookDispatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ledger_webhook_dispatch_duration_seconds",
		Help:    "Duration of a single webhook delivery attempt, in seconds.",
		Buckets: prometheus.DefBuckets,
	})

	// IdempotencyOutcomes counts check/reserve outcomes by result
	// (new, cached, in_progress, conflict).
	IdempotencyOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ledger_idempotency_outcomes_total",
		Help: "Idempotency registry outcomes, labeled by result.",
	}, []string{"result"})
)
