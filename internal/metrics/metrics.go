// Package metrics holds the Prometheus collectors exported on /metrics by the serve command.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "synapse_kit"

var (
	QuotaGrantedBytes = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "quota_granted_bytes_total",
		Help:      "Storage quota credited by payments.",
	})
	DuplicatePayments = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "duplicate_payments_total",
		Help:      "Payments rejected because the transaction hash was already credited.",
	})
	// UploadsRecorded is labelled by outcome: recorded, committed or blocked.
	UploadsRecorded = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "uploads_total",
		Help:      "Uploads charged against the quota ledger.",
	}, []string{"outcome"})
	RouteDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "route_decisions_total",
		Help:      "Payment path decisions by disposition.",
	}, []string{"disposition"})
	AlertsFired = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_fired_total",
		Help:      "Alerts that passed deduplication.",
	}, []string{"rule", "severity"})
	AlertsSuppressed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "alerts_suppressed_total",
		Help:      "Alerts dropped inside the cooldown window.",
	}, []string{"rule"})
	NotificationFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "notification_failures_total",
		Help:      "Failed deliveries per notification sink.",
	}, []string{"sink"})
	ProviderLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "provider_request_seconds",
		Help:      "Latency of storage provider requests.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	})
)

func init() {
	prometheus.MustRegister(
		QuotaGrantedBytes,
		DuplicatePayments,
		UploadsRecorded,
		RouteDecisions,
		AlertsFired,
		AlertsSuppressed,
		NotificationFailures,
		ProviderLatency,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
