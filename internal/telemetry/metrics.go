package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics mirrors the in-memory aggregator into Prometheus so dashboards can
// scrape the same signals the aggregator serves over the API.
type Metrics struct {
	DeliveriesTotal    *prometheus.CounterVec
	DeliveryDuration   *prometheus.HistogramVec
	TransitionsTotal   *prometheus.CounterVec
	BatchEnqueuedTotal prometheus.Counter
	WebhooksTotal      *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	return &Metrics{
		DeliveriesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_deliveries_total",
				Help: "Total number of completed delivery attempts",
			},
			[]string{"type", "result", "provider"},
		),
		DeliveryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "gateway_delivery_duration_seconds",
				Help:    "Duration of completed delivery attempts in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"type"},
		),
		TransitionsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_status_transitions_total",
				Help: "Total number of message status transitions",
			},
			[]string{"from", "to"},
		),
		BatchEnqueuedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_batch_enqueued_total",
				Help: "Total number of messages enqueued through batch operations",
			},
		),
		WebhooksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_webhooks_total",
				Help: "Total number of ingested provider webhooks",
			},
			[]string{"provider", "type", "outcome"},
		),
	}
}
