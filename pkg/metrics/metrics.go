package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// NotificationsCreated counts persisted notifications by type.
	NotificationsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_notifications_created_total",
			Help: "Total number of notifications persisted",
		},
		[]string{"type"},
	)

	// NotificationsDelivered counts live events handed to subscribers by channel (feed|websocket).
	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_notifications_delivered_total",
			Help: "Total number of notification events delivered to live subscribers",
		},
		[]string{"channel"},
	)

	// NotificationsDropped counts live events rejected at the bridge boundary (invalid type).
	NotificationsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "pulse_notifications_dropped_total",
			Help: "Total number of notification events dropped before delivery",
		},
	)

	// StoreFailures counts swallowed store-call failures by operation.
	StoreFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pulse_store_failures_total",
			Help: "Total number of notification store failures converted to neutral results",
		},
		[]string{"operation"},
	)

	// ActiveSubscribers tracks live bridge subscriptions.
	ActiveSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pulse_active_subscribers",
			Help: "Number of active notification feed subscriptions",
		},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "pulse_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
