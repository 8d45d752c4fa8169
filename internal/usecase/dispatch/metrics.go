package dispatch

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the delivery pipeline
var (
	// deliveryDispatchedTotal tracks delivery attempts per channel
	deliveryDispatchedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_dispatched_total",
			Help: "Total number of deliveries dispatched",
		},
		[]string{"channel"},
	)

	// deliverySentTotal tracks delivery results per channel
	deliverySentTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_sent_total",
			Help: "Total number of delivery attempts by result",
		},
		[]string{"channel", "status"}, // status: success|failure
	)

	// deliveryDuration tracks channel send duration
	deliveryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "delivery_duration_seconds",
			Help:    "Channel send duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 10, 30},
		},
		[]string{"channel"},
	)

	// deliveryRetryScheduledTotal tracks retries scheduled per channel
	deliveryRetryScheduledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_retry_scheduled_total",
			Help: "Total number of delivery retries scheduled",
		},
		[]string{"channel"},
	)

	// deliveryRateLimitHits tracks rate limit responses per channel
	deliveryRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_rate_limit_hits_total",
			Help: "Total number of rate limit responses from channel services",
		},
		[]string{"channel"},
	)

	// deliveryCircuitOpenTotal tracks sends rejected by an open circuit
	deliveryCircuitOpenTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "delivery_circuit_open_total",
			Help: "Total number of sends rejected by an open circuit breaker",
		},
		[]string{"channel"},
	)
)

// RecordDispatch records a delivery attempt against a channel.
func RecordDispatch(channel string) {
	deliveryDispatchedTotal.WithLabelValues(channel).Inc()
}

// RecordSuccess records a successful send and its duration.
func RecordSuccess(channel string, duration time.Duration) {
	deliverySentTotal.WithLabelValues(channel, "success").Inc()
	deliveryDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordFailure records a failed send and its duration.
func RecordFailure(channel string, duration time.Duration) {
	deliverySentTotal.WithLabelValues(channel, "failure").Inc()
	deliveryDuration.WithLabelValues(channel).Observe(duration.Seconds())
}

// RecordRetryScheduled records a retry being queued for a channel.
func RecordRetryScheduled(channel string) {
	deliveryRetryScheduledTotal.WithLabelValues(channel).Inc()
}

// RecordRateLimitHit records a rate limit response from a channel service.
func RecordRateLimitHit(channel string) {
	deliveryRateLimitHits.WithLabelValues(channel).Inc()
}

// RecordCircuitOpen records a send rejected because the circuit is open.
func RecordCircuitOpen(channel string) {
	deliveryCircuitOpenTotal.WithLabelValues(channel).Inc()
}
