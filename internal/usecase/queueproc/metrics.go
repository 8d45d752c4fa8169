package queueproc

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the queue consumers
var (
	// retryProcessedTotal tracks retry messages by outcome
	retryProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_processed_total",
			Help: "Total number of retry messages processed by outcome",
		},
		[]string{"result"}, // sent|rescheduled|failed|dead_lettered|config_gone|stale|dropped
	)

	// deadLetterTotal tracks deliveries parked in the dead-letter queue
	deadLetterTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letter_total",
			Help: "Total number of deliveries dead-lettered after exhausting retries",
		},
		[]string{"channel"},
	)

	// deadLetterInspectedTotal tracks dead-letter entries recorded by the consumer
	deadLetterInspectedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dead_letter_inspected_total",
			Help: "Total number of dead-letter entries recorded for inspection",
		},
		[]string{"channel"},
	)

	// queuePollErrorsTotal tracks failed queue polls
	queuePollErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "queue_poll_errors_total",
			Help: "Total number of failed queue polls",
		},
		[]string{"queue"},
	)

	// queueDepth tracks the number of messages stored per queue
	queueDepth = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "queue_depth",
			Help: "Number of messages currently stored per queue",
		},
		[]string{"queue"},
	)
)

// RecordQueueDepth sets the depth gauge for the named queue. The worker's
// depth collector calls this on each sample.
func RecordQueueDepth(queueName string, depth int64) {
	queueDepth.WithLabelValues(queueName).Set(float64(depth))
}

func recordRetryProcessed(result string) {
	retryProcessedTotal.WithLabelValues(result).Inc()
}

func recordDeadLetter(channel string) {
	deadLetterTotal.WithLabelValues(channel).Inc()
}

func recordDeadLetterInspected(channel string) {
	deadLetterInspectedTotal.WithLabelValues(channel).Inc()
}

func recordPollError(queueName string) {
	queuePollErrorsTotal.WithLabelValues(queueName).Inc()
}
