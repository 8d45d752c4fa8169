package idempotency

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// duplicatesSuppressedTotal counts requests answered from an existing
	// idempotency claim instead of dispatching again.
	duplicatesSuppressedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "idempotency_duplicates_suppressed_total",
			Help: "Total number of duplicate dispatch requests suppressed",
		},
	)
)

func recordDuplicate() {
	duplicatesSuppressedTotal.Inc()
}
