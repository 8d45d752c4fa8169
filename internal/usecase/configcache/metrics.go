package configcache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// configCacheLookupsTotal tracks cache lookups by resource and result.
	configCacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "config_cache_lookups_total",
			Help: "Total number of configuration cache lookups",
		},
		[]string{"resource", "result"}, // result: hit|miss
	)
)

func recordCacheHit(resource string) {
	configCacheLookupsTotal.WithLabelValues(resource, "hit").Inc()
}

func recordCacheMiss(resource string) {
	configCacheLookupsTotal.WithLabelValues(resource, "miss").Inc()
}
