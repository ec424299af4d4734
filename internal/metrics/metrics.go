package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

var (
	MessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_messages_total",
			Help: "Total number of dispatched messages by type and outcome.",
		},
		[]string{"type", "status"},
	)

	MessageDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "bridge_message_duration_seconds",
			Help:    "Handler duration in seconds by message type.",
			Buckets: []float64{0.005, 0.025, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"type"},
	)

	CacheHitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_cache_hits_total",
			Help: "Total number of cache hits by cache.",
		},
		[]string{"cache"},
	)

	CacheMissesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_cache_misses_total",
			Help: "Total number of cache misses by cache.",
		},
		[]string{"cache"},
	)

	CacheInvalidationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_cache_invalidations_total",
			Help: "Total number of cache invalidations by cache and reason.",
		},
		[]string{"cache", "reason"},
	)

	CacheSweepEvictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_cache_sweep_evictions_total",
			Help: "Total number of expired entries removed by the periodic sweep.",
		},
		[]string{"cache"},
	)

	OutboundRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bridge_outbound_requests_total",
			Help: "Total number of outbound HTTP requests by client and status code.",
		},
		[]string{"client", "status"},
	)
)

// Register registers all custom bridge metrics with the default
// Prometheus registry.
func Register() {
	prometheus.MustRegister(
		MessagesTotal,
		MessageDurationSeconds,
		CacheHitsTotal,
		CacheMissesTotal,
		CacheInvalidationsTotal,
		CacheSweepEvictionsTotal,
		OutboundRequestsTotal,
	)
}
