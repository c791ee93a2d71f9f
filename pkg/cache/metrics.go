package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks cache hits by cached outcome
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_cache_hits_total",
			Help: "Total number of lookup cache hits",
		},
		[]string{"outcome"}, // "found", "not_found"
	)

	// CacheMisses tracks cache misses
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "enricher_cache_misses_total",
			Help: "Total number of lookup cache misses",
		},
	)

	// CacheBytes counts payload bytes read from and written to Redis
	CacheBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_cache_bytes_total",
			Help: "Bytes of cached lookup answers read and written",
		},
		[]string{"operation"}, // "get", "set"
	)

	// CacheErrors tracks cache operation errors
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "enricher_cache_errors_total",
			Help: "Total number of cache operation errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
