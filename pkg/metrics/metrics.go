// Package metrics exposes the Prometheus registry used by the enricher.
// Collectors are defined in their own packages (engine, client, cache,
// ratelimit) and registered through promauto; this package only serves them.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the HTTP handler that serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Metrics Documentation
//
// Engine Metrics (pkg/engine):
//   - enricher_lookups_total{outcome} (Counter): lookup attempts by outcome
//   - enricher_lookup_duration_seconds (Histogram): duration of one lookup
//   - enricher_records_inflight (Gauge): records currently being looked up
//   - enricher_records_completed (Gauge): enriched records in the current run
//   - enricher_records_skipped_total (Counter): rows skipped as already enriched
//   - enricher_runs_total{result} (Counter): runs by how they ended
//   - enricher_session_transitions_total{from,to} (Counter): state machine moves
//
// Upstream Metrics (pkg/client):
//   - enricher_upstream_requests_total{status} (Counter): HTTP requests by status
//   - enricher_upstream_request_duration_seconds (Histogram): HTTP request duration
//   - enricher_upstream_errors_total{class} (Counter): errors by class
//   - enricher_retries_total{error_class} (Counter): retry attempts
//   - enricher_retry_backoff_seconds{error_class} (Histogram): backoff waited before a retry
//   - enricher_retry_exhausted_total{error_class} (Counter): retries given up
//
// Cache Metrics (pkg/cache):
//   - enricher_cache_hits_total{outcome} (Counter)
//   - enricher_cache_misses_total (Counter)
//   - enricher_cache_bytes_total{operation} (Counter): payload bytes read and written
//   - enricher_cache_errors_total{operation} (Counter)
//
// Rate Limit Metrics (pkg/ratelimit):
//   - enricher_rate_limit_waits_total (Counter): requests delayed by the pacer
//   - enricher_rate_limit_cooldowns_total (Counter): upstream 429 cooldowns recorded
//   - enricher_rate_limit_blocks_total (Counter): requests refused during cooldown
//
// Example Prometheus Queries:
//
//   # Share of lookups that found nothing
//   rate(enricher_lookups_total{outcome="not_found"}[5m]) / rate(enricher_lookups_total[5m])
//
//   # Credential problems (should be zero)
//   increase(enricher_lookups_total{outcome="credential_error"}[15m]) > 0
//
//   # P95 lookup latency
//   histogram_quantile(0.95, rate(enricher_lookup_duration_seconds_bucket[5m]))
