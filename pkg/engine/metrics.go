package engine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for the enrichment engine.
var (
	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enricher_lookups_total",
		Help: "Total lookup attempts by outcome",
	}, []string{"outcome"})

	lookupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "enricher_lookup_duration_seconds",
		Help:    "Duration of a single record lookup in seconds",
		Buckets: []float64{0.5, 1, 2, 5, 10, 20, 40, 60},
	})

	recordsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enricher_records_inflight",
		Help: "Number of records currently being looked up",
	})

	recordsCompleted = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "enricher_records_completed",
		Help: "Number of enriched records in the current run",
	})

	recordsSkipped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "enricher_records_skipped_total",
		Help: "Records skipped because they were already enriched",
	})

	runsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enricher_runs_total",
		Help: "Finished runs by how they ended",
	}, []string{"result"})

	sessionTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "enricher_session_transitions_total",
		Help: "Session state transitions",
	}, []string{"from", "to"})
)
