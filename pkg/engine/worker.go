package engine

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/owner-enricher/pkg/lookup"
	"github.com/Sternrassler/owner-enricher/pkg/record"
)

// worker drives one lane of the pool until the cursor is exhausted or the
// run is stopped.
func (c *Controller) worker(ctx context.Context, r *run, workerID int, wg *sync.WaitGroup) {
	defer wg.Done()

	logger := c.logger.With().Int("worker_id", workerID).Logger()
	attempted := 0

	for {
		idx, ok := r.claim(ctx, c.config.PausePoll)
		if !ok {
			logger.Debug().Int("attempted", attempted).Msg("Worker stopping")
			return
		}

		rec, ok := c.store.At(idx)
		if !ok {
			logger.Debug().Int("attempted", attempted).Msg("Worker completed")
			return
		}

		// Already enriched, e.g. a reloaded export.
		if rec.Enriched() {
			recordsSkipped.Inc()
			logger.Debug().Int("index", idx).Str("record_id", rec.ID).Msg("Record already enriched, skipping")
			continue
		}

		if !r.begin(rec.ID) {
			logger.Debug().Int("attempted", attempted).Msg("Worker stopping")
			return
		}
		c.attempt(ctx, r, idx, rec, logger)
		r.finish(rec.ID)
		attempted++

		if !r.sleep(ctx, c.delay()) {
			logger.Debug().Int("attempted", attempted).Msg("Worker stopping")
			return
		}
	}
}

// attempt performs one lookup and merges a terminal result into the store.
// Failures are confined to the record; they never abort the pool.
func (c *Controller) attempt(ctx context.Context, r *run, idx int, rec record.Record, logger zerolog.Logger) {
	lookupCtx := ctx
	if c.config.LookupTimeout > 0 {
		var cancel context.CancelFunc
		lookupCtx, cancel = context.WithTimeout(ctx, c.config.LookupTimeout)
		defer cancel()
	}

	start := time.Now()
	res := c.safeLookup(lookupCtx, rec)
	elapsed := time.Since(start)

	lookupDuration.Observe(elapsed.Seconds())
	lookupsTotal.WithLabelValues(string(res.Outcome)).Inc()

	event := logger.With().
		Int("index", idx).
		Str("record_id", rec.ID).
		Str("outcome", string(res.Outcome)).
		Dur("duration", elapsed).
		Logger()

	enrichment, merge := res.Enrichment()
	if !merge {
		event.Warn().Err(res.Err).Str("business", rec.BusinessName).Msg("Lookup failed, record left for a later run")
		return
	}

	if !c.store.MergeByID(rec.ID, enrichment) {
		event.Debug().Msg("Record vanished before merge (store reset)")
		return
	}
	completed := r.completed.Add(1)
	recordsCompleted.Set(float64(completed))

	switch res.Outcome {
	case lookup.OutcomeCredentialError:
		event.Warn().Err(res.Err).Msg("Lookup rejected credential")
	default:
		event.Debug().Int64("completed", completed).Msg("Record enriched")
	}
}

// safeLookup converts a panicking lookup into an OtherError result.
func (c *Controller) safeLookup(ctx context.Context, rec record.Record) (res lookup.Result) {
	defer func() {
		if p := recover(); p != nil {
			res = lookup.OtherError(fmt.Errorf("lookup panicked: %v", p))
		}
	}()
	return c.looker.Lookup(ctx, rec)
}

// delay returns a random pause in [MinDelay, MaxDelay].
func (c *Controller) delay() time.Duration {
	lo, hi := c.config.MinDelay, c.config.MaxDelay
	if hi <= lo {
		return lo
	}
	return lo + time.Duration(rand.Int63n(int64(hi-lo)+1))
}
