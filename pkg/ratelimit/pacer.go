package ratelimit

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/time/rate"
)

var pacerWaitsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Name: "enricher_rate_limit_waits_total",
	Help: "Total number of requests delayed by the pacer",
})

// Pacer spaces outgoing requests across all workers with a token bucket.
type Pacer struct {
	limiter *rate.Limiter
}

// NewPacer creates a pacer allowing rps requests per second with the given
// burst. A non-positive rps disables pacing.
func NewPacer(rps float64, burst int) *Pacer {
	limit := rate.Limit(rps)
	if rps <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Pacer{limiter: rate.NewLimiter(limit, burst)}
}

// Wait blocks until a request may be sent or ctx is cancelled.
func (p *Pacer) Wait(ctx context.Context) error {
	r := p.limiter.Reserve()
	if !r.OK() {
		return p.limiter.Wait(ctx)
	}
	delay := r.Delay()
	if delay == 0 {
		return nil
	}

	pacerWaitsTotal.Inc()
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		r.Cancel()
		return ctx.Err()
	}
}
