package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Sternrassler/owner-enricher/pkg/logging"
	"github.com/Sternrassler/owner-enricher/pkg/lookup"
	"github.com/Sternrassler/owner-enricher/pkg/record"
	"github.com/Sternrassler/owner-enricher/pkg/store"
)

// State is the session state.
type State string

const (
	StateIdle      State = "idle"
	StateRunning   State = "running"
	StatePaused    State = "paused"
	StateCompleted State = "completed"
)

var (
	// ErrInvalidTransition is returned when an operation is not allowed in
	// the current state. The session is left untouched.
	ErrInvalidTransition = errors.New("invalid session transition")

	// ErrNoRecords is returned by Start when the store is empty.
	ErrNoRecords = errors.New("no records loaded")
)

// Config holds the engine configuration.
type Config struct {
	// Workers is the size of the worker pool.
	Workers int

	// PausePoll bounds how long a paused worker waits before re-checking
	// the signals.
	PausePoll time.Duration

	// MinDelay and MaxDelay bound the random pause after each lookup.
	MinDelay time.Duration
	MaxDelay time.Duration

	// LookupTimeout caps a single lookup call (0 disables the cap).
	LookupTimeout time.Duration
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Workers:       3,
		PausePoll:     500 * time.Millisecond,
		MinDelay:      100 * time.Millisecond,
		MaxDelay:      300 * time.Millisecond,
		LookupTimeout: 60 * time.Second,
	}
}

// Progress is a read-only view of the session for presentation.
type Progress struct {
	State     State    `json:"state"`
	Total     int      `json:"total"`
	Completed int      `json:"completed"`
	Found     int      `json:"found"`
	InFlight  []string `json:"in_flight"`
	Percent   float64  `json:"percent"`
}

// Controller owns the session state machine and the worker pool.
type Controller struct {
	store  *store.Store
	looker lookup.Looker
	config Config
	logger zerolog.Logger

	mu    sync.Mutex
	state State
	run   *run
}

// New creates a controller over st that enriches records with looker.
func New(st *store.Store, looker lookup.Looker, cfg Config) (*Controller, error) {
	if st == nil {
		return nil, fmt.Errorf("store is required")
	}
	if looker == nil {
		return nil, fmt.Errorf("lookup client is required")
	}
	if cfg.Workers < 1 {
		return nil, fmt.Errorf("workers must be >= 1 (got %d)", cfg.Workers)
	}
	if cfg.PausePoll <= 0 {
		return nil, fmt.Errorf("pause poll interval must be > 0")
	}
	if cfg.MinDelay < 0 || cfg.MaxDelay < cfg.MinDelay {
		return nil, fmt.Errorf("invalid delay range [%s, %s]", cfg.MinDelay, cfg.MaxDelay)
	}

	return &Controller{
		store:  st,
		looker: looker,
		config: cfg,
		logger: logging.NewLogger("session"),
		state:  StateIdle,
	}, nil
}

// Store returns the record store the controller enriches.
func (c *Controller) Store() *store.Store {
	return c.store
}

// State returns the current session state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start runs the worker pool over the store and blocks until every worker
// has exited. It requires the Idle state and at least one record.
// Cancelling ctx has the effect of Stop and also aborts in-flight lookups.
func (c *Controller) Start(ctx context.Context) error {
	done, err := c.Launch(ctx)
	if err != nil {
		return err
	}
	<-done
	return nil
}

// Launch is the non-blocking form of Start. The transition to Running has
// happened when it returns; the channel is closed once the run has settled.
func (c *Controller) Launch(ctx context.Context) (<-chan struct{}, error) {
	c.mu.Lock()
	if c.state != StateIdle {
		state := c.state
		c.mu.Unlock()
		return nil, fmt.Errorf("%w: start from %s", ErrInvalidTransition, state)
	}
	counts := c.store.Counts()
	if counts.Total == 0 {
		c.mu.Unlock()
		return nil, ErrNoRecords
	}

	r := newRun()
	r.completed.Store(int64(counts.Enriched))
	recordsCompleted.Set(float64(counts.Enriched))
	c.run = r
	c.setStateLocked(StateRunning)
	c.mu.Unlock()

	c.logger.Info().
		Int("total", counts.Total).
		Int("completed", counts.Enriched).
		Int("workers", c.config.Workers).
		Msg("Run started")

	go func() {
		select {
		case <-ctx.Done():
			c.stopRun(r, "cancelled")
		case <-r.finished:
		}
	}()

	done := make(chan struct{})
	go func() {
		defer close(done)

		start := time.Now()
		var wg sync.WaitGroup
		for i := 0; i < c.config.Workers; i++ {
			wg.Add(1)
			go c.worker(ctx, r, i, &wg)
		}
		wg.Wait()

		c.finishRun(r)

		c.logger.Info().
			Int64("completed", r.completed.Load()).
			Int("total", c.store.Len()).
			Dur("duration", time.Since(start)).
			Msg("Run finished")
	}()
	return done, nil
}

// finishRun settles the session after all workers of r have exited.
func (c *Controller) finishRun(r *run) {
	c.mu.Lock()
	defer c.mu.Unlock()

	close(r.finished)
	if c.run != r {
		// Reset or reload replaced the run.
		return
	}
	r.clearInFlight()

	switch c.state {
	case StateRunning:
		runsTotal.WithLabelValues("exhausted").Inc()
		c.setStateLocked(StateCompleted)
	case StatePaused:
		// Paused while the last lookups drained. Resume completes it.
		c.logger.Info().Msg("Run drained while paused")
	}
}

// Pause stops workers from claiming new records. Lookups in flight finish
// and are merged.
func (c *Controller) Pause() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning {
		return fmt.Errorf("%w: pause from %s", ErrInvalidTransition, c.state)
	}
	c.run.pause()
	c.setStateLocked(StatePaused)
	c.logger.Info().Msg("Run paused")
	return nil
}

// Resume lets paused workers claim records again.
func (c *Controller) Resume() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePaused {
		return fmt.Errorf("%w: resume from %s", ErrInvalidTransition, c.state)
	}
	c.run.resume()
	if c.run.isFinished() {
		runsTotal.WithLabelValues("exhausted").Inc()
		c.setStateLocked(StateCompleted)
		return nil
	}
	c.setStateLocked(StateRunning)
	c.logger.Info().Msg("Run resumed")
	return nil
}

// Stop ends the run. Workers finish the lookup they are in, merge it and
// exit without claiming another record. Stop does not wait for them.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateRunning && c.state != StatePaused {
		return fmt.Errorf("%w: stop from %s", ErrInvalidTransition, c.state)
	}
	c.stopLocked("stopped")
	return nil
}

func (c *Controller) stopRun(r *run, reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.run != r || (c.state != StateRunning && c.state != StatePaused) {
		r.stop()
		return
	}
	c.stopLocked(reason)
}

func (c *Controller) stopLocked(reason string) {
	c.run.stop()
	runsTotal.WithLabelValues(reason).Inc()
	c.setStateLocked(StateCompleted)
	c.logger.Info().Str("reason", reason).Msg("Run stopped")
}

// Reset ends any run, discards all records and returns to Idle. It is
// valid from every state.
func (c *Controller) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetLocked()
	c.store.Reset()
}

// Load ends any run and replaces the store contents with records. The
// session returns to Idle; on error the store is left empty.
func (c *Controller) Load(records []record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadLocked(records)
}

func (c *Controller) loadLocked(records []record.Record) error {
	c.resetLocked()
	if err := c.store.Load(records); err != nil {
		c.store.Reset()
		return fmt.Errorf("load records: %w", err)
	}
	c.logger.Info().Int("total", len(records)).Msg("Records loaded")
	return nil
}

// Replace is Load for callers that must not cut a live run short. It fails
// with ErrInvalidTransition while the session is Running or Paused; the
// check and the load happen under one lock.
func (c *Controller) Replace(records []record.Record) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateRunning || c.state == StatePaused {
		return fmt.Errorf("%w: load from %s", ErrInvalidTransition, c.state)
	}
	return c.loadLocked(records)
}

func (c *Controller) resetLocked() {
	if c.run != nil {
		if c.state == StateRunning || c.state == StatePaused {
			runsTotal.WithLabelValues("reset").Inc()
		}
		c.run.stop()
		c.run = nil
	}
	recordsInFlight.Set(0)
	recordsCompleted.Set(0)
	c.setStateLocked(StateIdle)
}

func (c *Controller) setStateLocked(to State) {
	if c.state == to {
		return
	}
	sessionTransitions.WithLabelValues(string(c.state), string(to)).Inc()
	c.logger.Debug().Str("from", string(c.state)).Str("state", string(to)).Msg("Session state changed")
	c.state = to
}

// Progress returns the current session progress.
func (c *Controller) Progress() Progress {
	c.mu.Lock()
	state, r := c.state, c.run
	c.mu.Unlock()

	counts := c.store.Counts()
	p := Progress{
		State:     state,
		Total:     counts.Total,
		Completed: counts.Enriched,
		Found:     counts.Found,
		InFlight:  []string{},
	}
	if r != nil {
		p.Completed = int(r.completed.Load())
		p.InFlight = r.inFlightIDs()
	}
	if p.Total > 0 {
		p.Percent = float64(p.Completed) / float64(p.Total) * 100
	}
	return p
}

// Records returns a snapshot of the store in original order.
func (c *Controller) Records() []record.Record {
	return c.store.Snapshot()
}
