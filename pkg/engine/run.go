package engine

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"
)

// run holds the control signals, cursor and in-flight set of a single
// execution of the worker pool. A fresh run is created by every Start, so
// workers left over from a stopped run can never observe the signals of a
// newer one.
type run struct {
	cursor Cursor

	mu       sync.Mutex
	stopped  bool
	paused   bool
	resumed  chan struct{} // open while paused, closed by resume or stop
	done     chan struct{} // closed by stop
	finished chan struct{} // closed once every worker has exited
	inFlight map[string]struct{}

	completed atomic.Int64
}

func newRun() *run {
	return &run{
		done:     make(chan struct{}),
		finished: make(chan struct{}),
		inFlight: make(map[string]struct{}),
	}
}

// claim blocks while the run is paused and returns the next cursor index.
// It returns false once the run is stopped or ctx is cancelled. Claims are
// serialized with pause and stop, so no index is handed out after either
// returns.
func (r *run) claim(ctx context.Context, poll time.Duration) (int, bool) {
	for {
		r.mu.Lock()
		if r.stopped {
			r.mu.Unlock()
			return 0, false
		}
		if !r.paused {
			idx := r.cursor.Next()
			r.mu.Unlock()
			return idx, true
		}
		wake := r.resumed
		r.mu.Unlock()

		timer := time.NewTimer(poll)
		select {
		case <-wake:
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return 0, false
		}
		timer.Stop()
	}
}

// begin registers id as in flight. It refuses once the run is stopped so
// that no lookup starts after Stop has returned.
func (r *run) begin(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return false
	}
	r.inFlight[id] = struct{}{}
	recordsInFlight.Set(float64(len(r.inFlight)))
	return true
}

func (r *run) finish(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.inFlight, id)
	recordsInFlight.Set(float64(len(r.inFlight)))
}

func (r *run) pause() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped || r.paused {
		return
	}
	r.paused = true
	r.resumed = make(chan struct{})
}

func (r *run) resume() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.paused {
		return
	}
	r.paused = false
	close(r.resumed)
}

// stop is monotonic. It wakes paused and sleeping workers and clears the
// in-flight set.
func (r *run) stop() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stopped {
		return
	}
	r.stopped = true
	close(r.done)
	if r.paused {
		r.paused = false
		close(r.resumed)
	}
	r.clearLocked()
}

func (r *run) clearInFlight() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearLocked()
}

func (r *run) clearLocked() {
	r.inFlight = make(map[string]struct{})
	recordsInFlight.Set(0)
}

func (r *run) isStopped() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.stopped
}

func (r *run) isFinished() bool {
	select {
	case <-r.finished:
		return true
	default:
		return false
	}
}

// inFlightIDs returns the ids currently being looked up, sorted.
func (r *run) inFlightIDs() []string {
	r.mu.Lock()
	ids := make([]string, 0, len(r.inFlight))
	for id := range r.inFlight {
		ids = append(ids, id)
	}
	r.mu.Unlock()
	sort.Strings(ids)
	return ids
}

// sleep waits for d or until the run is stopped. It returns false if the
// run was stopped.
func (r *run) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return !r.isStopped()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-r.done:
		return false
	case <-ctx.Done():
		return false
	}
}
