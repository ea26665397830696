// Package scheduler decides when to push local state to the remote store.
// It debounces bursts of mutations, enforces single-flight uploads and
// defers rather than overlaps cycles. The state machine is explicit
// (idle -> pending -> in-flight -> idle) and driven through an injectable
// clock so it is testable without real timers.
package scheduler

import (
	"errors"
	"sync"
	"time"

	"gridtask/internal/clock"
)

const (
	// DefaultDebounce is the quiet period after the last dirtying
	// mutation before an upload is attempted.
	DefaultDebounce = 1500 * time.Millisecond

	// MinDebounce is the lower bound for configured debounce windows.
	MinDebounce = 250 * time.Millisecond
)

// ErrSyncInFlight is returned by Flush when an upload cycle is already
// running.
var ErrSyncInFlight = errors.New("sync already in progress")

// State is the scheduler's position in its lifecycle.
type State int

const (
	StateIdle State = iota
	StatePending
	StateInFlight
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in-flight"
	default:
		return "unknown"
	}
}

// Scheduler drives upload cycles. The run callback performs one cycle; its
// error is recorded but never retried immediately. The next mutation (or
// the next natural debounce tick) retries, since the dirty comparison will
// still show a difference.
type Scheduler struct {
	mu       sync.Mutex
	clk      clock.Clock
	debounce time.Duration
	run      func() error

	state   State
	timer   clock.Timer
	redirty bool
	stopped bool

	runCount int
	lastRun  time.Time
	lastErr  error
}

// New creates a scheduler. Debounce windows below MinDebounce are raised to
// it; zero selects the default.
func New(clk clock.Clock, debounce time.Duration, run func() error) *Scheduler {
	if debounce == 0 {
		debounce = DefaultDebounce
	}
	if debounce < MinDebounce {
		debounce = MinDebounce
	}
	return &Scheduler{clk: clk, debounce: debounce, run: run}
}

// MarkDirty notes that local state changed. Any mutation arriving inside
// the debounce window resets it; a mutation arriving while an upload is in
// flight defers a new cycle to after the current one finishes.
func (s *Scheduler) MarkDirty() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}

	switch s.state {
	case StateIdle:
		s.state = StatePending
		s.timer = s.clk.AfterFunc(s.debounce, s.fire)
	case StatePending:
		s.timer.Reset(s.debounce)
	case StateInFlight:
		s.redirty = true
	}
}

// fire runs one upload cycle when the debounce window expires.
func (s *Scheduler) fire() {
	s.mu.Lock()
	if s.stopped || s.state != StatePending {
		s.mu.Unlock()
		return
	}
	s.state = StateInFlight
	s.mu.Unlock()

	err := s.run()

	s.mu.Lock()
	s.finish(err)
	s.mu.Unlock()
}

// finish records the cycle outcome and transitions out of in-flight.
// Callers must hold s.mu.
func (s *Scheduler) finish(err error) {
	s.runCount++
	s.lastRun = s.clk.Now()
	s.lastErr = err

	if s.redirty && !s.stopped {
		s.redirty = false
		s.state = StatePending
		s.timer = s.clk.AfterFunc(s.debounce, s.fire)
		return
	}
	s.state = StateIdle
}

// Flush runs an upload cycle immediately, bypassing the debounce window.
// Used by the explicit sync command. Returns ErrSyncInFlight if a cycle is
// already running.
func (s *Scheduler) Flush() error {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return nil
	}
	if s.state == StateInFlight {
		s.redirty = true
		s.mu.Unlock()
		return ErrSyncInFlight
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.state = StateInFlight
	s.mu.Unlock()

	err := s.run()

	s.mu.Lock()
	s.finish(err)
	s.mu.Unlock()
	return err
}

// State returns the current scheduler state.
func (s *Scheduler) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Status returns run statistics for the sync status command.
func (s *Scheduler) Status() (runs int, lastRun time.Time, lastErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runCount, s.lastRun, s.lastErr
}

// Stop cancels any pending debounce timer. Once stopped the scheduler
// ignores further dirtying; in-flight cycles finish but schedule nothing
// new.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}
