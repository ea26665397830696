// Package engine is the local-first synchronization engine. The in-memory
// record mirror is the always-available source of truth: every mutation
// applies to it synchronously, durable persistence and remote propagation
// happen asynchronously and never block the caller. Conflicting edits from
// other devices are resolved after the fact by the merge pass, not
// prevented up front.
package engine

import (
	"sort"
	"sync"
	"time"

	"gridtask/backend"
	"gridtask/internal/clock"
	"gridtask/internal/scheduler"
	"gridtask/internal/store"
	"gridtask/internal/utils"
)

// RetentionWindow is how long a soft-deleted record stays recoverable.
const RetentionWindow = 24 * time.Hour

// EventKind tags a mutation event.
type EventKind int

const (
	EventCreate EventKind = iota
	EventUpdate
	EventDelete
	EventRestore
	EventExtract
	EventReturn
)

// Event is the tagged-variant mutation notification delivered to the
// observer. Extract and return events carry the subtask identifier;
// everything else carries only the task.
type Event struct {
	Kind      EventKind
	TaskID    string
	SubtaskID string
}

// MoveReceipt is returned by CommitMove so event-handling callers can
// suppress the spurious click that follows a drag, without any global
// "drag just ended" state.
type MoveReceipt struct {
	TaskID      string
	CommittedAt time.Time
}

// clickSuppressionWindow is how long after a committed move a click on the
// same record should be ignored.
const clickSuppressionWindow = 300 * time.Millisecond

// SuppressesClickAt reports whether a click at t should be swallowed.
func (r MoveReceipt) SuppressesClickAt(t time.Time) bool {
	return t.Sub(r.CommittedAt) >= 0 && t.Sub(r.CommittedAt) < clickSuppressionWindow
}

// Options configures an Engine.
type Options struct {
	Clock     clock.Clock   // nil = real clock
	Debounce  time.Duration // sync debounce window, 0 = default
	Retention time.Duration // tombstone retention, 0 = RetentionWindow
	Observer  func(Event)   // optional mutation observer
}

// Engine owns the in-memory mirror and coordinates the local store, the
// sync scheduler, the merge pass and the remote store.
type Engine struct {
	mu     sync.Mutex
	set    backend.RecordSet
	store  *store.Store
	clk    clock.Clock
	vclock *clock.VersionClock
	sched  *scheduler.Scheduler
	log    *utils.Logger

	remote  backend.RemoteStore
	ownerID string

	retention time.Duration
	observer  func(Event)
}

// New creates an engine over the given local store. Call Start before use.
func New(st *store.Store, opts Options) *Engine {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real{}
	}
	retention := opts.Retention
	if retention == 0 {
		retention = RetentionWindow
	}

	e := &Engine{
		set:       backend.NewRecordSet(),
		store:     st,
		clk:       clk,
		vclock:    clock.NewVersionClockAt(clk.Now),
		log:       utils.GetLogger(),
		retention: retention,
		observer:  opts.Observer,
	}
	e.sched = scheduler.New(clk, opts.Debounce, e.syncCycle)
	return e
}

// Start loads the record set from the local store (failing soft) and runs
// the retention purge sweep. It does not touch the network; the first
// reconcile happens on SignIn.
func (e *Engine) Start() {
	rs, err := e.store.Load()
	if err != nil {
		e.log.Warn("local store: %v", err)
	}

	e.mu.Lock()
	e.set = rs
	for _, t := range rs.Tasks {
		e.vclock.Observe(t.Version)
	}
	for _, ts := range rs.Tombstones {
		e.vclock.Observe(ts.Task.Version)
	}
	e.mu.Unlock()

	e.purgeExpired()
}

// Stop cancels the pending debounce timer and flushes the local store.
// In-flight uploads finish; nothing new is scheduled.
func (e *Engine) Stop() {
	e.sched.Stop()
	if err := e.store.Flush(); err != nil {
		e.log.Warn("flush on shutdown: %v", err)
	}
}

// Tasks returns the active records ordered by creation time.
func (e *Engine) Tasks() []backend.Task {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]backend.Task, 0, len(e.set.Tasks))
	for _, t := range e.set.Tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Created.Equal(out[j].Created) {
			return out[i].ID < out[j].ID
		}
		return out[i].Created.Before(out[j].Created)
	})
	return out
}

// Tombstones returns the recycle-bin contents ordered by deletion time,
// newest first.
func (e *Engine) Tombstones() []backend.Tombstone {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]backend.Tombstone, 0, len(e.set.Tombstones))
	for _, ts := range e.set.Tombstones {
		out = append(out, ts)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DeletedAt.Equal(out[j].DeletedAt) {
			return out[i].Task.ID < out[j].Task.ID
		}
		return out[i].DeletedAt.After(out[j].DeletedAt)
	})
	return out
}

// Get returns a copy of an active task.
func (e *Engine) Get(id string) (backend.Task, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.set.Tasks[id]
	if !ok {
		return backend.Task{}, utils.ErrTaskNotFound(id)
	}
	return t, nil
}

// Theme returns the stored theme preference.
func (e *Engine) Theme() string {
	return e.store.Theme()
}

// SetTheme stores the theme preference. Local only, never synced.
func (e *Engine) SetTheme(theme string) error {
	return e.store.SetTheme(theme)
}

// SchedulerState exposes the scheduler state for the sync status command.
func (e *Engine) SchedulerState() scheduler.State {
	return e.sched.State()
}

// SyncStatus returns upload cycle statistics.
func (e *Engine) SyncStatus() (runs int, lastRun time.Time, lastErr error) {
	return e.sched.Status()
}

// emit delivers a mutation event to the observer, if any. Called with the
// engine lock held; observers must not call back into the engine.
func (e *Engine) emit(ev Event) {
	if e.observer != nil {
		e.observer(ev)
	}
}

// persistLocked schedules a durable write of the current mirror.
// Callers must hold e.mu.
func (e *Engine) persistLocked() {
	e.store.Persist(e.set)
}

// purgeExpired removes tombstones older than the retention window. Local
// bookkeeping only: the permanent remote delete was already issued at
// soft-delete time. A tombstone exactly at the boundary is retained.
func (e *Engine) purgeExpired() {
	e.mu.Lock()
	defer e.mu.Unlock()

	now := e.clk.Now()
	purged := 0
	for id, ts := range e.set.Tombstones {
		if now.Sub(ts.DeletedAt) > e.retention {
			delete(e.set.Tombstones, id)
			purged++
		}
	}
	if purged > 0 {
		e.log.Debug("purged %d expired tombstone(s)", purged)
		e.persistLocked()
	}
}
