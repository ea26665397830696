package engine

import (
	"context"
	"time"

	"gridtask/backend"
	"gridtask/internal/merge"
	"gridtask/internal/scheduler"
	"gridtask/internal/utils"
)

// syncTimeout bounds one upload or reconcile cycle.
const syncTimeout = 30 * time.Second

// SignIn attaches an authenticated identity and its remote store, then
// folds in any remote state accumulated while this device was offline.
func (e *Engine) SignIn(ctx context.Context, ownerID string, rs backend.RemoteStore) error {
	e.mu.Lock()
	e.remote = rs
	e.ownerID = ownerID
	e.mu.Unlock()

	return e.Reconcile(ctx)
}

// SignOut detaches the remote store. Pending debounce work keeps running
// locally; nothing further reaches the network.
func (e *Engine) SignOut() {
	e.mu.Lock()
	e.remote = nil
	e.ownerID = ""
	e.mu.Unlock()
}

// SignedIn reports whether a remote store is attached.
func (e *Engine) SignedIn() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.remote != nil
}

// MarkDirty exposes the scheduler to collaborators (the cache file watcher)
// that detect out-of-band changes.
func (e *Engine) MarkDirty() {
	e.sched.MarkDirty()
}

// SyncNow runs an upload cycle immediately, bypassing the debounce window.
func (e *Engine) SyncNow() error {
	err := e.sched.Flush()
	if err == scheduler.ErrSyncInFlight {
		return utils.WrapWithSuggestion(err, "A sync cycle is already running; it will pick up your changes")
	}
	return err
}

// syncCycle is the scheduler's run callback: push local state to the remote
// store if it actually drifted from the converged baseline.
func (e *Engine) syncCycle() error {
	e.mu.Lock()
	remote, ownerID := e.remote, e.ownerID
	snapshot := e.set.Clone()
	e.mu.Unlock()

	if remote == nil {
		e.log.Debug("sync skipped: not signed in")
		return nil
	}

	// Skip the network call when nothing changed since the last converged
	// state. This is what prevents ping-pong loops with the realtime
	// listener: a merge that lands exactly on the remote state hashes
	// equal and uploads nothing.
	baseline, hasBaseline := e.store.LoadBaseline()
	if hasBaseline && baseline.Fingerprint() == snapshot.Fingerprint() {
		e.log.Debug("sync skipped: no drift from baseline")
		return nil
	}

	// Never upload a fully-empty active set unless a successful sync has
	// been confirmed on this installation. A transient local load failure
	// must not wipe the remote store.
	if len(snapshot.Tasks) == 0 && !e.store.HasEverSynced() {
		e.log.Warn("sync skipped: refusing to upload an empty set before the first confirmed sync")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), syncTimeout)
	defer cancel()

	now := e.clk.Now()
	rows := make([]backend.RemoteRow, 0, len(snapshot.Tasks))
	for _, t := range snapshot.Tasks {
		rows = append(rows, backend.RowFromTask(t, ownerID, now))
	}
	if err := remote.UpsertAll(ctx, ownerID, rows); err != nil {
		e.log.Warn("sync upload failed, will retry on next dirty cycle: %v", err)
		return err
	}

	// Re-issue hard deletes for everything still in the recycle bin.
	// Idempotent, and covers a delete that failed at soft-delete time.
	for id := range snapshot.Tombstones {
		if err := remote.Delete(ctx, ownerID, id); err != nil {
			e.log.Warn("remote delete of %s failed, will retry: %v", id, err)
			return err
		}
	}

	// Anything the baseline holds but the local set no longer does, in
	// either map, was removed here without a surviving tombstone: a
	// clear-all, or a tombstone that expired before its delete was ever
	// delivered. The baseline only advances on success, so these ids stay
	// in the diff until the remote confirms.
	if hasBaseline {
		for id := range baseline.Tasks {
			if _, active := snapshot.Tasks[id]; active {
				continue
			}
			if _, dead := snapshot.Tombstones[id]; dead {
				continue
			}
			if err := remote.Delete(ctx, ownerID, id); err != nil {
				e.log.Warn("remote delete of %s failed, will retry: %v", id, err)
				return err
			}
		}
	}

	if err := e.store.SaveBaseline(snapshot); err != nil {
		e.log.Warn("failed to record converged baseline: %v", err)
	}
	if err := e.store.SnapshotBackup(snapshot); err != nil {
		e.log.Warn("backup snapshot failed: %v", err)
	}
	if err := e.store.SetHasEverSynced(); err != nil {
		e.log.Warn("failed to record first sync: %v", err)
	}

	e.log.Debug("sync uploaded %d task(s), %d pending delete(s)", len(rows), len(snapshot.Tombstones))
	return nil
}

// Reconcile folds the remote state into the local mirror with a three-way
// merge. Run at session start (SignIn) and after every realtime
// notification; it never blindly overwrites local state.
func (e *Engine) Reconcile(ctx context.Context) error {
	e.mu.Lock()
	remote, ownerID := e.remote, e.ownerID
	e.mu.Unlock()

	if remote == nil {
		return utils.ErrNotSignedIn()
	}

	ctx, cancel := context.WithTimeout(ctx, syncTimeout)
	defer cancel()

	rows, err := remote.FetchAll(ctx, ownerID)
	if err != nil {
		e.log.Warn("reconcile fetch failed: %v", err)
		return err
	}
	remoteSet := merge.FromRows(rows, e.clk.Now())
	baseline, _ := e.store.LoadBaseline()

	e.mu.Lock()
	merged := merge.Merge(e.set, remoteSet, baseline)
	e.set = merged
	for _, t := range merged.Tasks {
		e.vclock.Observe(t.Version)
	}
	for _, ts := range merged.Tombstones {
		e.vclock.Observe(ts.Task.Version)
	}
	snapshot := merged.Clone()
	e.persistLocked()
	e.mu.Unlock()

	// If the merge landed exactly on the remote state and no deletions
	// are pending, both sides agree: record the convergence so the next
	// debounce tick uploads nothing. Otherwise mark dirty and let the
	// normal cycle push the difference.
	if snapshot.ActiveFingerprint() == remoteSet.ActiveFingerprint() && len(snapshot.Tombstones) == 0 {
		if err := e.store.SaveBaseline(snapshot); err != nil {
			e.log.Warn("failed to record converged baseline: %v", err)
		}
		if err := e.store.SetHasEverSynced(); err != nil {
			e.log.Warn("failed to record first sync: %v", err)
		}
	} else {
		e.sched.MarkDirty()
	}

	e.log.Debug("reconcile merged %d remote row(s) into %d task(s)", len(rows), len(snapshot.Tasks))
	return nil
}
