package engine

import (
	"context"
	"strings"
	"time"

	"gridtask/backend"
	"gridtask/internal/utils"
)

// Create adds a new task at the given grid position and returns a copy of
// it. The record is dirtied for the next sync cycle.
func (e *Engine) Create(text string, urgency, importance float64) (backend.Task, error) {
	text = strings.TrimSpace(text)
	now := e.clk.Now()

	t := backend.Task{
		ID:         backend.GenerateID(),
		Text:       text,
		Urgency:    backend.ClampPosition(urgency),
		Importance: backend.ClampPosition(importance),
		Version:    e.vclock.Next(),
		Created:    now,
		Modified:   now,
	}

	e.mu.Lock()
	e.set.Tasks[t.ID] = t
	e.persistLocked()
	e.emit(Event{Kind: EventCreate, TaskID: t.ID})
	e.mu.Unlock()

	e.sched.MarkDirty()
	return t, nil
}

// mutate applies fn to an active task, stamps a fresh version and marks the
// record dirty. All field edits funnel through here.
func (e *Engine) mutate(id string, kind EventKind, subID string, fn func(*backend.Task)) error {
	e.mu.Lock()
	t, ok := e.set.Tasks[id]
	if !ok {
		e.mu.Unlock()
		return utils.ErrTaskNotFound(id)
	}

	fn(&t)
	t.Version = e.vclock.Next()
	t.Modified = e.clk.Now()
	e.set.Tasks[id] = t
	e.persistLocked()
	e.emit(Event{Kind: kind, TaskID: id, SubtaskID: subID})
	e.mu.Unlock()

	e.sched.MarkDirty()
	return nil
}

// EditText changes a task's display text.
func (e *Engine) EditText(id, text string) error {
	return e.mutate(id, EventUpdate, "", func(t *backend.Task) {
		t.Text = strings.TrimSpace(text)
	})
}

// SetDueDate sets or clears the optional due date.
func (e *Engine) SetDueDate(id string, due *time.Time) error {
	return e.mutate(id, EventUpdate, "", func(t *backend.Task) {
		t.DueDate = due
	})
}

// SetEstimate sets the estimated duration in minutes (0 clears it).
func (e *Engine) SetEstimate(id string, minutes int) error {
	if minutes < 0 {
		minutes = 0
	}
	return e.mutate(id, EventUpdate, "", func(t *backend.Task) {
		t.EstimateMin = minutes
	})
}

// SetAutoUrgency toggles deadline-driven urgency advancement.
func (e *Engine) SetAutoUrgency(id string, on bool) error {
	return e.mutate(id, EventUpdate, "", func(t *backend.Task) {
		t.AutoUrgency = on
	})
}

// Move updates a task's grid position in the mirror only. It neither stamps
// a version nor dirties the record, so a continuous drag never floods the
// remote store with intermediate frames. CommitMove performs the commit
// step when the drag ends.
func (e *Engine) Move(id string, urgency, importance float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.set.Tasks[id]
	if !ok {
		return utils.ErrTaskNotFound(id)
	}
	t.Urgency = backend.ClampPosition(urgency)
	t.Importance = backend.ClampPosition(importance)
	e.set.Tasks[id] = t
	e.persistLocked()
	return nil
}

// CommitMove finalizes a position change: the final coordinates are
// stamped, dirtied and propagated. Returns a receipt the caller can use to
// suppress the click event that trails a drag gesture.
func (e *Engine) CommitMove(id string, urgency, importance float64) (MoveReceipt, error) {
	err := e.mutate(id, EventUpdate, "", func(t *backend.Task) {
		t.Urgency = backend.ClampPosition(urgency)
		t.Importance = backend.ClampPosition(importance)
	})
	if err != nil {
		return MoveReceipt{}, err
	}
	return MoveReceipt{TaskID: id, CommittedAt: e.clk.Now()}, nil
}

// Complete marks a task done and records the completion time.
func (e *Engine) Complete(id string) error {
	now := e.clk.Now()
	return e.mutate(id, EventUpdate, "", func(t *backend.Task) {
		t.Completed = true
		t.CompletedAt = &now
	})
}

// Reopen clears the completion flag.
func (e *Engine) Reopen(id string) error {
	return e.mutate(id, EventUpdate, "", func(t *backend.Task) {
		t.Completed = false
		t.CompletedAt = nil
	})
}

// Delete soft-deletes a task: it moves to the recycle bin with a stamped
// version and a deletion timestamp, and the permanent remote delete is
// issued now (the remote store has no notion of a recycle bin). The remote
// call is best-effort; the next sync cycle re-issues it.
func (e *Engine) Delete(id string) error {
	e.mu.Lock()
	t, ok := e.set.Tasks[id]
	if !ok {
		e.mu.Unlock()
		return utils.ErrTaskNotFound(id)
	}

	t.Version = e.vclock.Next()
	delete(e.set.Tasks, id)
	e.set.Tombstones[id] = backend.Tombstone{Task: t, DeletedAt: e.clk.Now()}
	e.persistLocked()
	e.emit(Event{Kind: EventDelete, TaskID: id})
	remote, ownerID := e.remote, e.ownerID
	e.mu.Unlock()

	if remote != nil {
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if err := remote.Delete(ctx, ownerID, id); err != nil {
				e.log.Debug("remote delete deferred for %s: %v", id, err)
			}
		}()
	}

	e.sched.MarkDirty()
	return nil
}

// Restore moves a recycle-bin entry back to the active set with a freshly
// bumped version, so the restoration wins over the deletion everywhere and
// the record is re-created remotely on the next sync cycle.
func (e *Engine) Restore(id string) (backend.Task, error) {
	e.mu.Lock()
	ts, ok := e.set.Tombstones[id]
	if !ok {
		e.mu.Unlock()
		return backend.Task{}, utils.ErrTombstoneNotFound(id)
	}

	t := ts.Task
	t.Version = e.vclock.Next()
	t.Modified = e.clk.Now()
	delete(e.set.Tombstones, id)
	e.set.Tasks[id] = t
	e.persistLocked()
	e.emit(Event{Kind: EventRestore, TaskID: id})
	e.mu.Unlock()

	e.sched.MarkDirty()
	return t, nil
}

// PurgePermanently removes a recycle-bin entry before its retention window
// expires.
func (e *Engine) PurgePermanently(id string) error {
	e.mu.Lock()
	if _, ok := e.set.Tombstones[id]; !ok {
		e.mu.Unlock()
		return utils.ErrTombstoneNotFound(id)
	}
	delete(e.set.Tombstones, id)
	e.persistLocked()
	e.mu.Unlock()
	return nil
}

// ClearAll wipes the active set and the recycle bin. A backup snapshot is
// always taken first. The wipe only reaches the remote store if this
// installation has synced successfully before (the empty-set upload guard).
func (e *Engine) ClearAll() error {
	e.mu.Lock()
	if err := e.store.SnapshotBackup(e.set); err != nil {
		e.mu.Unlock()
		return utils.WrapWithSuggestion(err, "Backup snapshot failed; nothing was cleared")
	}
	e.set = backend.NewRecordSet()
	e.persistLocked()
	e.mu.Unlock()

	e.sched.MarkDirty()
	return nil
}

// hasSubtask verifies a subtask exists before a mutation stamps a version.
func (e *Engine) hasSubtask(taskID, subID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	t, ok := e.set.Tasks[taskID]
	if !ok {
		return utils.ErrTaskNotFound(taskID)
	}
	for _, s := range t.Subtasks {
		if s.ID == subID {
			return nil
		}
	}
	return utils.ErrSubtaskNotFound(taskID, subID)
}

// subtaskMutate applies fn to one subtask of an active task.
func (e *Engine) subtaskMutate(taskID, subID string, kind EventKind, fn func(*backend.Subtask)) error {
	if err := e.hasSubtask(taskID, subID); err != nil {
		return err
	}
	return e.mutate(taskID, kind, subID, func(t *backend.Task) {
		for i := range t.Subtasks {
			if t.Subtasks[i].ID == subID {
				fn(&t.Subtasks[i])
				return
			}
		}
	})
}

// AddSubtask appends a subtask to a task and returns it.
func (e *Engine) AddSubtask(taskID, text string) (backend.Subtask, error) {
	sub := backend.Subtask{
		ID:   backend.GenerateID(),
		Text: strings.TrimSpace(text),
	}
	err := e.mutate(taskID, EventUpdate, sub.ID, func(t *backend.Task) {
		t.Subtasks = append(t.Subtasks, sub)
	})
	if err != nil {
		return backend.Subtask{}, err
	}
	return sub, nil
}

// EditSubtask changes a subtask's text and free-text note.
func (e *Engine) EditSubtask(taskID, subID, text, note string) error {
	return e.subtaskMutate(taskID, subID, EventUpdate, func(s *backend.Subtask) {
		s.Text = strings.TrimSpace(text)
		s.Note = note
	})
}

// ToggleSubtask flips a subtask's completion flag.
func (e *Engine) ToggleSubtask(taskID, subID string) error {
	return e.subtaskMutate(taskID, subID, EventUpdate, func(s *backend.Subtask) {
		s.Completed = !s.Completed
	})
}

// RemoveSubtask deletes a subtask from its parent.
func (e *Engine) RemoveSubtask(taskID, subID string) error {
	if err := e.hasSubtask(taskID, subID); err != nil {
		return err
	}
	return e.mutate(taskID, EventUpdate, subID, func(t *backend.Task) {
		for i := range t.Subtasks {
			if t.Subtasks[i].ID == subID {
				t.Subtasks = append(t.Subtasks[:i], t.Subtasks[i+1:]...)
				return
			}
		}
	})
}

// ExtractSubtask places a subtask onto the grid at the given position. It
// remains a member of its parent; only the presence of coordinates makes it
// display as an independent node.
func (e *Engine) ExtractSubtask(taskID, subID string, urgency, importance float64) error {
	u := backend.ClampPosition(urgency)
	v := backend.ClampPosition(importance)
	return e.subtaskMutate(taskID, subID, EventExtract, func(s *backend.Subtask) {
		s.Urgency = &u
		s.Importance = &v
	})
}

// ReturnSubtask removes a subtask's grid coordinates, returning it to its
// parent's list without deleting it.
func (e *Engine) ReturnSubtask(taskID, subID string) error {
	return e.subtaskMutate(taskID, subID, EventReturn, func(s *backend.Subtask) {
		s.Urgency = nil
		s.Importance = nil
	})
}
