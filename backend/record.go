// Package backend defines the record model shared by the local store, the
// merge engine and the remote store clients.
package backend

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Task is a single record on the urgency/importance grid.
type Task struct {
	ID          string
	Text        string
	Urgency     float64 // 0..100
	Importance  float64 // 0..100
	DueDate     *time.Time
	EstimateMin int  // estimated duration in minutes, 0 = unset
	AutoUrgency bool // urgency auto-advances as the due date nears
	Completed   bool
	CompletedAt *time.Time
	Subtasks    []Subtask
	Version     int64 // conflict comparison only, never shown to the user
	Created     time.Time
	Modified    time.Time
}

// Subtask belongs to exactly one parent task. A subtask with grid
// coordinates has been extracted onto the board and is rendered as an
// independent node; clearing the coordinates returns it to the parent
// without deleting it.
type Subtask struct {
	ID         string
	Text       string
	Completed  bool
	Urgency    *float64
	Importance *float64
	Note       string
}

// OnBoard reports whether the subtask has been extracted onto the grid.
func (s *Subtask) OnBoard() bool {
	return s.Urgency != nil && s.Importance != nil
}

// Tombstone is a soft-deleted task kept for the recovery window.
type Tombstone struct {
	Task      Task
	DeletedAt time.Time
}

// RecordSet is the full local state: active tasks plus recycle-bin
// tombstones, both keyed by task ID. A task ID never appears in both maps.
type RecordSet struct {
	Tasks      map[string]Task
	Tombstones map[string]Tombstone
}

// NewRecordSet returns an empty record set with initialized maps.
func NewRecordSet() RecordSet {
	return RecordSet{
		Tasks:      make(map[string]Task),
		Tombstones: make(map[string]Tombstone),
	}
}

// Clone returns a deep copy of the record set.
func (rs RecordSet) Clone() RecordSet {
	out := RecordSet{
		Tasks:      make(map[string]Task, len(rs.Tasks)),
		Tombstones: make(map[string]Tombstone, len(rs.Tombstones)),
	}
	for id, t := range rs.Tasks {
		out.Tasks[id] = cloneTask(t)
	}
	for id, ts := range rs.Tombstones {
		ts.Task = cloneTask(ts.Task)
		out.Tombstones[id] = ts
	}
	return out
}

func cloneTask(t Task) Task {
	if t.Subtasks != nil {
		subs := make([]Subtask, len(t.Subtasks))
		copy(subs, t.Subtasks)
		for i := range subs {
			if subs[i].Urgency != nil {
				u := *subs[i].Urgency
				subs[i].Urgency = &u
			}
			if subs[i].Importance != nil {
				v := *subs[i].Importance
				subs[i].Importance = &v
			}
		}
		t.Subtasks = subs
	}
	if t.DueDate != nil {
		d := *t.DueDate
		t.DueDate = &d
	}
	if t.CompletedAt != nil {
		c := *t.CompletedAt
		t.CompletedAt = &c
	}
	return t
}

// EffectiveUrgency returns the urgency to display at the given instant.
// When AutoUrgency is set and a due date exists, the stored urgency climbs
// linearly toward 100 over the final week before the deadline. The stored
// field is never mutated; only the presentation moves.
func (t *Task) EffectiveUrgency(now time.Time) float64 {
	if !t.AutoUrgency || t.DueDate == nil {
		return t.Urgency
	}
	const window = 7 * 24 * time.Hour
	remaining := t.DueDate.Sub(now)
	if remaining >= window {
		return t.Urgency
	}
	if remaining <= 0 {
		return 100
	}
	progress := 1 - float64(remaining)/float64(window)
	return ClampPosition(t.Urgency + (100-t.Urgency)*progress)
}

// ClampPosition clamps a grid coordinate into the valid [0,100] range.
func ClampPosition(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}

// GenerateID generates a unique identifier using UUID v4.
func GenerateID() string {
	return uuid.New().String()
}

// RemoteStore is the authoritative multi-device backend. One row per task,
// scoped by owning identity. Upserts are idempotent; deletes are hard.
type RemoteStore interface {
	FetchAll(ctx context.Context, ownerID string) ([]RemoteRow, error)
	Upsert(ctx context.Context, ownerID string, row RemoteRow) error
	UpsertAll(ctx context.Context, ownerID string, rows []RemoteRow) error
	Delete(ctx context.Context, ownerID, taskID string) error
	Close() error
}
