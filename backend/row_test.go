package backend

import (
	"encoding/json"
	"testing"
	"time"
)

func TestRowFromTaskCoercesMissingTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	row := RowFromTask(Task{ID: "a", Text: "untracked"}, "owner-1", now)

	want := now.Format(time.RFC3339Nano)
	if row.CreatedAt != want {
		t.Errorf("CreatedAt = %q, want %q", row.CreatedAt, want)
	}
	if row.UpdatedAt != want {
		t.Errorf("UpdatedAt = %q, want %q", row.UpdatedAt, want)
	}
	if row.OwnerID != "owner-1" {
		t.Errorf("OwnerID = %q, want owner-1", row.OwnerID)
	}
}

func TestRowFromTaskClampsPositions(t *testing.T) {
	row := RowFromTask(Task{ID: "a", Urgency: 250, Importance: -4}, "o", time.Now())
	if row.Urgency != 100 || row.Importance != 0 {
		t.Errorf("positions = %v/%v, want 100/0", row.Urgency, row.Importance)
	}
}

func TestTaskFromRowMalformedTimestamps(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	row := RemoteRow{
		ID:        "a",
		CreatedAt: "not-a-timestamp",
		UpdatedAt: "",
		DueDate:   "also bad",
	}
	task := TaskFromRow(row, now)
	if !task.Created.Equal(now) {
		t.Errorf("Created = %v, want coerced to %v", task.Created, now)
	}
	if !task.Modified.Equal(now) {
		t.Errorf("Modified = %v, want coerced to %v", task.Modified, now)
	}
	if task.DueDate == nil || !task.DueDate.Equal(now) {
		t.Errorf("DueDate = %v, want coerced to %v", task.DueDate, now)
	}
}

func TestTaskFromRowSecondsPrecisionTimestamp(t *testing.T) {
	now := time.Now()
	row := RemoteRow{ID: "a", CreatedAt: "2025-03-10T08:00:00Z", UpdatedAt: "2025-03-10T08:00:00Z"}
	task := TaskFromRow(row, now)
	want := time.Date(2025, 3, 10, 8, 0, 0, 0, time.UTC)
	if !task.Created.Equal(want) {
		t.Errorf("Created = %v, want %v", task.Created, want)
	}
}

func TestRowRoundTripPreservesSubtasks(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	u := 33.0
	i := 66.0
	orig := Task{
		ID:      "a",
		Text:    "parent",
		Version: 7,
		Created: now,
		Modified: now,
		Subtasks: []Subtask{
			{ID: "s1", Text: "step one", Completed: true, Note: "careful"},
			{ID: "s2", Text: "on the board", Urgency: &u, Importance: &i},
		},
	}

	back := TaskFromRow(RowFromTask(orig, "o", now), now)

	if len(back.Subtasks) != 2 {
		t.Fatalf("subtasks = %d, want 2", len(back.Subtasks))
	}
	if back.Subtasks[0].Note != "careful" || !back.Subtasks[0].Completed {
		t.Errorf("first subtask lost fields: %+v", back.Subtasks[0])
	}
	if !back.Subtasks[1].OnBoard() {
		t.Error("extracted subtask lost its board coordinates")
	}
	if back.Version != 7 {
		t.Errorf("version = %d, want 7", back.Version)
	}
}

func TestTaskFromRowMalformedSubtasks(t *testing.T) {
	row := RemoteRow{ID: "a", Subtasks: json.RawMessage(`{"broken`)}
	task := TaskFromRow(row, time.Now())
	if task.Subtasks != nil {
		t.Errorf("malformed subtask payload should be dropped, got %+v", task.Subtasks)
	}
	if task.ID != "a" {
		t.Error("record itself should survive a malformed subtask payload")
	}
}
