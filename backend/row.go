package backend

import (
	"encoding/json"
	"time"
)

// RemoteRow is the wire shape of a task in the remote store. Subtasks travel
// as a serialized JSON list inside the row.
type RemoteRow struct {
	ID          string          `json:"id"`
	OwnerID     string          `json:"owner_id"`
	Text        string          `json:"text"`
	Urgency     float64         `json:"urgency"`
	Importance  float64         `json:"importance"`
	Completed   bool            `json:"completed"`
	CompletedAt string          `json:"completed_at,omitempty"`
	DueDate     string          `json:"due_date,omitempty"`
	EstimateMin int             `json:"estimate_minutes,omitempty"`
	AutoUrgency bool            `json:"auto_urgency"`
	Subtasks    json.RawMessage `json:"subtasks,omitempty"`
	Version     int64           `json:"version"`
	CreatedAt   string          `json:"created_at"`
	UpdatedAt   string          `json:"updated_at"`
}

type rowSubtask struct {
	ID         string   `json:"id"`
	Text       string   `json:"text"`
	Completed  bool     `json:"completed"`
	Urgency    *float64 `json:"urgency,omitempty"`
	Importance *float64 `json:"importance,omitempty"`
	Note       string   `json:"note,omitempty"`
}

// RowFromTask converts a task to its remote row shape. Timestamps are
// derived defensively: a zero or unset time becomes now, so a row is always
// valid even when the local copy predates timestamp tracking.
func RowFromTask(t Task, ownerID string, now time.Time) RemoteRow {
	row := RemoteRow{
		ID:          t.ID,
		OwnerID:     ownerID,
		Text:        t.Text,
		Urgency:     ClampPosition(t.Urgency),
		Importance:  ClampPosition(t.Importance),
		Completed:   t.Completed,
		EstimateMin: t.EstimateMin,
		AutoUrgency: t.AutoUrgency,
		Version:     t.Version,
		CreatedAt:   coerceTimestamp(t.Created, now),
		UpdatedAt:   coerceTimestamp(t.Modified, now),
	}
	if t.CompletedAt != nil {
		row.CompletedAt = t.CompletedAt.UTC().Format(time.RFC3339Nano)
	}
	if t.DueDate != nil {
		row.DueDate = t.DueDate.UTC().Format(time.RFC3339Nano)
	}
	if len(t.Subtasks) > 0 {
		subs := make([]rowSubtask, len(t.Subtasks))
		for i, s := range t.Subtasks {
			subs[i] = rowSubtask(s)
		}
		// Marshal of plain structs cannot fail
		data, _ := json.Marshal(subs)
		row.Subtasks = data
	}
	return row
}

// TaskFromRow converts a remote row back into a task. Malformed timestamps
// and subtask payloads are coerced rather than propagated: version
// correctness only needs monotonicity, not semantic accuracy.
func TaskFromRow(row RemoteRow, now time.Time) Task {
	t := Task{
		ID:          row.ID,
		Text:        row.Text,
		Urgency:     ClampPosition(row.Urgency),
		Importance:  ClampPosition(row.Importance),
		Completed:   row.Completed,
		EstimateMin: row.EstimateMin,
		AutoUrgency: row.AutoUrgency,
		Version:     row.Version,
		Created:     parseTimestamp(row.CreatedAt, now),
		Modified:    parseTimestamp(row.UpdatedAt, now),
	}
	if row.CompletedAt != "" {
		at := parseTimestamp(row.CompletedAt, now)
		t.CompletedAt = &at
	}
	if row.DueDate != "" {
		d := parseTimestamp(row.DueDate, now)
		t.DueDate = &d
	}
	if len(row.Subtasks) > 0 {
		var subs []rowSubtask
		if err := json.Unmarshal(row.Subtasks, &subs); err == nil {
			t.Subtasks = make([]Subtask, len(subs))
			for i, s := range subs {
				t.Subtasks[i] = Subtask(s)
			}
		}
	}
	return t
}

// coerceTimestamp formats a time for the wire, substituting now for zero values.
func coerceTimestamp(t time.Time, now time.Time) string {
	if t.IsZero() {
		t = now
	}
	return t.UTC().Format(time.RFC3339Nano)
}

// parseTimestamp parses an RFC3339 timestamp, falling back to now on any
// malformed input.
func parseTimestamp(s string, now time.Time) time.Time {
	if s == "" {
		return now
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return now
}
