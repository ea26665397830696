package migrate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gridtask/backend"
)

type recordingRemote struct {
	mu       sync.Mutex
	rows     map[string]backend.RemoteRow
	failOn   map[string]bool
	upserted []string
}

func newRecordingRemote() *recordingRemote {
	return &recordingRemote{rows: make(map[string]backend.RemoteRow), failOn: make(map[string]bool)}
}

func (r *recordingRemote) FetchAll(ctx context.Context, ownerID string) ([]backend.RemoteRow, error) {
	return nil, nil
}

func (r *recordingRemote) Upsert(ctx context.Context, ownerID string, row backend.RemoteRow) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failOn[row.ID] {
		return errors.New("row rejected")
	}
	r.rows[row.ID] = row
	r.upserted = append(r.upserted, row.ID)
	return nil
}

func (r *recordingRemote) UpsertAll(ctx context.Context, ownerID string, rows []backend.RemoteRow) error {
	for _, row := range rows {
		if err := r.Upsert(ctx, ownerID, row); err != nil {
			return err
		}
	}
	return nil
}

func (r *recordingRemote) Delete(ctx context.Context, ownerID, taskID string) error { return nil }
func (r *recordingRemote) Close() error                                             { return nil }

var _ backend.RemoteStore = (*recordingRemote)(nil)

func sampleSet(ids ...string) backend.RecordSet {
	rs := backend.NewRecordSet()
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	for _, id := range ids {
		rs.Tasks[id] = backend.Task{ID: id, Text: "task " + id, Version: 1, Created: created, Modified: created}
	}
	return rs
}

func TestRunUploadsEverything(t *testing.T) {
	remote := newRecordingRemote()
	res, err := Run(context.Background(), sampleSet("a", "b", "c"), "owner-1", remote)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Migrated != 3 || len(res.Failures) != 0 {
		t.Errorf("result = %+v", res)
	}
	if remote.rows["b"].OwnerID != "owner-1" {
		t.Error("owner not stamped on migrated rows")
	}
}

func TestRunDeterministicOrder(t *testing.T) {
	remote := newRecordingRemote()
	_, err := Run(context.Background(), sampleSet("c", "a", "b"), "o", remote)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"a", "b", "c"}
	for i, id := range want {
		if remote.upserted[i] != id {
			t.Fatalf("upload order = %v, want %v", remote.upserted, want)
		}
	}
}

func TestRunCollectsFailures(t *testing.T) {
	remote := newRecordingRemote()
	remote.failOn["b"] = true

	res, err := Run(context.Background(), sampleSet("a", "b", "c"), "o", remote)
	if err != nil {
		t.Fatalf("Run: one bad row must not abort the batch: %v", err)
	}
	if res.Migrated != 2 {
		t.Errorf("migrated = %d, want 2", res.Migrated)
	}
	if len(res.Failures) != 1 || res.Failures[0].TaskID != "b" {
		t.Errorf("failures = %+v", res.Failures)
	}
}

func TestRunWithoutRemote(t *testing.T) {
	if _, err := Run(context.Background(), sampleSet("a"), "o", nil); err == nil {
		t.Error("nil remote accepted")
	}
}

func TestRunCoercesMissingTimestamps(t *testing.T) {
	rs := backend.NewRecordSet()
	rs.Tasks["old"] = backend.Task{ID: "old", Text: "predates timestamps"}

	remote := newRecordingRemote()
	res, err := Run(context.Background(), rs, "o", remote)
	if err != nil || res.Migrated != 1 {
		t.Fatalf("Run: %v, %+v", err, res)
	}
	if remote.rows["old"].CreatedAt == "" || remote.rows["old"].UpdatedAt == "" {
		t.Error("zero timestamps not coerced for the wire")
	}
}
