package store

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"gridtask/backend"
)

func openTestStore(t *testing.T) (*Store, string) {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SetPersistDebounce(0) // synchronous writes
	t.Cleanup(func() { _ = s.Close() })
	return s, dir
}

func sampleSet() backend.RecordSet {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	due := now.Add(48 * time.Hour)
	u := 10.0
	i := 90.0
	rs := backend.NewRecordSet()
	rs.Tasks["t1"] = backend.Task{
		ID:          "t1",
		Text:        "write report",
		Urgency:     70,
		Importance:  85,
		DueDate:     &due,
		EstimateMin: 90,
		AutoUrgency: true,
		Version:     3,
		Created:     now,
		Modified:    now,
		Subtasks: []backend.Subtask{
			{ID: "s1", Text: "outline", Completed: true},
			{ID: "s2", Text: "figures", Urgency: &u, Importance: &i, Note: "ask design"},
		},
	}
	rs.Tasks["t2"] = backend.Task{
		ID: "t2", Text: "done already", Completed: true, CompletedAt: &now,
		Version: 2, Created: now, Modified: now,
	}
	rs.Tombstones["t3"] = backend.Tombstone{
		Task:      backend.Task{ID: "t3", Text: "deleted", Version: 4, Created: now, Modified: now},
		DeletedAt: now,
	}
	return rs
}

func TestPersistAndLoadRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)
	want := sampleSet()

	s.Persist(want)

	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Fingerprint() != want.Fingerprint() {
		t.Error("loaded set differs from persisted set")
	}
	t1 := got.Tasks["t1"]
	if len(t1.Subtasks) != 2 || t1.Subtasks[1].Note != "ask design" {
		t.Errorf("subtasks lost in round trip: %+v", t1.Subtasks)
	}
	if t1.DueDate == nil || !t1.AutoUrgency {
		t.Error("optional fields lost in round trip")
	}
	if _, ok := got.Tombstones["t3"]; !ok {
		t.Error("tombstone lost in round trip")
	}
}

func TestLoadEmptyStore(t *testing.T) {
	s, _ := openTestStore(t)
	rs, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(rs.Tasks) != 0 || len(rs.Tombstones) != 0 {
		t.Error("fresh store not empty")
	}
	if rs.Tasks == nil || rs.Tombstones == nil {
		t.Error("maps not initialized")
	}
}

func TestDebouncedPersistReplacesPending(t *testing.T) {
	s, _ := openTestStore(t)
	s.SetPersistDebounce(time.Hour) // never fires in this test

	first := sampleSet()
	s.Persist(first)

	second := first.Clone()
	tk := second.Tasks["t1"]
	tk.Text = "latest wins"
	tk.Version = 9
	second.Tasks["t1"] = tk
	s.Persist(second)

	if err := s.Flush(); err != nil {
		t.Fatalf("Flush: %v", err)
	}
	got, err := s.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Tasks["t1"].Text != "latest wins" {
		t.Error("pending write was not replaced by the newer set")
	}
}

func TestLoadFallsBackToBackup(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SetPersistDebounce(0)

	want := sampleSet()
	if err := s.SnapshotBackup(want); err != nil {
		t.Fatalf("SnapshotBackup: %v", err)
	}
	_ = s.Close()

	// Corrupt the database file.
	if err := os.WriteFile(filepath.Join(dir, "records.db"), []byte("not a database"), 0600); err != nil {
		t.Fatal(err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("Open over corrupt db: %v", err)
	}
	defer func() { _ = s2.Close() }()

	got, err := s2.Load()
	if err == nil {
		t.Fatal("expected a recovery error describing the fallback")
	}
	if !strings.Contains(err.Error(), "backup") {
		t.Errorf("recovery error should mention the backup, got: %v", err)
	}
	if got.Fingerprint() != want.Fingerprint() {
		t.Error("backup snapshot not restored")
	}
}

func TestLoadCorruptWithoutBackupStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "records.db"), []byte("garbage"), 0600); err != nil {
		t.Fatal(err)
	}

	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer func() { _ = s.Close() }()

	got, err := s.Load()
	if err == nil {
		t.Fatal("expected a recovery error")
	}
	if len(got.Tasks) != 0 {
		t.Error("want an empty, usable set after total loss")
	}
	if got.Tasks == nil || got.Tombstones == nil {
		t.Error("maps must be initialized even after total loss")
	}
}

func TestBaselineRoundTrip(t *testing.T) {
	s, _ := openTestStore(t)

	if _, ok := s.LoadBaseline(); ok {
		t.Fatal("fresh store should have no baseline")
	}

	want := sampleSet()
	if err := s.SaveBaseline(want); err != nil {
		t.Fatalf("SaveBaseline: %v", err)
	}
	got, ok := s.LoadBaseline()
	if !ok {
		t.Fatal("baseline not found after save")
	}
	if got.Fingerprint() != want.Fingerprint() {
		t.Error("baseline round trip changed content")
	}

	// Overwrite with a new baseline.
	next := backend.NewRecordSet()
	if err := s.SaveBaseline(next); err != nil {
		t.Fatalf("SaveBaseline overwrite: %v", err)
	}
	got, _ = s.LoadBaseline()
	if len(got.Tasks) != 0 {
		t.Error("baseline overwrite kept the old slot")
	}
}

func TestMetaFlags(t *testing.T) {
	s, _ := openTestStore(t)

	if s.HasEverSynced() {
		t.Error("fresh store claims it has synced")
	}
	if err := s.SetHasEverSynced(); err != nil {
		t.Fatalf("SetHasEverSynced: %v", err)
	}
	if !s.HasEverSynced() {
		t.Error("flag not persisted")
	}

	if s.Theme() != "" {
		t.Error("fresh store has a theme")
	}
	if err := s.SetTheme("solarized"); err != nil {
		t.Fatalf("SetTheme: %v", err)
	}
	if s.Theme() != "solarized" {
		t.Errorf("theme = %q", s.Theme())
	}
}

func TestMetaSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.SetHasEverSynced(); err != nil {
		t.Fatal(err)
	}
	_ = s.Close()

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s2.Close() }()
	if !s2.HasEverSynced() {
		t.Error("meta flag lost across reopen")
	}
}

func TestCloseFlushesPending(t *testing.T) {
	dir := t.TempDir()
	s, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	s.SetPersistDebounce(time.Hour)

	want := sampleSet()
	s.Persist(want)
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer func() { _ = s2.Close() }()
	got, err := s2.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Fingerprint() != want.Fingerprint() {
		t.Error("pending write lost on Close")
	}
}
