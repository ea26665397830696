// Package store provides the durable local cache of the full record set.
// Reads are served from the in-memory mirror held by the engine; this
// package only makes that mirror survive restarts. Persistence is
// asynchronous, debounced and best-effort, and loading fails soft: a
// corrupt database falls back to the last backup snapshot, then to an
// empty set, never to an error the caller must fear.
package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"gridtask/backend"
)

const (
	// DefaultPersistDebounce is the quiet period before an in-memory
	// mirror change is written to disk. A write arriving inside the
	// window replaces the pending one rather than queuing.
	DefaultPersistDebounce = 250 * time.Millisecond

	metaHasEverSynced = "has_ever_synced"
	metaBaselineHash  = "baseline_hash"
	metaTheme         = "theme"
)

// Store is the sqlite-backed local cache.
type Store struct {
	db         *sql.DB
	path       string
	backupPath string

	// non-nil when the database file was unreadable at Open and had to be
	// set aside. Load then recovers from the backup snapshot.
	openErr error

	mu       sync.Mutex
	pending  *backend.RecordSet
	timer    *time.Timer
	debounce time.Duration
	closed   bool
}

// Open opens (or creates) the cache database under dir. A corrupt database
// file is set aside and replaced with a fresh one rather than failing: the
// subsequent Load recovers what it can from the backup snapshot.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	path := filepath.Join(dir, "records.db")
	s := &Store{
		path:       path,
		backupPath: filepath.Join(dir, "records.backup.json"),
		debounce:   DefaultPersistDebounce,
	}

	db, err := openAndInit(path)
	if err != nil {
		if renameErr := os.Rename(path, path+".corrupt"); renameErr != nil {
			return nil, err
		}
		s.openErr = err
		db, err = openAndInit(path)
		if err != nil {
			return nil, err
		}
	}
	s.db = db
	return s, nil
}

func openAndInit(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// SetPersistDebounce overrides the persist debounce window. A zero duration
// makes Persist synchronous, which tests rely on.
func (s *Store) SetPersistDebounce(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.debounce = d
}

func initSchema(db *sql.DB) error {
	schema := `
		CREATE TABLE IF NOT EXISTS tasks (
			id TEXT PRIMARY KEY,
			text TEXT NOT NULL,
			urgency REAL NOT NULL DEFAULT 0,
			importance REAL NOT NULL DEFAULT 0,
			due_date TEXT,
			estimate_min INTEGER NOT NULL DEFAULT 0,
			auto_urgency INTEGER NOT NULL DEFAULT 0,
			completed INTEGER NOT NULL DEFAULT 0,
			completed_at TEXT,
			subtasks TEXT NOT NULL DEFAULT '[]',
			version INTEGER NOT NULL DEFAULT 0,
			created TEXT NOT NULL,
			modified TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS tombstones (
			id TEXT PRIMARY KEY,
			record TEXT NOT NULL,
			deleted_at TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS snapshots (
			slot TEXT PRIMARY KEY,
			data TEXT NOT NULL,
			saved_at TEXT NOT NULL
		);
	`
	_, err := db.Exec(schema)
	return err
}

// Load reads the full record set. On corruption it falls back to the last
// backup snapshot, then to an empty set. The returned error, when non-nil,
// describes the recovery that took place; the returned set is always
// usable.
func (s *Store) Load() (backend.RecordSet, error) {
	err := s.openErr
	var rs backend.RecordSet
	if err == nil {
		rs, err = s.loadFromDB()
	}
	if err == nil {
		return rs, nil
	}

	if backup, berr := s.loadBackupFile(); berr == nil {
		return backup, fmt.Errorf("cache unreadable, recovered from backup snapshot: %w", err)
	}
	return backend.NewRecordSet(), fmt.Errorf("cache unreadable and no backup available, starting empty: %w", err)
}

func (s *Store) loadFromDB() (backend.RecordSet, error) {
	rs := backend.NewRecordSet()

	rows, err := s.db.Query(
		`SELECT id, text, urgency, importance, due_date, estimate_min, auto_urgency,
		        completed, completed_at, subtasks, version, created, modified
		 FROM tasks`)
	if err != nil {
		return rs, err
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return rs, err
		}
		rs.Tasks[t.ID] = *t
	}
	if err := rows.Err(); err != nil {
		return rs, err
	}

	trows, err := s.db.Query("SELECT id, record, deleted_at FROM tombstones")
	if err != nil {
		return rs, err
	}
	defer func() { _ = trows.Close() }()

	for trows.Next() {
		var id, record, deletedAt string
		if err := trows.Scan(&id, &record, &deletedAt); err != nil {
			return rs, err
		}
		var t backend.Task
		if err := json.Unmarshal([]byte(record), &t); err != nil {
			return rs, err
		}
		at, err := time.Parse(time.RFC3339Nano, deletedAt)
		if err != nil {
			return rs, err
		}
		rs.Tombstones[id] = backend.Tombstone{Task: t, DeletedAt: at}
	}
	return rs, trows.Err()
}

func scanTask(rows *sql.Rows) (*backend.Task, error) {
	var t backend.Task
	var dueDate, completedAt sql.NullString
	var subtasks, created, modified string
	var autoUrgency, completed int

	err := rows.Scan(
		&t.ID, &t.Text, &t.Urgency, &t.Importance, &dueDate, &t.EstimateMin,
		&autoUrgency, &completed, &completedAt, &subtasks, &t.Version, &created, &modified,
	)
	if err != nil {
		return nil, err
	}

	t.AutoUrgency = autoUrgency != 0
	t.Completed = completed != 0
	if dueDate.Valid && dueDate.String != "" {
		if d, err := time.Parse(time.RFC3339Nano, dueDate.String); err == nil {
			t.DueDate = &d
		}
	}
	if completedAt.Valid && completedAt.String != "" {
		if c, err := time.Parse(time.RFC3339Nano, completedAt.String); err == nil {
			t.CompletedAt = &c
		}
	}
	if err := json.Unmarshal([]byte(subtasks), &t.Subtasks); err != nil {
		return nil, err
	}
	t.Created, _ = time.Parse(time.RFC3339Nano, created)
	t.Modified, _ = time.Parse(time.RFC3339Nano, modified)
	return &t, nil
}

// Persist schedules a durable write of the record set. Writes are debounced:
// a set arriving while one is pending replaces it. High-frequency callers
// (continuous drag updates) therefore never block on disk.
func (s *Store) Persist(rs backend.RecordSet) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	snapshot := rs.Clone()
	s.pending = &snapshot

	if s.debounce == 0 {
		s.mu.Unlock()
		_ = s.Flush()
		return
	}

	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() { _ = s.Flush() })
	s.mu.Unlock()
}

// Flush writes any pending record set immediately.
func (s *Store) Flush() error {
	s.mu.Lock()
	pending := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if pending == nil {
		return nil
	}
	return s.writeSet(*pending)
}

func (s *Store) writeSet(rs backend.RecordSet) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.Exec("DELETE FROM tasks"); err != nil {
		return err
	}
	if _, err := tx.Exec("DELETE FROM tombstones"); err != nil {
		return err
	}

	for _, t := range rs.Tasks {
		subtasks, err := json.Marshal(t.Subtasks)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`INSERT INTO tasks (id, text, urgency, importance, due_date, estimate_min,
			                    auto_urgency, completed, completed_at, subtasks, version, created, modified)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			t.ID, t.Text, t.Urgency, t.Importance, timeToNullString(t.DueDate), t.EstimateMin,
			boolToInt(t.AutoUrgency), boolToInt(t.Completed), timeToNullString(t.CompletedAt),
			string(subtasks), t.Version,
			t.Created.UTC().Format(time.RFC3339Nano), t.Modified.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
	}

	for id, ts := range rs.Tombstones {
		record, err := json.Marshal(ts.Task)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			"INSERT INTO tombstones (id, record, deleted_at) VALUES (?, ?, ?)",
			id, string(record), ts.DeletedAt.UTC().Format(time.RFC3339Nano),
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit()
}

// SnapshotBackup copies the record set to the secondary slot, a sidecar
// JSON file that survives database corruption. Called before destructive
// bulk operations and after each successful sync.
func (s *Store) SnapshotBackup(rs backend.RecordSet) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	tmp := s.backupPath + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return err
	}
	return os.Rename(tmp, s.backupPath)
}

func (s *Store) loadBackupFile() (backend.RecordSet, error) {
	data, err := os.ReadFile(s.backupPath)
	if err != nil {
		return backend.RecordSet{}, err
	}
	rs := backend.NewRecordSet()
	if err := json.Unmarshal(data, &rs); err != nil {
		return backend.RecordSet{}, err
	}
	if rs.Tasks == nil {
		rs.Tasks = make(map[string]backend.Task)
	}
	if rs.Tombstones == nil {
		rs.Tombstones = make(map[string]backend.Tombstone)
	}
	return rs, nil
}

// SaveBaseline records the last state known to be converged with the
// remote, plus its fingerprint for cheap dirty checks.
func (s *Store) SaveBaseline(rs backend.RecordSet) error {
	data, err := json.Marshal(rs)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)
	if _, err := s.db.Exec(
		`INSERT INTO snapshots (slot, data, saved_at) VALUES ('baseline', ?, ?)
		 ON CONFLICT(slot) DO UPDATE SET data = excluded.data, saved_at = excluded.saved_at`,
		string(data), now,
	); err != nil {
		return err
	}
	return s.SetMeta(metaBaselineHash, fmt.Sprintf("%d", rs.Fingerprint()))
}

// LoadBaseline returns the last converged baseline, or ok=false when none
// has been recorded yet. A missing or corrupt baseline is benign: the merge
// then treats every local record as an offline creation, which can only
// preserve data.
func (s *Store) LoadBaseline() (backend.RecordSet, bool) {
	var data string
	err := s.db.QueryRow("SELECT data FROM snapshots WHERE slot = 'baseline'").Scan(&data)
	if err != nil {
		return backend.NewRecordSet(), false
	}
	rs := backend.NewRecordSet()
	if err := json.Unmarshal([]byte(data), &rs); err != nil {
		return backend.NewRecordSet(), false
	}
	if rs.Tasks == nil {
		rs.Tasks = make(map[string]backend.Task)
	}
	if rs.Tombstones == nil {
		rs.Tombstones = make(map[string]backend.Tombstone)
	}
	return rs, true
}

// Meta returns a stored preference value, or "" when unset.
func (s *Store) Meta(key string) string {
	var value string
	if err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value); err != nil {
		return ""
	}
	return value
}

// SetMeta stores a preference value.
func (s *Store) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		`INSERT INTO meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// HasEverSynced reports whether this installation has completed at least
// one successful sync. Guards against wiping the remote store on a
// transient local load failure.
func (s *Store) HasEverSynced() bool {
	return s.Meta(metaHasEverSynced) == "true"
}

// SetHasEverSynced records the first successful sync.
func (s *Store) SetHasEverSynced() error {
	return s.SetMeta(metaHasEverSynced, "true")
}

// Theme returns the stored theme preference.
func (s *Store) Theme() string {
	return s.Meta(metaTheme)
}

// SetTheme stores the theme preference.
func (s *Store) SetTheme(theme string) error {
	return s.SetMeta(metaTheme, theme)
}

// Path returns the database file path, for file watchers.
func (s *Store) Path() string {
	return s.path
}

// BackupPath returns the sidecar backup file path, for file watchers.
func (s *Store) BackupPath() string {
	return s.backupPath
}

// Close flushes any pending write and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	flushErr := s.Flush()
	closeErr := s.db.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func timeToNullString(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.UTC().Format(time.RFC3339Nano), Valid: true}
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
