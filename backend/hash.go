package backend

import (
	"encoding/json"
	"sort"
	"time"

	"github.com/cespare/xxhash/v2"
)

// Fingerprint returns a content hash of the record set, used to decide
// whether local state has drifted from the last converged baseline. Records
// are encoded in identifier order so the hash is independent of map
// iteration order.
func (rs RecordSet) Fingerprint() uint64 {
	h := xxhash.New()
	enc := json.NewEncoder(h)

	taskIDs := make([]string, 0, len(rs.Tasks))
	for id := range rs.Tasks {
		taskIDs = append(taskIDs, id)
	}
	sort.Strings(taskIDs)
	for _, id := range taskIDs {
		// Encoder writes cannot fail against a hash.Hash
		_ = enc.Encode(RowFromTask(rs.Tasks[id], "", time.Unix(0, 0)))
	}

	tombIDs := make([]string, 0, len(rs.Tombstones))
	for id := range rs.Tombstones {
		tombIDs = append(tombIDs, id)
	}
	sort.Strings(tombIDs)
	for _, id := range tombIDs {
		ts := rs.Tombstones[id]
		_ = enc.Encode(RowFromTask(ts.Task, "", time.Unix(0, 0)))
		_ = enc.Encode(ts.DeletedAt.UTC().Format(time.RFC3339Nano))
	}

	return h.Sum64()
}

// ActiveFingerprint hashes only the active tasks. It answers whether the
// merged state already matches what the remote holds, which is what decides
// if a post-merge upload is needed.
func (rs RecordSet) ActiveFingerprint() uint64 {
	active := RecordSet{Tasks: rs.Tasks, Tombstones: map[string]Tombstone{}}
	return active.Fingerprint()
}
