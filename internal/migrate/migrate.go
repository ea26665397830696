// Package migrate performs the one-time upload of a device-local record
// set into the remote store, as an explicit user action when an existing
// offline installation first signs in.
package migrate

import (
	"context"
	"sort"
	"time"

	"gridtask/backend"
	"gridtask/internal/utils"
)

// Failure records one task that could not be migrated.
type Failure struct {
	TaskID string
	Reason string
}

// Result summarizes a migration run.
type Result struct {
	Migrated int
	Failures []Failure
}

// Run converts every active record to the remote row shape and uploads it.
// Per-record failures are collected, not fatal: one bad row never aborts
// the batch. Created/updated timestamps are derived defensively by the row
// conversion, so records predating timestamp tracking still migrate.
func Run(ctx context.Context, rs backend.RecordSet, ownerID string, remote backend.RemoteStore) (Result, error) {
	if remote == nil {
		return Result{}, utils.ErrNotSignedIn()
	}

	ids := make([]string, 0, len(rs.Tasks))
	for id := range rs.Tasks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	now := time.Now()
	var res Result
	for _, id := range ids {
		row := backend.RowFromTask(rs.Tasks[id], ownerID, now)
		if err := remote.Upsert(ctx, ownerID, row); err != nil {
			res.Failures = append(res.Failures, Failure{TaskID: id, Reason: err.Error()})
			continue
		}
		res.Migrated++
	}
	return res, nil
}
