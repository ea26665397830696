// Package merge reconciles the local record set, the remote record set and
// the last converged baseline into one authoritative state. Resolution is
// per-record last-write-wins on the version marker; records are merged
// whole, never field by field.
package merge

import (
	"time"

	"gridtask/backend"
)

// Merge performs the three-way reconciliation. It is a pure function: the
// inputs are not modified and merging the same triple twice yields the same
// result. The remote set normally carries no tombstones (the recycle bin is
// a local concept) but tombstones on either side merge by version just like
// active records.
func Merge(local, remote, base backend.RecordSet) backend.RecordSet {
	out := backend.NewRecordSet()

	// Tombstones first: deletions must be visible when deciding the fate
	// of remote-only records.
	for id, ts := range local.Tombstones {
		out.Tombstones[id] = ts
	}
	for id, ts := range remote.Tombstones {
		if cur, ok := out.Tombstones[id]; !ok || ts.Task.Version > cur.Task.Version {
			out.Tombstones[id] = ts
		}
	}

	for id, lt := range local.Tasks {
		rt, onRemote := remote.Tasks[id]
		switch {
		case onRemote:
			// Present on both sides: higher version wins. Ties favor
			// remote, since content is assumed identical at equal
			// versions.
			if lt.Version > rt.Version {
				out.Tasks[id] = lt
			} else {
				out.Tasks[id] = rt
			}
		default:
			// Present only locally. If the baseline never held it, this
			// is an offline creation and must not be dropped. If the
			// baseline held it at the same version, the remote absence
			// means another device deleted it and the deletion wins.
			// A local edit since the baseline outranks the absence.
			bt, inBase := base.Tasks[id]
			if !inBase || lt.Version > bt.Version {
				out.Tasks[id] = lt
			}
		}
	}

	for id, rt := range remote.Tasks {
		if _, ok := local.Tasks[id]; ok {
			continue // handled above
		}
		// Present only remotely: keep it unless a tombstone says it was
		// deleted here and the deletion is at least as new.
		if ts, dead := out.Tombstones[id]; dead && ts.Task.Version >= rt.Version {
			continue
		}
		// No tombstone, but the baseline held this exact state: the record
		// was removed here (cleared, or its tombstone already expired) and
		// the removal wins. A newer remote edit outranks it.
		if bt, inBase := base.Tasks[id]; inBase && bt.Version >= rt.Version {
			continue
		}
		out.Tasks[id] = rt
	}

	// Exclusivity: an identifier never appears as both active and
	// tombstoned. The newer copy decides; ties favor the deletion.
	for id, ts := range out.Tombstones {
		t, active := out.Tasks[id]
		if !active {
			continue
		}
		if t.Version > ts.Task.Version {
			delete(out.Tombstones, id)
		} else {
			delete(out.Tasks, id)
		}
	}

	return out
}

// FromRows builds a record set from remote rows. Rows never carry
// tombstones.
func FromRows(rows []backend.RemoteRow, now time.Time) backend.RecordSet {
	rs := backend.NewRecordSet()
	for _, row := range rows {
		t := backend.TaskFromRow(row, now)
		rs.Tasks[t.ID] = t
	}
	return rs
}
