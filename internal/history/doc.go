// Package history implements the per-table revision log: timestamp
// allocation, history listings, snapshot reconstruction and compaction.
//
// # Overview
//
// Every revision is stored twice in Pebble, once per index, so both listings
// are plain range scans:
//   - th/{table}/rev/{key}\x00{ts_be8}  (per-key index)
//   - th/{table}/ts/{ts_be8}{key}       (global timestamp index)
//   - th/{table}/meta/watermark         (compaction watermark, minTsToKeep)
//
// Records are stored as: uvarint headerLen | header | payload | crc32c(header|payload).
// The header is a flags byte (tombstone bit) followed by the attribution.
//
// API surface (internal)
//
//	l, _ := OpenLog(db, "orders")
//	ts, _ := l.Update(ctx, "order-1", doc, PolicyDocument, attribution)
//	_, _ = l.Update(ctx, "order-1", nil, PolicyDocument, attribution) // tombstone
//
//	// Newest first, paginated with opaque cursors; EndCursor marks the end
//	page, _ := l.ListHistory(ctx, ts, PageRequest{NumItems: 100})
//	page, _ = l.ListDocumentHistory(ctx, "order-1", ts, PageRequest{NumItems: 100})
//
//	// Table state as of ts, stable while the log grows past currentTs
//	snap, _ := l.ListSnapshot(ctx, SnapshotRequest{SnapshotTs: ts, CurrentTs: now, NumItems: 100})
//	if snap.PageStatus == SplitRecommended {
//	    // fetch (cursor, SplitCursor] and (SplitCursor, ContinueCursor] via EndCursor
//	}
//
//	// One compaction batch; stage writes related state into the same commit
//	res, _ := l.VacuumBatch(ctx, minTsToKeep, cursor, DefaultVacuumBatch, stage)
//
// # Compaction
//
// Compaction walks the timestamp index ascending from the watermark. For every
// entry at or below minTsToKeep the previous revision of the same key becomes
// unreachable for snapshots at or after minTsToKeep and is deleted; tombstones
// are deleted too. Snapshots older than the watermark fail with
// ErrSnapshotUnavailable. Compaction is not atomic with readers: a pagination
// sequence that overlaps a compaction may observe gaps or repeats.
package history
