package history

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

// DefaultVacuumBatch is the number of timestamp-index entries handled per batch.
const DefaultVacuumBatch = 100

// StageFunc adds writes to a compaction batch before it commits, so callers
// can persist related state (job continuations) atomically with it.
type StageFunc func(b *pebble.Batch, res VacuumResult) error

// VacuumBatch runs one compaction batch toward minTsToKeep and commits it.
//
// It walks the timestamp index ascending over (watermark, minTsToKeep],
// resuming after cursor when given. For each entry it deletes the previous
// revision of the same key, and the entry itself when it is a tombstone. The
// watermark advances to the highest timestamp processed, or to minTsToKeep
// once the range is exhausted. The scan includes the watermark itself so that
// a fresh run picks up entries a cut batch left at that timestamp; revisit
// entries have nothing left to delete. Nothing is written when the commit or
// stage fails.
func (l *Log) VacuumBatch(ctx context.Context, minTsToKeep int64, cursor string, limit int, stage StageFunc) (VacuumResult, error) {
	if limit <= 0 {
		limit = DefaultVacuumBatch
	}
	l.vacuumMu.Lock()
	defer l.vacuumMu.Unlock()

	startTs, hasWatermark, err := readWatermark(l.db, l.table)
	if err != nil {
		return VacuumResult{}, err
	}
	res := VacuumResult{StartTs: startTs, Watermark: startTs}

	b := l.db.NewBatch()
	defer b.Close()

	// At startTs == minTsToKeep entries of a cut batch may still be pending.
	if hasWatermark && startTs > minTsToKeep {
		res.Done = true
		return res, l.commitVacuum(ctx, b, res, stage)
	}

	prefix := KeyTsPrefix(l.table)
	lower := prefix
	if hasWatermark {
		lower = keyTsLower(l.table, startTs)
	}
	seek := lower
	if cursor != "" {
		pos, err := decodeCursor(cursor)
		if err != nil {
			return VacuumResult{}, err
		}
		after := append(append(append([]byte(nil), prefix...), pos...), 0x00)
		if string(after) > string(seek) {
			seek = after
		}
	}

	it, err := l.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: keyTsUpper(l.table, minTsToKeep)})
	if err != nil {
		return VacuumResult{}, err
	}
	defer it.Close()
	revs, err := l.db.NewIter(pebblestore.PrefixIterOptions(KeyRevPrefix(l.table)))
	if err != nil {
		return VacuumResult{}, err
	}
	defer revs.Close()

	var (
		lastPos []byte
		lastTs  int64
		staged  = make(map[string]struct{})
	)
	// revs reads the database, not the batch, so a revision deleted earlier
	// in this batch can be found again.
	drop := func(key string, ts int64) error {
		id := string(KeyRevision(l.table, key, ts))
		if _, dup := staged[id]; dup {
			return nil
		}
		staged[id] = struct{}{}
		if err := l.stageDelete(b, key, ts); err != nil {
			return err
		}
		res.Deleted++
		return nil
	}
	ok := it.SeekGE(seek)
	for ; ok && res.Processed < limit; ok = it.Next() {
		if err := ctx.Err(); err != nil {
			return VacuumResult{}, err
		}
		suffix := it.Key()[len(prefix):]
		ts, key, valid := parseTsSuffix(suffix)
		if !valid {
			return VacuumResult{}, fmt.Errorf("%w: timestamp index key", ErrCorrupt)
		}
		h, err := decodeRevision(key, ts, it.Value())
		if err != nil {
			return VacuumResult{}, err
		}

		if ts > minInt64 {
			prev, found, err := l.seekAtOrBefore(revs, key, ts-1)
			if err != nil {
				return VacuumResult{}, err
			}
			if found {
				if err := drop(prev.Key, prev.Ts); err != nil {
					return VacuumResult{}, err
				}
			}
		}
		if h.Deleted {
			if err := drop(key, ts); err != nil {
				return VacuumResult{}, err
			}
		}
		res.Processed++
		lastPos = append(lastPos[:0], suffix...)
		lastTs = ts
	}
	if err := it.Error(); err != nil {
		return VacuumResult{}, err
	}

	var next int64
	if ok {
		// Entries still pending at lastTs are reached through the cursor, or
		// by the inclusive lower bound on a fresh run.
		next = lastTs
		res.NextCursor = encodeCursor(lastPos)
	} else {
		next = minTsToKeep
		res.Done = true
	}
	advanced, err := l.stageWatermark(b, startTs, hasWatermark, next)
	if err != nil {
		return VacuumResult{}, err
	}
	if advanced {
		res.Watermark = next
	}
	return res, l.commitVacuum(ctx, b, res, stage)
}

func (l *Log) commitVacuum(ctx context.Context, b *pebble.Batch, res VacuumResult, stage StageFunc) error {
	if stage != nil {
		if err := stage(b, res); err != nil {
			return fmt.Errorf("stage vacuum batch: %w", err)
		}
	}
	if b.Empty() {
		return nil
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return fmt.Errorf("commit vacuum batch: %w", err)
	}
	return nil
}

// Vacuum compacts synchronously, batch after batch, until the watermark
// reaches minTsToKeep. The background compactor is the usual entry point.
func (l *Log) Vacuum(ctx context.Context, minTsToKeep int64, batchSize int) (VacuumResult, error) {
	total := VacuumResult{}
	cursor := ""
	for first := true; ; first = false {
		res, err := l.VacuumBatch(ctx, minTsToKeep, cursor, batchSize, nil)
		if err != nil {
			return total, err
		}
		if first {
			total.StartTs = res.StartTs
		}
		total.Watermark = res.Watermark
		total.Processed += res.Processed
		total.Deleted += res.Deleted
		if res.Done {
			total.Done = true
			return total, nil
		}
		cursor = res.NextCursor
	}
}

const minInt64 = -1 << 63
