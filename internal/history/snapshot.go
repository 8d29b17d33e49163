package history

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

// ListSnapshot returns the table as of req.SnapshotTs: one live revision per
// key, keys in descending order.
//
// Keys whose first revision is newer than req.CurrentTs are skipped without
// counting against the page. Keys that exist at CurrentTs but are absent or
// deleted at SnapshotTs count against the page without producing an entry,
// so pages stay stable while the log keeps growing past CurrentTs.
//
// With req.EndCursor set the page covers (Cursor, EndCursor] regardless of
// NumItems. Unbounded pages that visited at least twice NumItems keys carry
// SplitRecommended and a SplitCursor splitting the visited range in two.
func (l *Log) ListSnapshot(ctx context.Context, req SnapshotRequest) (SnapshotPage, error) {
	if req.Cursor == EndCursor {
		return SnapshotPage{Entries: []Entry{}, ContinueCursor: EndCursor, IsDone: true}, nil
	}
	if req.NumItems <= 0 {
		return SnapshotPage{}, fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidArgument, req.NumItems)
	}
	if req.CurrentTs < req.SnapshotTs {
		return SnapshotPage{}, fmt.Errorf("%w: currentTs %d precedes snapshotTs %d", ErrInvalidArgument, req.CurrentTs, req.SnapshotTs)
	}

	var (
		cursorKey *string
		endKey    *string
	)
	if req.Cursor != "" {
		k, err := decodeCursor(req.Cursor)
		if err != nil {
			return SnapshotPage{}, err
		}
		s := string(k)
		cursorKey = &s
	}
	bounded := req.EndCursor != ""
	if bounded && req.EndCursor != EndCursor {
		k, err := decodeCursor(req.EndCursor)
		if err != nil {
			return SnapshotPage{}, err
		}
		s := string(k)
		endKey = &s
	}

	snap := l.db.NewSnapshot()
	defer snap.Close()

	wm, ok, err := readWatermark(snap, l.table)
	if err != nil {
		return SnapshotPage{}, err
	}
	if ok && req.SnapshotTs < wm {
		return SnapshotPage{}, fmt.Errorf("%w: snapshotTs %d is older than watermark %d", ErrSnapshotUnavailable, req.SnapshotTs, wm)
	}

	it, err := snap.NewIter(pebblestore.PrefixIterOptions(KeyRevPrefix(l.table)))
	if err != nil {
		return SnapshotPage{}, err
	}
	defer it.Close()

	page := SnapshotPage{Entries: make([]Entry, 0, min(req.NumItems, 128))}
	var (
		seen        []string
		counted     int
		lastCounted string
	)
	for bounded || counted < req.NumItems {
		if err := ctx.Err(); err != nil {
			return SnapshotPage{}, err
		}
		latest, found, err := l.prevKey(it, cursorKey)
		if err != nil {
			return SnapshotPage{}, err
		}
		if !found {
			if endKey != nil {
				return l.boundedEnd(page, req), nil
			}
			page.ContinueCursor = EndCursor
			page.IsDone = true
			return page, nil
		}
		key := latest.Key
		if endKey != nil && key < *endKey {
			return l.boundedEnd(page, req), nil
		}
		cursorKey = &key
		seen = append(seen, key)

		state, exists, err := l.resolve(it, latest, req.SnapshotTs, req.CurrentTs)
		if err != nil {
			return SnapshotPage{}, err
		}
		if exists {
			counted++
			lastCounted = key
			if state != nil && !state.Deleted {
				page.Entries = append(page.Entries, *state)
			}
		}
		if endKey != nil && key == *endKey {
			return l.boundedEnd(page, req), nil
		}
	}

	page.ContinueCursor = encodeCursor([]byte(lastCounted))
	if len(seen) >= 2*req.NumItems {
		page.PageStatus = SplitRecommended
		page.SplitCursor = encodeCursor([]byte(seen[req.NumItems-1]))
	}
	return page, nil
}

func (l *Log) boundedEnd(page SnapshotPage, req SnapshotRequest) SnapshotPage {
	page.ContinueCursor = req.EndCursor
	page.IsDone = req.EndCursor == EndCursor
	return page
}

// prevKey returns the latest revision of the greatest key strictly below
// *before, or of the greatest key overall when before is nil.
func (l *Log) prevKey(it *pebble.Iterator, before *string) (Entry, bool, error) {
	var ok bool
	if before == nil {
		ok = it.Last()
	} else {
		ok = it.SeekLT(keyRevKeyPrefix(l.table, *before))
	}
	if !ok {
		return Entry{}, false, it.Error()
	}
	prefix := KeyRevPrefix(l.table)
	key, ts, valid := parseRevSuffix(it.Key()[len(prefix):])
	if !valid {
		return Entry{}, false, fmt.Errorf("%w: revision index key", ErrCorrupt)
	}
	e, err := decodeRevision(key, ts, it.Value())
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}

// resolve finds the revision of latest.Key visible at snapshotTs.
//
// exists is false when the key has no revision at or before currentTs; such
// keys are invisible to this pagination. state is nil when the key exists at
// currentTs but not yet at snapshotTs.
func (l *Log) resolve(it *pebble.Iterator, latest Entry, snapshotTs, currentTs int64) (*Entry, bool, error) {
	if latest.Ts <= snapshotTs {
		return &latest, true, nil
	}
	at, found, err := l.seekAtOrBefore(it, latest.Key, snapshotTs)
	if err != nil {
		return nil, false, err
	}
	if found {
		return &at, true, nil
	}
	if latest.Ts <= currentTs {
		return nil, true, nil
	}
	_, found, err = l.seekAtOrBefore(it, latest.Key, currentTs)
	if err != nil {
		return nil, false, err
	}
	return nil, found, nil
}
