package history

import (
	"context"
	"fmt"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

// indexScan describes a descending scan over one index of the table.
type indexScan struct {
	prefix []byte
	upper  []byte
	decode func(suffix, value []byte) (Entry, error)
}

// ListHistory returns revisions of every key with timestamp <= maxTs, newest
// first. Tombstones are included.
func (l *Log) ListHistory(ctx context.Context, maxTs int64, req PageRequest) (Page, error) {
	return l.scanDescending(ctx, indexScan{
		prefix: KeyTsPrefix(l.table),
		upper:  keyTsUpper(l.table, maxTs),
		decode: func(suffix, value []byte) (Entry, error) {
			ts, key, ok := parseTsSuffix(suffix)
			if !ok {
				return Entry{}, fmt.Errorf("%w: timestamp index key", ErrCorrupt)
			}
			return decodeRevision(key, ts, value)
		},
	}, req)
}

// ListDocumentHistory returns revisions of key with timestamp <= maxTs,
// newest first.
func (l *Log) ListDocumentHistory(ctx context.Context, key string, maxTs int64, req PageRequest) (Page, error) {
	if !validKey(key) {
		return Page{}, fmt.Errorf("%w: key %q", ErrInvalidArgument, key)
	}
	return l.scanDescending(ctx, indexScan{
		prefix: keyRevKeyPrefix(l.table, key),
		upper:  keyRevUpper(l.table, key, maxTs),
		decode: func(suffix, value []byte) (Entry, error) {
			if len(suffix) != 8 {
				return Entry{}, fmt.Errorf("%w: revision index key", ErrCorrupt)
			}
			return decodeRevision(key, decodeTs(suffix), value)
		},
	}, req)
}

func (l *Log) scanDescending(ctx context.Context, scan indexScan, req PageRequest) (Page, error) {
	if req.Cursor == EndCursor {
		return Page{Entries: []Entry{}, ContinueCursor: EndCursor, IsDone: true}, nil
	}
	if req.NumItems <= 0 {
		return Page{}, fmt.Errorf("%w: page size must be positive, got %d", ErrInvalidArgument, req.NumItems)
	}
	var start []byte
	if req.Cursor != "" {
		pos, err := decodeCursor(req.Cursor)
		if err != nil {
			return Page{}, err
		}
		start = append(append([]byte(nil), scan.prefix...), pos...)
	}

	snap := l.db.NewSnapshot()
	defer snap.Close()
	return scanPage(ctx, snap, scan, start, req)
}

func scanPage(ctx context.Context, r pebblestore.Reader, scan indexScan, start []byte, req PageRequest) (Page, error) {
	it, err := r.NewIter(&pebble.IterOptions{LowerBound: scan.prefix, UpperBound: scan.upper})
	if err != nil {
		return Page{}, err
	}
	defer it.Close()

	var ok bool
	if start == nil {
		ok = it.Last()
	} else {
		ok = it.SeekLT(start)
	}

	page := Page{Entries: make([]Entry, 0, min(req.NumItems, 128))}
	var last []byte
	for ; ok; ok = it.Prev() {
		if len(page.Entries) == req.NumItems {
			page.ContinueCursor = encodeCursor(last)
			return page, nil
		}
		if err := ctx.Err(); err != nil {
			return Page{}, err
		}
		suffix := it.Key()[len(scan.prefix):]
		e, err := scan.decode(suffix, it.Value())
		if err != nil {
			return Page{}, err
		}
		last = append(last[:0], suffix...)
		if req.Filter != nil && !req.Filter(e) {
			continue
		}
		page.Entries = append(page.Entries, e)
	}
	if err := it.Error(); err != nil {
		return Page{}, err
	}
	page.ContinueCursor = EndCursor
	page.IsDone = true
	return page, nil
}
