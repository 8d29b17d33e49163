package history

import (
	"context"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

const lockStripes = 64

// Log is the revision log of one audited table.
//
// Writes under PolicyTable hold the table lock exclusively so the global
// maximum cannot move between allocation and insertion. Other policies hold
// it shared plus a per-key stripe, so writes to different keys do not contend.
type Log struct {
	db    *pebblestore.DB
	table string

	mu       sync.RWMutex
	stripes  [lockStripes]sync.Mutex
	notifyMu sync.Mutex
	notifyCh chan struct{}

	// vacuumMu serializes watermark read-advance-write cycles.
	vacuumMu sync.Mutex
}

// OpenLog returns the revision log for table.
func OpenLog(db *pebblestore.DB, table string) (*Log, error) {
	if table == "" || strings.ContainsAny(table, "/\x00") {
		return nil, fmt.Errorf("%w: table name %q", ErrInvalidArgument, table)
	}
	return &Log{db: db, table: table, notifyCh: make(chan struct{})}, nil
}

// Table returns the table name.
func (l *Log) Table() string { return l.table }

// Update appends a revision for key and returns its timestamp. A nil doc
// records a tombstone.
func (l *Log) Update(ctx context.Context, key string, doc []byte, policy Policy, attribution []byte) (int64, error) {
	if !validKey(key) {
		return 0, fmt.Errorf("%w: key must be non-empty and free of NUL bytes", ErrInvalidArgument)
	}
	if policy == "" {
		policy = DefaultPolicy
	}
	if _, err := ParsePolicy(string(policy)); err != nil {
		return 0, err
	}

	if policy == PolicyTable {
		l.mu.Lock()
		defer l.mu.Unlock()
	} else {
		l.mu.RLock()
		defer l.mu.RUnlock()
		s := l.stripe(key)
		s.Lock()
		defer s.Unlock()
	}

	ts, err := l.allocate(policy, key)
	if err != nil {
		return 0, fmt.Errorf("allocate timestamp: %w", err)
	}
	e := Entry{Key: key, Ts: ts, Doc: doc, Deleted: doc == nil, Attribution: attribution}

	b := l.db.NewBatch()
	defer b.Close()
	if err := l.stageInsert(b, e); err != nil {
		return 0, err
	}
	if err := l.db.CommitBatch(ctx, b); err != nil {
		return 0, fmt.Errorf("commit revision: %w", err)
	}
	l.notify()
	return ts, nil
}

func (l *Log) stripe(key string) *sync.Mutex {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &l.stripes[h.Sum32()%lockStripes]
}

// stageInsert writes both index rows of e into b.
func (l *Log) stageInsert(b *pebble.Batch, e Entry) error {
	val := encodeRevision(e)
	if err := b.Set(KeyRevision(l.table, e.Key, e.Ts), val, nil); err != nil {
		return err
	}
	return b.Set(KeyTsIndex(l.table, e.Ts, e.Key), val, nil)
}

// stageDelete removes both index rows of (key, ts) from b.
func (l *Log) stageDelete(b *pebble.Batch, key string, ts int64) error {
	if err := b.Delete(KeyRevision(l.table, key, ts), nil); err != nil {
		return err
	}
	return b.Delete(KeyTsIndex(l.table, ts, key), nil)
}

// Latest returns the newest revision of key with timestamp <= maxTs.
func (l *Log) Latest(key string, maxTs int64) (Entry, bool, error) {
	if !validKey(key) {
		return Entry{}, false, fmt.Errorf("%w: key %q", ErrInvalidArgument, key)
	}
	it, err := l.db.NewIter(pebblestore.PrefixIterOptions(KeyRevPrefix(l.table)))
	if err != nil {
		return Entry{}, false, err
	}
	defer it.Close()
	return l.seekAtOrBefore(it, key, maxTs)
}

// seekAtOrBefore positions it on the newest revision of key with timestamp
// <= ts. it must range over the table's per-key index.
func (l *Log) seekAtOrBefore(it *pebble.Iterator, key string, ts int64) (Entry, bool, error) {
	prefix := keyRevKeyPrefix(l.table, key)
	if !it.SeekLT(keyRevUpper(l.table, key, ts)) {
		return Entry{}, false, it.Error()
	}
	k := it.Key()
	if len(k) != len(prefix)+8 || string(k[:len(prefix)]) != string(prefix) {
		return Entry{}, false, nil
	}
	e, err := decodeRevision(key, decodeTs(k[len(prefix):]), it.Value())
	if err != nil {
		return Entry{}, false, err
	}
	return e, true, nil
}
