package history

import (
	"math"
	"time"

	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

// NowMs returns wall-clock milliseconds. Tests may override it.
var NowMs = func() int64 { return time.Now().UnixMilli() }

// allocate picks the timestamp for the next revision of key. Callers hold the
// locks required by policy.
func (l *Log) allocate(policy Policy, key string) (int64, error) {
	ts := NowMs()
	switch policy {
	case PolicyTable:
		latest, ok, err := l.latestGlobalTs()
		if err != nil {
			return 0, err
		}
		if ok && latest+1 > ts {
			ts = latest + 1
		}
	case PolicyDocument:
		latest, ok, err := l.Latest(key, math.MaxInt64)
		if err != nil {
			return 0, err
		}
		if ok && latest.Ts+1 > ts {
			ts = latest.Ts + 1
		}
	}

	// Bump past any revision already stored at exactly (key, ts).
	for {
		_, err := l.db.Get(KeyRevision(l.table, key, ts))
		if pebblestore.IsNotFound(err) {
			return ts, nil
		}
		if err != nil {
			return 0, err
		}
		ts++
	}
}

func (l *Log) latestGlobalTs() (int64, bool, error) {
	prefix := KeyTsPrefix(l.table)
	it, err := l.db.NewIter(pebblestore.PrefixIterOptions(prefix))
	if err != nil {
		return 0, false, err
	}
	defer it.Close()
	if !it.Last() {
		return 0, false, it.Error()
	}
	ts, _, ok := parseTsSuffix(it.Key()[len(prefix):])
	if !ok {
		return 0, false, ErrCorrupt
	}
	return ts, true, nil
}
