package history

import (
	"encoding/binary"
	"fmt"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

// Watermark returns the table's compaction watermark (minTsToKeep). ok is
// false until the first compaction batch commits.
func (l *Log) Watermark() (int64, bool, error) {
	return readWatermark(l.db, l.table)
}

func readWatermark(r pebblestore.Reader, table string) (int64, bool, error) {
	v, err := r.Get(KeyWatermark(table))
	if pebblestore.IsNotFound(err) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(v) != 8 {
		return 0, false, fmt.Errorf("%w: watermark record of %d bytes", ErrCorrupt, len(v))
	}
	return decodeTs(v), true, nil
}

// stageWatermark writes next into b when it advances past current. The
// watermark never moves backwards.
func (l *Log) stageWatermark(b *pebble.Batch, current int64, hasCurrent bool, next int64) (bool, error) {
	if hasCurrent && next <= current {
		return false, nil
	}
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(next)^(1<<63))
	if err := b.Set(KeyWatermark(l.table), v[:], nil); err != nil {
		return false, err
	}
	return true, nil
}
