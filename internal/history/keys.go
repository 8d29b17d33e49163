package history

import (
	"bytes"
	"encoding/binary"
	"math"

	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

// Keyspace helpers for Pebble keys.
//
// Layout (byte-wise, lexicographically sortable):
// - th/{table}/rev/{key}\x00{ts_be8}   revision, per-key index
// - th/{table}/ts/{ts_be8}{key}        revision, global timestamp index
// - th/{table}/meta/watermark          compaction watermark
//
// Timestamps are stored with the sign bit flipped so that byte order matches
// numeric order for the whole int64 range.

var (
	tablePrefix  = []byte("th/")
	revSeg       = []byte("/rev/")
	tsSeg        = []byte("/ts/")
	watermarkSeg = []byte("/meta/watermark")
)

const keyTerminator = 0x00

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func appendTs(dst []byte, ts int64) []byte {
	return appendBE8(dst, uint64(ts)^(1<<63))
}

func decodeTs(b []byte) int64 {
	return int64(binary.BigEndian.Uint64(b) ^ (1 << 63))
}

func tableKey(table string, seg []byte, extra int) []byte {
	k := make([]byte, 0, len(tablePrefix)+len(table)+len(seg)+extra)
	k = append(k, tablePrefix...)
	k = append(k, table...)
	k = append(k, seg...)
	return k
}

// KeyRevPrefix is the prefix of the per-key index of a table.
func KeyRevPrefix(table string) []byte {
	return tableKey(table, revSeg, 0)
}

// keyRevKeyPrefix is the prefix shared by every revision of one key.
func keyRevKeyPrefix(table, key string) []byte {
	k := tableKey(table, revSeg, len(key)+9)
	k = append(k, key...)
	return append(k, keyTerminator)
}

// KeyRevision builds the per-key index entry for (key, ts).
func KeyRevision(table, key string, ts int64) []byte {
	return appendTs(keyRevKeyPrefix(table, key), ts)
}

// keyRevUpper is the exclusive upper bound for revisions of key with ts <= maxTs.
func keyRevUpper(table, key string, maxTs int64) []byte {
	if maxTs == math.MaxInt64 {
		return pebblestore.PrefixUpperBound(keyRevKeyPrefix(table, key))
	}
	return KeyRevision(table, key, maxTs+1)
}

// KeyTsPrefix is the prefix of the global timestamp index of a table.
func KeyTsPrefix(table string) []byte {
	return tableKey(table, tsSeg, 0)
}

// KeyTsIndex builds the global index entry for (ts, key).
func KeyTsIndex(table string, ts int64, key string) []byte {
	k := appendTs(tableKey(table, tsSeg, 8+len(key)), ts)
	return append(k, key...)
}

// keyTsLower is the inclusive lower bound for entries with timestamp >= ts.
func keyTsLower(table string, ts int64) []byte {
	return appendTs(KeyTsPrefix(table), ts)
}

// keyTsUpper is the exclusive upper bound for entries with timestamp <= maxTs.
func keyTsUpper(table string, maxTs int64) []byte {
	if maxTs == math.MaxInt64 {
		return pebblestore.PrefixUpperBound(KeyTsPrefix(table))
	}
	return appendTs(KeyTsPrefix(table), maxTs+1)
}

// KeyWatermark builds the compaction watermark key of a table.
func KeyWatermark(table string) []byte {
	return tableKey(table, watermarkSeg, 0)
}

// parseRevSuffix splits "{key}\x00{ts_be8}".
func parseRevSuffix(suffix []byte) (string, int64, bool) {
	if len(suffix) < 9 || suffix[len(suffix)-9] != keyTerminator {
		return "", 0, false
	}
	return string(suffix[:len(suffix)-9]), decodeTs(suffix[len(suffix)-8:]), true
}

// parseTsSuffix splits "{ts_be8}{key}".
func parseTsSuffix(suffix []byte) (int64, string, bool) {
	if len(suffix) < 9 {
		return 0, "", false
	}
	return decodeTs(suffix[:8]), string(suffix[8:]), true
}

func validKey(key string) bool {
	return key != "" && !bytes.Contains([]byte(key), []byte{keyTerminator})
}
