package workqueue

import (
	"encoding/binary"
)

// Keyspace, all keys prefixed with wq/{queue}/:
//
//	meta                         - lastSeq (8B)
//	msg/{seq_be8}                - message record
//	ready/{ready_at_be8}{seq_be8} - availability index, due when ready_at <= now
//	lease/{seq_be8}              - active lease: expires_at (8B) | attempts (4B)
//	lease_idx/{exp_be8}{seq_be8} - lease expiry index for reclaim
//	attempts/{seq_be8}           - failed delivery count

const (
	segMeta     = "meta"
	segMsg      = "msg/"
	segReady    = "ready/"
	segLease    = "lease/"
	segLeaseIdx = "lease_idx/"
	segAttempts = "attempts/"
)

func appendBE8(dst []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(dst, b[:]...)
}

func queuePrefix(queue string) []byte {
	k := make([]byte, 0, 3+len(queue)+1)
	k = append(k, "wq/"...)
	k = append(k, queue...)
	return append(k, '/')
}

func segKey(queue, seg string, extra int) []byte {
	p := queuePrefix(queue)
	k := make([]byte, 0, len(p)+len(seg)+extra)
	k = append(k, p...)
	return append(k, seg...)
}

// MetaKey returns the queue metadata key.
func MetaKey(queue string) []byte { return segKey(queue, segMeta, 0) }

// MsgKey returns the message key for seq.
func MsgKey(queue string, seq uint64) []byte {
	return appendBE8(segKey(queue, segMsg, 8), seq)
}

// MsgPrefix returns the prefix of every message of the queue.
func MsgPrefix(queue string) []byte { return segKey(queue, segMsg, 0) }

// ReadyKey returns the availability index key.
func ReadyKey(queue string, readyAtMs int64, seq uint64) []byte {
	return appendBE8(appendBE8(segKey(queue, segReady, 16), uint64(readyAtMs)), seq)
}

// ReadyPrefix returns the prefix of the availability index.
func ReadyPrefix(queue string) []byte { return segKey(queue, segReady, 0) }

// LeaseKey returns the lease record key for seq.
func LeaseKey(queue string, seq uint64) []byte {
	return appendBE8(segKey(queue, segLease, 8), seq)
}

// LeaseIdxKey returns the lease expiry index key.
func LeaseIdxKey(queue string, expiresAtMs int64, seq uint64) []byte {
	return appendBE8(appendBE8(segKey(queue, segLeaseIdx, 16), uint64(expiresAtMs)), seq)
}

// LeaseIdxPrefix returns the prefix of the lease expiry index.
func LeaseIdxPrefix(queue string) []byte { return segKey(queue, segLeaseIdx, 0) }

// AttemptsKey returns the failed-delivery counter key for seq.
func AttemptsKey(queue string, seq uint64) []byte {
	return appendBE8(segKey(queue, segAttempts, 8), seq)
}

// splitTimeSeq parses the {ms_be8}{seq_be8} suffix of index keys.
func splitTimeSeq(suffix []byte) (int64, uint64, bool) {
	if len(suffix) != 16 {
		return 0, 0, false
	}
	return int64(binary.BigEndian.Uint64(suffix[:8])), binary.BigEndian.Uint64(suffix[8:]), true
}
