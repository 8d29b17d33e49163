package workqueue

import (
	"context"
	"encoding/binary"
	"math/rand"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

// Queue is a durable delayed job queue with lease-based, at-least-once
// delivery. Jobs become available at their ready time; a dequeued job is
// leased until completed, failed or its lease expires.
type Queue struct {
	db   *pebblestore.DB
	name string

	mu      sync.Mutex
	lastSeq uint64

	sweepMu   sync.Mutex
	sweepStop chan struct{}
	sweepDone chan struct{}
}

// LeasedMessage is a dequeued message under a lease.
type LeasedMessage struct {
	Seq      uint64
	Header   []byte
	Payload  []byte
	ExpiryMs int64
	// Attempts counts earlier failed deliveries.
	Attempts uint32
}

// Stats summarizes the queue state.
type Stats struct {
	Messages int
	Ready    int
	Leased   int
}

// OpenQueue opens the named queue and restores its sequence counter.
func OpenQueue(db *pebblestore.DB, name string) (*Queue, error) {
	q := &Queue{db: db, name: name}
	meta, err := db.Get(MetaKey(name))
	if err != nil && !pebblestore.IsNotFound(err) {
		return nil, err
	}
	if len(meta) >= 8 {
		q.lastSeq = binary.BigEndian.Uint64(meta[:8])
	}
	// A staged enqueue whose batch committed after a newer one may have left
	// meta behind; never reuse the sequence of a live message.
	it, err := db.NewIter(pebblestore.PrefixIterOptions(MsgPrefix(name)))
	if err != nil {
		return nil, err
	}
	defer it.Close()
	if it.Last() {
		if seq := binary.BigEndian.Uint64(it.Key()[len(it.Key())-8:]); seq > q.lastSeq {
			q.lastSeq = seq
		}
	}
	return q, it.Error()
}

// Name returns the queue name.
func (q *Queue) Name() string { return q.name }

// Enqueue stores a message that becomes available delayMs after nowMs.
// If nowMs <= 0, time.Now().UnixMilli() is used.
func (q *Queue) Enqueue(ctx context.Context, header, payload []byte, delayMs, nowMs int64) (uint64, error) {
	b := q.db.NewBatch()
	defer b.Close()
	seq, err := q.StageEnqueue(b, header, payload, delayMs, nowMs)
	if err != nil {
		return 0, err
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		return 0, err
	}
	return seq, nil
}

// StageEnqueue writes a new message into b. The message exists once b commits.
func (q *Queue) StageEnqueue(b *pebble.Batch, header, payload []byte, delayMs, nowMs int64) (uint64, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	if delayMs < 0 {
		delayMs = 0
	}
	q.mu.Lock()
	q.lastSeq++
	seq := q.lastSeq
	q.mu.Unlock()

	if err := b.Set(MsgKey(q.name, seq), EncodeMessage(header, payload), nil); err != nil {
		return 0, err
	}
	if err := b.Set(ReadyKey(q.name, nowMs+delayMs, seq), nil, nil); err != nil {
		return 0, err
	}
	var meta [8]byte
	binary.BigEndian.PutUint64(meta[:], seq)
	if err := b.Set(MetaKey(q.name), meta[:], nil); err != nil {
		return 0, err
	}
	return seq, nil
}

// Dequeue leases up to count messages that are due at nowMs, oldest ready
// time first.
func (q *Queue) Dequeue(ctx context.Context, count int, leaseMs, nowMs int64) ([]LeasedMessage, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	if count <= 0 {
		count = 1
	}
	if leaseMs <= 0 {
		leaseMs = 30_000
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	prefix := ReadyPrefix(q.name)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: ReadyKey(q.name, nowMs+1, 0)})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()
	msgs := make([]LeasedMessage, 0, count)
	for ok := iter.First(); ok && len(msgs) < count; ok = iter.Next() {
		k := iter.Key()
		_, seq, valid := splitTimeSeq(k[len(prefix):])
		if !valid {
			_ = b.Delete(k, nil)
			continue
		}
		val, err := q.db.Get(MsgKey(q.name, seq))
		if pebblestore.IsNotFound(err) {
			_ = b.Delete(k, nil)
			continue
		}
		if err != nil {
			return nil, err
		}
		dec, okDec := DecodeMessage(val)
		if !okDec {
			_ = b.Delete(k, nil)
			_ = b.Delete(MsgKey(q.name, seq), nil)
			continue
		}
		exp := nowMs + leaseMs
		var lbuf [12]byte
		binary.BigEndian.PutUint64(lbuf[0:8], uint64(exp))
		attempts := q.attempts(seq)
		binary.BigEndian.PutUint32(lbuf[8:12], attempts)
		if err := b.Set(LeaseKey(q.name, seq), lbuf[:], nil); err != nil {
			return nil, err
		}
		if err := b.Set(LeaseIdxKey(q.name, exp, seq), nil, nil); err != nil {
			return nil, err
		}
		if err := b.Delete(k, nil); err != nil {
			return nil, err
		}
		msgs = append(msgs, LeasedMessage{Seq: seq, Header: dec.Header, Payload: dec.Payload, ExpiryMs: exp, Attempts: attempts})
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	if !b.Empty() {
		if err := q.db.CommitBatch(ctx, b); err != nil {
			return nil, err
		}
	}
	return msgs, nil
}

func (q *Queue) attempts(seq uint64) uint32 {
	v, err := q.db.Get(AttemptsKey(q.name, seq))
	if err != nil || len(v) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(v[:4])
}

// Complete deletes leased messages.
func (q *Queue) Complete(ctx context.Context, msgs ...LeasedMessage) error {
	b := q.db.NewBatch()
	defer b.Close()
	for _, m := range msgs {
		if err := q.StageComplete(b, m); err != nil {
			return err
		}
	}
	return q.db.CommitBatch(ctx, b)
}

// StageComplete writes the removal of m into b.
func (q *Queue) StageComplete(b *pebble.Batch, m LeasedMessage) error {
	for _, k := range [][]byte{
		LeaseKey(q.name, m.Seq),
		LeaseIdxKey(q.name, m.ExpiryMs, m.Seq),
		AttemptsKey(q.name, m.Seq),
		MsgKey(q.name, m.Seq),
	} {
		if err := b.Delete(k, nil); err != nil {
			return err
		}
	}
	return nil
}

// Fail releases the lease of m and makes it available again retryAfterMs
// after nowMs. The attempt counter is incremented.
func (q *Queue) Fail(ctx context.Context, m LeasedMessage, retryAfterMs, nowMs int64) error {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	if retryAfterMs < 0 {
		retryAfterMs = 0
	}
	b := q.db.NewBatch()
	defer b.Close()
	if err := b.Delete(LeaseKey(q.name, m.Seq), nil); err != nil {
		return err
	}
	if err := b.Delete(LeaseIdxKey(q.name, m.ExpiryMs, m.Seq), nil); err != nil {
		return err
	}
	var abuf [4]byte
	binary.BigEndian.PutUint32(abuf[:], q.attempts(m.Seq)+1)
	if err := b.Set(AttemptsKey(q.name, m.Seq), abuf[:], nil); err != nil {
		return err
	}
	if err := b.Set(ReadyKey(q.name, nowMs+retryAfterMs, m.Seq), nil, nil); err != nil {
		return err
	}
	return q.db.CommitBatch(ctx, b)
}

// ReclaimExpired makes messages whose lease expired at or before nowMs
// available again. It returns the number of reclaimed messages.
func (q *Queue) ReclaimExpired(ctx context.Context, nowMs int64, max int) (int, error) {
	if nowMs <= 0 {
		nowMs = time.Now().UnixMilli()
	}
	prefix := LeaseIdxPrefix(q.name)
	iter, err := q.db.NewIter(&pebble.IterOptions{LowerBound: prefix, UpperBound: LeaseIdxKey(q.name, nowMs+1, 0)})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	b := q.db.NewBatch()
	defer b.Close()
	reclaimed := 0
	for ok := iter.First(); ok; ok = iter.Next() {
		k := iter.Key()
		exp, seq, valid := splitTimeSeq(k[len(prefix):])
		_ = b.Delete(k, nil)
		if !valid {
			continue
		}
		lease, err := q.db.Get(LeaseKey(q.name, seq))
		if err != nil || len(lease) < 8 || int64(binary.BigEndian.Uint64(lease[:8])) != exp {
			// stale index entry: the lease was completed, failed or re-issued
			continue
		}
		if err := b.Delete(LeaseKey(q.name, seq), nil); err != nil {
			return reclaimed, err
		}
		if err := b.Set(ReadyKey(q.name, nowMs, seq), nil, nil); err != nil {
			return reclaimed, err
		}
		reclaimed++
		if max > 0 && reclaimed >= max {
			break
		}
	}
	if err := iter.Error(); err != nil {
		return reclaimed, err
	}
	if !b.Empty() {
		if err := q.db.CommitBatch(ctx, b); err != nil {
			return 0, err
		}
	}
	return reclaimed, nil
}

// NextReadyAt returns the earliest ready time of any available message.
func (q *Queue) NextReadyAt() (int64, bool, error) {
	prefix := ReadyPrefix(q.name)
	iter, err := q.db.NewIter(pebblestore.PrefixIterOptions(prefix))
	if err != nil {
		return 0, false, err
	}
	defer iter.Close()
	for ok := iter.First(); ok; ok = iter.Next() {
		if readyAt, _, valid := splitTimeSeq(iter.Key()[len(prefix):]); valid {
			return readyAt, true, nil
		}
	}
	return 0, false, iter.Error()
}

// Stats counts messages by state.
func (q *Queue) Stats() (Stats, error) {
	var s Stats
	for _, c := range []struct {
		prefix []byte
		n      *int
	}{
		{MsgPrefix(q.name), &s.Messages},
		{ReadyPrefix(q.name), &s.Ready},
		{segKey(q.name, segLease, 0), &s.Leased},
	} {
		iter, err := q.db.NewIter(pebblestore.PrefixIterOptions(c.prefix))
		if err != nil {
			return Stats{}, err
		}
		for ok := iter.First(); ok; ok = iter.Next() {
			*c.n++
		}
		err = iter.Error()
		_ = iter.Close()
		if err != nil {
			return Stats{}, err
		}
	}
	return s, nil
}

// StartSweeper runs a background loop that reclaims expired leases.
func (q *Queue) StartSweeper(interval time.Duration, maxPerTick int) {
	q.sweepMu.Lock()
	defer q.sweepMu.Unlock()
	if q.sweepStop != nil {
		return
	}
	if interval <= 0 {
		interval = 500 * time.Millisecond
	}
	if maxPerTick <= 0 {
		maxPerTick = 1024
	}
	stop, done := make(chan struct{}), make(chan struct{})
	q.sweepStop, q.sweepDone = stop, done
	go func() {
		defer close(done)
		rng := rand.New(rand.NewSource(time.Now().UnixNano()))
		for {
			select {
			case <-stop:
				return
			case <-time.After(interval + time.Duration(rng.Int63n(int64(interval/10+1)))):
				_, _ = q.ReclaimExpired(context.Background(), time.Now().UnixMilli(), maxPerTick)
			}
		}
	}()
}

// StopSweeper stops the background sweeper and waits for it to exit.
func (q *Queue) StopSweeper() {
	q.sweepMu.Lock()
	stop, done := q.sweepStop, q.sweepDone
	q.sweepStop, q.sweepDone = nil, nil
	q.sweepMu.Unlock()
	if stop != nil {
		close(stop)
		<-done
	}
}
