package workqueue

import (
	"context"
	"testing"
	"time"

	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
)

func openTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeAlways})
	if err != nil {
		t.Fatalf("open pebble: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func openTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := OpenQueue(openTestDB(t), "q")
	if err != nil {
		t.Fatalf("open queue: %v", err)
	}
	return q
}

func TestEnqueueAssignsIncreasingSeqs(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	s1, err := q.Enqueue(ctx, []byte("h"), []byte("p"), 0, 1000)
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	s2, _ := q.Enqueue(ctx, []byte("h"), []byte("p"), 0, 1000)
	if s1 == 0 || s2 <= s1 {
		t.Fatalf("seqs = %d, %d", s1, s2)
	}
}

func TestDequeueRespectsDelay(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	s1, _ := q.Enqueue(ctx, nil, []byte("a"), 200, 1000)
	s2, _ := q.Enqueue(ctx, nil, []byte("b"), 0, 1000)

	msgs, err := q.Dequeue(ctx, 10, 1000, 1100)
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Seq != s2 || string(msgs[0].Payload) != "b" {
		t.Fatalf("expected only the immediate message, got %+v", msgs)
	}

	msgs, err = q.Dequeue(ctx, 10, 1000, 1200)
	if err != nil {
		t.Fatalf("dequeue2: %v", err)
	}
	if len(msgs) != 1 || msgs[0].Seq != s1 {
		t.Fatalf("expected delayed message once due, got %+v", msgs)
	}
}

func TestLeasedMessageIsNotRedelivered(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	_, _ = q.Enqueue(ctx, nil, []byte("x"), 0, 1000)
	msgs, _ := q.Dequeue(ctx, 1, 1000, 1000)
	if len(msgs) != 1 {
		t.Fatalf("dequeue: %+v", msgs)
	}
	again, _ := q.Dequeue(ctx, 1, 1000, 1500)
	if len(again) != 0 {
		t.Fatalf("leased message delivered twice")
	}
}

func TestComplete(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	_, _ = q.Enqueue(ctx, nil, []byte("x"), 0, 1000)
	msgs, _ := q.Dequeue(ctx, 1, 1000, 1100)
	if err := q.Complete(ctx, msgs...); err != nil {
		t.Fatalf("complete: %v", err)
	}
	st, err := q.Stats()
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if st != (Stats{}) {
		t.Fatalf("queue not empty after complete: %+v", st)
	}
	// the completed lease must not come back
	if n, _ := q.ReclaimExpired(ctx, 5000, 0); n != 0 {
		t.Fatalf("reclaimed a completed message")
	}
}

func TestStageCompleteAndEnqueueAtomically(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	_, _ = q.Enqueue(ctx, []byte("job"), []byte("1"), 0, 1000)
	msgs, _ := q.Dequeue(ctx, 1, 1000, 1000)

	b := q.db.NewBatch()
	if _, err := q.StageEnqueue(b, []byte("job"), []byte("2"), 0, 1000); err != nil {
		t.Fatalf("stage enqueue: %v", err)
	}
	if err := q.StageComplete(b, msgs[0]); err != nil {
		t.Fatalf("stage complete: %v", err)
	}
	// nothing visible before commit
	if st, _ := q.Stats(); st.Messages != 1 || st.Leased != 1 {
		t.Fatalf("staged writes leaked: %+v", st)
	}
	if err := q.db.CommitBatch(ctx, b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	_ = b.Close()

	next, _ := q.Dequeue(ctx, 10, 1000, 1000)
	if len(next) != 1 || string(next[0].Payload) != "2" {
		t.Fatalf("expected the follow-up job, got %+v", next)
	}
}

func TestFailRetriesAfterDelay(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	s, _ := q.Enqueue(ctx, nil, []byte("x"), 0, 1000)
	msgs, _ := q.Dequeue(ctx, 1, 1000, 1100)
	if err := q.Fail(ctx, msgs[0], 200, 1100); err != nil {
		t.Fatalf("fail: %v", err)
	}
	if got, _ := q.Dequeue(ctx, 1, 1000, 1150); len(got) != 0 {
		t.Fatalf("should not dequeue before retry delay")
	}
	got, _ := q.Dequeue(ctx, 1, 1000, 1400)
	if len(got) != 1 || got[0].Seq != s {
		t.Fatalf("should dequeue after retry delay")
	}
	if got[0].Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", got[0].Attempts)
	}
}

func TestReclaimExpired(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	s, _ := q.Enqueue(ctx, nil, []byte("x"), 0, 1000)
	_, _ = q.Dequeue(ctx, 1, 50, 1000)

	if n, _ := q.ReclaimExpired(ctx, 1020, 0); n != 0 {
		t.Fatalf("reclaimed before expiry")
	}
	n, err := q.ReclaimExpired(ctx, 1100, 10)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if n != 1 {
		t.Fatalf("reclaimed %d, want 1", n)
	}
	msgs, _ := q.Dequeue(ctx, 1, 1000, 1200)
	if len(msgs) != 1 || msgs[0].Seq != s {
		t.Fatalf("expected reclaimed seq")
	}
}

func TestReopenRestoresSequence(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	q, _ := OpenQueue(db, "q")
	s1, _ := q.Enqueue(ctx, nil, []byte("a"), 0, 1000)

	q2, err := OpenQueue(db, "q")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	s2, _ := q2.Enqueue(ctx, nil, []byte("b"), 0, 1000)
	if s2 <= s1 {
		t.Fatalf("sequence reused after reopen: %d <= %d", s2, s1)
	}
	readyAt, ok, err := q2.NextReadyAt()
	if err != nil || !ok || readyAt != 1000 {
		t.Fatalf("next ready = %d %v %v", readyAt, ok, err)
	}
}

func TestSweeperBackground(t *testing.T) {
	q := openTestQueue(t)
	ctx := context.Background()
	_, _ = q.Enqueue(ctx, nil, []byte("x"), 0, 1000)
	_, _ = q.Dequeue(ctx, 1, 50, 1000)
	q.StartSweeper(20*time.Millisecond, 32)
	defer q.StopSweeper()

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if msgs, _ := q.Dequeue(ctx, 1, 1000, time.Now().UnixMilli()); len(msgs) == 1 {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("expected a reclaimed item dequeued by background sweeper")
}
