package history

import (
	"context"
	"sync/atomic"
	"testing"

	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ now atomic.Int64 }

func useClock(t *testing.T, start int64) *fakeClock {
	t.Helper()
	c := &fakeClock{}
	c.now.Store(start)
	prev := NowMs
	NowMs = func() int64 { return c.now.Load() }
	t.Cleanup(func() { NowMs = prev })
	return c
}

func (c *fakeClock) tick() int64 { return c.now.Add(1) }

func newTestDB(t *testing.T) *pebblestore.DB {
	t.Helper()
	db, err := pebblestore.Open(pebblestore.Options{DataDir: t.TempDir(), Fsync: pebblestore.FsyncModeNever})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newTestLog(t *testing.T) *Log {
	t.Helper()
	l, err := OpenLog(newTestDB(t), "items")
	require.NoError(t, err)
	return l
}

func put(t *testing.T, l *Log, key, doc string) int64 {
	t.Helper()
	ts, err := l.Update(context.Background(), key, []byte(doc), PolicyWallclock, nil)
	require.NoError(t, err)
	return ts
}

func del(t *testing.T, l *Log, key string) int64 {
	t.Helper()
	ts, err := l.Update(context.Background(), key, nil, PolicyWallclock, nil)
	require.NoError(t, err)
	return ts
}

func docs(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Deleted {
			out = append(out, e.Key+":<deleted>")
			continue
		}
		out = append(out, string(e.Doc))
	}
	return out
}

func keysOf(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Key)
	}
	return out
}
