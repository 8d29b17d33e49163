package history

import (
	"context"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWallclockSameMillisecondStaysIncreasing(t *testing.T) {
	useClock(t, 1000)
	l := newTestLog(t)

	var prev int64
	for i := 0; i < 5; i++ {
		ts := put(t, l, "a", fmt.Sprintf("v%d", i))
		if i > 0 {
			require.Greater(t, ts, prev, "revision %d", i)
		}
		prev = ts
	}
	assert.Equal(t, int64(1004), prev)
}

func TestTablePolicyOrdersAcrossKeys(t *testing.T) {
	clock := useClock(t, 1000)
	l := newTestLog(t)
	ctx := context.Background()

	ts1, err := l.Update(ctx, "a", []byte("x"), PolicyTable, nil)
	require.NoError(t, err)
	require.Equal(t, int64(1000), ts1)

	// clock goes backwards: the global latest still wins
	clock.now.Store(900)
	ts2, err := l.Update(ctx, "b", []byte("y"), PolicyTable, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), ts2)

	clock.now.Store(5000)
	ts3, err := l.Update(ctx, "c", []byte("z"), PolicyTable, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(5000), ts3)
}

func TestDocumentPolicyOrdersPerKeyOnly(t *testing.T) {
	clock := useClock(t, 1000)
	l := newTestLog(t)
	ctx := context.Background()

	_, err := l.Update(ctx, "a", []byte("1"), PolicyDocument, nil)
	require.NoError(t, err)
	clock.now.Store(500)

	tsA, err := l.Update(ctx, "a", []byte("2"), PolicyDocument, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(1001), tsA)

	tsB, err := l.Update(ctx, "b", []byte("1"), PolicyDocument, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(500), tsB, "other keys are not ordered after a")
}

func TestCollisionBumpsPastExisting(t *testing.T) {
	clock := useClock(t, 1000)
	l := newTestLog(t)

	require.Equal(t, int64(1000), put(t, l, "a", "1"))
	require.Equal(t, int64(1001), put(t, l, "a", "2"))
	clock.now.Store(1000)
	// 1000 and 1001 are taken for "a"; "b" is free at 1000
	assert.Equal(t, int64(1002), put(t, l, "a", "3"))
	assert.Equal(t, int64(1000), put(t, l, "b", "1"))
}

func TestConcurrentWritersNeverShareTimestamp(t *testing.T) {
	useClock(t, 1000)
	l := newTestLog(t)
	ctx := context.Background()

	policies := []Policy{PolicyTable, PolicyDocument, PolicyWallclock}
	var wg sync.WaitGroup
	for w := 0; w < 6; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 20; i++ {
				_, err := l.Update(ctx, "shared", []byte("x"), policies[(w+i)%len(policies)], nil)
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	page, err := l.ListDocumentHistory(ctx, "shared", math.MaxInt64, PageRequest{NumItems: 1000})
	require.NoError(t, err)
	require.Len(t, page.Entries, 120)
	for i := 1; i < len(page.Entries); i++ {
		require.Less(t, page.Entries[i].Ts, page.Entries[i-1].Ts)
	}
}

func TestUpdateRejectsBadInput(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	_, err := l.Update(ctx, "", []byte("x"), PolicyWallclock, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.Update(ctx, "a\x00b", []byte("x"), PolicyWallclock, nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.Update(ctx, "a", []byte("x"), Policy("strict"), nil)
	assert.ErrorIs(t, err, ErrInvalidArgument)

	_, err = OpenLog(l.db, "a/b")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}

func TestTombstoneAndAttribution(t *testing.T) {
	useClock(t, 1000)
	l := newTestLog(t)
	ctx := context.Background()

	_, err := l.Update(ctx, "a", []byte{}, PolicyWallclock, []byte(`{"actor":"alice"}`))
	require.NoError(t, err)
	_, err = l.Update(ctx, "a", nil, PolicyWallclock, []byte(`{"actor":"bob"}`))
	require.NoError(t, err)

	page, err := l.ListDocumentHistory(ctx, "a", math.MaxInt64, PageRequest{NumItems: 10})
	require.NoError(t, err)
	require.Len(t, page.Entries, 2)

	tomb, live := page.Entries[0], page.Entries[1]
	assert.True(t, tomb.Deleted)
	assert.Nil(t, tomb.Doc)
	assert.Equal(t, `{"actor":"bob"}`, string(tomb.Attribution))
	assert.False(t, live.Deleted)
	assert.NotNil(t, live.Doc, "an empty document is not a tombstone")
	assert.Equal(t, `{"actor":"alice"}`, string(live.Attribution))
}

func TestWaitForUpdate(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	woke := make(chan bool, 1)
	go func() { woke <- l.WaitForUpdate(ctx, 5*time.Second) }()
	deadline := time.After(3 * time.Second)
	for {
		put(t, l, "a", "x")
		select {
		case ok := <-woke:
			assert.True(t, ok)
			return
		case <-time.After(5 * time.Millisecond):
		case <-deadline:
			t.Fatal("waiter never woke")
		}
	}
}

func TestWaitForUpdateTimesOut(t *testing.T) {
	l := newTestLog(t)
	assert.False(t, l.WaitForUpdate(context.Background(), 10*time.Millisecond))
}

func TestUpdatedChannelCatchesEarlierAppend(t *testing.T) {
	l := newTestLog(t)
	ch := l.Updated()
	put(t, l, "a", "x")
	assert.True(t, WaitOn(context.Background(), ch, 0))
	assert.False(t, WaitOn(context.Background(), l.Updated(), time.Millisecond))
}

func TestParsePolicy(t *testing.T) {
	p, err := ParsePolicy("")
	require.NoError(t, err)
	assert.Equal(t, PolicyWallclock, p)
	p, err = ParsePolicy(" Table ")
	require.NoError(t, err)
	assert.Equal(t, PolicyTable, p)
	_, err = ParsePolicy("global")
	assert.ErrorIs(t, err, ErrInvalidArgument)
}
