package history

import (
	"context"
	"math"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// seedGroceries writes "1" twice and "2" once, one millisecond apart.
func seedGroceries(t *testing.T, l *Log, clock *fakeClock) int64 {
	t.Helper()
	put(t, l, "1", `beans/10`)
	clock.tick()
	put(t, l, "1", `beans/5`)
	clock.tick()
	return put(t, l, "2", `socks/1`)
}

func TestListHistoryNewestFirst(t *testing.T) {
	clock := useClock(t, 1000)
	l := newTestLog(t)
	last := seedGroceries(t, l, clock)

	page, err := l.ListHistory(context.Background(), last, PageRequest{NumItems: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"socks/1", "beans/5", "beans/10"}, docs(page.Entries))
	assert.True(t, page.IsDone)
	assert.Equal(t, EndCursor, page.ContinueCursor)
}

func TestListHistoryRespectsMaxTs(t *testing.T) {
	clock := useClock(t, 1000)
	l := newTestLog(t)
	last := seedGroceries(t, l, clock)

	page, err := l.ListHistory(context.Background(), last-1, PageRequest{NumItems: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"beans/5", "beans/10"}, docs(page.Entries))
}

func TestListHistoryPagination(t *testing.T) {
	clock := useClock(t, 1000)
	l := newTestLog(t)
	seedGroceries(t, l, clock)
	ctx := context.Background()

	p1, err := l.ListHistory(ctx, math.MaxInt64, PageRequest{NumItems: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"socks/1", "beans/5"}, docs(p1.Entries))
	require.False(t, p1.IsDone)

	p2, err := l.ListHistory(ctx, math.MaxInt64, PageRequest{Cursor: p1.ContinueCursor, NumItems: 2})
	require.NoError(t, err)
	assert.Equal(t, []string{"beans/10"}, docs(p2.Entries))
	assert.True(t, p2.IsDone)

	p3, err := l.ListHistory(ctx, math.MaxInt64, PageRequest{Cursor: p2.ContinueCursor, NumItems: 2})
	require.NoError(t, err)
	assert.Empty(t, p3.Entries)
	assert.True(t, p3.IsDone)
}

func TestListHistoryEqualTimestampsAcrossKeys(t *testing.T) {
	useClock(t, 1000)
	l := newTestLog(t)
	for _, k := range []string{"a", "b", "c"} {
		put(t, l, k, k)
	}
	ctx := context.Background()

	var got []string
	cursor := ""
	for {
		page, err := l.ListHistory(ctx, math.MaxInt64, PageRequest{Cursor: cursor, NumItems: 1})
		require.NoError(t, err)
		got = append(got, keysOf(page.Entries)...)
		if page.IsDone {
			break
		}
		cursor = page.ContinueCursor
	}
	assert.Equal(t, []string{"c", "b", "a"}, got)
}

func TestListDocumentHistory(t *testing.T) {
	clock := useClock(t, 1000)
	l := newTestLog(t)
	seedGroceries(t, l, clock)
	put(t, l, "10", "prefix sibling")
	ctx := context.Background()

	page, err := l.ListDocumentHistory(ctx, "1", math.MaxInt64, PageRequest{NumItems: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"beans/5", "beans/10"}, docs(page.Entries))
	assert.True(t, page.IsDone)

	page, err = l.ListDocumentHistory(ctx, "1", 1000, PageRequest{NumItems: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"beans/10"}, docs(page.Entries))

	page, err = l.ListDocumentHistory(ctx, "missing", math.MaxInt64, PageRequest{NumItems: 10})
	require.NoError(t, err)
	assert.Empty(t, page.Entries)
	assert.True(t, page.IsDone)
}

func TestListHistoryFilter(t *testing.T) {
	clock := useClock(t, 1000)
	l := newTestLog(t)
	seedGroceries(t, l, clock)

	page, err := l.ListHistory(context.Background(), math.MaxInt64, PageRequest{
		NumItems: 1,
		Filter:   func(e Entry) bool { return strings.HasPrefix(string(e.Doc), "beans") },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"beans/5"}, docs(page.Entries))
	require.False(t, page.IsDone)

	page, err = l.ListHistory(context.Background(), math.MaxInt64, PageRequest{
		Cursor:   page.ContinueCursor,
		NumItems: 1,
		Filter:   func(e Entry) bool { return strings.HasPrefix(string(e.Doc), "beans") },
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"beans/10"}, docs(page.Entries))
}

func TestListHistoryInvalidRequests(t *testing.T) {
	l := newTestLog(t)
	ctx := context.Background()

	_, err := l.ListHistory(ctx, math.MaxInt64, PageRequest{NumItems: 0})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.ListHistory(ctx, math.MaxInt64, PageRequest{NumItems: 1, Cursor: "!!"})
	assert.ErrorIs(t, err, ErrInvalidArgument)
	_, err = l.ListDocumentHistory(ctx, "", math.MaxInt64, PageRequest{NumItems: 1})
	assert.ErrorIs(t, err, ErrInvalidArgument)

	page, err := l.ListHistory(ctx, math.MaxInt64, PageRequest{Cursor: EndCursor})
	require.NoError(t, err)
	assert.True(t, page.IsDone)
	assert.Empty(t, page.Entries)
}

func TestTablesAreIsolated(t *testing.T) {
	useClock(t, 1000)
	l := newTestLog(t)
	other, err := OpenLog(l.db, "itemsx")
	require.NoError(t, err)
	put(t, l, "a", "mine")
	put(t, other, "a", "theirs")

	page, err := l.ListHistory(context.Background(), math.MaxInt64, PageRequest{NumItems: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"mine"}, docs(page.Entries))
}
