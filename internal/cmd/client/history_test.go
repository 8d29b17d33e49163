package client

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	historyv1 "github.com/rzbill/tablehistory/api/history/v1"
	transports "github.com/rzbill/tablehistory/internal/cmd/client/transports"
	cfgpkg "github.com/rzbill/tablehistory/internal/config"
	"github.com/rzbill/tablehistory/internal/history"
	"github.com/rzbill/tablehistory/internal/runtime"
	httpserver "github.com/rzbill/tablehistory/internal/server/http"
	pebblestore "github.com/rzbill/tablehistory/internal/storage/pebble"
	"github.com/rzbill/tablehistory/pkg/log"
)

// --- gRPC CLI tests ---

type historyStub struct {
	historyv1.UnimplementedHistoryServiceServer
	mu      sync.Mutex
	updates []*historyv1.UpdateRequest
}

func (s *historyStub) Update(_ context.Context, req *historyv1.UpdateRequest) (*historyv1.UpdateResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.updates = append(s.updates, req)
	return &historyv1.UpdateResponse{Ts: 1234}, nil
}

func startGRPCStub(t *testing.T, svc historyv1.HistoryServiceServer) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	gs := grpc.NewServer()
	historyv1.RegisterHistoryServiceServer(gs, svc)
	done := make(chan struct{})
	go func() {
		_ = gs.Serve(l)
		close(done)
	}()
	t.Cleanup(func() {
		gs.Stop()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
		}
	})
	return l.Addr().String()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRoot(HTTPAddrFromEnv)
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return buf.String(), err
}

func TestUpdateGRPC(t *testing.T) {
	stub := &historyStub{}
	t.Setenv("TH_GRPC", startGRPCStub(t, stub))
	t.Setenv("TH_TRANSPORT", "")

	out, err := run(t, "update", "--table", "items", "--key", "a", "--doc", `{"qty":1}`, "--attribution", "alice")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"ts":"1234"`)

	_, err = run(t, "update", "--table", "items", "--key", "a", "--delete")
	require.NoError(t, err)

	stub.mu.Lock()
	defer stub.mu.Unlock()
	require.Len(t, stub.updates, 2)
	assert.JSONEq(t, `{"qty":1}`, string(stub.updates[0].Doc))
	assert.Equal(t, "alice", stub.updates[0].Attribution)
	assert.Nil(t, historyv1.DocBytes(stub.updates[1].Doc))
}

func TestUpdateRejectsBadFlags(t *testing.T) {
	_, err := run(t, "update", "--table", "items", "--key", "a")
	assert.Error(t, err)
	_, err = run(t, "update", "--table", "items", "--key", "a", "--doc", "{nope")
	assert.Error(t, err)
	_, err = run(t, "update", "--table", "items", "--key", "a", "--doc", "{}", "--delete")
	assert.Error(t, err)
}

// --- snapshot paging ---

type fakeSnapshots struct {
	transports.HistoryTransport
	reqs  []historyv1.ListSnapshotRequest
	pages func(historyv1.ListSnapshotRequest) *historyv1.SnapshotResponse
}

func (f *fakeSnapshots) ListSnapshot(_ context.Context, req *historyv1.ListSnapshotRequest) (*historyv1.SnapshotResponse, error) {
	f.reqs = append(f.reqs, *req)
	return f.pages(*req), nil
}

func TestPageSnapshotFollowsSplits(t *testing.T) {
	f := &fakeSnapshots{pages: func(r historyv1.ListSnapshotRequest) *historyv1.SnapshotResponse {
		switch {
		case r.Cursor == "" && r.EndCursor == "":
			return &historyv1.SnapshotResponse{
				Entries:        []historyv1.Revision{{Key: "a"}, {Key: "c"}},
				ContinueCursor: "c",
				PageStatus:     string(history.SplitRecommended),
				SplitCursor:    "a",
				CurrentTs:      2000,
			}
		case r.Cursor == "" && r.EndCursor == "a":
			return &historyv1.SnapshotResponse{Entries: []historyv1.Revision{{Key: "a"}}, ContinueCursor: "a", CurrentTs: 2000}
		case r.Cursor == "a" && r.EndCursor == "c":
			return &historyv1.SnapshotResponse{Entries: []historyv1.Revision{{Key: "c"}}, ContinueCursor: "c", CurrentTs: 2000}
		default:
			return &historyv1.SnapshotResponse{Entries: []historyv1.Revision{{Key: "e"}}, ContinueCursor: history.EndCursor, IsDone: true, CurrentTs: 2000}
		}
	}}

	var keys []string
	err := pageSnapshot(context.Background(), f, historyv1.ListSnapshotRequest{Table: "items", SnapshotTs: 1500, NumItems: 2}, true, true,
		func(p *historyv1.SnapshotResponse) error {
			for _, e := range p.Entries {
				keys = append(keys, e.Key)
			}
			return nil
		})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "c", "e"}, keys)

	require.Len(t, f.reqs, 4)
	assert.Equal(t, int64(0), f.reqs[0].CurrentTs)
	for _, r := range f.reqs[1:] {
		assert.Equal(t, int64(2000), r.CurrentTs, "continuations reuse the first CurrentTs")
	}
	assert.Equal(t, "c", f.reqs[3].Cursor)
	assert.Empty(t, f.reqs[3].EndCursor)
}

func TestPageSnapshotSinglePage(t *testing.T) {
	f := &fakeSnapshots{pages: func(r historyv1.ListSnapshotRequest) *historyv1.SnapshotResponse {
		return &historyv1.SnapshotResponse{ContinueCursor: "x", PageStatus: string(history.SplitRecommended), SplitCursor: "m"}
	}}
	n := 0
	err := pageSnapshot(context.Background(), f, historyv1.ListSnapshotRequest{NumItems: 1}, false, false,
		func(*historyv1.SnapshotResponse) error { n++; return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Len(t, f.reqs, 1)
}

// --- HTTP transport against the real gateway ---

func startHTTPServer(t *testing.T) {
	t.Helper()
	rt, err := runtime.Open(runtime.Options{
		DataDir: t.TempDir(),
		Fsync:   pebblestore.FsyncModeAlways,
		Config:  cfgpkg.Default(),
		Logger:  log.NewLogger(log.WithOutput(log.NullOutput{})),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(httpserver.New(rt).Handler())
	t.Cleanup(func() {
		srv.Close()
		_ = rt.Close()
	})
	t.Setenv("TH_TRANSPORT", "http")
	t.Setenv("TH_HTTP", srv.URL)
}

func TestCommandsOverHTTP(t *testing.T) {
	startHTTPServer(t)

	out, err := run(t, "tables", "create", "--name", "items", "--serializability", "table")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"created":true`)

	for _, doc := range []string{`{"v":1}`, `{"v":2}`} {
		out, err = run(t, "update", "--table", "items", "--key", "a/b", "--doc", doc)
		require.NoError(t, err, out)
	}
	out, err = run(t, "update", "--table", "items", "--key", "c", "--doc", `{"v":3}`)
	require.NoError(t, err, out)

	out, err = run(t, "doc-history", "--table", "items", "--key", "a/b", "--limit", "10")
	require.NoError(t, err, out)
	var page historyv1.PageResponse
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Entries, 2)
	assert.Equal(t, "a/b", page.Entries[0].Key)
	assert.JSONEq(t, `{"v":2}`, string(page.Entries[0].Doc))

	out, err = run(t, "history", "--table", "items", "--limit", "1", "--all")
	require.NoError(t, err, out)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)

	out, err = run(t, "history", "--table", "items", "--limit", "10", "--filter", "key == 'c'")
	require.NoError(t, err, out)
	page = historyv1.PageResponse{}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	require.Len(t, page.Entries, 1)
	assert.Equal(t, "c", page.Entries[0].Key)

	out, err = run(t, "history", "--table", "items", "--limit", "10", "--max-ts", "0")
	require.NoError(t, err, out)
	page = historyv1.PageResponse{}
	require.NoError(t, json.Unmarshal([]byte(out), &page))
	assert.Empty(t, page.Entries, "an explicit zero bound excludes every later revision")

	out, err = run(t, "watermark", "--table", "items")
	require.NoError(t, err, out)
	assert.Contains(t, out, `"exists":false`)

	_, err = run(t, "history", "--table", "ghost", "--limit", "1")
	var se *transports.StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 404, se.Code)
}
