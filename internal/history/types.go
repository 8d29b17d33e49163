package history

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrInvalidArgument marks malformed requests: page sizes, cursors, keys, timestamps.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrSnapshotUnavailable means the requested snapshot predates the compaction watermark.
	ErrSnapshotUnavailable = errors.New("snapshot unavailable")
	// ErrCorrupt is returned when a stored revision fails to decode.
	ErrCorrupt = errors.New("corrupt revision")
)

// EndCursor is the terminal cursor. Passing it back yields an empty, done page.
const EndCursor = "END_CURSOR"

// Entry is one revision of one key. Doc is nil iff Deleted.
type Entry struct {
	Key         string
	Ts          int64
	Doc         []byte
	Deleted     bool
	Attribution []byte
}

// Policy selects how write timestamps are assigned.
type Policy string

const (
	// PolicyTable orders every write of the table: max(global latest + 1, now).
	PolicyTable Policy = "table"
	// PolicyDocument orders writes per key: max(key latest + 1, now).
	PolicyDocument Policy = "document"
	// PolicyWallclock uses the wall clock as is.
	PolicyWallclock Policy = "wallclock"
)

// DefaultPolicy is used when a write names no policy.
const DefaultPolicy = PolicyWallclock

// ParsePolicy accepts policy names case-insensitively; "" maps to DefaultPolicy.
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return DefaultPolicy, nil
	case PolicyTable:
		return PolicyTable, nil
	case PolicyDocument:
		return PolicyDocument, nil
	case PolicyWallclock:
		return PolicyWallclock, nil
	}
	return "", fmt.Errorf("%w: unknown serializability %q", ErrInvalidArgument, s)
}

// PageRequest pages through a history listing.
type PageRequest struct {
	Cursor   string
	NumItems int
	// Filter, when set, drops entries during the scan. Only matches count
	// toward NumItems.
	Filter func(Entry) bool
}

// Page is one page of a history listing.
type Page struct {
	Entries        []Entry
	ContinueCursor string
	IsDone         bool
}

// PageStatus hints how a snapshot page should be re-requested.
type PageStatus string

const SplitRecommended PageStatus = "SplitRecommended"

// SnapshotRequest pages through the table state as of SnapshotTs.
type SnapshotRequest struct {
	SnapshotTs int64
	CurrentTs  int64
	Cursor     string
	NumItems   int
	// EndCursor bounds the page to (Cursor, EndCursor]. Empty means unbounded.
	EndCursor string
}

// SnapshotPage is one page of a snapshot listing.
type SnapshotPage struct {
	Entries        []Entry
	ContinueCursor string
	IsDone         bool
	SplitCursor    string
	PageStatus     PageStatus
}

// VacuumResult reports one compaction batch.
type VacuumResult struct {
	// StartTs is the watermark read before the batch.
	StartTs int64
	// Watermark is the watermark after the batch.
	Watermark  int64
	NextCursor string
	Processed  int
	Deleted    int
	Done       bool
}
