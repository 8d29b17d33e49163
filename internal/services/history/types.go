package historysvc

import "github.com/rzbill/tablehistory/internal/history"

// UpdateRequest records one revision. A nil Doc records a deletion.
type UpdateRequest struct {
	Table string
	Key   string
	Doc   []byte
	// Serializability overrides the table policy when set.
	Serializability string
	Attribution     []byte
}

// ChangeOp is the kind of host-table write a change event reports.
type ChangeOp string

const (
	OpInsert ChangeOp = "insert"
	OpUpdate ChangeOp = "update"
	OpDelete ChangeOp = "delete"
)

// ChangeEvent is what a host-table trigger hands to RecordChange.
type ChangeEvent struct {
	Op  ChangeOp
	Key string
	// NewDoc is the document after the write; ignored for deletes.
	NewDoc      []byte
	Attribution []byte
}

// HistoryQuery pages through a table's history, newest first.
type HistoryQuery struct {
	Table string
	// MaxTs bounds the listing to revisions at or before it. Nil means no bound.
	MaxTs    *int64
	Cursor   string
	NumItems int
	// Filter is an optional CEL expression over key, ts, deleted,
	// attribution and doc.
	Filter string
	// WaitMs, when positive on a first page that came back empty, waits up to
	// that long for a write and lists again.
	WaitMs int64
}

// DocumentHistoryQuery pages through the revisions of one key, newest first.
type DocumentHistoryQuery struct {
	Table    string
	Key      string
	MaxTs    *int64
	Cursor   string
	NumItems int
	Filter   string
}

// SnapshotQuery pages through a table as of SnapshotTs.
type SnapshotQuery struct {
	Table      string
	SnapshotTs int64
	// CurrentTs pins the listing; zero takes the current time on the first
	// page. Continuation pages must pass the CurrentTs of the first response.
	CurrentTs int64
	Cursor    string
	NumItems  int
	EndCursor string
}

// SnapshotResult is a snapshot page plus the CurrentTs it was computed at.
type SnapshotResult struct {
	history.SnapshotPage
	CurrentTs int64
}

// VacuumRequest asks for compaction of a table up to MinTsToKeep.
type VacuumRequest struct {
	Table       string
	MinTsToKeep int64
	// Sync compacts inline instead of scheduling background jobs.
	Sync bool
}

// VacuumStatus reports a scheduled or completed compaction.
type VacuumStatus struct {
	Table     string
	RunID     string
	Scheduled bool
	// Result is set for synchronous runs.
	Result *history.VacuumResult
}
