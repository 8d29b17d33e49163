package historyv1

import "encoding/json"

// Revision is one revision of one document. Doc is null for deletions.
type Revision struct {
	Key         string          `json:"key"`
	Ts          int64           `json:"ts,string"`
	Doc         json.RawMessage `json:"doc"`
	Deleted     bool            `json:"deleted"`
	Attribution string          `json:"attribution,omitempty"`
}

// UpdateRequest records a revision. A missing or null doc records a deletion.
type UpdateRequest struct {
	Table           string          `json:"table"`
	Key             string          `json:"key"`
	Doc             json.RawMessage `json:"doc,omitempty"`
	Serializability string          `json:"serializability,omitempty"`
	Attribution     string          `json:"attribution,omitempty"`
}

type UpdateResponse struct {
	Ts int64 `json:"ts,string"`
}

// ListHistoryRequest pages through a table. A nil MaxTs lists everything.
type ListHistoryRequest struct {
	Table    string `json:"table"`
	MaxTs    *int64 `json:"maxTs,string,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
	NumItems int    `json:"numItems"`
	Filter   string `json:"filter,omitempty"`
	WaitMs   int64  `json:"waitMs,omitempty"`
}

type ListDocumentHistoryRequest struct {
	Table    string `json:"table"`
	Key      string `json:"key"`
	MaxTs    *int64 `json:"maxTs,string,omitempty"`
	Cursor   string `json:"cursor,omitempty"`
	NumItems int    `json:"numItems"`
	Filter   string `json:"filter,omitempty"`
}

// PageResponse is one page of a history listing.
type PageResponse struct {
	Entries        []Revision `json:"entries"`
	ContinueCursor string     `json:"continueCursor"`
	IsDone         bool       `json:"isDone"`
}

type ListSnapshotRequest struct {
	Table      string `json:"table"`
	SnapshotTs int64  `json:"snapshotTs,string"`
	CurrentTs  int64  `json:"currentTs,string,omitempty"`
	Cursor     string `json:"cursor,omitempty"`
	NumItems   int    `json:"numItems"`
	EndCursor  string `json:"endCursor,omitempty"`
}

// SnapshotResponse is one page of a snapshot listing. Continuation requests
// must carry CurrentTs.
type SnapshotResponse struct {
	Entries        []Revision `json:"entries"`
	ContinueCursor string     `json:"continueCursor"`
	IsDone         bool       `json:"isDone"`
	SplitCursor    string     `json:"splitCursor,omitempty"`
	PageStatus     string     `json:"pageStatus,omitempty"`
	CurrentTs      int64      `json:"currentTs,string"`
}

type VacuumRequest struct {
	Table       string `json:"table"`
	MinTsToKeep int64  `json:"minTsToKeep,string"`
	Sync        bool   `json:"sync,omitempty"`
}

type VacuumResult struct {
	StartTs   int64 `json:"startTs,string"`
	Watermark int64 `json:"watermark,string"`
	Processed int   `json:"processed"`
	Deleted   int   `json:"deleted"`
	Done      bool  `json:"done"`
}

type VacuumResponse struct {
	Table     string        `json:"table"`
	RunID     string        `json:"runId,omitempty"`
	Scheduled bool          `json:"scheduled"`
	Result    *VacuumResult `json:"result,omitempty"`
}

type GetWatermarkRequest struct {
	Table string `json:"table"`
}

// GetWatermarkResponse reports Exists=false for tables never compacted.
type GetWatermarkResponse struct {
	Table     string `json:"table"`
	Watermark int64  `json:"watermark,string"`
	Exists    bool   `json:"exists"`
}

type Table struct {
	Name            string `json:"name"`
	Serializability string `json:"serializability"`
	CreatedAtMs     int64  `json:"createdAtMs,string"`
}

type CreateTableRequest struct {
	Name            string `json:"name"`
	Serializability string `json:"serializability,omitempty"`
}

type CreateTableResponse struct {
	Table   Table `json:"table"`
	Created bool  `json:"created"`
}

type ListTablesRequest struct{}

type ListTablesResponse struct {
	Tables []Table `json:"tables"`
}

// DocBytes returns the document of an update, nil for a deletion.
func DocBytes(raw json.RawMessage) []byte {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return []byte(raw)
}
